package services

import (
	"context"
	"fmt"

	"github.com/autofix-app/autofix-api/config"
	"github.com/autofix-app/autofix-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// messagePreviewLength is how much of a chat message is quoted in its notification
const messagePreviewLength = 50

// Notifier persists in-app notifications and fans them out to the event publisher.
// Failures are logged and never returned; a notification must not fail the action
// that triggered it.
type Notifier struct {
	db        *gorm.DB
	publisher EventPublisher
}

// NewNotifier creates a notifier writing to db
func NewNotifier(db *gorm.DB, publisher EventPublisher) *Notifier {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &Notifier{db: db, publisher: publisher}
}

// Send stores one notification and publishes it
func (n *Notifier) Send(ctx context.Context, notification *models.Notification) {
	log := zap.L().With(
		zap.Uint("recipient_id", notification.RecipientID),
		zap.String("type", notification.Type),
	)

	if err := n.db.WithContext(ctx).Create(notification).Error; err != nil {
		log.Error("failed to store notification", zap.Error(err))
		return
	}

	event, err := NewEvent(notification.Type, notification.RecipientID, notification)
	if err != nil {
		log.Error("failed to build notification event", zap.Error(err))
		return
	}
	if err := n.publisher.Publish(ctx, event); err != nil {
		log.Warn("failed to publish notification", zap.Error(err))
	}
}

func appointmentLink(id uint) string {
	return fmt.Sprintf("/appointments/%d", id)
}

func slotOf(appt *models.Appointment) (string, string) {
	if appt.ProposedDate != nil && appt.ProposedTime != nil {
		return *appt.ProposedDate, *appt.ProposedTime
	}
	if appt.ConfirmedDate != nil && appt.ConfirmedTime != nil {
		return *appt.ConfirmedDate, *appt.ConfirmedTime
	}
	return appt.PreferredDate, appt.PreferredTime
}

// AppointmentCreated tells the workshop about a new request and confirms it to the customer
func (n *Notifier) AppointmentCreated(ctx context.Context, appt *models.Appointment, workshop *models.Workshop) {
	n.Send(ctx, &models.Notification{
		RecipientID:   workshop.OwnerID,
		Type:          models.NotificationAppointmentCreated,
		Title:         "New appointment request",
		Message:       fmt.Sprintf("%s requested an appointment for a %s %s on %s at %s", appt.CustomerName, appt.CarBrand, appt.CarModel, appt.PreferredDate, appt.PreferredTime),
		Link:          appointmentLink(appt.ID),
		AppointmentID: &appt.ID,
	})
	n.Send(ctx, &models.Notification{
		RecipientID:   appt.CustomerID,
		Type:          models.NotificationAppointmentCreated,
		Title:         "Request sent",
		Message:       fmt.Sprintf("Your request to %s was sent. You will be notified when the workshop answers.", workshop.Name),
		Link:          appointmentLink(appt.ID),
		AppointmentID: &appt.ID,
	})
}

// AppointmentConfirmed tells the other side that the slot is confirmed
func (n *Notifier) AppointmentConfirmed(ctx context.Context, appt *models.Appointment, workshop *models.Workshop, recipientID uint) {
	date, clock := slotOf(appt)
	n.Send(ctx, &models.Notification{
		RecipientID:   recipientID,
		Type:          models.NotificationAppointmentConfirmed,
		Title:         "Appointment confirmed",
		Message:       fmt.Sprintf("The appointment at %s is confirmed for %s at %s", workshop.Name, date, clock),
		Link:          appointmentLink(appt.ID),
		AppointmentID: &appt.ID,
	})
}

// TimeChangeProposed tells the counterparty a new slot is waiting for their answer
func (n *Notifier) TimeChangeProposed(ctx context.Context, appt *models.Appointment, proposer string, recipientID uint) {
	date, clock := slotOf(appt)
	n.Send(ctx, &models.Notification{
		RecipientID:   recipientID,
		Type:          models.NotificationTimeChangeProposed,
		Title:         "New time proposed",
		Message:       fmt.Sprintf("%s proposed %s at %s. Accept it or suggest another time.", proposer, date, clock),
		Link:          appointmentLink(appt.ID),
		AppointmentID: &appt.ID,
	})
}

// AppointmentDeclined tells the customer the workshop turned the request down
func (n *Notifier) AppointmentDeclined(ctx context.Context, appt *models.Appointment, workshop *models.Workshop) {
	n.Send(ctx, &models.Notification{
		RecipientID:   appt.CustomerID,
		Type:          models.NotificationAppointmentDeclined,
		Title:         "Appointment declined",
		Message:       fmt.Sprintf("%s: %s", workshop.Name, appt.WorkshopMessage),
		Link:          appointmentLink(appt.ID),
		AppointmentID: &appt.ID,
	})
}

// AppointmentCancelled tells the counterparty the appointment was withdrawn
func (n *Notifier) AppointmentCancelled(ctx context.Context, appt *models.Appointment, canceller string, recipientID uint) {
	n.Send(ctx, &models.Notification{
		RecipientID:   recipientID,
		Type:          models.NotificationAppointmentCancelled,
		Title:         "Appointment cancelled",
		Message:       fmt.Sprintf("%s cancelled the appointment for the %s %s", canceller, appt.CarBrand, appt.CarModel),
		Link:          appointmentLink(appt.ID),
		AppointmentID: &appt.ID,
	})
}

// AppointmentCompleted tells the customer the car is ready and invites a review
func (n *Notifier) AppointmentCompleted(ctx context.Context, appt *models.Appointment, workshop *models.Workshop) {
	n.Send(ctx, &models.Notification{
		RecipientID:   appt.CustomerID,
		Type:          models.NotificationAppointmentCompleted,
		Title:         "Service completed",
		Message:       fmt.Sprintf("%s completed the work on your %s %s. Leave a review!", workshop.Name, appt.CarBrand, appt.CarModel),
		Link:          fmt.Sprintf("/appointments/%d/review", appt.ID),
		AppointmentID: &appt.ID,
	})
}

// MessageReceived tells the counterparty about a new chat message
func (n *Notifier) MessageReceived(ctx context.Context, appt *models.Appointment, senderName, content string, recipientID uint) {
	n.Send(ctx, &models.Notification{
		RecipientID:   recipientID,
		Type:          models.NotificationMessageReceived,
		Title:         "New message from " + senderName,
		Message:       MessagePreview(content),
		Link:          appointmentLink(appt.ID),
		AppointmentID: &appt.ID,
	})
}

// ReviewApproved tells the workshop owner a review is now public
func (n *Notifier) ReviewApproved(ctx context.Context, review *models.Review, workshop *models.Workshop) {
	n.Send(ctx, &models.Notification{
		RecipientID:   workshop.OwnerID,
		Type:          models.NotificationReviewApproved,
		Title:         "New review published",
		Message:       fmt.Sprintf("%s rated you %d/5", review.CustomerName, review.Rating),
		Link:          fmt.Sprintf("/workshops/%d", workshop.ID),
		AppointmentID: &review.AppointmentID,
	})
}

// MessagePreview truncates content to the preview length, counting runes
func MessagePreview(content string) string {
	runes := []rune(content)
	if len(runes) <= messagePreviewLength {
		return content
	}
	return string(runes[:messagePreviewLength]) + "..."
}

// GetNotifier returns a notifier bound to the current database and publisher
func GetNotifier() *Notifier {
	return NewNotifier(config.GetDB(), GetEventPublisher())
}
