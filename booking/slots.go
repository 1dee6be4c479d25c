package booking

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the wire format of appointment dates.
	DateLayout = "2006-01-02"
	// TimeLayout is the wire format of appointment times.
	TimeLayout = "15:04"
)

// DaySlots are the bookable start times offered to customers.
var DaySlots = []string{
	"08:00", "09:00", "10:00", "11:00", "12:00",
	"14:00", "15:00", "16:00", "17:00", "18:00",
}

// Slot is a bookable start time and whether it is already taken.
type Slot struct {
	Time   string `json:"time"`
	Booked bool   `json:"booked"`
}

// Booking is the minimal view of an appointment needed to compute occupancy.
type Booking struct {
	Status        Status
	ConfirmedDate string
	ConfirmedTime string
}

// occupies reports whether b holds its confirmed slot on date.
func (b Booking) occupies(date string) bool {
	if b.Status == StatusCancelled || b.Status == StatusDeclined {
		return false
	}
	return b.ConfirmedDate == date && b.ConfirmedTime != ""
}

// Availability lists DaySlots for date, marking the ones held by bookings.
func Availability(date string, bookings []Booking) []Slot {
	taken := make(map[string]bool)
	for _, b := range bookings {
		if b.occupies(date) {
			taken[b.ConfirmedTime] = true
		}
	}

	slots := make([]Slot, 0, len(DaySlots))
	for _, t := range DaySlots {
		slots = append(slots, Slot{Time: t, Booked: taken[t]})
	}
	return slots
}

// SlotTaken reports whether any booking already holds date/time.
func SlotTaken(date, clock string, bookings []Booking) bool {
	for _, b := range bookings {
		if b.occupies(date) && b.ConfirmedTime == clock {
			return true
		}
	}
	return false
}

// ValidateSlot checks the date and time formats used on the wire.
func ValidateSlot(date, clock string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", date)
	}
	if _, err := time.Parse(TimeLayout, clock); err != nil {
		return fmt.Errorf("invalid time %q: expected HH:MM", clock)
	}
	return nil
}
