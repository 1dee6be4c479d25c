// Package booking implements the appointment lifecycle and the two-party
// time negotiation between a customer and a workshop.
package booking

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusDeclined  Status = "declined"
)

// Party identifies one side of an appointment.
type Party string

const (
	PartyNone     Party = ""
	PartyCustomer Party = "customer"
	PartyWorkshop Party = "workshop"
)

var (
	// ErrInvalidTransition is returned when the requested move is not allowed from the current state.
	ErrInvalidTransition = errors.New("invalid appointment transition")
	// ErrNotYourTurn is returned when a party acts while the counterparty is expected to respond.
	ErrNotYourTurn = errors.New("awaiting confirmation from the other party")
	// ErrNotPermitted is returned when the acting party may never perform the action.
	ErrNotPermitted = errors.New("party not permitted to perform this action")
)

// State is the part of an appointment the state machine owns.
type State struct {
	Status       Status
	AwaitingFrom Party
}

// Counterparty returns the other side of the appointment.
func (p Party) Counterparty() Party {
	switch p {
	case PartyCustomer:
		return PartyWorkshop
	case PartyWorkshop:
		return PartyCustomer
	}
	return PartyNone
}

// Valid reports whether p is a real participant.
func (p Party) Valid() bool {
	return p == PartyCustomer || p == PartyWorkshop
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusDeclined
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusDeclined:
		return true
	}
	return false
}

// Turn returns the party expected to respond to a pending appointment.
// A fresh request with no counter-proposal is waiting on the workshop.
func (s State) Turn() Party {
	if s.Status != StatusPending {
		return PartyNone
	}
	if s.AwaitingFrom == PartyNone {
		return PartyWorkshop
	}
	return s.AwaitingFrom
}

// Accept confirms the slot currently on the table.
func Accept(s State, by Party) (State, error) {
	if err := checkParty(by); err != nil {
		return s, err
	}
	if s.Status != StatusPending {
		return s, transitionError(s.Status, StatusConfirmed)
	}
	if s.Turn() != by {
		return s, ErrNotYourTurn
	}
	return State{Status: StatusConfirmed, AwaitingFrom: PartyNone}, nil
}

// Propose puts a new date/time on the table and hands the turn to the counterparty.
// A confirmed appointment can be rescheduled by either side.
func Propose(s State, by Party) (State, error) {
	if err := checkParty(by); err != nil {
		return s, err
	}
	switch s.Status {
	case StatusPending:
		if s.Turn() != by {
			return s, ErrNotYourTurn
		}
	case StatusConfirmed:
	default:
		return s, transitionError(s.Status, StatusPending)
	}
	return State{Status: StatusPending, AwaitingFrom: by.Counterparty()}, nil
}

// Decline rejects a pending request. Only the workshop declines.
func Decline(s State, by Party) (State, error) {
	if err := checkParty(by); err != nil {
		return s, err
	}
	if by != PartyWorkshop {
		return s, ErrNotPermitted
	}
	if s.Status != StatusPending {
		return s, transitionError(s.Status, StatusDeclined)
	}
	return State{Status: StatusDeclined, AwaitingFrom: PartyNone}, nil
}

// Cancel withdraws a pending or confirmed appointment.
func Cancel(s State, by Party) (State, error) {
	if err := checkParty(by); err != nil {
		return s, err
	}
	if s.Status != StatusPending && s.Status != StatusConfirmed {
		return s, transitionError(s.Status, StatusCancelled)
	}
	return State{Status: StatusCancelled, AwaitingFrom: PartyNone}, nil
}

// Complete closes a confirmed appointment. Only the workshop completes.
func Complete(s State, by Party) (State, error) {
	if err := checkParty(by); err != nil {
		return s, err
	}
	if by != PartyWorkshop {
		return s, ErrNotPermitted
	}
	if s.Status != StatusConfirmed {
		return s, transitionError(s.Status, StatusCompleted)
	}
	return State{Status: StatusCompleted, AwaitingFrom: PartyNone}, nil
}

func checkParty(p Party) error {
	if !p.Valid() {
		return fmt.Errorf("%w: unknown party %q", ErrNotPermitted, p)
	}
	return nil
}

func transitionError(from, to Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
