package models

import (
	"errors"
	"fmt"
)

// ReservationStatus is encoded as an integer on the wire.
type ReservationStatus int

const (
	StatusPending ReservationStatus = iota
	StatusConfirmed
	StatusCancelled
)

var ErrInvalidTransition = errors.New("status transition not allowed")

var statusNames = map[ReservationStatus]string{
	StatusPending:   "pending",
	StatusConfirmed: "confirmed",
	StatusCancelled: "cancelled",
}

// String implements fmt.Stringer.
func (s ReservationStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Valid reports whether s is a known status.
func (s ReservationStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// ParseStatus accepts a status name.
func ParseStatus(name string) (ReservationStatus, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// Confirmed and Cancelled are terminal.
var statusTransitions = map[ReservationStatus][]ReservationStatus{
	StatusPending: {StatusConfirmed, StatusCancelled},
}

// CanTransition checks if a status change is allowed.
func CanTransition(from, to ReservationStatus) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckTransition is CanTransition as an error.
func CheckTransition(from, to ReservationStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
	}
	return nil
}
