package scheduling

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("scheduling conflict")
	ErrIllegalTransition = errors.New("illegal status transition")
)

// ValidationError reports caller-fixable input problems.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string        { return e.Message }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports a missing appointment, doctor or patient.
type NotFoundError struct {
	Resource string
	ID       uuid.UUID
}

func (e *NotFoundError) Error() string        { return e.Resource + " not found" }
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports a double booking.
type ConflictError struct {
	Party         Party
	ConflictingID uuid.UUID
	Message       string
}

func (e *ConflictError) Error() string        { return e.Message }
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func newConflictError(party Party, existing *Appointment) *ConflictError {
	e := &ConflictError{Party: party}
	if existing != nil {
		e.ConflictingID = existing.ID
	}
	switch party {
	case PartyDoctor:
		e.Message = "Doctor has another appointment within 30 minutes of this time"
	case PartyPatient:
		e.Message = "Patient already has another appointment within 30 minutes of this time"
	default:
		e.Message = "Appointment overlaps another appointment within 30 minutes of this time"
	}
	return e
}

// IllegalTransitionError reports an attempt to modify a terminal appointment
// or to move between statuses that are not connected.
type IllegalTransitionError struct {
	From    Status
	To      Status
	Message string
}

func (e *IllegalTransitionError) Error() string        { return e.Message }
func (e *IllegalTransitionError) Is(target error) bool { return target == ErrIllegalTransition }

func newIllegalTransition(from, to Status) *IllegalTransitionError {
	e := &IllegalTransitionError{From: from, To: to}
	switch {
	case from == StatusCancelled:
		e.Message = "Cannot modify a cancelled appointment"
	case from == StatusCompleted:
		e.Message = "Cannot modify a completed appointment"
	default:
		e.Message = fmt.Sprintf("Cannot change appointment status from %s to %s", from, to)
	}
	return e
}

// Outcome classifies err for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrIllegalTransition):
		return "illegal_transition"
	default:
		return "error"
	}
}
