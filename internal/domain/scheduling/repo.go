package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AppointmentRepository persists appointments. Lookups return ErrNotFound
// when the row is absent. Reads return appointments with Doctor and Patient
// attached.
type AppointmentRepository interface {
	// LockAppointment loads an appointment and holds its row lock until the
	// surrounding transaction ends.
	LockAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// FindAppointmentsForConflictWindow returns non-cancelled appointments of
	// doctorID or patientID strictly inside (windowStart, windowEnd),
	// excluding excludeID. uuid.Nil disables the matching filter.
	FindAppointmentsForConflictWindow(ctx context.Context, doctorID, patientID uuid.UUID, windowStart, windowEnd time.Time, excludeID uuid.UUID) ([]Appointment, error)
	ListAppointments(ctx context.Context) ([]Appointment, error)
	CreateAppointment(ctx context.Context, a *Appointment) error
	UpdateAppointment(ctx context.Context, a *Appointment) error
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status Status) error
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
	// LockParticipants serializes bookings touching the same doctor or
	// patient until the surrounding transaction ends.
	LockParticipants(ctx context.Context, doctorID, patientID uuid.UUID) error
}

// Directory resolves the doctors and patients an appointment references.
type Directory interface {
	FindDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	FindPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
}

// Transactor runs fn inside one database transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
