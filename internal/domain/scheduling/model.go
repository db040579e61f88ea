package scheduling

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

var validStatuses = map[Status]bool{
	StatusPending:   true,
	StatusApproved:  true,
	StatusCancelled: true,
	StatusCompleted: true,
}

// allowedTransitions lists the statuses reachable from each status.
// Re-applying the current status is allowed except from CANCELLED.
var allowedTransitions = map[Status][]Status{
	StatusPending:   {StatusPending, StatusApproved, StatusCancelled, StatusCompleted},
	StatusApproved:  {StatusApproved, StatusCancelled, StatusCompleted},
	StatusCompleted: {StatusCompleted},
	StatusCancelled: nil,
}

// ParseStatus accepts the four known statuses exactly as spelled.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.TrimSpace(s))
	return st, validStatuses[st]
}

func (s Status) Valid() bool { return validStatuses[s] }

// Terminal reports whether no further transition away from s exists.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Appointment is a booked visit. Doctor and Patient are attached when the
// appointment is loaded for display.
type Appointment struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DateTime  time.Time `db:"date_time" json:"date_time"`
	Notes     *string   `db:"notes" json:"notes"`
	Status    Status    `db:"status" json:"status"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Doctor  *Doctor  `json:"doctor,omitempty"`
	Patient *Patient `json:"patient,omitempty"`
}

// Doctor is the scheduling view of a doctor record.
type Doctor struct {
	ID             uuid.UUID    `json:"id"`
	FirstName      string       `json:"first_name"`
	LastName       string       `json:"last_name"`
	Specialization string       `json:"specialization"`
	Email          string       `json:"email"`
	Availability   Availability `json:"-"`
}

func (d *Doctor) DisplayName() string {
	return strings.TrimSpace("Dr. " + d.FirstName + " " + d.LastName)
}

// Patient is the scheduling view of a patient record.
type Patient struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
}

// BookingInput carries the fields of a create or full update.
type BookingInput struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	DateTime  time.Time
	Notes     *string
}

func (in BookingInput) complete() bool {
	return in.DoctorID != uuid.Nil && in.PatientID != uuid.Nil && !in.DateTime.IsZero()
}

// Candidate is a booking expressed as a clinic-local calendar date and
// time of day, as entered at the front desk.
type Candidate struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Date      string
	Time      string
	Notes     *string
}

// Booking resolves the candidate's date and time in loc.
func (c Candidate) Booking(loc *time.Location) (BookingInput, error) {
	date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(c.Date), loc)
	if err != nil {
		return BookingInput{}, &ValidationError{Message: "date must be formatted as YYYY-MM-DD"}
	}
	tod, err := ParseTimeOfDay(c.Time)
	if err != nil {
		return BookingInput{}, &ValidationError{Message: "time must be formatted as HH:MM"}
	}
	return BookingInput{
		DoctorID:  c.DoctorID,
		PatientID: c.PatientID,
		DateTime:  tod.On(date, loc),
		Notes:     c.Notes,
	}, nil
}

func normalizeNotes(n *string) *string {
	if n == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*n)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
