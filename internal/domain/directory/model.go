package directory

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/frontdesk/internal/domain/scheduling"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInUse          = errors.New("in use")
	ErrDuplicateEmail = errors.New("email already registered")
)

// ValidationError carries a message safe to return to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Date is a calendar date serialised as YYYY-MM-DD.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return invalid("date_of_birth must be YYYY-MM-DD")
	}
	d.Time = t
	return nil
}

type Doctor struct {
	ID             uuid.UUID               `json:"id"`
	FirstName      string                  `json:"first_name"`
	LastName       string                  `json:"last_name"`
	Specialization string                  `json:"specialization"`
	Email          string                  `json:"email"`
	Phone          *string                 `json:"phone,omitempty"`
	Availability   scheduling.Availability `json:"availability"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

type Patient struct {
	ID          uuid.UUID `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	Phone       *string   `json:"phone,omitempty"`
	DateOfBirth *Date     `json:"date_of_birth,omitempty"`
	Gender      *string   `json:"gender,omitempty"`
	Address     *string   `json:"address,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DoctorInput is the writable part of a doctor. Availability stays raw so
// it can be validated strictly.
type DoctorInput struct {
	FirstName      string          `json:"first_name"`
	LastName       string          `json:"last_name"`
	Specialization string          `json:"specialization"`
	Email          string          `json:"email"`
	Phone          *string         `json:"phone"`
	Availability   json.RawMessage `json:"availability"`
}

type PatientInput struct {
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Email       string  `json:"email"`
	Phone       *string `json:"phone"`
	DateOfBirth *Date   `json:"date_of_birth"`
	Gender      *string `json:"gender"`
	Address     *string `json:"address"`
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
