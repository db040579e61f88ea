package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// ConflictWindow is the minimum separation between two live appointments
// that share a doctor or a patient.
const ConflictWindow = 30 * time.Minute

// Window returns the bounds of the exclusion window around at. An existing
// appointment collides when its time lies strictly inside (start, end).
func Window(at time.Time) (start, end time.Time) {
	return at.Add(-ConflictWindow), at.Add(ConflictWindow)
}

// Party identifies which side of a booking collided.
type Party string

const (
	PartyDoctor  Party = "doctor"
	PartyPatient Party = "patient"
)

func within(a, b time.Time) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d < ConflictWindow
}

func blocks(existing *Appointment, at time.Time, excludeID uuid.UUID) bool {
	if existing.Status == StatusCancelled {
		return false
	}
	if excludeID != uuid.Nil && existing.ID == excludeID {
		return false
	}
	return within(existing.DateTime, at)
}

// FindConflict returns the first appointment that blocks a booking at at.
// Doctor collisions are reported ahead of patient collisions. A zero
// doctorID or patientID disables that side of the check.
func FindConflict(at time.Time, doctorID, patientID uuid.UUID, existing []Appointment, excludeID uuid.UUID) (*Appointment, Party) {
	var patientHit *Appointment
	for i := range existing {
		a := &existing[i]
		if !blocks(a, at, excludeID) {
			continue
		}
		if doctorID != uuid.Nil && a.DoctorID == doctorID {
			return a, PartyDoctor
		}
		if patientHit == nil && patientID != uuid.Nil && a.PatientID == patientID {
			patientHit = a
		}
	}
	if patientHit != nil {
		return patientHit, PartyPatient
	}
	return nil, ""
}

// IsBlocked reports whether booking doctorID and patientID at at would
// double-book either of them.
func IsBlocked(at time.Time, doctorID, patientID uuid.UUID, existing []Appointment, excludeID uuid.UUID) bool {
	a, _ := FindConflict(at, doctorID, patientID, existing, excludeID)
	return a != nil
}
