package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// SlotStep is the spacing between offerable start times.
const SlotStep = 30 * time.Minute

// GenerateSlots returns the start times offered on date for the given
// working hours. A nil day or an inverted window yields no slots. The last
// slot is the last step strictly before the window's end.
func GenerateSlots(day *Hours, date time.Time) []time.Time {
	slots := []time.Time{}
	if day == nil || day.Start >= day.End {
		return slots
	}
	loc := date.Location()
	step := TimeOfDay(SlotStep / time.Minute)
	for t := day.Start; t < day.End; t += step {
		slots = append(slots, t.On(date, loc))
	}
	return slots
}

// Slot is a generated start time annotated with whether it can be booked.
type Slot struct {
	Time    string    `json:"time"`
	Start   time.Time `json:"start"`
	Blocked bool      `json:"blocked"`
}

// AnnotateSlots marks each slot that is in the past (not after now) or that
// collides with an existing appointment for the doctor or, when set, the
// patient.
func AnnotateSlots(starts []time.Time, doctorID, patientID uuid.UUID, existing []Appointment, now time.Time) []Slot {
	out := make([]Slot, 0, len(starts))
	for _, start := range starts {
		out = append(out, Slot{
			Time:    TimeOfDayOf(start).String(),
			Start:   start,
			Blocked: !start.After(now) || IsBlocked(start, doctorID, patientID, existing, uuid.Nil),
		})
	}
	return out
}
