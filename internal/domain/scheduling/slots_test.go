package scheduling

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGenerateSlots_NineToFive(t *testing.T) {
	date := time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)
	slots := GenerateSlots(&Hours{Start: 9 * 60, End: 17 * 60}, date)

	if len(slots) != 16 {
		t.Fatalf("expected 16 slots, got %d", len(slots))
	}
	if got := TimeOfDayOf(slots[0]).String(); got != "09:00" {
		t.Errorf("first slot = %s, want 09:00", got)
	}
	if got := TimeOfDayOf(slots[len(slots)-1]).String(); got != "16:30" {
		t.Errorf("last slot = %s, want 16:30", got)
	}
	for i := 1; i < len(slots); i++ {
		if slots[i].Sub(slots[i-1]) != SlotStep {
			t.Fatalf("slots %d and %d are not %s apart", i-1, i, SlotStep)
		}
	}
}

func TestGenerateSlots_Empty(t *testing.T) {
	date := time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		day  *Hours
	}{
		{"day off", nil},
		{"inverted", &Hours{Start: 17 * 60, End: 9 * 60}},
		{"zero length", &Hours{Start: 9 * 60, End: 9 * 60}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots := GenerateSlots(tt.day, date)
			if slots == nil || len(slots) != 0 {
				t.Errorf("expected an empty non-nil sequence, got %v", slots)
			}
		})
	}
}

func TestGenerateSlots_PartialLastStep(t *testing.T) {
	date := time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)
	slots := GenerateSlots(&Hours{Start: 9 * 60, End: 10*60 + 15}, date)
	if len(slots) != 3 {
		t.Fatalf("expected 09:00, 09:30, 10:00; got %d slots", len(slots))
	}
}

func TestGenerateSlots_EndsAtMidnight(t *testing.T) {
	date := time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)
	slots := GenerateSlots(&Hours{Start: 22 * 60, End: minutesPerDay}, date)
	if len(slots) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(slots))
	}
	last := slots[len(slots)-1]
	if got := TimeOfDayOf(last).String(); got != "23:30" || last.Day() != date.Day() {
		t.Errorf("last slot = %s, want 23:30 on the same day", last)
	}
}

func TestGenerateSlots_Restartable(t *testing.T) {
	date := time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)
	day := &Hours{Start: 8 * 60, End: 12 * 60}
	if !reflect.DeepEqual(GenerateSlots(day, date), GenerateSlots(day, date)) {
		t.Error("expected identical sequences for identical inputs")
	}
}

func TestGenerateSlots_UsesDateLocation(t *testing.T) {
	loc := time.FixedZone("clinic", -5*60*60)
	date := time.Date(2030, 3, 4, 0, 0, 0, 0, loc)
	slots := GenerateSlots(&Hours{Start: 9 * 60, End: 10 * 60}, date)
	if got := slots[0].UTC().Hour(); got != 14 {
		t.Errorf("expected 09:00 clinic time to be 14:00 UTC, got %d", got)
	}
}

func TestAnnotateSlots(t *testing.T) {
	doctorID := uuid.New()
	date := time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)
	starts := GenerateSlots(&Hours{Start: 9 * 60, End: 11 * 60}, date)
	existing := []Appointment{
		{ID: uuid.New(), DoctorID: doctorID, PatientID: uuid.New(), DateTime: date.Add(9*time.Hour + 45*time.Minute), Status: StatusPending},
	}
	now := date.Add(9*time.Hour + 10*time.Minute)

	slots := AnnotateSlots(starts, doctorID, uuid.Nil, existing, now)
	want := map[string]bool{
		"09:00": true,  // past
		"09:30": true,  // 15 minutes before 09:45
		"10:00": true,  // 15 minutes after 09:45
		"10:30": false, // 45 minutes after
	}
	for _, s := range slots {
		if s.Blocked != want[s.Time] {
			t.Errorf("slot %s blocked = %v, want %v", s.Time, s.Blocked, want[s.Time])
		}
	}
}
