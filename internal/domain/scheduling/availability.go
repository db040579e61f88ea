package scheduling

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
type TimeOfDay int

const minutesPerDay = 24 * 60

// ParseTimeOfDay parses "HH:MM" (24h clock, single-digit hours accepted).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(m) != 2 || len(h) == 0 || len(h) > 2 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay(hour*60 + minute), nil
}

// parseEndOfDay is ParseTimeOfDay plus "24:00", which closes a window at
// midnight. It is only valid as the end of Hours.
func parseEndOfDay(s string) (TimeOfDay, error) {
	if strings.TrimSpace(s) == "24:00" {
		return minutesPerDay, nil
	}
	return ParseTimeOfDay(s)
}

// TimeOfDayOf returns the wall-clock time of t in t's location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// On returns the instant at this time of day on date's calendar day in loc.
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Hours is one day's working window. Start is inclusive, End exclusive.
type Hours struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

func (h Hours) Valid() bool {
	return h.Start >= 0 && h.End <= minutesPerDay && h.Start < h.End
}

func (h *Hours) UnmarshalJSON(data []byte) error {
	parsed, err := parseHours(data)
	if err != nil {
		return err
	}
	if parsed != nil {
		*h = *parsed
	}
	return nil
}

// Contains reports whether t falls inside [Start, End).
func (h Hours) Contains(t TimeOfDay) bool {
	return t >= h.Start && t < h.End
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday resolves a weekday name in any casing.
func ParseWeekday(s string) (time.Weekday, bool) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	return d, ok
}

// keyRank orders the accepted casings of a weekday key. When a document
// carries the same day more than once the lowest-ranked usable entry wins.
func keyRank(key string) int {
	switch {
	case key == strings.ToLower(key):
		return 0
	case key == strings.ToUpper(key):
		return 1
	case len(key) > 0 && key[1:] == strings.ToLower(key[1:]):
		return 2
	default:
		return 3
	}
}

// Availability maps each working weekday to its hours. Days not present are
// off. Values are always valid Hours.
type Availability map[time.Weekday]Hours

// Day returns the working hours for date's weekday, or nil when the doctor
// is off.
func (a Availability) Day(date time.Time) *Hours {
	h, ok := a[date.Weekday()]
	if !ok || !h.Valid() {
		return nil
	}
	return &h
}

// IsWorkingAt reports whether t falls inside the hours of t's weekday.
func (a Availability) IsWorkingAt(t time.Time) bool {
	day := a.Day(t)
	return day != nil && day.Contains(TimeOfDayOf(t))
}

type rawHours struct {
	Start *string `json:"start"`
	End   *string `json:"end"`
}

func parseHours(raw json.RawMessage) (*Hours, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var rh rawHours
	if err := json.Unmarshal(raw, &rh); err != nil {
		return nil, err
	}
	if rh.Start == nil || rh.End == nil {
		return nil, errors.New("start and end are required")
	}
	start, err := ParseTimeOfDay(*rh.Start)
	if err != nil {
		return nil, err
	}
	end, err := parseEndOfDay(*rh.End)
	if err != nil {
		return nil, err
	}
	h := Hours{Start: start, End: end}
	if !h.Valid() {
		return nil, fmt.Errorf("start %s must be before end %s", start, end)
	}
	return &h, nil
}

// parseAvailability decodes a weekday-keyed document. Usable days are always
// returned; problems are collected per key so callers can choose to be strict.
func parseAvailability(data []byte) (Availability, []error) {
	out := Availability{}
	if len(data) == 0 {
		return out, nil
	}
	// Older clients send the document as an encoded JSON string.
	var encoded string
	if err := json.Unmarshal(data, &encoded); err == nil {
		data = []byte(encoded)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return out, []error{fmt.Errorf("availability: %w", err)}
	}

	var problems []error
	ranks := map[time.Weekday]int{}
	for key, raw := range doc {
		day, ok := ParseWeekday(key)
		if !ok {
			problems = append(problems, fmt.Errorf("availability: unknown weekday %q", key))
			continue
		}
		h, err := parseHours(raw)
		if err != nil {
			problems = append(problems, fmt.Errorf("availability %s: %w", key, err))
			continue
		}
		if h == nil {
			continue
		}
		rank := keyRank(key)
		if prev, seen := ranks[day]; seen && prev <= rank {
			continue
		}
		ranks[day] = rank
		out[day] = *h
	}
	return out, problems
}

// ParseAvailability decodes availability leniently. Malformed documents or
// days degrade to "off"; the result never reports more hours than the input
// clearly states.
func ParseAvailability(data []byte) Availability {
	a, _ := parseAvailability(data)
	return a
}

// ParseAvailabilityStrict decodes availability and rejects any malformed day.
func ParseAvailabilityStrict(data []byte) (Availability, error) {
	a, problems := parseAvailability(data)
	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}
	return a, nil
}

// MarshalJSON writes all seven days keyed by lower-case name; off days are null.
func (a Availability) MarshalJSON() ([]byte, error) {
	doc := make(map[string]*Hours, len(weekdayNames))
	for name, day := range weekdayNames {
		if h, ok := a[day]; ok && h.Valid() {
			h := h
			doc[name] = &h
		} else {
			doc[name] = nil
		}
	}
	return json.Marshal(doc)
}

func (a *Availability) UnmarshalJSON(data []byte) error {
	*a = ParseAvailability(data)
	return nil
}
