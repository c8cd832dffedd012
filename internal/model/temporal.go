package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TemporalContext carries the raw temporal hints extracted alongside a fact.
// Any combination may be present; Hint returns the authoritative reading.
type TemporalContext struct {
	Date        *time.Time `json:"date,omitempty"`         // Absolute date/time
	POD         *int       `json:"pod,omitempty"`          // Post-operative day, negative for pre-op
	HospitalDay *int       `json:"hospital_day,omitempty"` // Hospital day, 1 = admission
	Relative    string     `json:"relative,omitempty"`     // Free-form label ("yesterday", "day of surgery")
}

// HintKind enumerates the TemporalHint variants.
type HintKind int

const (
	HintUnresolved HintKind = iota
	HintAbsolute
	HintRelativeToAnchor
	HintRelativeToAdmission
)

func (k HintKind) String() string {
	switch k {
	case HintAbsolute:
		return "absolute"
	case HintRelativeToAnchor:
		return "pod"
	case HintRelativeToAdmission:
		return "hospital_day"
	default:
		return "unresolved"
	}
}

// ParseHintKind is the inverse of HintKind.String. Unknown labels are unresolved.
func ParseHintKind(s string) HintKind {
	switch s {
	case "absolute":
		return HintAbsolute
	case "pod":
		return HintRelativeToAnchor
	case "hospital_day":
		return HintRelativeToAdmission
	default:
		return HintUnresolved
	}
}

// TemporalHint is the authoritative temporal reading of a fact:
// Absolute(date) | RelativeToAnchor(pod) | RelativeToAdmission(hd) | Unresolved.
// Only the field matching Kind is meaningful.
type TemporalHint struct {
	Kind        HintKind
	Date        time.Time
	POD         int
	HospitalDay int
}

// Hint returns the authoritative hint: an absolute date wins over a POD,
// which wins over a hospital day.
func (tc *TemporalContext) Hint() TemporalHint {
	if tc == nil {
		return TemporalHint{Kind: HintUnresolved}
	}
	switch {
	case tc.Date != nil:
		return TemporalHint{Kind: HintAbsolute, Date: *tc.Date}
	case tc.POD != nil:
		return TemporalHint{Kind: HintRelativeToAnchor, POD: *tc.POD}
	case tc.HospitalDay != nil:
		return TemporalHint{Kind: HintRelativeToAdmission, HospitalDay: *tc.HospitalDay}
	default:
		return TemporalHint{Kind: HintUnresolved}
	}
}

// MarksSurgeryDay reports whether the context states this fact happened on the
// day of the index procedure (POD 0 or an equivalent relative label).
func (tc *TemporalContext) MarksSurgeryDay() bool {
	if tc == nil {
		return false
	}
	if tc.POD != nil && *tc.POD == 0 {
		return true
	}
	label := strings.ToLower(strings.TrimSpace(tc.Relative))
	for _, marker := range surgeryDayMarkers {
		if label == marker {
			return true
		}
	}
	return false
}

var surgeryDayMarkers = []string{"day of surgery", "pod 0", "pod0", "surgery day", "operative day", "post-op day 0"}

func (tc *TemporalContext) UnmarshalJSON(data []byte) error {
	var wire struct {
		Date        string `json:"date"`
		POD         *int   `json:"pod"`
		HospitalDay *int   `json:"hospital_day"`
		Relative    string `json:"relative"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	date, err := ParseClinicalTime(wire.Date)
	if err != nil {
		return err
	}
	*tc = TemporalContext{Date: date, POD: wire.POD, HospitalDay: wire.HospitalDay, Relative: wire.Relative}
	return nil
}

var clinicalTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseClinicalTime parses an absolute date in one of the accepted layouts.
// A stated UTC offset is kept so calendar days stay those of the chart; times
// without an offset are read as UTC. An empty string yields nil.
func ParseClinicalTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range clinicalTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised date %q (want RFC 3339 or YYYY-MM-DD)", s)
}

// DayStart returns the calendar day of t, read in t's own zone, as midnight UTC.
func DayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dayNumber counts civil days since 1970-01-01 for the calendar date of t in
// its own zone.
func dayNumber(t time.Time) int64 {
	return DayStart(t).Unix() / 86400
}

// DaysBetween returns the number of calendar days from a to b (b - a). Each
// side is read on the calendar of its own zone.
func DaysBetween(a, b time.Time) int {
	return int(dayNumber(b) - dayNumber(a))
}

// AddDays returns t shifted by n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time { return &t }
