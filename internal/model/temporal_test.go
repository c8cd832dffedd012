package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHintPriority(t *testing.T) {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		tc   *TemporalContext
		want HintKind
	}{
		{"nil context", nil, HintUnresolved},
		{"empty", &TemporalContext{}, HintUnresolved},
		{"label only", &TemporalContext{Relative: "yesterday"}, HintUnresolved},
		{"hospital day", &TemporalContext{HospitalDay: IntPtr(2)}, HintRelativeToAdmission},
		{"pod beats hospital day", &TemporalContext{POD: IntPtr(1), HospitalDay: IntPtr(2)}, HintRelativeToAnchor},
		{"date beats pod", &TemporalContext{Date: &date, POD: IntPtr(1)}, HintAbsolute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tc.Hint().Kind; got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestMarksSurgeryDay(t *testing.T) {
	assert.True(t, (&TemporalContext{POD: IntPtr(0)}).MarksSurgeryDay())
	assert.True(t, (&TemporalContext{Relative: "Day of Surgery"}).MarksSurgeryDay())
	assert.False(t, (&TemporalContext{POD: IntPtr(1)}).MarksSurgeryDay())
	assert.False(t, (*TemporalContext)(nil).MarksSurgeryDay())
}

func TestParseClinicalTime(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-03-01", "2024-03-01T00:00:00Z"},
		{"2024-03-01 08:30", "2024-03-01T08:30:00Z"},
		{"2024-03-01T08:30:15", "2024-03-01T08:30:15Z"},
		{"2024-03-01T08:30:00+02:00", "2024-03-01T08:30:00+02:00"},
		{"2024-03-05T21:30:00-05:00", "2024-03-05T21:30:00-05:00"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClinicalTime(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format(time.RFC3339))
		})
	}

	empty, err := ParseClinicalTime("  ")
	assert.NoError(t, err)
	assert.Nil(t, empty)

	_, err = ParseClinicalTime("March 1st")
	assert.Error(t, err)
}

func TestTemporalContextUnmarshal(t *testing.T) {
	var tc TemporalContext
	require.NoError(t, json.Unmarshal([]byte(`{"date": "2024-03-02 10:00", "pod": 1}`), &tc))
	require.NotNil(t, tc.Date)
	assert.Equal(t, 10, tc.Date.Hour())
	assert.Equal(t, 1, *tc.POD)
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 2, 28, 23, 0, 0, 0, time.UTC)
	b := time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, 2, DaysBetween(a, b))
	assert.Equal(t, -2, DaysBetween(b, a))
}

func TestDaysBetweenZones(t *testing.T) {
	eastern := time.FixedZone("EST", -5*3600)
	surgery := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		at   time.Time
		want int
	}{
		{"evening west of UTC", time.Date(2024, 3, 5, 21, 30, 0, 0, eastern), 0},
		{"just before midnight", time.Date(2024, 3, 5, 23, 59, 0, 0, eastern), 0},
		{"next local morning", time.Date(2024, 3, 6, 7, 0, 0, 0, eastern), 1},
		{"east of UTC", time.Date(2024, 3, 6, 0, 30, 0, 0, time.FixedZone("CET", 3600)), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysBetween(surgery, tt.at))
		})
	}

	parsed, err := ParseClinicalTime("2024-03-05T21:30:00-05:00")
	require.NoError(t, err)
	assert.Equal(t, 5, parsed.Day())
	assert.Equal(t, 0, DaysBetween(surgery, *parsed))
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), DayStart(*parsed))
}

func TestDaysBetweenWideRange(t *testing.T) {
	tests := []struct {
		name string
		a, b time.Time
		want int
	}{
		{"year one to 2024", time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 738885},
		{"far future", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC), 2913173},
		{"leap day", time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysBetween(tt.a, tt.b))
			assert.Equal(t, -tt.want, DaysBetween(tt.b, tt.a))
		})
	}
}

func TestTemporalEventRestoresSource(t *testing.T) {
	for _, kind := range []HintKind{HintUnresolved, HintAbsolute, HintRelativeToAnchor, HintRelativeToAdmission} {
		data, err := json.Marshal(TemporalEvent{FactID: "f", Source: kind, SourceLabel: kind.String()})
		require.NoError(t, err)

		var got TemporalEvent
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, kind, got.Source, kind.String())
	}
	assert.Equal(t, HintUnresolved, ParseHintKind("yesterday"))
}
