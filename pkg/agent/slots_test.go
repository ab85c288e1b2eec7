package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoalesceSlots(t *testing.T) {
	tests := []struct {
		name     string
		slots    []string
		duration int
		sessions int
		expected []string
	}{
		{
			name:     "two chained sessions",
			slots:    []string{"09:00", "09:30", "10:00", "10:30"},
			duration: 60,
			sessions: 2,
			expected: []string{"09:00 - 11:00", "09:30 - 11:30"},
		},
		{
			name:     "single half hour session",
			slots:    []string{"09:00", "11:00"},
			duration: 30,
			sessions: 1,
			expected: []string{"09:00 - 09:30", "11:00 - 11:30"},
		},
		{
			name:     "unsorted input sorted lexicographically",
			slots:    []string{"14:00", "09:00"},
			duration: 30,
			sessions: 1,
			expected: []string{"09:00 - 09:30", "14:00 - 14:30"},
		},
		{
			name:     "no chain possible",
			slots:    []string{"09:00"},
			duration: 60,
			sessions: 2,
			expected: nil,
		},
		{
			name:     "invalid entries skipped",
			slots:    []string{"garbage", "09:00", ""},
			duration: 30,
			sessions: 1,
			expected: []string{"09:00 - 09:30"},
		},
		{
			name:     "duplicates collapsed",
			slots:    []string{"09:00", "09:00"},
			duration: 30,
			sessions: 1,
			expected: []string{"09:00 - 09:30"},
		},
		{
			name:     "empty input",
			slots:    nil,
			duration: 60,
			sessions: 1,
			expected: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CoalesceSlots(tt.slots, tt.duration, tt.sessions))
		})
	}
}

func TestCoalesceSlotsDefaults(t *testing.T) {
	// Zero duration and sessions fall back to one 30-minute slot.
	assert.Equal(t, []string{"09:00 - 09:30"}, CoalesceSlots([]string{"09:00"}, 0, 0))
}
