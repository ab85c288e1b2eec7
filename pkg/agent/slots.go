package agent

import (
	"fmt"
	"sort"
	"time"
)

const slotGranularity = 30 * time.Minute

// CoalesceSlots turns the backend's 30-minute start slots into candidate
// booking windows long enough for duration x sessions minutes. Sessions are
// chained back to back, so a start qualifies when every session start within
// the window is itself an offered slot. Slots compare lexicographically by
// HH:MM; output windows are "HH:MM - HH:MM".
func CoalesceSlots(slots []string, durationMinutes, sessions int) []string {
	if durationMinutes <= 0 {
		durationMinutes = int(slotGranularity.Minutes())
	}
	if sessions <= 0 {
		sessions = 1
	}

	offered := make(map[string]bool, len(slots))
	var starts []string
	for _, s := range slots {
		if _, err := time.Parse("15:04", s); err != nil {
			continue
		}
		if !offered[s] {
			offered[s] = true
			starts = append(starts, s)
		}
	}
	sort.Strings(starts)

	var windows []string
	for _, start := range starts {
		ok := true
		for j := 1; j < sessions; j++ {
			if !offered[addMinutes(start, j*durationMinutes)] {
				ok = false
				break
			}
		}
		if ok {
			windows = append(windows, fmt.Sprintf("%s - %s", start, addMinutes(start, durationMinutes*sessions)))
		}
	}
	return windows
}

func addMinutes(hhmm string, minutes int) string {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return hhmm
	}
	return t.Add(time.Duration(minutes) * time.Minute).Format("15:04")
}
