package availability

import (
	"fmt"
	"strings"
)

// Reservation is an already-committed hold on part of a day, in minutes of day.
// Units is how many capacity units the interval consumes.
type Reservation struct {
	StartMin int
	EndMin   int
	Units    int
}

// Slot is one bookable window with its remaining capacity.
type Slot struct {
	StartMin       int
	EndMin         int
	AvailableSpots int
}

func (s Slot) Range() string {
	return FormatClock(s.StartMin) + "-" + FormatClock(s.EndMin)
}

// BuildSlots generates the bookable windows between openMin and closeMin.
// Candidates start at openMin and step by slotStep; each covers duration
// minutes and must end by closeMin. Every reservation overlapping a candidate
// (half-open intervals) subtracts its units from that candidate's capacity;
// candidates with no capacity left are dropped.
//
// Pure and deterministic: identical inputs always produce identical output.
func BuildSlots(openMin, closeMin, slotStep, duration, capacity int, reserved []Reservation) []Slot {
	if slotStep <= 0 || duration <= 0 || capacity <= 0 {
		return nil
	}
	if openMin < 0 || closeMin <= openMin {
		return nil
	}

	var slots []Slot
	for start := openMin; start+duration <= closeMin; start += slotStep {
		slots = append(slots, Slot{
			StartMin:       start,
			EndMin:         start + duration,
			AvailableSpots: capacity,
		})
	}

	for _, r := range reserved {
		units := r.Units
		if units <= 0 {
			units = 1
		}
		for i := range slots {
			if overlaps(slots[i].StartMin, slots[i].EndMin, r.StartMin, r.EndMin) {
				slots[i].AvailableSpots -= units
			}
		}
	}

	open := slots[:0]
	for _, s := range slots {
		if s.AvailableSpots > 0 {
			open = append(open, s)
		}
	}
	return open
}

// overlaps tests half-open intervals [aStart,aEnd) and [bStart,bEnd). The
// single comparison covers all three cases: b starts inside a, b ends inside
// a, and b strictly containing a.
func overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// ParseClock converts "HH:MM" to a minute of day.
func ParseClock(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	var h, m int
	if _, err := fmt.Sscanf(raw, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock %q", raw)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock %q", raw)
	}
	return h*60 + m, nil
}

func FormatClock(min int) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// ParseSlotRange converts "HH:MM-HH:MM" to start and end minutes of day.
func ParseSlotRange(raw string) (int, int, error) {
	startRaw, endRaw, ok := strings.Cut(raw, "-")
	if !ok {
		return 0, 0, fmt.Errorf("invalid slot range %q", raw)
	}
	start, err := ParseClock(startRaw)
	if err != nil {
		return 0, 0, err
	}
	end, err := ParseClock(endRaw)
	if err != nil {
		return 0, 0, err
	}
	if end <= start {
		return 0, 0, fmt.Errorf("invalid slot range %q", raw)
	}
	return start, end, nil
}
