package availability

import "testing"

func TestBuildSlots_MorningWindow(t *testing.T) {
	// 09:00-12:00, 30 minute slots, 30 minute service, capacity 1.
	slots := BuildSlots(9*60, 12*60, 30, 30, 1, nil)
	if len(slots) != 6 {
		t.Fatalf("expected 6 slots, got %d", len(slots))
	}
	if slots[0].Range() != "09:00-09:30" {
		t.Fatalf("expected first slot 09:00-09:30, got %s", slots[0].Range())
	}
	if slots[5].Range() != "11:30-12:00" {
		t.Fatalf("expected last slot 11:30-12:00, got %s", slots[5].Range())
	}
}

func TestBuildSlots_ReservationRemovesOneSlot(t *testing.T) {
	reserved := []Reservation{{StartMin: 10 * 60, EndMin: 10*60 + 30, Units: 1}}
	slots := BuildSlots(9*60, 12*60, 30, 30, 1, reserved)
	if len(slots) != 5 {
		t.Fatalf("expected 5 slots, got %d", len(slots))
	}
	for _, s := range slots {
		if s.Range() == "10:00-10:30" {
			t.Fatal("10:00-10:30 should be fully booked")
		}
	}
}

func TestBuildSlots_CapacityArithmetic(t *testing.T) {
	for _, capacity := range []int{1, 2, 5} {
		reserved := []Reservation{{StartMin: 9 * 60, EndMin: 9*60 + 30, Units: 1}}
		slots := BuildSlots(9*60, 10*60, 30, 30, capacity, reserved)
		for _, s := range slots {
			if s.AvailableSpots <= 0 {
				t.Fatalf("capacity %d: slot %s has non-positive spots %d", capacity, s.Range(), s.AvailableSpots)
			}
			if s.Range() == "09:00-09:30" && s.AvailableSpots != capacity-1 {
				t.Fatalf("capacity %d: expected %d spots on reserved slot, got %d", capacity, capacity-1, s.AvailableSpots)
			}
		}
	}
}

func TestBuildSlots_ContainingReservationBlocksAll(t *testing.T) {
	// A reservation spanning the whole window hits every candidate.
	reserved := []Reservation{{StartMin: 8 * 60, EndMin: 13 * 60, Units: 1}}
	slots := BuildSlots(9*60, 12*60, 30, 30, 1, reserved)
	if len(slots) != 0 {
		t.Fatalf("expected no open slots, got %d", len(slots))
	}
}

func TestBuildSlots_ServiceLongerThanStep(t *testing.T) {
	// 60 minute service stepped by 30 minutes never extends past close.
	slots := BuildSlots(9*60, 12*60, 30, 60, 1, nil)
	if len(slots) != 5 {
		t.Fatalf("expected 5 slots, got %d", len(slots))
	}
	if slots[len(slots)-1].Range() != "11:00-12:00" {
		t.Fatalf("last slot must end at close, got %s", slots[len(slots)-1].Range())
	}
}

func TestBuildSlots_CountBound(t *testing.T) {
	cases := []struct{ open, close, step, dur int }{
		{9 * 60, 17 * 60, 15, 30},
		{9 * 60, 17 * 60, 45, 90},
		{8 * 60, 8*60 + 20, 10, 20},
		{9 * 60, 9*60 + 10, 30, 30},
	}
	for _, c := range cases {
		slots := BuildSlots(c.open, c.close, c.step, c.dur, 3, nil)
		bound := 0
		if c.close-c.open >= c.dur {
			bound = (c.close-c.open-c.dur)/c.step + 1
		}
		if len(slots) > bound {
			t.Fatalf("open=%d close=%d step=%d dur=%d: %d slots exceeds bound %d",
				c.open, c.close, c.step, c.dur, len(slots), bound)
		}
	}
}

func TestBuildSlots_DegenerateInputs(t *testing.T) {
	if got := BuildSlots(9*60, 12*60, 0, 30, 1, nil); got != nil {
		t.Fatalf("zero step must yield nil, got %v", got)
	}
	if got := BuildSlots(12*60, 9*60, 30, 30, 1, nil); got != nil {
		t.Fatalf("inverted window must yield nil, got %v", got)
	}
	if got := BuildSlots(9*60, 12*60, 30, 30, 0, nil); got != nil {
		t.Fatalf("zero capacity must yield nil, got %v", got)
	}
}

func TestParseSlotRange(t *testing.T) {
	start, end, err := ParseSlotRange("10:00-10:30")
	if err != nil {
		t.Fatalf("ParseSlotRange failed: %v", err)
	}
	if start != 600 || end != 630 {
		t.Fatalf("got %d-%d, want 600-630", start, end)
	}
	for _, bad := range []string{"10:00", "10:00-09:00", "25:00-26:00", ""} {
		if _, _, err := ParseSlotRange(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
