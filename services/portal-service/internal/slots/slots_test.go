package slots

import (
	"reflect"
	"testing"
	"time"
)

var dhaka = time.FixedZone("BST", 6*60*60)

// Monday 19 October 2026.
func monday(hour, minute int) time.Time {
	return time.Date(2026, 10, 19, hour, minute, 0, 0, dhaka)
}

func at(day, hour, minute int) time.Time {
	return time.Date(2026, 10, day, hour, minute, 0, 0, dhaka)
}

func TestGenerate_MorningStartsAtOpening(t *testing.T) {
	groups := Generate(monday(9, 0))
	if len(groups) != 7 {
		t.Fatalf("expected 7 groups, got %d", len(groups))
	}

	day0 := groups[0].Slots
	if len(day0) != 22 {
		t.Fatalf("expected 22 slots (10:00..20:30), got %d", len(day0))
	}
	if !day0[0].Start.Equal(at(19, 10, 0)) || day0[0].Label != "10:00 AM" {
		t.Fatalf("unexpected first slot %+v", day0[0])
	}
	last := day0[len(day0)-1]
	if !last.Start.Equal(at(19, 20, 30)) || last.Label != "08:30 PM" {
		t.Fatalf("unexpected last slot %+v", last)
	}
}

func TestGenerate_AfternoonRoundsToNextHour(t *testing.T) {
	cases := []struct {
		now       time.Time
		wantFirst time.Time
	}{
		{now: monday(14, 10), wantFirst: at(19, 15, 0)},
		{now: monday(14, 30), wantFirst: at(19, 15, 0)},
		{now: monday(14, 31), wantFirst: at(19, 15, 30)},
		{now: monday(11, 0), wantFirst: at(19, 12, 0)},
		{now: monday(10, 45), wantFirst: at(19, 10, 0)},
	}
	for _, c := range cases {
		day0 := Generate(c.now)[0].Slots
		if len(day0) == 0 {
			t.Fatalf("now=%s: expected slots", c.now.Format(time.Kitchen))
		}
		if !day0[0].Start.Equal(c.wantFirst) {
			t.Fatalf("now=%s: expected first slot %s, got %s", c.now.Format(time.Kitchen), c.wantFirst.Format(time.Kitchen), day0[0].Start.Format(time.Kitchen))
		}
	}
}

func TestGenerate_LateEveningLeavesDayZeroEmpty(t *testing.T) {
	for _, now := range []time.Time{monday(20, 40), monday(20, 0), monday(23, 15)} {
		groups := Generate(now)
		if groups[0].Slots == nil || len(groups[0].Slots) != 0 {
			t.Fatalf("now=%s: expected empty non-nil day 0, got %+v", now.Format(time.Kitchen), groups[0].Slots)
		}
		if len(groups[1].Slots) != 22 {
			t.Fatalf("now=%s: expected full day 1, got %d", now.Format(time.Kitchen), len(groups[1].Slots))
		}
	}
}

func TestGenerate_TomorrowAnchorEmptiesLaterDays(t *testing.T) {
	groups := Generate(monday(9, 0))
	if len(groups[1].Slots) != 22 {
		t.Fatalf("expected 22 slots tomorrow, got %d", len(groups[1].Slots))
	}
	if !groups[1].Slots[0].Start.Equal(at(20, 10, 0)) {
		t.Fatalf("unexpected first slot tomorrow %s", groups[1].Slots[0].Start)
	}
	for i := 2; i < 7; i++ {
		if len(groups[i].Slots) != 0 {
			t.Fatalf("day %d: expected no slots past the closing boundary, got %d", i, len(groups[i].Slots))
		}
		if !groups[i].Date.Equal(at(19+i, 0, 0)) {
			t.Fatalf("day %d: unexpected date %s", i, groups[i].Date)
		}
	}
}

func TestGenerate_SameDayAnchorFillsWeek(t *testing.T) {
	groups := Generate(monday(9, 0), WithAnchor(AnchorSameDay))
	for i, g := range groups {
		if len(g.Slots) != 22 {
			t.Fatalf("day %d: expected 22 slots, got %d", i, len(g.Slots))
		}
		if g.Slots[0].Start.Day() != 19+i {
			t.Fatalf("day %d: slot on wrong date %s", i, g.Slots[0].Start)
		}
	}
	if Count(groups) != 7*22 {
		t.Fatalf("unexpected total %d", Count(groups))
	}
}

func TestGenerate_GroupsAreAscendingByStep(t *testing.T) {
	for _, anchor := range []Anchor{AnchorTomorrow, AnchorSameDay} {
		for minute := 0; minute < 24*60; minute += 7 {
			now := monday(0, 0).Add(time.Duration(minute) * time.Minute)
			for i, g := range Generate(now, WithAnchor(anchor)) {
				for j := 1; j < len(g.Slots); j++ {
					if g.Slots[j].Start.Sub(g.Slots[j-1].Start) != 30*time.Minute {
						t.Fatalf("anchor=%s now=%s day=%d: slots %d and %d not 30 minutes apart", anchor, now.Format(time.Kitchen), i, j-1, j)
					}
				}
				for _, s := range g.Slots {
					if y, m, d := s.Start.Date(); y != g.Date.Year() || m != g.Date.Month() || d != g.Date.Day() {
						t.Fatalf("anchor=%s now=%s: slot %s outside its day %s", anchor, now.Format(time.Kitchen), s.Start, g.Date)
					}
					if s.Start.Hour() >= 21 || s.Start.Hour() < 10 {
						t.Fatalf("anchor=%s now=%s: slot %s outside opening hours", anchor, now.Format(time.Kitchen), s.Start)
					}
					if s.Label != s.Start.Format(DefaultLabelLayout) {
						t.Fatalf("label %q does not match start %s", s.Label, s.Start)
					}
				}
			}
		}
	}
}

func TestGenerate_NoSlotBeforeReferenceHourAfterOpening(t *testing.T) {
	for minute := 11 * 60; minute < 24*60; minute += 5 {
		now := monday(0, 0).Add(time.Duration(minute) * time.Minute)
		for _, s := range Generate(now)[0].Slots {
			if s.Start.Hour() <= now.Hour() {
				t.Fatalf("now=%s: slot %s starts in or before the current hour", now.Format(time.Kitchen), s.Start.Format(time.Kitchen))
			}
			if s.Start.Minute() != 0 && s.Start.Minute() != 30 {
				t.Fatalf("now=%s: slot %s not on the half hour", now.Format(time.Kitchen), s.Start.Format(time.Kitchen))
			}
		}
	}
}

func TestGenerate_IsDeterministic(t *testing.T) {
	now := monday(14, 10)
	a := Generate(now)
	b := Generate(now)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("expected identical output for identical input")
	}
	a[0].Slots[0].Label = "mutated"
	if Generate(now)[0].Slots[0].Label == "mutated" {
		t.Fatal("generated snapshots must not share state")
	}
}

func TestGenerate_CrossesMonthBoundary(t *testing.T) {
	now := time.Date(2026, 10, 30, 8, 0, 0, 0, dhaka)
	groups := Generate(now, WithAnchor(AnchorSameDay))
	if got := groups[2].Date; got.Month() != time.November || got.Day() != 1 {
		t.Fatalf("expected 1 November for day 2, got %s", got)
	}
	if key := groups[2].Slots[0].DateKey(); key != "1_11_2026" {
		t.Fatalf("unexpected date key %q", key)
	}
}

func TestGenerate_UsesReferenceLocation(t *testing.T) {
	now := time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC) // 09:00 in Dhaka
	utc := Generate(now)
	local := Generate(now.In(dhaka))
	if utc[0].Slots[0].Start.Location() != time.UTC {
		t.Fatal("expected UTC slots for a UTC reference")
	}
	if !local[0].Slots[0].Start.Equal(at(19, 10, 0)) {
		t.Fatalf("expected 10:00 Dhaka, got %s", local[0].Slots[0].Start)
	}
}

func TestFind(t *testing.T) {
	groups := Generate(monday(9, 0))
	s, ok := Find(groups, at(20, 15, 30))
	if !ok || s.Label != "03:30 PM" {
		t.Fatalf("expected to find 15:30 tomorrow, got %+v %v", s, ok)
	}
	if _, ok := Find(groups, at(19, 10, 15)); ok {
		t.Fatal("10:15 is not a generated slot")
	}
}

func TestDateKey(t *testing.T) {
	if got := (TimeSlot{Start: at(19, 10, 0)}).DateKey(); got != "19_10_2026" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestOptions(t *testing.T) {
	groups := Generate(monday(9, 0), WithDays(3), WithHours(9, 12), WithLabelLayout("15:04"), WithAnchor(AnchorSameDay))
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	if len(groups[1].Slots) != 6 || groups[1].Slots[0].Label != "09:00" {
		t.Fatalf("unexpected custom hours: %+v", groups[1].Slots)
	}
	// 09:00 is not past the 09 opening hour, so day 0 starts at the opening.
	if groups[0].Slots[0].Label != "09:00" {
		t.Fatalf("unexpected day 0 start %q", groups[0].Slots[0].Label)
	}
	if _, err := ParseAnchor("yesterday"); err == nil {
		t.Fatal("expected error for unknown anchor")
	}
	if a, _ := ParseAnchor("same-day"); a != AnchorSameDay || a.String() != "same-day" {
		t.Fatalf("unexpected anchor %v", a)
	}
}
