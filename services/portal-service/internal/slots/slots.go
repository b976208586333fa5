// Package slots builds the bookable appointment slots shown next to a doctor profile.
//
// Generation is a pure function of the reference instant: the caller passes "now"
// and gets a fresh snapshot back, so regenerating after the selected doctor or the
// day changes is always safe.
package slots

import (
	"fmt"
	"time"
)

type TimeSlot struct {
	Start time.Time `json:"start_time"`
	Label string    `json:"label"`
}

// DateKey is the backend's slotDate form: day_month_year without padding.
func (s TimeSlot) DateKey() string {
	y, m, d := s.Start.Date()
	return fmt.Sprintf("%d_%d_%d", d, int(m), y)
}

// DaySlotGroup holds one calendar day's slots in ascending order. Slots is never nil.
type DaySlotGroup struct {
	Date  time.Time  `json:"date"`
	Slots []TimeSlot `json:"slots"`
}

// Anchor selects the date the closing boundary is computed on.
type Anchor int

const (
	// AnchorTomorrow computes closing on the day after the reference instant for every
	// offset. Later days end up with no slots.
	AnchorTomorrow Anchor = iota
	// AnchorSameDay closes each day on its own date.
	AnchorSameDay
)

func ParseAnchor(s string) (Anchor, error) {
	switch s {
	case "", "tomorrow":
		return AnchorTomorrow, nil
	case "same-day":
		return AnchorSameDay, nil
	default:
		return AnchorTomorrow, fmt.Errorf("unknown closing anchor %q (want tomorrow or same-day)", s)
	}
}

func (a Anchor) String() string {
	if a == AnchorSameDay {
		return "same-day"
	}
	return "tomorrow"
}

const (
	DefaultDays        = 7
	DefaultStep        = 30 * time.Minute
	DefaultOpenHour    = 10
	DefaultCloseHour   = 21
	DefaultLabelLayout = "03:04 PM"
)

type options struct {
	days        int
	step        time.Duration
	openHour    int
	closeHour   int
	labelLayout string
	anchor      Anchor
}

type Option func(*options)

func WithDays(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.days = n
		}
	}
}

func WithAnchor(a Anchor) Option {
	return func(o *options) { o.anchor = a }
}

func WithLabelLayout(layout string) Option {
	return func(o *options) {
		if layout != "" {
			o.labelLayout = layout
		}
	}
}

// WithHours overrides the daily opening and closing hours. Invalid ranges are ignored.
func WithHours(openHour, closeHour int) Option {
	return func(o *options) {
		if openHour >= 0 && closeHour <= 24 && openHour < closeHour {
			o.openHour, o.closeHour = openHour, closeHour
		}
	}
}

// Generate returns exactly one group per day from now's calendar day onwards.
// Times are computed in now.Location().
func Generate(now time.Time, opts ...Option) []DaySlotGroup {
	o := options{
		days:        DefaultDays,
		step:        DefaultStep,
		openHour:    DefaultOpenHour,
		closeHour:   DefaultCloseHour,
		labelLayout: DefaultLabelLayout,
		anchor:      AnchorTomorrow,
	}
	for _, opt := range opts {
		opt(&o)
	}

	loc := now.Location()
	y, m, d := now.Date()
	anchorClose := time.Date(y, m, d+1, o.closeHour, 0, 0, 0, loc)

	groups := make([]DaySlotGroup, 0, o.days)
	for i := 0; i < o.days; i++ {
		day := time.Date(y, m, d+i, 0, 0, 0, 0, loc)
		open := openingFor(now, day, i, o)

		dayClose := time.Date(y, m, d+i, o.closeHour, 0, 0, 0, loc)
		closing := dayClose
		if o.anchor == AnchorTomorrow && anchorClose.Before(closing) {
			closing = anchorClose
		}

		slots := make([]TimeSlot, 0)
		for t := open; t.Before(closing); t = t.Add(o.step) {
			slots = append(slots, TimeSlot{Start: t, Label: t.Format(o.labelLayout)})
		}
		groups = append(groups, DaySlotGroup{Date: day, Slots: slots})
	}
	return groups
}

// openingFor applies the same-day rule: past the opening hour, start at the next hour,
// on the half hour when the current minute is past 30.
func openingFor(now, day time.Time, offset int, o options) time.Time {
	y, m, d := day.Date()
	if offset == 0 && now.Hour() > o.openHour {
		minute := 0
		if now.Minute() > 30 {
			minute = 30
		}
		return time.Date(y, m, d, now.Hour()+1, minute, 0, 0, day.Location())
	}
	return time.Date(y, m, d, o.openHour, 0, 0, 0, day.Location())
}

// Find returns the generated slot starting at start, if any.
func Find(groups []DaySlotGroup, start time.Time) (TimeSlot, bool) {
	for _, g := range groups {
		for _, s := range g.Slots {
			if s.Start.Equal(start) {
				return s, true
			}
		}
	}
	return TimeSlot{}, false
}

// Count is the total number of slots across groups.
func Count(groups []DaySlotGroup) int {
	n := 0
	for _, g := range groups {
		n += len(g.Slots)
	}
	return n
}
