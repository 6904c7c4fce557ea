// Package timeslot holds the wall-clock slot arithmetic shared by the
// availability engine and the booking workflow. Times are zero-padded
// HH:MM strings in the clinic's local day; the zero padding makes
// lexicographic comparison agree with chronological order.
package timeslot

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SlotMinutes is the fixed bookable window length.
const SlotMinutes = 30

var ErrInvalidClock = errors.New("invalid HH:MM time")

// TimeSlot is a half-open [StartTime, EndTime) range within one day.
type TimeSlot struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// ParseClock converts a strict zero-padded HH:MM string to minutes
// since midnight. "9:00" is rejected, "09:00" is 540.
func ParseClock(clock string) (int, error) {
	if len(clock) != 5 || clock[2] != ':' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, clock)
	}
	var hh, mm int
	for _, c := range clock[:2] {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidClock, clock)
		}
		hh = hh*10 + int(c-'0')
	}
	for _, c := range clock[3:] {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidClock, clock)
		}
		mm = mm*10 + int(c-'0')
	}
	if hh > 23 || mm > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, clock)
	}
	return hh*60 + mm, nil
}

// FormatClock is the inverse of ParseClock.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Validate checks both bounds parse and that the range is non-empty.
func (ts TimeSlot) Validate() error {
	start, err := ParseClock(ts.StartTime)
	if err != nil {
		return err
	}
	end, err := ParseClock(ts.EndTime)
	if err != nil {
		return err
	}
	if end <= start {
		return fmt.Errorf("%w: end %q not after start %q", ErrInvalidClock, ts.EndTime, ts.StartTime)
	}
	return nil
}

// Overlaps reports whether two half-open ranges intersect. Touching
// boundaries (one ends exactly when the other starts) do not overlap.
// Both slots must be valid; zero-padded strings compare correctly.
func Overlaps(a, b TimeSlot) bool {
	return a.StartTime < b.EndTime && a.EndTime > b.StartTime
}

// Windows cuts [start, end) into consecutive SlotMinutes windows. A
// trailing remainder shorter than a full window is dropped.
func Windows(start, end string) ([]TimeSlot, error) {
	from, err := ParseClock(start)
	if err != nil {
		return nil, err
	}
	to, err := ParseClock(end)
	if err != nil {
		return nil, err
	}

	var out []TimeSlot
	for cur := from; cur+SlotMinutes <= to; cur += SlotMinutes {
		out = append(out, TimeSlot{
			StartTime: FormatClock(cur),
			EndTime:   FormatClock(cur + SlotMinutes),
		})
	}
	return out, nil
}

// WeekdayName returns the lowercase English weekday used as the key
// into a doctor's weekly template.
func WeekdayName(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}

// SameCalendarDay compares dates ignoring the time of day.
func SameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// BeforeToday reports whether date falls on an earlier calendar day
// than now. Same-day bookings are allowed, so today is not "before".
// Each value's calendar day is taken in its own location; comparing
// the instants directly would misjudge evening bookings for the next
// day when the two values carry different zones.
func BeforeToday(date, now time.Time) bool {
	dy, dm, dd := date.Date()
	ny, nm, nd := now.Date()
	d := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	n := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return d.Before(n)
}
