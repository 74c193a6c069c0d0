package recurrence

import (
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"
)

// DateLayout is the calendar date format accepted for window bounds.
const DateLayout = "2006-01-02"

// ErrInvalidRange is matched by every window construction failure.
var ErrInvalidRange = errors.New("recurrence: invalid range")

// RangeError describes a rejected query window.
type RangeError struct {
	From   string
	To     string
	Reason string
}

func (e *RangeError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("recurrence: invalid range [%s, %s]: %s", e.From, e.To, e.Reason)
}

// Is lets errors.Is match ErrInvalidRange.
func (e *RangeError) Is(target error) bool {
	return target == ErrInvalidRange
}

// Date is a calendar date with no time or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(value string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// Compare returns -1, 0 or +1 as d is before, equal to or after other.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return cmpInt(d.Year, other.Year)
	case d.Month != other.Month:
		return cmpInt(int(d.Month), int(other.Month))
	default:
		return cmpInt(d.Day, other.Day)
	}
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d.Compare(other) > 0 }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Window is an inclusive range of calendar dates evaluated in a fixed location.
type Window struct {
	From     Date
	To       Date
	location *time.Location
}

// NewWindow validates from <= to. A nil loc means UTC.
func NewWindow(from, to Date, loc *time.Location) (Window, error) {
	if from.After(to) {
		return Window{}, &RangeError{From: from.String(), To: to.String(), Reason: "start date is after end date"}
	}
	if loc == nil {
		loc = time.UTC
	}
	return Window{From: from, To: to, location: loc}, nil
}

// ParseWindow parses both bounds as YYYY-MM-DD and validates their order.
func ParseWindow(from, to string, loc *time.Location) (Window, error) {
	fromDate, err := ParseDate(from)
	if err != nil {
		return Window{}, &RangeError{From: from, To: to, Reason: "start date is not YYYY-MM-DD"}
	}
	toDate, err := ParseDate(to)
	if err != nil {
		return Window{}, &RangeError{From: from, To: to, Reason: "end date is not YYYY-MM-DD"}
	}
	return NewWindow(fromDate, toDate, loc)
}

// Location reports the zone instants are converted to before taking their date.
func (w Window) Location() *time.Location {
	if w.location == nil {
		return time.UTC
	}
	return w.location
}

func (w Window) dateOf(t time.Time) Date {
	return DateOf(t.In(w.Location()))
}

// Contains reports whether d lies within the inclusive window.
func (w Window) Contains(d Date) bool {
	return !d.Before(w.From) && !d.After(w.To)
}

// MatchesSingle reports whether a one-time reservation belongs to the window: both its
// start date and its end date must lie inside.
func (w Window) MatchesSingle(start, end time.Time) bool {
	return w.Contains(w.dateOf(start)) && w.Contains(w.dateOf(end))
}

// Select yields each instant whose start date lies in the window together with its
// zero-based ordinal in the source sequence. It stops pulling from seq as soon as an
// instant falls after the window, so seq must be ascending.
func (w Window) Select(seq iter.Seq[time.Time]) iter.Seq2[int, time.Time] {
	return func(yield func(int, time.Time) bool) {
		index := 0
		for instant := range seq {
			d := w.dateOf(instant)
			if d.After(w.To) {
				return
			}
			if !d.Before(w.From) {
				if !yield(index, instant) {
					return
				}
			}
			index++
		}
	}
}

// Filter is Select without the ordinals.
func (w Window) Filter(seq iter.Seq[time.Time]) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		for _, instant := range w.Select(seq) {
			if !yield(instant) {
				return
			}
		}
	}
}
