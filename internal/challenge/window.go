// Package challenge computes the calendar window of a challenge group.
//
// Dates are civil dates written day first (DD/MM/YYYY). They are held as
// midnight UTC values so day arithmetic never crosses a DST boundary.
package challenge

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout accepts both zero padded and bare day and month numbers.
const DateLayout = "2/1/2006"

// FormatLayout is used when writing dates.
const FormatLayout = "02/01/2006"

const day = 24 * time.Hour

// ErrInvalidDate is returned for text that is not a DD/MM/YYYY date.
var ErrInvalidDate = errors.New("invalid date")

// ErrInvalidDuration is returned for a non-positive challenge length.
var ErrInvalidDuration = errors.New("invalid duration")

// ParseDate parses day-month-year text into a civil date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidDate, s, err)
	}
	return t, nil
}

// FormatDate renders a civil date as DD/MM/YYYY.
func FormatDate(t time.Time) string {
	return t.Format(FormatLayout)
}

// Today returns the civil date of now as seen in now's location.
func Today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Window is the span of a challenge derived from its start date and length.
type Window struct {
	Start time.Time
	Days  int
}

// NewWindow builds the window of a group created on createdAt lasting days.
func NewWindow(createdAt string, days int) (Window, error) {
	start, err := ParseDate(createdAt)
	if err != nil {
		return Window{}, err
	}
	if days <= 0 {
		return Window{}, fmt.Errorf("%w: %d days", ErrInvalidDuration, days)
	}
	return Window{Start: start, Days: days}, nil
}

// EndExclusive is the first day after the challenge. Used for display.
func (w Window) EndExclusive() time.Time {
	return w.Start.AddDate(0, 0, w.Days)
}

// EndInclusive is the last day a check-in is accepted.
func (w Window) EndInclusive() time.Time {
	return w.Start.AddDate(0, 0, w.Days-1)
}

// DaysRemaining counts whole days from the calendar date of now to the
// exclusive end, never negative.
func (w Window) DaysRemaining(now time.Time) int {
	left := int(w.EndExclusive().Sub(Today(now)) / day)
	if left < 0 {
		return 0
	}
	return left
}

// Contains reports whether date is eligible for a reward. Only the upper
// bound is enforced; dates before Start are accepted.
func (w Window) Contains(date time.Time) bool {
	return !date.After(w.EndInclusive())
}
