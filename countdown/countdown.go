// Package countdown works out how many days remain until the next
// occurrence of a fixed calendar date.
package countdown

import (
	"fmt"
	"time"
)

// MonthDay is a calendar date without a year.
type MonthDay struct {
	Month time.Month
	Day   int
}

// PiDay is March 14.
var PiDay = MonthDay{Month: time.March, Day: 14}

// Parse reads a MonthDay in MM-DD form, eg "03-14".
func Parse(s string) (MonthDay, error) {
	t, err := time.Parse("01-02", s)
	if err != nil {
		return MonthDay{}, fmt.Errorf("countdown: invalid date %q, want MM-DD", s)
	}
	return MonthDay{Month: t.Month(), Day: t.Day()}, nil
}

func (md MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", int(md.Month), md.Day)
}

// Next returns midnight of the next occurrence of md on or after the
// calendar date of now, in now's location.
func Next(now time.Time, md MonthDay) time.Time {
	today := date(now)
	target := time.Date(today.Year(), md.Month, md.Day, 0, 0, 0, 0, now.Location())
	if target.Before(today) {
		target = time.Date(today.Year()+1, md.Month, md.Day, 0, 0, 0, 0, now.Location())
	}
	return target
}

// Days returns the number of whole days between the calendar date of now
// and the next occurrence of md. It is 0 on the day itself.
func Days(now time.Time, md MonthDay) int {
	today := date(now)
	target := Next(now, md)
	// Count in UTC so a DST shift between the two dates cannot skew the result.
	a := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// Unit is the word to print after a day count.
func Unit(days int) string {
	if days == 1 {
		return "day"
	}
	return "days"
}

func date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
