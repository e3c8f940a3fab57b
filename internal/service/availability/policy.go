package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/josh-kwaku/session-escrow/internal/domain"
)

const day = 24 * time.Hour

// Policy is the working-hours rule every window and booking must satisfy. It
// depends only on its inputs and never touches storage.
type Policy struct {
	DayStart    time.Duration // offset from local midnight
	DayEnd      time.Duration
	Location    *time.Location
	MaxDuration time.Duration // zero disables the limit
	MinLead     time.Duration
}

func NewPolicy(dayStart, dayEnd, tz string, maxDuration, minLead time.Duration) (Policy, error) {
	start, err := ParseClock(dayStart)
	if err != nil {
		return Policy{}, fmt.Errorf("NewPolicy: start: %w", err)
	}
	end, err := ParseClock(dayEnd)
	if err != nil {
		return Policy{}, fmt.Errorf("NewPolicy: end: %w", err)
	}
	if start >= end {
		return Policy{}, fmt.Errorf("NewPolicy: working day %s-%s is empty", dayStart, dayEnd)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Policy{}, fmt.Errorf("NewPolicy: timezone: %w", err)
	}
	if maxDuration < 0 || minLead < 0 {
		return Policy{}, fmt.Errorf("NewPolicy: negative duration")
	}
	return Policy{
		DayStart:    start,
		DayEnd:      end,
		Location:    loc,
		MaxDuration: maxDuration,
		MinLead:     minLead,
	}, nil
}

// ParseClock parses "HH:MM" into an offset from midnight. "24:00" is
// accepted as the end of the day.
func ParseClock(s string) (time.Duration, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("ParseClock: %q is not HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("ParseClock: hour %q: %w", hh, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("ParseClock: minute %q: %w", mm, err)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("ParseClock: %q out of range", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// Validate rejects [start, end) unless it is ordered, lies inside one local
// working day, respects the maximum duration and starts at least MinLead
// after now.
func (p Policy) Validate(start, end, now time.Time) error {
	if !start.Before(end) {
		return fmt.Errorf("Validate: start must be before end: %w", domain.ErrInvalidWindow)
	}
	if p.MaxDuration > 0 && end.Sub(start) > p.MaxDuration {
		return fmt.Errorf("Validate: longer than %s: %w", p.MaxDuration, domain.ErrInvalidWindow)
	}
	if start.Before(now.Add(p.MinLead)) {
		return fmt.Errorf("Validate: start is too soon: %w", domain.ErrInvalidWindow)
	}

	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	ls, le := start.In(loc), end.In(loc)

	startOff := wallClock(ls)
	var endOff time.Duration
	switch {
	case sameDate(ls, le):
		endOff = wallClock(le)
	case sameDate(ls.AddDate(0, 0, 1), le) && wallClock(le) == 0:
		endOff = day
	default:
		return fmt.Errorf("Validate: spans more than one day: %w", domain.ErrInvalidWindow)
	}

	if startOff < p.DayStart || endOff > p.DayEnd {
		return fmt.Errorf("Validate: outside working hours: %w", domain.ErrInvalidWindow)
	}
	return nil
}

func wallClock(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(t.Nanosecond())
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
