package domain

import (
	"time"

	"github.com/google/uuid"
)

type AvailabilityWindow struct {
	ID        uuid.UUID
	MentorID  uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	IsBooked  bool
	CreatedAt time.Time
}

func (w *AvailabilityWindow) Contains(start, end time.Time) bool {
	return !start.Before(w.StartTime) && !end.After(w.EndTime)
}

// Overlaps uses half-open [start, end) ranges: touching ranges do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
