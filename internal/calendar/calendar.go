// Package calendar renders sessions as an iCalendar feed.
package calendar

import (
	"fmt"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/josh-kwaku/session-escrow/internal/domain"
)

const productID = "-//session-escrow//sessions//EN"

// Export writes the viewer's sessions as a published calendar. Cancelled
// sessions are left out.
func Export(sessions []domain.Session, viewer uuid.UUID) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	cal.SetName("Sessions")

	for i := range sessions {
		s := &sessions[i]
		if s.Status == domain.SessionStatusCancelled {
			continue
		}

		ev := cal.AddEvent(s.ID.String() + "@session-escrow")
		ev.SetCreatedTime(s.CreatedAt)
		ev.SetDtStampTime(s.UpdatedAt)
		ev.SetModifiedAt(s.UpdatedAt)
		ev.SetStartAt(s.StartTime)
		ev.SetEndAt(s.EndTime)
		ev.SetSummary(summary(s, viewer))
		ev.SetDescription(fmt.Sprintf("%s session, fee %d, status %s", s.SessionType, s.Fee, s.Status))
		if s.Status == domain.SessionStatusScheduled && !(s.StudentConfirmed && s.MentorConfirmed) {
			ev.SetStatus(ics.ObjectStatusTentative)
		} else {
			ev.SetStatus(ics.ObjectStatusConfirmed)
		}
		if s.RoomToken != nil {
			ev.SetLocation("room:" + *s.RoomToken)
		}
	}
	return cal.Serialize()
}

func summary(s *domain.Session, viewer uuid.UUID) string {
	if viewer == s.MentorID {
		return "Mentoring session with student " + s.StudentID.String()[:8]
	}
	return "Mentoring session with mentor " + s.MentorID.String()[:8]
}
