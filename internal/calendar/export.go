package calendar

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/conorfennell/wristreminder/internal/domain"
)

const productID = "-//wristreminder//reminders//EN"

// icsPriority maps reminder priorities onto the 1 (high) to 9 (low) scale.
var icsPriority = map[int]string{
	domain.PriorityLow:    "9",
	domain.PriorityNormal: "5",
	domain.PriorityUrgent: "1",
}

// Export renders reminders as an ICS calendar. Reminders that came from a
// remote calendar keep their external id as UID; local ones get a UID derived
// from their id. Each event is 15 minutes long.
func Export(reminders []domain.Reminder, loc *time.Location) (string, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("Reminders")

	for _, r := range reminders {
		start, err := r.NominalTime(loc)
		if err != nil {
			return "", err
		}

		uid := r.ExternalID
		if uid == "" {
			uid = fmt.Sprintf("reminder-%d@wristreminder", r.ID)
		}

		ev := cal.AddEvent(uid)
		ev.SetSummary(r.Title)
		ev.SetStartAt(start)
		ev.SetEndAt(start.Add(15 * time.Minute))
		ev.SetDtStampTime(r.UpdatedAt)
		ev.SetModifiedAt(r.UpdatedAt)
		ev.SetProperty(ical.ComponentPropertyPriority, priorityOf(r.Priority))
		if r.Completed {
			ev.SetStatus(ical.ObjectStatusCompleted)
		} else {
			ev.SetStatus(ical.ObjectStatusConfirmed)
		}
	}

	return cal.Serialize(), nil
}

func priorityOf(p int) string {
	if v, ok := icsPriority[p]; ok {
		return v
	}
	return icsPriority[domain.PriorityNormal]
}
