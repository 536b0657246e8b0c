package core

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
)

const calendarProductId = "-//taskmanager//events//EN"

// BuildCalendar renders events as an iCalendar feed. Each event carries a
// display alarm that fires when its UPCOMING window opens.
func BuildCalendar(events []Event, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(calendarProductId)

	for _, event := range events {
		vevent := cal.AddEvent(event.Id)
		vevent.SetDtStampTime(now.UTC())
		vevent.SetStartAt(event.EventTime.UTC())
		vevent.SetSummary(event.Title)

		if event.Description != "" {
			vevent.SetDescription(event.Description)
		}

		if !event.CreatedAt.IsZero() {
			vevent.SetCreatedTime(event.CreatedAt.UTC())
		}

		alarm := vevent.AddAlarm()
		alarm.SetAction(ical.ActionDisplay)
		alarm.SetTrigger(fmt.Sprintf("-PT%dM", int(UpcomingLead.Minutes())))
		alarm.SetProperty(ical.ComponentPropertyDescription, fmt.Sprintf("%s starts in 5 minutes", event.Title))
	}

	return cal.Serialize()
}
