package calendar

import (
	"io"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/tasknest/internal/model"
	"github.com/tasknest/internal/recurrence"
)

const icsProductID = "-//tasknest//calendar//EN"

// WriteICS serializes every item of idx as an all-day VEVENT. UIDs are
// stable across exports, and an occurrence keeps its UID when it goes from
// virtual to materialized.
func WriteICS(w io.Writer, idx *Index, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(icsProductID)

	for _, item := range idx.Items() {
		day, err := recurrence.ParseDate(item.DueDate)
		if err != nil {
			continue
		}

		event := cal.AddEvent(icsUID(item))
		event.SetDtStampTime(stamp.UTC())
		event.SetAllDayStartAt(day)
		event.SetAllDayEndAt(day.AddDate(0, 0, 1))
		event.SetSummary(item.Title)
		if item.Notes != "" {
			event.SetDescription(item.Notes)
		}
		event.AddProperty(ical.ComponentProperty("X-TASKNEST-TYPE"), string(item.Type))
		if item.Completed {
			event.AddProperty(ical.ComponentProperty("X-TASKNEST-COMPLETED"), "TRUE")
		}
		if item.IsVirtualOccurrence {
			event.AddProperty(ical.ComponentProperty("X-TASKNEST-VIRTUAL"), "TRUE")
		}
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}

func icsUID(item model.CalendarItem) string {
	name := string(item.Type) + ":" + item.ID
	if item.RecurringParentID != nil {
		name = string(item.Type) + ":" + recurrence.VirtualID(*item.RecurringParentID, item.DueDate)
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("tasknest:"+name)).String() + "@tasknest"
}
