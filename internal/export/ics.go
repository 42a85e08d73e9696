// Package export writes extracted records to an iCalendar file for offline
// inspection, so scrape results can be reviewed without touching the remote
// calendar.
package export

import (
	"fmt"
	"os"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/fingerprint"
	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/model"
)

// WriteICS serializes records as a VCALENDAR into path. Timed records span
// one hour, unspecified-time records become all-day events, mirroring what
// the remote store would receive.
func WriteICS(path string, records []model.EventRecord, loc *time.Location) error {
	if path == "" {
		return fmt.Errorf("export: path is empty")
	}
	if loc == nil {
		loc = time.Local
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)

	for _, rec := range records {
		fp := fingerprint.Compute(rec)
		ev := cal.AddEvent(fp + "@aikatsu-academy-schedule")

		summary := rec.Title + rec.TypeTag
		if rec.Category != "" {
			summary = rec.Category + " " + summary
		}
		ev.SetSummary(summary)
		ev.SetDescription(fingerprint.BuildDescription(rec.RawText, fp))
		if rec.SourceLink != "" {
			ev.SetURL(rec.SourceLink)
		}

		if rec.TimeSpecified {
			start := rec.Start(loc)
			ev.SetStartAt(start)
			ev.SetEndAt(start.Add(time.Hour))
		} else {
			day := time.Date(rec.Year, time.Month(rec.Month), rec.Day, 0, 0, 0, 0, loc)
			ev.SetAllDayStartAt(day)
			ev.SetAllDayEndAt(day.AddDate(0, 0, 1))
		}
	}

	return os.WriteFile(path, []byte(cal.Serialize()), 0o644)
}
