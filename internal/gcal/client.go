// Package gcal implements the remote store accessor against the Google
// Calendar API. The Go client exposes no multi-call batch endpoint, so one
// logical batch request is executed as sequential per-item calls collecting
// per-item results; chunking stays with the reconciliation engine.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/fingerprint"
	appLog "github.com/megane2501h/Aikatsu-academy-Schedule/internal/log"
	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/model"
	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/sync"
)

const (
	dateLayout = "2006-01-02"

	// timedEventDuration is the fixed duration of a timed entry; all-day
	// entries span exactly one calendar day instead.
	timedEventDuration = time.Hour

	// listPageSize bounds one list page; listing paginates past it.
	listPageSize = 2500
)

// Client accesses one Google calendar. It satisfies sync.Store.
type Client struct {
	svc        *calendar.Service
	calendarID string
	loc        *time.Location
}

// NewClient builds a Client for the given calendar. loc is the timezone
// timed entries are expressed in. Authorization is supplied by the caller
// through opts (see TokenSourceOption).
func NewClient(ctx context.Context, calendarID string, loc *time.Location, opts ...option.ClientOption) (*Client, error) {
	if calendarID == "" {
		return nil, errors.New("gcal: calendar ID is empty")
	}
	if loc == nil {
		loc = time.Local
	}
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcal: building calendar service: %w", err)
	}
	return &Client{svc: svc, calendarID: calendarID, loc: loc}, nil
}

// List fetches all entries within [start, end], following pagination.
func (c *Client) List(ctx context.Context, start, end time.Time) ([]model.RemoteEntry, error) {
	var entries []model.RemoteEntry
	pageToken := ""
	for {
		call := c.svc.Events.List(c.calendarID).
			TimeMin(start.Format(time.RFC3339)).
			TimeMax(end.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			MaxResults(listPageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("gcal: listing events: %w", err)
		}

		for _, item := range resp.Items {
			entries = append(entries, toRemoteEntry(item, c.loc))
		}

		if resp.NextPageToken == "" {
			return entries, nil
		}
		pageToken = resp.NextPageToken
	}
}

func toRemoteEntry(item *calendar.Event, loc *time.Location) model.RemoteEntry {
	entry := model.RemoteEntry{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
	}
	entry.Start, entry.AllDay = parseEventTime(item.Start, loc)
	entry.End, _ = parseEventTime(item.End, loc)
	return entry
}

func parseEventTime(t *calendar.EventDateTime, loc *time.Location) (time.Time, bool) {
	if t == nil {
		return time.Time{}, false
	}
	if t.Date != "" {
		parsed, err := time.ParseInLocation(dateLayout, t.Date, loc)
		if err != nil {
			return time.Time{}, true
		}
		return parsed, true
	}
	parsed, err := time.Parse(time.RFC3339, t.DateTime)
	if err != nil {
		return time.Time{}, false
	}
	return parsed.In(loc), false
}

// BatchDelete removes the given entries, one result per ID. Entries already
// gone (404/410) count as deleted: the goal state is absence.
func (c *Client) BatchDelete(ctx context.Context, ids []string) ([]sync.ItemResult, error) {
	results := make([]sync.ItemResult, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		err := c.svc.Events.Delete(c.calendarID, id).Context(ctx).Do()
		if err != nil {
			if isGone(err) {
				err = nil
			} else if fatal := asFatal(err); fatal != nil {
				return results, fatal
			}
		}
		results = append(results, sync.ItemResult{ID: id, Err: err})
	}
	return results, nil
}

// BatchCreate inserts the given entries, one result per request ID.
func (c *Client) BatchCreate(ctx context.Context, inputs []sync.CreateInput) ([]sync.ItemResult, error) {
	results := make([]sync.ItemResult, 0, len(inputs))
	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		event := c.buildEvent(input)
		created, err := c.svc.Events.Insert(c.calendarID, event).Context(ctx).Do()
		if err != nil {
			if fatal := asFatal(err); fatal != nil {
				return results, fatal
			}
		} else {
			appLog.Debug("event created", "request_id", input.RequestID, "id", created.Id, "summary", event.Summary)
		}
		results = append(results, sync.ItemResult{ID: input.RequestID, Err: err})
	}
	return results, nil
}

// buildEvent maps an EventRecord onto the calendar wire shape. Timed records
// span exactly one hour; unspecified-time records become all-day entries
// ending the next day. Everything is public.
func (c *Client) buildEvent(input sync.CreateInput) *calendar.Event {
	rec := input.Record

	summary := rec.Title + rec.TypeTag
	if rec.Category != "" && !strings.Contains(summary, rec.Category) {
		summary = rec.Category + " " + summary
	}

	event := &calendar.Event{
		Summary:     summary,
		Description: fingerprint.BuildDescription(rec.RawText, input.Fingerprint),
		Visibility:  "public",
	}

	if rec.TimeSpecified {
		start := rec.Start(c.loc)
		event.Start = &calendar.EventDateTime{
			DateTime: start.Format(time.RFC3339),
			TimeZone: c.loc.String(),
		}
		event.End = &calendar.EventDateTime{
			DateTime: start.Add(timedEventDuration).Format(time.RFC3339),
			TimeZone: c.loc.String(),
		}
	} else {
		day := time.Date(rec.Year, time.Month(rec.Month), rec.Day, 0, 0, 0, 0, c.loc)
		event.Start = &calendar.EventDateTime{Date: day.Format(dateLayout)}
		event.End = &calendar.EventDateTime{Date: day.AddDate(0, 0, 1).Format(dateLayout)}
	}

	return event
}

// isGone reports whether err means the entry no longer exists.
func isGone(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}

// asFatal classifies an error as unrecoverable for the whole run. Auth
// failures poison every subsequent call, so surfacing them per item would
// just produce a long list of identical failures.
func asFatal(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden {
			return fmt.Errorf("gcal: authorization failed: %w", err)
		}
		return nil
	}
	// Non-API errors are transport-level failures.
	return err
}
