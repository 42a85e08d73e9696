// Package sync reconciles the remote calendar collection against the
// freshly extracted record set. All reconciliation state is derived from the
// remote store and the input on every run; nothing persists locally.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/config"
	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/fingerprint"
	appLog "github.com/megane2501h/Aikatsu-academy-Schedule/internal/log"
	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/model"
)

// windowMarginMonths is the safety margin added past the last input month
// when computing the remote query window.
const windowMarginMonths = 3

// ItemResult reports the outcome of one operation within a batch. ID is the
// remote entry ID for deletes and the locally generated request ID for
// creates.
type ItemResult struct {
	ID  string
	Err error
}

// CreateInput is one entry to be created, tagged with a per-run request ID
// so batch results can be disambiguated. The ID is never stable across runs.
type CreateInput struct {
	RequestID   string
	Record      model.EventRecord
	Fingerprint string
}

// Store is the remote calendar accessor. One BatchDelete/BatchCreate call is
// one logical batch request; per-item atomicity is the store's concern, not
// ours.
type Store interface {
	List(ctx context.Context, start, end time.Time) ([]model.RemoteEntry, error)
	BatchDelete(ctx context.Context, ids []string) ([]ItemResult, error)
	BatchCreate(ctx context.Context, inputs []CreateInput) ([]ItemResult, error)
}

// Outcome summarizes one reconciliation run.
type Outcome struct {
	Created   int
	Deleted   int
	Unchanged int

	FailedCreates int
	FailedDeletes int
}

// Attempted returns the number of write operations issued.
func (o Outcome) Attempted() int {
	return o.Created + o.Deleted + o.FailedCreates + o.FailedDeletes
}

// Engine computes and applies the minimal create/delete set.
type Engine struct {
	store Store
	loc   *time.Location
	cfg   config.SyncConfig

	// now is injectable for tests.
	now func() time.Time
}

// NewEngine constructs an Engine. loc is the timezone the schedule is
// published in; it anchors the query window's month boundaries.
func NewEngine(store Store, loc *time.Location, cfg config.SyncConfig) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{
		store: store,
		loc:   loc,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Window computes the remote query window for the given input: from the
// first day of the current month through the last day of the latest input
// month plus a fixed safety margin. Month overflow normalizes into year
// increments. An empty input falls back to now + the margin.
func (e *Engine) Window(records []model.EventRecord) (start, end time.Time) {
	now := e.now().In(e.loc)
	start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, e.loc)

	if len(records) == 0 {
		return start, now.AddDate(0, windowMarginMonths, 0)
	}

	maxYear, maxMonth := records[0].Year, records[0].Month
	for _, r := range records[1:] {
		if r.Year > maxYear || (r.Year == maxYear && r.Month > maxMonth) {
			maxYear, maxMonth = r.Year, r.Month
		}
	}

	// Day 0 of month m+margin+1 is the last day of month m+margin.
	end = time.Date(maxYear, time.Month(maxMonth+windowMarginMonths+1), 0, 23, 59, 59, 0, e.loc)
	return start, end
}

// Reconcile makes the remote store match records exactly, minimizing writes
// via fingerprint diffing. Entries without a recoverable fingerprint are
// ignored: they are never deleted by this path.
//
// The returned error is non-nil only for unrecoverable store failures; the
// caller decides whether to fall back to FullReplace. Per-item failures are
// counted in the Outcome instead.
func (e *Engine) Reconcile(ctx context.Context, records []model.EventRecord) (Outcome, error) {
	var out Outcome

	start, end := e.Window(records)
	appLog.Info("reconcile window", "start", start.Format("2006-01-02"), "end", end.Format("2006-01-02"))

	entries, err := e.store.List(ctx, start, end)
	if err != nil {
		return out, fmt.Errorf("sync: listing remote entries: %w", err)
	}

	// Remote fingerprints, keeping listing order for deletions.
	remoteFPs := make(map[string]bool)
	type remoteRef struct {
		id string
		fp string
	}
	fingerprinted := make([]remoteRef, 0, len(entries))
	for _, entry := range entries {
		fp, ok := fingerprint.Extract(entry.Description)
		if !ok {
			continue
		}
		remoteFPs[fp] = true
		fingerprinted = append(fingerprinted, remoteRef{id: entry.ID, fp: fp})
	}

	// Input fingerprints, deduplicated: two records with identical content
	// are one event.
	inputFPs := make(map[string]bool, len(records))
	var toCreate []CreateInput
	for _, rec := range records {
		fp := fingerprint.Compute(rec)
		if inputFPs[fp] {
			continue
		}
		inputFPs[fp] = true
		if !remoteFPs[fp] {
			toCreate = append(toCreate, CreateInput{
				RequestID:   newRequestID(),
				Record:      rec,
				Fingerprint: fp,
			})
		} else {
			out.Unchanged++
		}
	}

	var toDelete []string
	for _, ref := range fingerprinted {
		if !inputFPs[ref.fp] {
			toDelete = append(toDelete, ref.id)
		}
	}

	appLog.Info("reconcile diff computed",
		"remote", len(entries),
		"fingerprinted", len(fingerprinted),
		"to_create", len(toCreate),
		"to_delete", len(toDelete),
		"unchanged", out.Unchanged,
	)

	// An empty diff performs zero network writes.
	if len(toDelete) == 0 && len(toCreate) == 0 {
		return out, nil
	}

	deleted, failedDeletes, err := e.deleteChunked(ctx, toDelete)
	out.Deleted, out.FailedDeletes = deleted, failedDeletes
	if err != nil {
		return out, fmt.Errorf("sync: deleting stale entries: %w", err)
	}

	created, failedCreates, err := e.createChunked(ctx, toCreate)
	out.Created, out.FailedCreates = created, failedCreates
	if err != nil {
		return out, fmt.Errorf("sync: creating entries: %w", err)
	}

	return out, nil
}

// FullReplace is the degraded strategy: delete every in-window entry and
// recreate every input record, bypassing fingerprints. Strictly more
// expensive than Reconcile; the caller invokes it explicitly after a failed
// reconciliation. By default only entries recognizable as ours are deleted.
func (e *Engine) FullReplace(ctx context.Context, records []model.EventRecord) (Outcome, error) {
	var out Outcome

	start, end := e.Window(records)
	appLog.Info("full replace window", "start", start.Format("2006-01-02"), "end", end.Format("2006-01-02"))

	entries, err := e.store.List(ctx, start, end)
	if err != nil {
		return out, fmt.Errorf("sync: listing remote entries: %w", err)
	}

	var toDelete []string
	for _, entry := range entries {
		if !e.cfg.ReplaceUnrecognized && !fingerprint.Recognizable(entry.Description) {
			continue
		}
		toDelete = append(toDelete, entry.ID)
	}

	toCreate := make([]CreateInput, 0, len(records))
	for _, rec := range records {
		toCreate = append(toCreate, CreateInput{
			RequestID:   newRequestID(),
			Record:      rec,
			Fingerprint: fingerprint.Compute(rec),
		})
	}

	deleted, failedDeletes, err := e.deleteChunked(ctx, toDelete)
	out.Deleted, out.FailedDeletes = deleted, failedDeletes
	if err != nil {
		return out, fmt.Errorf("sync: deleting entries: %w", err)
	}

	created, failedCreates, err := e.createChunked(ctx, toCreate)
	out.Created, out.FailedCreates = created, failedCreates
	if err != nil {
		return out, fmt.Errorf("sync: creating entries: %w", err)
	}

	return out, nil
}

// Succeeded applies the success policy to an outcome: success when at least
// one operation succeeded or there was nothing to do. When min_success_ratio
// is configured, the per-item success ratio must also clear it.
func (e *Engine) Succeeded(out Outcome) bool {
	attempted := out.Attempted()
	if attempted == 0 {
		return true
	}
	succeeded := out.Created + out.Deleted
	if succeeded == 0 {
		return false
	}
	if e.cfg.MinSuccessRatio > 0 {
		return float64(succeeded)/float64(attempted) >= e.cfg.MinSuccessRatio
	}
	return true
}
