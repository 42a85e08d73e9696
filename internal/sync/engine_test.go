package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/config"
	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/fingerprint"
	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/model"
)

// fakeStore is an in-memory Store that applies batches like the remote
// calendar would, recording call counts and chunk sizes.
type fakeStore struct {
	entries []model.RemoteEntry
	nextID  int

	listCalls        int
	deleteCalls      int
	createCalls      int
	deleteChunkSizes []int
	createChunkSizes []int

	listErr     error
	failDeletes bool // per-item delete failures
	failCreates bool // per-item create failures
}

func (s *fakeStore) List(_ context.Context, _, _ time.Time) ([]model.RemoteEntry, error) {
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]model.RemoteEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *fakeStore) BatchDelete(_ context.Context, ids []string) ([]ItemResult, error) {
	s.deleteCalls++
	s.deleteChunkSizes = append(s.deleteChunkSizes, len(ids))

	results := make([]ItemResult, 0, len(ids))
	for _, id := range ids {
		if s.failDeletes {
			results = append(results, ItemResult{ID: id, Err: errors.New("delete refused")})
			continue
		}
		for i, entry := range s.entries {
			if entry.ID == id {
				s.entries = append(s.entries[:i], s.entries[i+1:]...)
				break
			}
		}
		results = append(results, ItemResult{ID: id})
	}
	return results, nil
}

func (s *fakeStore) BatchCreate(_ context.Context, inputs []CreateInput) ([]ItemResult, error) {
	s.createCalls++
	s.createChunkSizes = append(s.createChunkSizes, len(inputs))

	results := make([]ItemResult, 0, len(inputs))
	for _, input := range inputs {
		if s.failCreates {
			results = append(results, ItemResult{ID: input.RequestID, Err: errors.New("create refused")})
			continue
		}
		s.nextID++
		s.entries = append(s.entries, model.RemoteEntry{
			ID:          fmt.Sprintf("entry-%d", s.nextID),
			Summary:     input.Record.Title,
			Description: fingerprint.BuildDescription(input.Record.RawText, input.Fingerprint),
		})
		results = append(results, ItemResult{ID: input.RequestID})
	}
	return results, nil
}

func testRecord(day int, title string) model.EventRecord {
	return model.EventRecord{
		Year: 2025, Month: 7, Day: day,
		Hour: 12, Minute: 0, TimeSpecified: true,
		Title:      title,
		RawText:    "12:00〜 " + title,
		SourceLink: "https://example.com/",
	}
}

func newTestEngine(store Store, cfg config.SyncConfig) *Engine {
	e := NewEngine(store, time.UTC, cfg)
	e.now = func() time.Time {
		return time.Date(2025, 7, 10, 9, 0, 0, 0, time.UTC)
	}
	return e
}

func TestReconcileCreatesEverythingIntoEmptyStore(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(store, config.SyncConfig{})

	records := []model.EventRecord{testRecord(1, "a"), testRecord(2, "b")}
	out, err := e.Reconcile(context.Background(), records)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if out.Created != 2 || out.Deleted != 0 || out.Unchanged != 0 {
		t.Errorf("outcome = %+v, want 2 creates", out)
	}
	if len(store.entries) != 2 {
		t.Errorf("store has %d entries, want 2", len(store.entries))
	}
}

func TestReconcileIdempotent(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(store, config.SyncConfig{})

	records := []model.EventRecord{testRecord(1, "a"), testRecord(2, "b")}
	if _, err := e.Reconcile(context.Background(), records); err != nil {
		t.Fatalf("first Reconcile: %v", err)
	}
	deletes, creates := store.deleteCalls, store.createCalls

	out, err := e.Reconcile(context.Background(), records)
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if out.Created != 0 || out.Deleted != 0 || out.Unchanged != 2 {
		t.Errorf("second run outcome = %+v, want all unchanged", out)
	}
	if store.deleteCalls != deletes || store.createCalls != creates {
		t.Error("second run issued writes for an unchanged input")
	}
}

func TestReconcileDiff(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(store, config.SyncConfig{})

	// Seed the store with {a, b} through the engine itself.
	if _, err := e.Reconcile(context.Background(), []model.EventRecord{testRecord(1, "a"), testRecord(2, "b")}); err != nil {
		t.Fatalf("seed Reconcile: %v", err)
	}

	// New input {b, c}: delete a, create c, keep b.
	out, err := e.Reconcile(context.Background(), []model.EventRecord{testRecord(2, "b"), testRecord(3, "c")})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if out.Created != 1 || out.Deleted != 1 || out.Unchanged != 1 {
		t.Errorf("outcome = %+v, want created=1 deleted=1 unchanged=1", out)
	}
	if len(store.entries) != 2 {
		t.Errorf("store has %d entries, want 2", len(store.entries))
	}
}

func TestReconcileNeverDeletesForeignEntries(t *testing.T) {
	store := &fakeStore{entries: []model.RemoteEntry{
		{ID: "foreign", Summary: "dentist", Description: "no digest here"},
	}}
	e := newTestEngine(store, config.SyncConfig{})

	out, err := e.Reconcile(context.Background(), []model.EventRecord{testRecord(5, "x")})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if out.Deleted != 0 {
		t.Errorf("deleted %d entries, foreign entries must be ignored", out.Deleted)
	}
	if len(store.entries) != 2 {
		t.Errorf("store has %d entries, want foreign + created", len(store.entries))
	}
}

func TestReconcileListErrorIsFatal(t *testing.T) {
	store := &fakeStore{listErr: errors.New("boom")}
	e := newTestEngine(store, config.SyncConfig{})

	if _, err := e.Reconcile(context.Background(), []model.EventRecord{testRecord(1, "a")}); err == nil {
		t.Fatal("expected an error from a failed listing")
	}
}

func TestWindowFromRecords(t *testing.T) {
	e := newTestEngine(&fakeStore{}, config.SyncConfig{})

	records := []model.EventRecord{
		testRecord(1, "a"),
		{Year: 2025, Month: 11, Day: 3, Title: "late"},
	}
	start, end := e.Window(records)

	wantStart := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", start, wantStart)
	}
	// November + 3 months margin overflows into February of the next year.
	wantEnd := time.Date(2026, 2, 28, 23, 59, 59, 0, time.UTC)
	if !end.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", end, wantEnd)
	}
}

func TestWindowEmptyInput(t *testing.T) {
	e := newTestEngine(&fakeStore{}, config.SyncConfig{})

	start, end := e.Window(nil)
	if !start.Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", start)
	}
	if !end.Equal(time.Date(2025, 10, 10, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("end = %v, want now + 3 months", end)
	}
}

func TestSucceededLenientPolicy(t *testing.T) {
	e := newTestEngine(&fakeStore{}, config.SyncConfig{})

	cases := []struct {
		name string
		out  Outcome
		want bool
	}{
		{"nothing to do", Outcome{Unchanged: 10}, true},
		{"all succeeded", Outcome{Created: 3, Deleted: 2}, true},
		{"one of many succeeded", Outcome{Deleted: 1, FailedDeletes: 499}, true},
		{"everything failed", Outcome{FailedCreates: 2, FailedDeletes: 3}, false},
	}
	for _, tc := range cases {
		if got := e.Succeeded(tc.out); got != tc.want {
			t.Errorf("%s: Succeeded = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSucceededStrictRatio(t *testing.T) {
	e := newTestEngine(&fakeStore{}, config.SyncConfig{MinSuccessRatio: 0.9})

	if e.Succeeded(Outcome{Deleted: 1, FailedDeletes: 499}) {
		t.Error("1/500 cleared a 0.9 ratio threshold")
	}
	if !e.Succeeded(Outcome{Created: 95, FailedCreates: 5}) {
		t.Error("95/100 did not clear a 0.9 ratio threshold")
	}
	if !e.Succeeded(Outcome{Unchanged: 4}) {
		t.Error("empty diff counted as failure under strict policy")
	}
}

func TestFullReplacePreFilters(t *testing.T) {
	store := &fakeStore{entries: []model.RemoteEntry{
		{ID: "ours", Description: fingerprint.BuildDescription("old item", "0123abcd")},
		{ID: "foreign", Description: "someone else's entry"},
	}}
	e := newTestEngine(store, config.SyncConfig{})

	records := []model.EventRecord{testRecord(1, "a")}
	out, err := e.FullReplace(context.Background(), records)
	if err != nil {
		t.Fatalf("FullReplace: %v", err)
	}
	if out.Deleted != 1 || out.Created != 1 {
		t.Errorf("outcome = %+v, want deleted=1 created=1", out)
	}
	// The foreign entry survives plus the freshly created one.
	if len(store.entries) != 2 {
		t.Errorf("store has %d entries, want 2", len(store.entries))
	}
	for _, entry := range store.entries {
		if entry.ID == "ours" {
			t.Error("recognizable stale entry survived full replace")
		}
	}
}

func TestFullReplaceUnfiltered(t *testing.T) {
	store := &fakeStore{entries: []model.RemoteEntry{
		{ID: "foreign", Description: "someone else's entry"},
	}}
	e := newTestEngine(store, config.SyncConfig{ReplaceUnrecognized: true})

	out, err := e.FullReplace(context.Background(), []model.EventRecord{testRecord(1, "a")})
	if err != nil {
		t.Fatalf("FullReplace: %v", err)
	}
	if out.Deleted != 1 {
		t.Errorf("deleted = %d, want the foreign entry removed too", out.Deleted)
	}
}

func TestReconcilePerItemFailuresAreNotFatal(t *testing.T) {
	store := &fakeStore{failCreates: true}
	e := newTestEngine(store, config.SyncConfig{})

	out, err := e.Reconcile(context.Background(), []model.EventRecord{testRecord(1, "a"), testRecord(2, "b")})
	if err != nil {
		t.Fatalf("Reconcile returned fatal error for per-item failures: %v", err)
	}
	if out.FailedCreates != 2 || out.Created != 0 {
		t.Errorf("outcome = %+v, want 2 failed creates", out)
	}
	if e.Succeeded(out) {
		t.Error("run with zero successful writes reported success")
	}
}
