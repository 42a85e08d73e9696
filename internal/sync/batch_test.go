package sync

import (
	"context"
	"fmt"
	"testing"

	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/config"
	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/model"
)

func TestChunkSizeClamped(t *testing.T) {
	cases := []struct {
		configured int
		want       int
	}{
		{0, maxBatchSize},
		{-5, maxBatchSize},
		{10, 10},
		{maxBatchSize, maxBatchSize},
		{100, maxBatchSize},
	}
	for _, tc := range cases {
		if got := chunkSize(tc.configured); got != tc.want {
			t.Errorf("chunkSize(%d) = %d, want %d", tc.configured, got, tc.want)
		}
	}
}

func TestCreateChunkedPartitioning(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(store, config.SyncConfig{CreateChunkSize: 50})

	inputs := make([]CreateInput, 1500)
	for i := range inputs {
		inputs[i] = CreateInput{
			RequestID:   fmt.Sprintf("req-%d", i),
			Record:      model.EventRecord{Year: 2025, Month: 7, Day: 1, Title: fmt.Sprintf("e%d", i)},
			Fingerprint: fmt.Sprintf("fp-%d", i),
		}
	}

	succeeded, failed, err := e.createChunked(context.Background(), inputs)
	if err != nil {
		t.Fatalf("createChunked: %v", err)
	}
	if succeeded != 1500 || failed != 0 {
		t.Fatalf("succeeded=%d failed=%d, want 1500/0", succeeded, failed)
	}
	if store.createCalls != 30 {
		t.Errorf("store saw %d batch calls, want 30", store.createCalls)
	}
	for i, size := range store.createChunkSizes {
		if size > maxBatchSize {
			t.Errorf("chunk %d has %d items, exceeds cap %d", i, size, maxBatchSize)
		}
	}
}

func TestDeleteChunkedOversizedConfig(t *testing.T) {
	store := &fakeStore{}
	for i := 0; i < 120; i++ {
		store.entries = append(store.entries, model.RemoteEntry{ID: fmt.Sprintf("id-%d", i)})
	}
	e := newTestEngine(store, config.SyncConfig{DeleteChunkSize: 100})

	ids := make([]string, 120)
	for i := range ids {
		ids[i] = fmt.Sprintf("id-%d", i)
	}

	succeeded, _, err := e.deleteChunked(context.Background(), ids)
	if err != nil {
		t.Fatalf("deleteChunked: %v", err)
	}
	if succeeded != 120 {
		t.Errorf("succeeded = %d, want 120", succeeded)
	}
	// 100 clamps to 50, so 120 ids take 3 calls of 50/50/20.
	if store.deleteCalls != 3 {
		t.Errorf("store saw %d batch calls, want 3", store.deleteCalls)
	}
}

func TestDeleteChunkedCountsPerItemFailures(t *testing.T) {
	store := &fakeStore{failDeletes: true}
	e := newTestEngine(store, config.SyncConfig{})

	succeeded, failed, err := e.deleteChunked(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("deleteChunked returned fatal error: %v", err)
	}
	if succeeded != 0 || failed != 3 {
		t.Errorf("succeeded=%d failed=%d, want 0/3", succeeded, failed)
	}
}
