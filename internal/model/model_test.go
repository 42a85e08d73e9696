package model

import (
	"testing"
	"time"
)

func TestSortOrdersByStart(t *testing.T) {
	records := []EventRecord{
		{Year: 2025, Month: 8, Day: 2, Hour: 20, Minute: 0, Title: "late"},
		{Year: 2025, Month: 7, Day: 15, Hour: 12, Minute: 0, Title: "mid"},
		{Year: 2025, Month: 7, Day: 15, Hour: 9, Minute: 30, Title: "early"},
		{Year: 2024, Month: 12, Day: 31, Hour: 23, Minute: 59, Title: "first"},
	}
	Sort(records)

	want := []string{"first", "early", "mid", "late"}
	for i, title := range want {
		if records[i].Title != title {
			t.Errorf("records[%d].Title = %q, want %q", i, records[i].Title, title)
		}
	}
}

func TestSortIsStable(t *testing.T) {
	records := []EventRecord{
		{Year: 2025, Month: 7, Day: 1, Hour: 12, Title: "a"},
		{Year: 2025, Month: 7, Day: 1, Hour: 12, Title: "b"},
		{Year: 2025, Month: 7, Day: 1, Hour: 12, Title: "c"},
	}
	Sort(records)

	for i, title := range []string{"a", "b", "c"} {
		if records[i].Title != title {
			t.Errorf("equal-start records reordered: got %q at %d", records[i].Title, i)
		}
	}
}

func TestStartUsesLocation(t *testing.T) {
	rec := EventRecord{Year: 2025, Month: 7, Day: 5, Hour: 21, Minute: 30}
	got := rec.Start(time.UTC)
	want := time.Date(2025, 7, 5, 21, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Start = %v, want %v", got, want)
	}
}
