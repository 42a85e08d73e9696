package model

import (
	"sort"
	"time"
)

// EventRecord is the canonical representation of one published schedule item
// after extraction and classification. Records carry no identity of their
// own; two records with the same field values are the same event as far as
// reconciliation is concerned (see internal/fingerprint).
type EventRecord struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`

	// Hour/Minute are the start time when TimeSpecified is true. When the
	// source item carries no time they hold the configured default and the
	// record is treated as an all-day occurrence.
	Hour          int  `json:"hour"`
	Minute        int  `json:"minute"`
	TimeSpecified bool `json:"timeSpecified"`

	// Title is the item text with all bracketed tags and time prefixes
	// stripped. Classification guarantees it is non-empty.
	Title string `json:"title"`

	// Category holds zero or more marker glyphs assigned by the classifier.
	Category string `json:"category"`

	// TypeTag is the concatenated bracket suffix, e.g. "[配信]". Empty when
	// the item carried no brackets.
	TypeTag string `json:"typeTag"`

	// RawText is the unmodified source item text, kept for diagnostics and
	// embedded in the remote entry description.
	RawText string `json:"rawText"`

	// SourceLink is the reference URL resolved from the item's bracket
	// contents, or the configured fallback URL.
	SourceLink string `json:"sourceLink"`
}

// Start returns the record's start instant in loc.
func (r EventRecord) Start(loc *time.Location) time.Time {
	return time.Date(r.Year, time.Month(r.Month), r.Day, r.Hour, r.Minute, 0, 0, loc)
}

// Sort orders records by (year, month, day, hour, minute), keeping the
// extraction order for items that share a start. Repeated runs over the same
// markup therefore produce an identically ordered list.
func Sort(records []EventRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.Hour != b.Hour {
			return a.Hour < b.Hour
		}
		return a.Minute < b.Minute
	})
}

// RemoteEntry mirrors one entry of the remote calendar collection. Entries
// are owned by the remote store; the core only ever creates and deletes
// them, never mutates one in place.
type RemoteEntry struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	AllDay      bool
}
