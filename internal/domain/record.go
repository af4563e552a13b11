// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"errors"
	"fmt"
	"path"
	"time"
)

// ErrUnsupportedFormat reports a configured serialization format outside the
// two supported variants. It aborts the run before any remote mutation.
var ErrUnsupportedFormat = errors.New("unsupported dataset format")

// DateLayout is the calendar-date format used as the dataset key.
const DateLayout = "2006-01-02"

// Record holds one calendar day of activity metrics for a single repository.
// It is the core domain entity of this application; Date is its natural key.
type Record struct {
	Date           string `json:"date"`
	Stargazers     int    `json:"stargazers"`
	Commits        int    `json:"commits"`
	Contributors   int    `json:"contributors"`
	TrafficViews   int    `json:"traffic_views"`
	TrafficUniques int    `json:"traffic_uniques"`
	ClonesCount    int    `json:"clones_count"`
	ClonesUniques  int    `json:"clones_uniques"`
}

// Dataset is the ordered collection of Records for one tracked repository.
// Insertion order is preserved; Upsert is the only mutation path.
type Dataset []Record

// Upsert returns the dataset with r inserted or replaced, keyed by date.
// An existing record with the same date is replaced at its original index;
// otherwise r is appended. The receiver is not modified.
func (d Dataset) Upsert(r Record) Dataset {
	out := make(Dataset, len(d))
	copy(out, d)
	for i := range out {
		if out[i].Date == r.Date {
			out[i] = r
			return out
		}
	}
	return append(out, r)
}

// Format selects how a Dataset is serialized.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a user-supplied format string.
// Anything other than the two supported formats is rejected.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatCSV:
		return Format(s), nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrUnsupportedFormat)
	}
}

// Ext returns the file extension for the format.
func (f Format) Ext() string {
	return string(f)
}

// Location identifies exactly one dataset file in exactly one branch.
type Location struct {
	Branch string
	Path   string
}

// NewLocation composes the storage location for a tracked repository:
// <dir>/<owner>/<repo>/stats.<ext> on the given branch. Git tree paths
// always use forward slashes.
func NewLocation(branch, dir, owner, repo string, format Format) Location {
	return Location{
		Branch: branch,
		Path:   path.Join(dir, owner, repo, "stats."+format.Ext()),
	}
}

// Day returns the ISO date string for a day `offset` days before t.
func Day(t time.Time, offset int) string {
	return t.AddDate(0, 0, -offset).Format(DateLayout)
}
