// Package codec serializes datasets to and from their persisted file
// formats, independent of where the bytes are stored.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/naka-gawa/repo-insights/internal/domain"
)

// ErrMalformedData reports an existing dataset file that is not valid for
// its declared format. The run aborts; no auto-repair is attempted.
var ErrMalformedData = errors.New("malformed dataset")

// Header is the fixed CSV header line. Columns serialize in this exact
// order regardless of internal representation.
const Header = "date,stargazers,commits,contributors,traffic_views,traffic_uniques,clones_count,clones_uniques"

// Encode serializes a dataset in the given format.
// JSON output is pretty-printed with 2-space indentation so dataset commits
// stay readable and diffable; an empty dataset encodes as "[]" (JSON) or a
// header-only file (CSV).
func Encode(ds domain.Dataset, format domain.Format) ([]byte, error) {
	switch format {
	case domain.FormatJSON:
		if ds == nil {
			ds = domain.Dataset{}
		}
		b, err := json.MarshalIndent(ds, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode dataset as JSON: %w", err)
		}
		return b, nil
	case domain.FormatCSV:
		var sb strings.Builder
		sb.WriteString(Header)
		sb.WriteByte('\n')
		for _, r := range ds {
			sb.WriteString(strings.Join([]string{
				r.Date,
				strconv.Itoa(r.Stargazers),
				strconv.Itoa(r.Commits),
				strconv.Itoa(r.Contributors),
				strconv.Itoa(r.TrafficViews),
				strconv.Itoa(r.TrafficUniques),
				strconv.Itoa(r.ClonesCount),
				strconv.Itoa(r.ClonesUniques),
			}, ","))
			sb.WriteByte('\n')
		}
		return []byte(sb.String()), nil
	default:
		return nil, fmt.Errorf("%q: %w", format, domain.ErrUnsupportedFormat)
	}
}

// Decode parses dataset bytes in the given format.
func Decode(b []byte, format domain.Format) (domain.Dataset, error) {
	switch format {
	case domain.FormatJSON:
		return decodeJSON(b)
	case domain.FormatCSV:
		return decodeCSV(b)
	default:
		return nil, fmt.Errorf("%q: %w", format, domain.ErrUnsupportedFormat)
	}
}

// jsonRecord mirrors domain.Record with pointer fields so that absent keys
// are distinguishable from zero values. Every key is required.
type jsonRecord struct {
	Date           *string `json:"date"`
	Stargazers     *int    `json:"stargazers"`
	Commits        *int    `json:"commits"`
	Contributors   *int    `json:"contributors"`
	TrafficViews   *int    `json:"traffic_views"`
	TrafficUniques *int    `json:"traffic_uniques"`
	ClonesCount    *int    `json:"clones_count"`
	ClonesUniques  *int    `json:"clones_uniques"`
}

func decodeJSON(b []byte) (domain.Dataset, error) {
	var raw []jsonRecord
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	ds := make(domain.Dataset, 0, len(raw))
	for i, r := range raw {
		if r.Date == nil || r.Stargazers == nil || r.Commits == nil || r.Contributors == nil ||
			r.TrafficViews == nil || r.TrafficUniques == nil || r.ClonesCount == nil || r.ClonesUniques == nil {
			return nil, fmt.Errorf("%w: record %d is missing required keys", ErrMalformedData, i)
		}
		ds = append(ds, domain.Record{
			Date:           *r.Date,
			Stargazers:     *r.Stargazers,
			Commits:        *r.Commits,
			Contributors:   *r.Contributors,
			TrafficViews:   *r.TrafficViews,
			TrafficUniques: *r.TrafficUniques,
			ClonesCount:    *r.ClonesCount,
			ClonesUniques:  *r.ClonesUniques,
		})
	}
	return ds, nil
}

// decodeCSV parses the header-plus-rows table variant. Blank lines are
// stripped; fields are plain integers or an ISO date, never quoted.
func decodeCSV(b []byte) (domain.Dataset, error) {
	lines := make([]string, 0)
	for _, line := range strings.Split(string(b), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return domain.Dataset{}, nil
	}
	if lines[0] != Header {
		return nil, fmt.Errorf("%w: unexpected CSV header %q", ErrMalformedData, lines[0])
	}
	ds := make(domain.Dataset, 0, len(lines)-1)
	for i, line := range lines[1:] {
		fields := strings.Split(line, ",")
		if len(fields) != 8 {
			return nil, fmt.Errorf("%w: row %d has %d fields, want 8", ErrMalformedData, i+1, len(fields))
		}
		nums := make([]int, 7)
		for j, f := range fields[1:] {
			n, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %d: %v", ErrMalformedData, i+1, j+2, err)
			}
			nums[j] = n
		}
		ds = append(ds, domain.Record{
			Date:           fields[0],
			Stargazers:     nums[0],
			Commits:        nums[1],
			Contributors:   nums[2],
			TrafficViews:   nums[3],
			TrafficUniques: nums[4],
			ClonesCount:    nums[5],
			ClonesUniques:  nums[6],
		})
	}
	return ds, nil
}
