package usecase

import (
	"context"
	"fmt"

	"github.com/montanaflynn/stats"
	"github.com/sirupsen/logrus"

	"github.com/naka-gawa/repo-insights/internal/gateway"
)

// MetricSummary describes one metric's distribution across the dataset.
type MetricSummary struct {
	Total  int     `json:"total"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
}

// Summary is a statistical digest of the stored dataset.
type Summary struct {
	Days           int           `json:"days"`
	FirstDate      string        `json:"first_date"`
	LastDate       string        `json:"last_date"`
	Stargazers     int           `json:"stargazers"`
	Commits        int           `json:"commits"`
	Contributors   int           `json:"contributors"`
	TrafficViews   MetricSummary `json:"traffic_views"`
	TrafficUniques MetricSummary `json:"traffic_uniques"`
	ClonesCount    MetricSummary `json:"clones_count"`
	ClonesUniques  MetricSummary `json:"clones_uniques"`
}

// Summarizer reports on a collected dataset without mutating it.
type Summarizer struct {
	store  gateway.Store
	cfg    Config
	logger *logrus.Entry
}

// NewSummarizer creates a new Summarizer instance.
func NewSummarizer(store gateway.Store, cfg Config, logger *logrus.Entry) *Summarizer {
	return &Summarizer{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Summarize loads the dataset from the storage branch and computes
// per-metric distributions. The totals (stargazers, commits, contributors)
// come from the most recent record.
func (s *Summarizer) Summarize(ctx context.Context) (*Summary, error) {
	loc := s.cfg.Location()
	ds, count, err := loadDataset(ctx, s.store, loc, s.cfg.Format, s.logger)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("no dataset at %s on branch %s", loc.Path, loc.Branch)
	}

	views := make([]float64, count)
	viewUniques := make([]float64, count)
	clones := make([]float64, count)
	cloneUniques := make([]float64, count)
	for i, r := range ds {
		views[i] = float64(r.TrafficViews)
		viewUniques[i] = float64(r.TrafficUniques)
		clones[i] = float64(r.ClonesCount)
		cloneUniques[i] = float64(r.ClonesUniques)
	}

	summary := &Summary{
		Days:         count,
		FirstDate:    ds[0].Date,
		LastDate:     ds[count-1].Date,
		Stargazers:   ds[count-1].Stargazers,
		Commits:      ds[count-1].Commits,
		Contributors: ds[count-1].Contributors,
	}
	for _, m := range []struct {
		data []float64
		out  *MetricSummary
	}{
		{views, &summary.TrafficViews},
		{viewUniques, &summary.TrafficUniques},
		{clones, &summary.ClonesCount},
		{cloneUniques, &summary.ClonesUniques},
	} {
		if err := summarize(m.data, m.out); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

func summarize(data []float64, out *MetricSummary) error {
	total, err := stats.Sum(data)
	if err != nil {
		return fmt.Errorf("failed to summarize metric: %w", err)
	}
	mean, err := stats.Mean(data)
	if err != nil {
		return fmt.Errorf("failed to summarize metric: %w", err)
	}
	median, err := stats.Median(data)
	if err != nil {
		return fmt.Errorf("failed to summarize metric: %w", err)
	}
	p90, err := stats.Percentile(data, 90)
	if err != nil {
		return fmt.Errorf("failed to summarize metric: %w", err)
	}
	max, err := stats.Max(data)
	if err != nil {
		return fmt.Errorf("failed to summarize metric: %w", err)
	}
	out.Total = int(total)
	out.Mean = mean
	out.Median = median
	out.P90 = p90
	out.Max = max
	return nil
}
