// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/repo-insights/internal/codec"
	"github.com/naka-gawa/repo-insights/internal/domain"
	"github.com/naka-gawa/repo-insights/internal/gateway"
)

// backfillWindow is the minimum number of most-recent calendar days that
// must be represented before the normal single-day update runs.
const backfillWindow = 14

// Config carries the run configuration, threaded through explicitly at
// construction time.
type Config struct {
	Owner  string // tracked repository owner
	Repo   string // tracked repository name
	Branch string
	Dir    string
	Format domain.Format
}

// Location resolves the dataset's storage location for this configuration.
func (c Config) Location() domain.Location {
	return domain.NewLocation(c.Branch, c.Dir, c.Owner, c.Repo, c.Format)
}

// Result is the outcome of one collection run, exposed for downstream
// consumption by the host runner.
type Result struct {
	Date           string `json:"date"`
	Stargazers     int    `json:"stargazers"`
	Commits        int    `json:"commits"`
	Contributors   int    `json:"contributors"`
	TrafficViews   int    `json:"traffic_views"`
	TrafficUniques int    `json:"traffic_uniques"`
	ClonesCount    int    `json:"clones_count"`
	ClonesUniques  int    `json:"clones_uniques"`
	Records        int    `json:"records"`
	CommitSHA      string `json:"commit_sha"`
	File           string `json:"file"`
}

// Collector is the use case that sequences one collection run:
// ensure branch, load dataset, backfill if thin, collect yesterday's
// metrics, upsert, publish.
type Collector struct {
	fetcher gateway.MetricsFetcher
	store   gateway.Store
	cfg     Config
	logger  *logrus.Entry
	now     func() time.Time
}

// NewCollector creates a new Collector instance.
func NewCollector(fetcher gateway.MetricsFetcher, store gateway.Store, cfg Config, logger *logrus.Entry) *Collector {
	return &Collector{
		fetcher: fetcher,
		store:   store,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Run performs the main business logic. Steps are strictly sequential
// (each depends on the previous one's output); only the independent
// per-date traffic and clone reads run concurrently. Any failure aborts
// the remaining pipeline — the branch is only mutated in the final
// publish step, so no partial remote state needs rolling back.
func (c *Collector) Run(ctx context.Context) (*Result, error) {
	loc := c.cfg.Location()

	if err := c.store.EnsureBranch(ctx, loc.Branch); err != nil {
		return nil, err
	}

	ds, count, err := loadDataset(ctx, c.store, loc, c.cfg.Format, c.logger)
	if err != nil {
		return nil, err
	}

	today := c.now().UTC()

	// Backfill is all-or-nothing on the record-count threshold: it fills
	// the fixed most-recent window, not gaps inside a longer history.
	// Yesterday (offset 1) is excluded because the normal update below
	// covers it unconditionally.
	if count < backfillWindow {
		c.logger.WithField("records", count).Info("dataset is thin, backfilling recent history")
		for offset := backfillWindow; offset >= 2; offset-- {
			rec, err := c.collectDay(ctx, domain.Day(today, offset))
			if err != nil {
				return nil, err
			}
			ds = ds.Upsert(rec)
		}
	}

	rec, err := c.collectDay(ctx, domain.Day(today, 1))
	if err != nil {
		return nil, err
	}
	ds = ds.Upsert(rec)

	content, err := codec.Encode(ds, c.cfg.Format)
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("Update insights for %s/%s", c.cfg.Owner, c.cfg.Repo)
	sha, err := c.store.Publish(ctx, loc.Branch, loc.Path, content, message)
	if err != nil {
		return nil, err
	}

	return &Result{
		Date:           rec.Date,
		Stargazers:     rec.Stargazers,
		Commits:        rec.Commits,
		Contributors:   rec.Contributors,
		TrafficViews:   rec.TrafficViews,
		TrafficUniques: rec.TrafficUniques,
		ClonesCount:    rec.ClonesCount,
		ClonesUniques:  rec.ClonesUniques,
		Records:        len(ds),
		CommitSHA:      sha,
		File:           loc.Path,
	}, nil
}

// collectDay gathers one calendar day's record: repository totals first,
// then the date's traffic and clone counts concurrently.
func (c *Collector) collectDay(ctx context.Context, date string) (domain.Record, error) {
	c.logger.WithField("date", date).Debug("collecting metrics")

	totals, err := c.fetcher.FetchRepoTotals(ctx, c.cfg.Owner, c.cfg.Repo)
	if err != nil {
		return domain.Record{}, err
	}

	var traffic, clones gateway.DailyCount
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		var err error
		traffic, err = c.fetcher.FetchDailyTraffic(egCtx, c.cfg.Owner, c.cfg.Repo, date)
		return err
	})

	eg.Go(func() error {
		var err error
		clones, err = c.fetcher.FetchDailyClones(egCtx, c.cfg.Owner, c.cfg.Repo, date)
		return err
	})

	if err := eg.Wait(); err != nil {
		return domain.Record{}, err
	}

	return domain.Record{
		Date:           date,
		Stargazers:     totals.Stargazers,
		Commits:        totals.Commits,
		Contributors:   totals.Contributors,
		TrafficViews:   traffic.Count,
		TrafficUniques: traffic.Uniques,
		ClonesCount:    clones.Count,
		ClonesUniques:  clones.Uniques,
	}, nil
}

// loadDataset reads and decodes the dataset at loc. A missing file (or a
// branch with no dataset yet) is not an error: it yields an empty dataset
// and a zero record count.
func loadDataset(ctx context.Context, store gateway.Store, loc domain.Location, format domain.Format, logger *logrus.Entry) (domain.Dataset, int, error) {
	raw, err := store.ReadFile(ctx, loc.Branch, loc.Path)
	if errors.Is(err, gateway.ErrFileNotFound) {
		logger.WithField("path", loc.Path).Info("no dataset file yet, starting empty")
		return domain.Dataset{}, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	ds, err := codec.Decode(raw, format)
	if err != nil {
		return nil, 0, err
	}
	return ds, len(ds), nil
}
