// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/repo-insights/internal/domain"
)

// RepoTotals holds the repository-wide counters collected for every record.
type RepoTotals struct {
	Stargazers   int
	Commits      int
	Contributors int
}

// DailyCount is one day's worth of traffic or clone activity.
type DailyCount struct {
	Count   int
	Uniques int
}

// MetricsFetcher defines the behavior of a gateway for fetching repository
// activity metrics from GitHub.
type MetricsFetcher interface {
	FetchRepoTotals(ctx context.Context, owner, repo string) (RepoTotals, error)
	// Daily breakdowns return {0, 0} when the date is absent from GitHub's
	// 14-day traffic retention window.
	FetchDailyTraffic(ctx context.Context, owner, repo, date string) (DailyCount, error)
	FetchDailyClones(ctx context.Context, owner, repo, date string) (DailyCount, error)
}

// GitHubGateway is the concrete implementation of the MetricsFetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *logrus.Entry
}

// repoTotalsQuery fetches the stargazer count and the default branch's
// commit history length in a single GraphQL round trip.
type repoTotalsQuery struct {
	Repository struct {
		StargazerCount   int
		DefaultBranchRef struct {
			Target struct {
				Commit struct {
					History struct {
						TotalCount int
					}
				} `graphql:"... on Commit"`
			}
		}
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// NewHTTPClient builds the authenticated HTTP client shared by the REST and
// GraphQL clients: a static token source layered over a transport that
// sleeps through GitHub's secondary rate limits.
func NewHTTPClient(token string) (*http.Client, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}, nil
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(httpClient *http.Client, logger *logrus.Entry) *GitHubGateway {
	return &GitHubGateway{
		restClient:    github.NewClient(httpClient),
		graphqlClient: githubv4.NewClient(httpClient),
		logger:        logger,
	}
}

// FetchRepoTotals collects the stargazer, commit and distinct-contributor
// counts. The GraphQL query and the contributor pagination are independent
// reads and run concurrently.
func (g *GitHubGateway) FetchRepoTotals(ctx context.Context, owner, repo string) (RepoTotals, error) {
	g.logger.Debug("fetching repository totals")

	var totals RepoTotals
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		var q repoTotalsQuery
		variables := map[string]interface{}{
			"owner": githubv4.String(owner),
			"name":  githubv4.String(repo),
		}
		if err := g.graphqlClient.Query(egCtx, &q, variables); err != nil {
			return fmt.Errorf("failed to execute GraphQL query for repository totals: %w", err)
		}
		totals.Stargazers = q.Repository.StargazerCount
		totals.Commits = q.Repository.DefaultBranchRef.Target.Commit.History.TotalCount
		return nil
	})

	eg.Go(func() error {
		n, err := g.countContributors(egCtx, owner, repo)
		if err != nil {
			return err
		}
		totals.Contributors = n
		return nil
	})

	if err := eg.Wait(); err != nil {
		return RepoTotals{}, err
	}
	g.logger.WithFields(logrus.Fields{
		"stargazers":   totals.Stargazers,
		"commits":      totals.Commits,
		"contributors": totals.Contributors,
	}).Debug("repository totals fetched")
	return totals, nil
}

func (g *GitHubGateway) countContributors(ctx context.Context, owner, repo string) (int, error) {
	opts := &github.ListContributorsOptions{
		Anon:        "true",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	count := 0
	for {
		contributors, resp, err := g.restClient.Repositories.ListContributors(ctx, owner, repo, opts)
		if err != nil {
			return 0, fmt.Errorf("failed to list contributors: %w", err)
		}
		count += len(contributors)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
		g.logger.Debug("fetching next page of contributors")
	}
	return count, nil
}

// FetchDailyTraffic returns the view count and uniques for a single day.
func (g *GitHubGateway) FetchDailyTraffic(ctx context.Context, owner, repo, date string) (DailyCount, error) {
	views, _, err := g.restClient.Repositories.ListTrafficViews(ctx, owner, repo, &github.TrafficBreakdownOptions{Per: "day"})
	if err != nil {
		return DailyCount{}, fmt.Errorf("failed to list traffic views: %w", err)
	}
	for _, v := range views.Views {
		if v.GetTimestamp().UTC().Format(domain.DateLayout) == date {
			return DailyCount{Count: v.GetCount(), Uniques: v.GetUniques()}, nil
		}
	}
	g.logger.WithField("date", date).Debug("no traffic views recorded, defaulting to zero")
	return DailyCount{}, nil
}

// FetchDailyClones returns the clone count and uniques for a single day.
func (g *GitHubGateway) FetchDailyClones(ctx context.Context, owner, repo, date string) (DailyCount, error) {
	clones, _, err := g.restClient.Repositories.ListTrafficClones(ctx, owner, repo, &github.TrafficBreakdownOptions{Per: "day"})
	if err != nil {
		return DailyCount{}, fmt.Errorf("failed to list traffic clones: %w", err)
	}
	for _, c := range clones.Clones {
		if c.GetTimestamp().UTC().Format(domain.DateLayout) == date {
			return DailyCount{Count: c.GetCount(), Uniques: c.GetUniques()}, nil
		}
	}
	g.logger.WithField("date", date).Debug("no clones recorded, defaulting to zero")
	return DailyCount{}, nil
}
