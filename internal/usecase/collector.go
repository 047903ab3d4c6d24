// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/naka-gawa/github-mining/internal/apierr"
	"github.com/naka-gawa/github-mining/internal/domain"
	"github.com/naka-gawa/github-mining/internal/gateway"
	"github.com/naka-gawa/github-mining/internal/pagination"
	"github.com/naka-gawa/github-mining/internal/retry"
	"github.com/rs/zerolog"
)

const (
	restPageSize    = 100
	graphQLPageSize = 50
)

// Collector is the use case for mining repositories and pull requests.
// It drives the gateway through the pagination core.
type Collector struct {
	fetcher  gateway.Fetcher
	retry    retry.Policy
	throttle *pagination.Throttle
	logger   zerolog.Logger
	now      func() time.Time
}

// NewCollector creates a new Collector instance.
func NewCollector(fetcher gateway.Fetcher, policy retry.Policy, throttle *pagination.Throttle, logger zerolog.Logger) *Collector {
	return &Collector{
		fetcher:  fetcher,
		retry:    policy,
		throttle: throttle,
		logger:   logger.With().Str("component", "collector").Logger(),
		now:      time.Now,
	}
}

func options[T any](c *Collector, name string) pagination.Options[T] {
	return pagination.Options[T]{
		Name:     name,
		Retry:    c.retry,
		Throttle: c.throttle,
		Logger:   c.logger,
	}
}

// SearchOptions bounds a repository search.
type SearchOptions struct {
	Query domain.SearchQuery

	// MaxResults is clamped to [1, 1000].
	MaxResults int
	PageSize   int
}

// SearchRepositories collects up to MaxResults repositories matching the
// query, in the order the API returns them.
func (c *Collector) SearchRepositories(ctx context.Context, opts SearchOptions) ([]domain.Repository, error) {
	maxResults := min(max(opts.MaxResults, 1), gateway.SearchResultCeiling)
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > restPageSize {
		pageSize = restPageSize
	}
	c.logger.Info().Str("query", opts.Query.Query).Int("max", maxResults).Msg("Searching repositories")

	src := pagination.SourceFunc[domain.Repository](func(ctx context.Context, req pagination.Request) (pagination.Page[domain.Repository], error) {
		return c.fetcher.SearchRepositories(ctx, opts.Query, req)
	})
	po := options[domain.Repository](c, "search_repositories")
	po.Start = pagination.PageNumber(1)
	po.PageSize = pageSize
	po.MaxItems = maxResults
	po.Ceiling = gateway.SearchResultCeiling

	repos, err := pagination.Collect(ctx, src, po)
	if err != nil {
		return nil, fmt.Errorf("failed to search repositories: %w", err)
	}
	c.logger.Info().Int("repositories", len(repos)).Msg("Repository search complete")
	return repos, nil
}

// TopRepositories collects the count most starred repositories written in
// language, ranked from 1, with their release count and age.
func (c *Collector) TopRepositories(ctx context.Context, language string, count int) ([]domain.TopRepository, error) {
	count = min(max(count, 1), gateway.SearchResultCeiling)
	q := domain.SearchQuery{Query: "language:" + language, Sort: "stars", Order: "desc"}
	c.logger.Info().Str("language", language).Int("count", count).Msg("Collecting top repositories")

	src := pagination.SourceFunc[domain.Repository](func(ctx context.Context, req pagination.Request) (pagination.Page[domain.Repository], error) {
		return c.fetcher.SearchRepositories(ctx, q, req)
	})
	po := options[domain.Repository](c, "top_repositories")
	po.Start = pagination.PageNumber(1)
	po.PageSize = restPageSize
	po.MaxItems = count
	po.Ceiling = gateway.SearchResultCeiling

	now := c.now()
	top := make([]domain.TopRepository, 0, count)
	err := pagination.Walk(ctx, src, po, func(repos []domain.Repository) error {
		for _, r := range repos {
			releases, err := c.countReleases(ctx, r.FullName)
			if err != nil {
				return err
			}
			top = append(top, domain.TopRepository{
				Rank:          len(top) + 1,
				Repository:    r,
				ReleasesCount: releases,
				AgeYears:      domain.AgeYears(r.CreatedAt, now),
			})
		}
		c.logger.Info().Int("collected", len(top)).Int("target", count).Msg("Top repositories progress")
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect top repositories: %w", err)
	}
	return top, nil
}

func (c *Collector) countReleases(ctx context.Context, fullName string) (int, error) {
	if err := c.throttle.Wait(ctx); err != nil {
		return 0, err
	}
	var n int
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		n, err = c.fetcher.CountReleases(ctx, fullName)
		return err
	})
	c.throttle.Done()
	if err != nil {
		if missingReleases(err) {
			c.logger.Warn().Err(err).Str("repo", fullName).Msg("Releases unavailable, counting none")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count releases of %s: %w", fullName, err)
	}
	return n, nil
}

// missingReleases reports whether err means the releases of one repository
// cannot be read, as opposed to a failure of the whole run.
func missingReleases(err error) bool {
	if apierr.KindOf(err) != apierr.KindFatal {
		return false
	}
	switch apierr.StatusOf(err) {
	case http.StatusForbidden, http.StatusNotFound, http.StatusUnavailableForLegalReasons:
		return true
	}
	return false
}

// SelectOptions configures repository selection.
type SelectOptions struct {
	Query    string
	Target   int
	MinPRs   int
	PageSize int
}

// DefaultSelectOptions returns the selection used to build the pull
// request study: 200 non-fork, non-archived repositories with at least 100
// merged or closed pull requests, from the most starred.
func DefaultSelectOptions() SelectOptions {
	return SelectOptions{
		Query:    "stars:>1 sort:stars-desc",
		Target:   200,
		MinPRs:   100,
		PageSize: graphQLPageSize,
	}
}

// SelectRepositories collects up to Target candidates passing the
// selection filters, sorted by stars, highest first.
func (c *Collector) SelectRepositories(ctx context.Context, opts SelectOptions) ([]domain.Candidate, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = graphQLPageSize
	}
	c.logger.Info().Str("query", opts.Query).Int("target", opts.Target).Int("min_prs", opts.MinPRs).Msg("Selecting repositories")

	src := pagination.SourceFunc[domain.Candidate](func(ctx context.Context, req pagination.Request) (pagination.Page[domain.Candidate], error) {
		return c.fetcher.SearchCandidates(ctx, opts.Query, req)
	})
	po := options[domain.Candidate](c, "select_repositories")
	po.PageSize = opts.PageSize
	po.MaxItems = opts.Target
	po.Ceiling = gateway.SearchResultCeiling
	po.Filter = func(r domain.Candidate) bool {
		return !r.IsFork && !r.IsArchived && r.ClosedPRs >= opts.MinPRs
	}

	selected, err := pagination.Collect(ctx, src, po)
	if err != nil {
		return nil, fmt.Errorf("failed to select repositories: %w", err)
	}
	sort.SliceStable(selected, func(i, j int) bool { return selected[i].Stars > selected[j].Stars })
	c.logger.Info().Int("selected", len(selected)).Msg("Repository selection complete")
	return selected, nil
}

// RepositoryRef names a repository by owner and name.
type RepositoryRef struct {
	Owner string
	Name  string
}

// PullRequestOptions configures pull request collection.
type PullRequestOptions struct {
	// MaxPerRepo bounds kept pull requests per repository. 0 is unlimited.
	MaxPerRepo int
	MinReviews int
	MinHours   float64
	PageSize   int
}

// DefaultPullRequestOptions keeps reviewed pull requests that took at
// least an hour to merge or close.
func DefaultPullRequestOptions() PullRequestOptions {
	return PullRequestOptions{MinReviews: 1, MinHours: 1, PageSize: graphQLPageSize}
}

// Eligible reports whether pr passes the review activity filters.
func (o PullRequestOptions) Eligible(pr domain.PullRequest) bool {
	if pr.Reviews < o.MinReviews {
		return false
	}
	if _, finished := pr.FinishedAt(); !finished {
		return false
	}
	return pr.ReviewHours() >= o.MinHours
}

// CollectPullRequests collects the eligible pull requests of every
// repository, in repository order. Any failure aborts the whole run.
func (c *Collector) CollectPullRequests(ctx context.Context, repos []RepositoryRef, opts PullRequestOptions) ([]domain.PullRequest, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = graphQLPageSize
	}

	all := make([]domain.PullRequest, 0)
	for i, repo := range repos {
		src := pagination.SourceFunc[domain.PullRequest](func(ctx context.Context, req pagination.Request) (pagination.Page[domain.PullRequest], error) {
			return c.fetcher.PullRequests(ctx, repo.Owner, repo.Name, req)
		})
		po := options[domain.PullRequest](c, "pull_requests")
		po.PageSize = opts.PageSize
		po.MaxItems = opts.MaxPerRepo
		po.Filter = opts.Eligible

		prs, err := pagination.Collect(ctx, src, po)
		if err != nil {
			return nil, fmt.Errorf("failed to collect pull requests of %s/%s: %w", repo.Owner, repo.Name, err)
		}
		all = append(all, prs...)
		c.logger.Info().
			Str("repo", repo.Owner+"/"+repo.Name).
			Int("pull_requests", len(prs)).
			Int("done", i+1).
			Int("total", len(repos)).
			Msg("Collected pull requests")
	}
	return all, nil
}
