// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v62/github"
	"github.com/naka-gawa/github-mining/internal/apierr"
	"github.com/naka-gawa/github-mining/internal/domain"
	"github.com/naka-gawa/github-mining/internal/pagination"
	"github.com/rs/zerolog"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

const (
	// DefaultAPIURL is the base URL of the public REST API.
	DefaultAPIURL = "https://api.github.com/"

	// DefaultGraphQLURL is the endpoint of the public GraphQL API.
	DefaultGraphQLURL = "https://api.github.com/graphql"

	// SearchResultCeiling is the maximum number of results GitHub serves
	// for a single search query.
	SearchResultCeiling = 1000
)

// Config holds everything needed to reach the GitHub API. It is built by
// the command line layer and passed in explicitly.
type Config struct {
	Token      string
	APIURL     string
	GraphQLURL string
	Timeout    time.Duration

	// SecondarySleepLimit bounds a single sleep on a secondary rate limit.
	SecondarySleepLimit time.Duration
}

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
// Every method fetches exactly one page.
type Fetcher interface {
	SearchRepositories(ctx context.Context, q domain.SearchQuery, req pagination.Request) (pagination.Page[domain.Repository], error)
	CountReleases(ctx context.Context, fullName string) (int, error)
	SearchCandidates(ctx context.Context, query string, req pagination.Request) (pagination.Page[domain.Candidate], error)
	PullRequests(ctx context.Context, owner, name string, req pagination.Request) (pagination.Page[domain.PullRequest], error)
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	rates         *rateRecorder
	logger        zerolog.Logger
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
// It fails with a configuration error, before any request, when no token is set.
func NewGitHubGateway(cfg Config, logger zerolog.Logger) (*GitHubGateway, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, apierr.Configuration(apierr.ErrMissingCredential)
	}
	if cfg.SecondarySleepLimit <= 0 {
		cfg.SecondarySleepLimit = time.Hour
	}
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(cfg.SecondarySleepLimit, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	return newGitHubGateway(rateLimitWaiter, cfg, logger)
}

func newGitHubGateway(base http.RoundTripper, cfg Config, logger zerolog.Logger) (*GitHubGateway, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, apierr.Configuration(apierr.ErrMissingCredential)
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.GraphQLURL == "" {
		cfg.GraphQLURL = DefaultGraphQLURL
	}

	rates := &rateRecorder{}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &oauth2.Transport{
			Source: ts,
			Base:   &classifyingTransport{base: base, rates: rates, logger: logger},
		},
	}

	restClient := github.NewClient(httpClient)
	if cfg.APIURL != DefaultAPIURL {
		baseURL, err := url.Parse(strings.TrimSuffix(cfg.APIURL, "/") + "/")
		if err != nil {
			return nil, apierr.Configuration(fmt.Errorf("invalid API URL %q: %w", cfg.APIURL, err))
		}
		restClient.BaseURL = baseURL
	}

	var graphqlClient *githubv4.Client
	if cfg.GraphQLURL == DefaultGraphQLURL {
		graphqlClient = githubv4.NewClient(httpClient)
	} else {
		graphqlClient = githubv4.NewEnterpriseClient(cfg.GraphQLURL, httpClient)
	}

	return &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		rates:         rates,
		logger:        logger.With().Str("component", "gateway").Logger(),
	}, nil
}
