package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-github/v62/github"
	"github.com/naka-gawa/github-mining/internal/apierr"
	"github.com/naka-gawa/github-mining/internal/domain"
	"github.com/naka-gawa/github-mining/internal/pagination"
)

// SearchRepositories fetches one page of the REST repository search.
// Cursors are page numbers; Token("") requests the first page.
func (g *GitHubGateway) SearchRepositories(ctx context.Context, q domain.SearchQuery, req pagination.Request) (pagination.Page[domain.Repository], error) {
	page, err := pageNumber(req.Cursor)
	if err != nil {
		return pagination.Page[domain.Repository]{}, err
	}
	opts := &github.SearchOptions{
		Sort:        q.Sort,
		Order:       q.Order,
		ListOptions: github.ListOptions{Page: page, PerPage: req.PageSize},
	}

	result, resp, err := g.restClient.Search.Repositories(ctx, q.Query, opts)
	if err != nil {
		return pagination.Page[domain.Repository]{}, fmt.Errorf("failed to search repositories with REST API: %w", classifyRESTError(err))
	}

	items := make([]domain.Repository, 0, len(result.Repositories))
	for _, r := range result.Repositories {
		items = append(items, flattenRepository(r))
	}
	g.logger.Debug().
		Int("page", page).
		Int("items", len(items)).
		Int("total", result.GetTotal()).
		Bool("incomplete", result.GetIncompleteResults()).
		Msg("Fetched repository search page")

	out := pagination.Page[domain.Repository]{Items: items, RateLimit: restRate(resp)}
	if resp.NextPage != 0 {
		out.Next = pagination.PageNumber(resp.NextPage)
	}
	return out, nil
}

// CountReleases returns the number of releases of fullName ("owner/name").
// It requests one release per page and reads the count from the last page
// link, falling back to the length of the single page.
func (g *GitHubGateway) CountReleases(ctx context.Context, fullName string) (int, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" {
		return 0, apierr.Fatal(0, fmt.Sprintf("invalid repository name %q", fullName))
	}

	releases, resp, err := g.restClient.Repositories.ListReleases(ctx, owner, name, &github.ListOptions{PerPage: 1})
	if err != nil {
		return 0, fmt.Errorf("failed to list releases of %s: %w", fullName, classifyRESTError(err))
	}
	if resp.LastPage > 0 {
		return resp.LastPage, nil
	}
	return len(releases), nil
}

func pageNumber(c pagination.Cursor) (int, error) {
	switch v := c.(type) {
	case nil:
		return 1, nil
	case pagination.PageNumber:
		if v < 1 {
			return 1, nil
		}
		return int(v), nil
	case pagination.Token:
		if v == "" {
			return 1, nil
		}
	}
	return 0, apierr.Fatal(0, fmt.Sprintf("unsupported cursor %s for REST pagination", c))
}

func restRate(resp *github.Response) pagination.RateLimit {
	if resp == nil || resp.Rate.Reset.IsZero() {
		return pagination.RateLimit{}
	}
	return pagination.RateLimit{Remaining: resp.Rate.Remaining, ResetAt: resp.Rate.Reset.Time}
}

// classifyRESTError maps go-github's own rate limit errors, raised without
// a round trip, onto the shared classification. Errors already classified
// by the transport pass through.
func classifyRESTError(err error) error {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		return err
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		e := apierr.Transient(403, rateErr.Message)
		e.ResetAt = rateErr.Rate.Reset.Time
		e.Err = err
		return e
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		e := apierr.Transient(403, abuseErr.Message)
		e.Err = err
		return e
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &apierr.Error{Kind: apierr.KindFatal, Message: "malformed response", Err: err}
}

func flattenRepository(r *github.Repository) domain.Repository {
	return domain.Repository{
		ID:               r.GetID(),
		Name:             r.GetName(),
		FullName:         r.GetFullName(),
		OwnerLogin:       r.GetOwner().GetLogin(),
		OwnerType:        r.GetOwner().GetType(),
		HTMLURL:          r.GetHTMLURL(),
		Description:      strings.TrimSpace(strings.ReplaceAll(r.GetDescription(), "\n", " ")),
		Homepage:         r.GetHomepage(),
		Language:         r.GetLanguage(),
		Topics:           r.Topics,
		LicenseKey:       r.GetLicense().GetKey(),
		LicenseName:      r.GetLicense().GetName(),
		LicenseSPDX:      r.GetLicense().GetSPDXID(),
		DefaultBranch:    r.GetDefaultBranch(),
		CreatedAt:        r.GetCreatedAt().Time,
		UpdatedAt:        r.GetUpdatedAt().Time,
		PushedAt:         r.GetPushedAt().Time,
		SizeKB:           r.GetSize(),
		StargazersCount:  r.GetStargazersCount(),
		ForksCount:       r.GetForksCount(),
		OpenIssuesCount:  r.GetOpenIssuesCount(),
		WatchersCount:    r.GetWatchersCount(),
		HasIssues:        r.GetHasIssues(),
		HasWiki:          r.GetHasWiki(),
		HasPages:         r.GetHasPages(),
		IsTemplate:       r.GetIsTemplate(),
		Archived:         r.GetArchived(),
		Disabled:         r.GetDisabled(),
		Visibility:       r.GetVisibility(),
		AllowForking:     r.GetAllowForking(),
		NetworkCount:     r.GetNetworkCount(),
		SubscribersCount: r.GetSubscribersCount(),
	}
}
