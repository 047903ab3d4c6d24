package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/naka-gawa/github-mining/internal/apierr"
	"github.com/naka-gawa/github-mining/internal/domain"
	"github.com/naka-gawa/github-mining/internal/pagination"
	"github.com/shurcooL/githubv4"
)

// maxGraphQLPageSize is the largest "first" argument a connection accepts.
const maxGraphQLPageSize = 100

type pageInfo struct {
	HasNextPage bool
	EndCursor   string
}

type rateLimitInfo struct {
	Remaining int
	ResetAt   githubv4.DateTime
}

// candidateNode is the subset of Repository fields used for selection.
type candidateNode struct {
	Name           string
	NameWithOwner  string
	Owner          struct{ Login string }
	URL            string
	StargazerCount int
	ForkCount      int
	Issues         struct{ TotalCount int } `graphql:"issues(states: OPEN)"`
	PullRequests   struct{ TotalCount int } `graphql:"pullRequests(states: [MERGED, CLOSED])"`
	IsFork         bool
	IsArchived     bool
}

type searchCandidatesQuery struct {
	Search struct {
		PageInfo pageInfo
		Nodes    []struct {
			Repository candidateNode `graphql:"... on Repository"`
		}
	} `graphql:"search(query: $query, type: REPOSITORY, first: $first, after: $cursor)"`
	RateLimit rateLimitInfo
}

type pullRequestNode struct {
	Number       int
	URL          string
	State        githubv4.PullRequestState
	CreatedAt    githubv4.DateTime
	ClosedAt     *githubv4.DateTime
	MergedAt     *githubv4.DateTime
	ChangedFiles int
	Additions    int
	Deletions    int
	BodyText     string
	Participants struct{ TotalCount int }
	Comments     struct{ TotalCount int }
	Reviews      struct{ TotalCount int }
}

type pullRequestsQuery struct {
	Repository struct {
		NameWithOwner string
		PullRequests  struct {
			PageInfo pageInfo
			Nodes    []pullRequestNode
		} `graphql:"pullRequests(states: [MERGED, CLOSED], first: $first, after: $cursor, orderBy: {field: UPDATED_AT, direction: DESC})"`
	} `graphql:"repository(owner: $owner, name: $name)"`
	RateLimit rateLimitInfo
}

// SearchCandidates fetches one page of the GraphQL repository search.
// Non-repository nodes are skipped.
func (g *GitHubGateway) SearchCandidates(ctx context.Context, query string, req pagination.Request) (pagination.Page[domain.Candidate], error) {
	cursor, err := tokenVariable(req.Cursor)
	if err != nil {
		return pagination.Page[domain.Candidate]{}, err
	}
	variables := map[string]interface{}{
		"query":  githubv4.String(query),
		"first":  githubv4.Int(graphQLPageSize(req.PageSize)),
		"cursor": cursor,
	}

	var q searchCandidatesQuery
	if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
		return pagination.Page[domain.Candidate]{}, fmt.Errorf("failed to execute GraphQL query for candidates: %w", g.classifyGraphQLError(err))
	}

	items := make([]domain.Candidate, 0, len(q.Search.Nodes))
	for _, node := range q.Search.Nodes {
		r := node.Repository
		if r.NameWithOwner == "" {
			continue
		}
		items = append(items, domain.Candidate{
			Owner:      r.Owner.Login,
			Name:       r.Name,
			FullName:   r.NameWithOwner,
			URL:        r.URL,
			Stars:      r.StargazerCount,
			Forks:      r.ForkCount,
			OpenIssues: r.Issues.TotalCount,
			ClosedPRs:  r.PullRequests.TotalCount,
			IsFork:     r.IsFork,
			IsArchived: r.IsArchived,
		})
	}
	g.logger.Debug().Int("items", len(items)).Bool("has_next", q.Search.PageInfo.HasNextPage).Msg("Fetched candidate search page")

	return pagination.Page[domain.Candidate]{
		Items:     items,
		Next:      nextToken(q.Search.PageInfo),
		RateLimit: graphQLRate(q.RateLimit),
	}, nil
}

// PullRequests fetches one page of merged and closed pull requests of
// owner/name, most recently updated first.
func (g *GitHubGateway) PullRequests(ctx context.Context, owner, name string, req pagination.Request) (pagination.Page[domain.PullRequest], error) {
	cursor, err := tokenVariable(req.Cursor)
	if err != nil {
		return pagination.Page[domain.PullRequest]{}, err
	}
	variables := map[string]interface{}{
		"owner":  githubv4.String(owner),
		"name":   githubv4.String(name),
		"first":  githubv4.Int(graphQLPageSize(req.PageSize)),
		"cursor": cursor,
	}

	var q pullRequestsQuery
	if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
		return pagination.Page[domain.PullRequest]{}, fmt.Errorf("failed to execute GraphQL query for pull requests of %s/%s: %w", owner, name, g.classifyGraphQLError(err))
	}
	repo := q.Repository
	if repo.NameWithOwner == "" {
		return pagination.Page[domain.PullRequest]{}, apierr.Fatal(0, fmt.Sprintf("repository %s/%s not found", owner, name))
	}

	items := make([]domain.PullRequest, 0, len(repo.PullRequests.Nodes))
	for _, n := range repo.PullRequests.Nodes {
		pr := domain.PullRequest{
			RepoFullName: repo.NameWithOwner,
			Number:       n.Number,
			URL:          n.URL,
			State:        string(n.State),
			CreatedAt:    n.CreatedAt.Time,
			ChangedFiles: n.ChangedFiles,
			Additions:    n.Additions,
			Deletions:    n.Deletions,
			DescLen:      utf8.RuneCountInString(n.BodyText),
			Participants: n.Participants.TotalCount,
			Comments:     n.Comments.TotalCount,
			Reviews:      n.Reviews.TotalCount,
		}
		if n.ClosedAt != nil {
			pr.ClosedAt = n.ClosedAt.Time
		}
		if n.MergedAt != nil {
			pr.MergedAt = n.MergedAt.Time
		}
		items = append(items, pr)
	}
	g.logger.Debug().
		Str("repo", repo.NameWithOwner).
		Int("items", len(items)).
		Bool("has_next", repo.PullRequests.PageInfo.HasNextPage).
		Msg("Fetched pull request page")

	return pagination.Page[domain.PullRequest]{
		Items:     items,
		Next:      nextToken(repo.PullRequests.PageInfo),
		RateLimit: graphQLRate(q.RateLimit),
	}, nil
}

// classifyGraphQLError passes transport errors through and classifies
// errors reported in the response body. GitHub reports an exhausted
// GraphQL budget with HTTP 200 and a "rate limit" message.
func (g *GitHubGateway) classifyGraphQLError(err error) error {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if strings.Contains(strings.ToLower(err.Error()), "rate limit") {
		e := apierr.Transient(0, "GraphQL rate limit exceeded")
		if last := g.rates.Last(); last.Exhausted() {
			e.ResetAt = last.ResetAt
		}
		e.Err = err
		return e
	}
	return &apierr.Error{Kind: apierr.KindFatal, Message: "GraphQL query failed", Err: err}
}

func tokenVariable(c pagination.Cursor) (*githubv4.String, error) {
	switch v := c.(type) {
	case nil:
		return nil, nil
	case pagination.Token:
		if v == "" {
			return nil, nil
		}
		return githubv4.NewString(githubv4.String(v)), nil
	}
	return nil, apierr.Fatal(0, fmt.Sprintf("unsupported cursor %s for GraphQL pagination", c))
}

func nextToken(p pageInfo) pagination.Cursor {
	if !p.HasNextPage || p.EndCursor == "" {
		return nil
	}
	return pagination.Token(p.EndCursor)
}

func graphQLPageSize(n int) int {
	if n > maxGraphQLPageSize {
		return maxGraphQLPageSize
	}
	return n
}

func graphQLRate(r rateLimitInfo) pagination.RateLimit {
	if r.ResetAt.IsZero() {
		return pagination.RateLimit{}
	}
	return pagination.RateLimit{Remaining: r.Remaining, ResetAt: r.ResetAt.Time}
}
