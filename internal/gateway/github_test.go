package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/naka-gawa/github-mining/internal/apierr"
	"github.com/naka-gawa/github-mining/internal/domain"
	"github.com/naka-gawa/github-mining/internal/pagination"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token"

// setupTestGateway creates a GitHubGateway that communicates with a mock HTTP server.
func setupTestGateway(t *testing.T, handler http.Handler) (*GitHubGateway, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gateway, err := newGitHubGateway(http.DefaultTransport, Config{
		Token:      testToken,
		APIURL:     server.URL + "/",
		GraphQLURL: server.URL + "/graphql",
		Timeout:    5 * time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)
	return gateway, server
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

func decodeGraphQLRequest(t *testing.T, r *http.Request) graphQLRequest {
	t.Helper()
	var req graphQLRequest
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	return req
}

func TestNewGitHubGateway_MissingToken(t *testing.T) {
	_, err := NewGitHubGateway(Config{Token: "  "}, zerolog.Nop())

	require.Error(t, err)
	assert.ErrorIs(t, err, apierr.ErrMissingCredential)
	assert.Equal(t, apierr.KindConfiguration, apierr.KindOf(err))
}

func TestGitHubGateway_SearchRepositories(t *testing.T) {
	reset := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	testCases := []struct {
		name         string
		handlerFunc  func(w http.ResponseWriter, r *http.Request)
		expectedNext pagination.Cursor
		expectedKind apierr.Kind
		expectedMsg  string
		expectReset  bool
	}{
		{
			name: "happy path - page with a next link",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/search/repositories", r.URL.Path)
				assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
				assert.Equal(t, "stars:>10", r.URL.Query().Get("q"))
				assert.Equal(t, "stars", r.URL.Query().Get("sort"))
				assert.Equal(t, "desc", r.URL.Query().Get("order"))
				assert.Equal(t, "2", r.URL.Query().Get("page"))
				assert.Equal(t, "100", r.URL.Query().Get("per_page"))
				w.Header().Set("Link", fmt.Sprintf(`<http://%s/search/repositories?page=3>; rel="next"`, r.Host))
				w.Header().Set("X-RateLimit-Remaining", "29")
				w.Header().Set("X-RateLimit-Reset", fmt.Sprint(reset.Unix()))
				fmt.Fprint(w, `{"total_count": 1, "incomplete_results": false, "items": [{
					"id": 42, "name": "repo", "full_name": "octo/repo", "description": "line1\nline2  ",
					"owner": {"login": "octo", "type": "Organization"},
					"topics": ["go", "cli"], "license": {"key": "mit", "name": "MIT License", "spdx_id": "MIT"},
					"created_at": "2020-01-02T03:04:05Z", "stargazers_count": 1200, "has_issues": true
				}]}`)
			},
			expectedNext: pagination.PageNumber(3),
		},
		{
			name: "last page has no next cursor",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"total_count": 0, "items": []}`)
			},
			expectedNext: nil,
		},
		{
			name: "404 is fatal",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"message": "Not Found"}`)
			},
			expectedKind: apierr.KindFatal,
			expectedMsg:  "failed to search repositories with REST API",
		},
		{
			name: "500 is fatal",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"message": "Internal Server Error"}`)
			},
			expectedKind: apierr.KindFatal,
			expectedMsg:  "Internal Server Error",
		},
		{
			name: "403 with exhausted primary limit is transient",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", fmt.Sprint(reset.Unix()))
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprint(w, `{"message": "API rate limit exceeded"}`)
			},
			expectedKind: apierr.KindTransient,
			expectedMsg:  "API rate limit exceeded",
			expectReset:  true,
		},
		{
			name: "429 is transient",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			expectedKind: apierr.KindTransient,
			expectedMsg:  "Too Many Requests",
		},
		{
			name: "502 is transient",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			expectedKind: apierr.KindTransient,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway, _ := setupTestGateway(t, http.HandlerFunc(tc.handlerFunc))

			page, err := gateway.SearchRepositories(context.Background(),
				domain.SearchQuery{Query: "stars:>10", Sort: "stars", Order: "desc"},
				pagination.Request{Cursor: pagination.PageNumber(2), PageSize: 100})

			if tc.expectedKind != "" {
				require.Error(t, err)
				assert.Equal(t, tc.expectedKind, apierr.KindOf(err))
				assert.Contains(t, err.Error(), tc.expectedMsg)
				if tc.expectReset {
					assert.True(t, apierr.ResetAt(err).Equal(reset))
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedNext, page.Next)
			if tc.expectedNext == nil {
				assert.Empty(t, page.Items)
				return
			}
			require.Len(t, page.Items, 1)
			repo := page.Items[0]
			assert.Equal(t, int64(42), repo.ID)
			assert.Equal(t, "octo/repo", repo.FullName)
			assert.Equal(t, "Organization", repo.OwnerType)
			assert.Equal(t, "line1 line2", repo.Description, "newlines become spaces")
			assert.Equal(t, []string{"go", "cli"}, repo.Topics)
			assert.Equal(t, "MIT", repo.LicenseSPDX)
			assert.Equal(t, time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC), repo.CreatedAt.UTC())
			assert.Equal(t, 1200, repo.StargazersCount)
			assert.True(t, repo.HasIssues)
			assert.Equal(t, 29, page.RateLimit.Remaining)
			assert.True(t, page.RateLimit.ResetAt.Equal(reset))
		})
	}
}

func TestGitHubGateway_SearchRepositories_RejectsTokenCursor(t *testing.T) {
	gateway, _ := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))

	_, err := gateway.SearchRepositories(context.Background(), domain.SearchQuery{Query: "q"},
		pagination.Request{Cursor: pagination.Token("abc"), PageSize: 10})

	require.Error(t, err)
	assert.Equal(t, apierr.KindFatal, apierr.KindOf(err))
}

func TestGitHubGateway_CountReleases(t *testing.T) {
	testCases := []struct {
		name        string
		handlerFunc func(w http.ResponseWriter, r *http.Request)
		fullName    string
		expected    int
		expectError bool
	}{
		{
			name: "count from last page link",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/repos/octo/repo/releases", r.URL.Path)
				assert.Equal(t, "1", r.URL.Query().Get("per_page"))
				w.Header().Set("Link", fmt.Sprintf(
					`<http://%[1]s/repos/octo/repo/releases?per_page=1&page=2>; rel="next", <http://%[1]s/repos/octo/repo/releases?per_page=1&page=7>; rel="last"`,
					r.Host))
				fmt.Fprint(w, `[{"id": 1}]`)
			},
			fullName: "octo/repo",
			expected: 7,
		},
		{
			name: "single release without link",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `[{"id": 1}]`)
			},
			fullName: "octo/repo",
			expected: 1,
		},
		{
			name: "no releases",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `[]`)
			},
			fullName: "octo/repo",
			expected: 0,
		},
		{
			name: "invalid full name",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				t.Error("no request expected")
			},
			fullName:    "no-slash",
			expectError: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway, _ := setupTestGateway(t, http.HandlerFunc(tc.handlerFunc))

			count, err := gateway.CountReleases(context.Background(), tc.fullName)

			if tc.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, count)
		})
	}
}

func TestGitHubGateway_SearchCandidates(t *testing.T) {
	var seen graphQLRequest
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/graphql", r.URL.Path)
		assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
		seen = decodeGraphQLRequest(t, r)
		fmt.Fprint(w, `{"data":{"search":{
			"pageInfo":{"hasNextPage":true,"endCursor":"Y3Vyc29yOjUw"},
			"nodes":[
				{"name":"repo","nameWithOwner":"octo/repo","owner":{"login":"octo"},"url":"https://github.com/octo/repo",
				 "stargazerCount":10,"forkCount":2,"issues":{"totalCount":3},"pullRequests":{"totalCount":150},
				 "isFork":false,"isArchived":true},
				{}
			]},
			"rateLimit":{"remaining":4999,"resetAt":"2024-05-01T00:00:00Z"}}}`)
	}
	gateway, _ := setupTestGateway(t, http.HandlerFunc(handler))

	page, err := gateway.SearchCandidates(context.Background(), "stars:>1 sort:stars-desc",
		pagination.Request{Cursor: pagination.Token(""), PageSize: 50})

	require.NoError(t, err)
	assert.Contains(t, seen.Query, "search(query: $query, type: REPOSITORY, first: $first, after: $cursor)")
	assert.Equal(t, "stars:>1 sort:stars-desc", seen.Variables["query"])
	assert.Equal(t, float64(50), seen.Variables["first"])
	assert.Nil(t, seen.Variables["cursor"])

	require.Len(t, page.Items, 1, "non-repository nodes are skipped")
	assert.Equal(t, domain.Candidate{
		Owner: "octo", Name: "repo", FullName: "octo/repo", URL: "https://github.com/octo/repo",
		Stars: 10, Forks: 2, OpenIssues: 3, ClosedPRs: 150, IsArchived: true,
	}, page.Items[0])
	assert.Equal(t, pagination.Token("Y3Vyc29yOjUw"), page.Next)
	assert.Equal(t, 4999, page.RateLimit.Remaining)
}

func TestGitHubGateway_PullRequests(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		req := decodeGraphQLRequest(t, r)
		assert.Equal(t, "octo", req.Variables["owner"])
		assert.Equal(t, "repo", req.Variables["name"])
		assert.Equal(t, "abc", req.Variables["cursor"])
		assert.Contains(t, req.Query, "orderBy: {field: UPDATED_AT, direction: DESC}")
		fmt.Fprint(w, `{"data":{"repository":{"nameWithOwner":"octo/repo","pullRequests":{
			"pageInfo":{"hasNextPage":false,"endCursor":"def"},
			"nodes":[{"number":7,"url":"https://github.com/octo/repo/pull/7","state":"MERGED",
				"createdAt":"2024-03-01T10:00:00Z","closedAt":"2024-03-01T13:00:00Z","mergedAt":"2024-03-01T13:00:00Z",
				"changedFiles":3,"additions":10,"deletions":4,"bodyText":"héllo",
				"participants":{"totalCount":2},"comments":{"totalCount":5},"reviews":{"totalCount":1}},
				{"number":8,"state":"CLOSED","createdAt":"2024-03-02T10:00:00Z","closedAt":"2024-03-02T11:00:00Z","mergedAt":null,
				"bodyText":"","participants":{"totalCount":1},"comments":{"totalCount":0},"reviews":{"totalCount":0}}]}},
			"rateLimit":{"remaining":10,"resetAt":"2024-05-01T00:00:00Z"}}}`)
	}
	gateway, _ := setupTestGateway(t, http.HandlerFunc(handler))

	page, err := gateway.PullRequests(context.Background(), "octo", "repo",
		pagination.Request{Cursor: pagination.Token("abc"), PageSize: 50})

	require.NoError(t, err)
	assert.Nil(t, page.Next)
	require.Len(t, page.Items, 2)

	merged := page.Items[0]
	assert.Equal(t, "octo/repo", merged.RepoFullName)
	assert.Equal(t, 7, merged.Number)
	assert.Equal(t, "MERGED", merged.State)
	assert.Equal(t, 5, merged.DescLen, "description length counts characters")
	assert.InDelta(t, 3.0, merged.ReviewHours(), 1e-9)

	closed := page.Items[1]
	assert.True(t, closed.MergedAt.IsZero())
	assert.InDelta(t, 1.0, closed.ReviewHours(), 1e-9)
}

func TestGitHubGateway_GraphQLErrors(t *testing.T) {
	reset := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	testCases := []struct {
		name         string
		handlerFunc  func(w http.ResponseWriter, r *http.Request)
		expectedKind apierr.Kind
		expectReset  bool
	}{
		{
			name: "query error is fatal",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"errors":[{"message":"Something went wrong"}]}`)
			},
			expectedKind: apierr.KindFatal,
		},
		{
			name: "rate limit error is transient",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", fmt.Sprint(reset.Unix()))
				fmt.Fprint(w, `{"errors":[{"type":"RATE_LIMITED","message":"API rate limit exceeded for user ID 1."}]}`)
			},
			expectedKind: apierr.KindTransient,
			expectReset:  true,
		},
		{
			name: "503 is transient",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			expectedKind: apierr.KindTransient,
		},
		{
			name: "401 is fatal",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"message": "Bad credentials"}`)
			},
			expectedKind: apierr.KindFatal,
		},
		{
			name: "missing repository is fatal",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"data":{"repository":null}}`)
			},
			expectedKind: apierr.KindFatal,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway, _ := setupTestGateway(t, http.HandlerFunc(tc.handlerFunc))

			_, err := gateway.PullRequests(context.Background(), "octo", "missing",
				pagination.Request{PageSize: 50})

			require.Error(t, err)
			assert.Equal(t, tc.expectedKind, apierr.KindOf(err))
			if tc.expectReset {
				assert.True(t, apierr.ResetAt(err).Equal(reset))
			}
		})
	}
}
