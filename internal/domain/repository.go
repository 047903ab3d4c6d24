// Package domain contains the flat records produced by the mining
// pipelines and the fixed column order each one is written with.
package domain

import (
	"strconv"
	"strings"
	"time"
)

// SearchQuery describes a repository search.
type SearchQuery struct {
	Query string
	Sort  string
	Order string
}

// Repository is a repository search result flattened to a single level.
type Repository struct {
	ID               int64
	Name             string
	FullName         string
	OwnerLogin       string
	OwnerType        string
	HTMLURL          string
	Description      string
	Homepage         string
	Language         string
	Topics           []string
	LicenseKey       string
	LicenseName      string
	LicenseSPDX      string
	DefaultBranch    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	PushedAt         time.Time
	SizeKB           int
	StargazersCount  int
	ForksCount       int
	OpenIssuesCount  int
	WatchersCount    int
	HasIssues        bool
	HasWiki          bool
	HasPages         bool
	IsTemplate       bool
	Archived         bool
	Disabled         bool
	Visibility       string
	AllowForking     bool
	NetworkCount     int
	SubscribersCount int
}

// RepositoryColumns is the column order of the repository search CSV.
var RepositoryColumns = []string{
	"id", "name", "full_name", "owner_login", "owner_type", "html_url",
	"description", "homepage", "language", "topics", "license_key",
	"license_name", "default_branch", "created_at", "updated_at", "pushed_at",
	"size_kb", "stargazers_count", "forks_count", "open_issues_count",
	"watchers_count", "has_issues", "has_wiki", "has_pages", "is_template",
	"archived", "disabled", "visibility", "allow_forking", "network_count",
	"subscribers_count",
}

// Record returns r's values in RepositoryColumns order.
func (r Repository) Record() []string {
	return []string{
		strconv.FormatInt(r.ID, 10),
		r.Name,
		r.FullName,
		r.OwnerLogin,
		r.OwnerType,
		r.HTMLURL,
		r.Description,
		r.Homepage,
		r.Language,
		strings.Join(r.Topics, ";"),
		r.LicenseKey,
		r.LicenseName,
		r.DefaultBranch,
		FormatTime(r.CreatedAt),
		FormatTime(r.UpdatedAt),
		FormatTime(r.PushedAt),
		strconv.Itoa(r.SizeKB),
		strconv.Itoa(r.StargazersCount),
		strconv.Itoa(r.ForksCount),
		strconv.Itoa(r.OpenIssuesCount),
		strconv.Itoa(r.WatchersCount),
		strconv.FormatBool(r.HasIssues),
		strconv.FormatBool(r.HasWiki),
		strconv.FormatBool(r.HasPages),
		strconv.FormatBool(r.IsTemplate),
		strconv.FormatBool(r.Archived),
		strconv.FormatBool(r.Disabled),
		r.Visibility,
		strconv.FormatBool(r.AllowForking),
		strconv.Itoa(r.NetworkCount),
		strconv.Itoa(r.SubscribersCount),
	}
}

// TopRepository is a ranked repository enriched with its release count
// and age.
type TopRepository struct {
	Rank int
	Repository
	ReleasesCount int
	AgeYears      float64
}

// TopRepositoryColumns is the column order of the top repositories CSV.
var TopRepositoryColumns = []string{
	"rank", "full_name", "name", "html_url", "description",
	"stargazers_count", "forks_count", "open_issues_count", "watchers_count",
	"language", "license", "created_at", "updated_at", "pushed_at", "size_kb",
	"releases_count", "age_years",
}

// Record returns r's values in TopRepositoryColumns order.
func (r TopRepository) Record() []string {
	return []string{
		strconv.Itoa(r.Rank),
		r.FullName,
		r.Name,
		r.HTMLURL,
		r.Description,
		strconv.Itoa(r.StargazersCount),
		strconv.Itoa(r.ForksCount),
		strconv.Itoa(r.OpenIssuesCount),
		strconv.Itoa(r.WatchersCount),
		r.Language,
		r.LicenseSPDX,
		FormatTime(r.CreatedAt),
		FormatTime(r.UpdatedAt),
		FormatTime(r.PushedAt),
		strconv.Itoa(r.SizeKB),
		strconv.Itoa(r.ReleasesCount),
		strconv.FormatFloat(r.AgeYears, 'f', 3, 64),
	}
}

// AgeYears returns the age of a repository created at createdAt, in
// years of 365.25 days counted in whole days.
func AgeYears(createdAt, now time.Time) float64 {
	days := int(now.Sub(createdAt).Hours() / 24)
	return float64(days) / 365.25
}

// Candidate is a repository returned by the GraphQL search, before the
// selection filters are applied.
type Candidate struct {
	Owner      string
	Name       string
	FullName   string
	URL        string
	Stars      int
	Forks      int
	OpenIssues int
	ClosedPRs  int
	IsFork     bool
	IsArchived bool
}

// CandidateColumns is the column order of the selected repositories CSV.
// The owner and name columns are read back by the pull request collector.
var CandidateColumns = []string{
	"owner", "name", "full_name", "url", "stars", "forks", "open_issues",
	"prs_total_closed_merged",
}

// Record returns c's values in CandidateColumns order.
func (c Candidate) Record() []string {
	return []string{
		c.Owner,
		c.Name,
		c.FullName,
		c.URL,
		strconv.Itoa(c.Stars),
		strconv.Itoa(c.Forks),
		strconv.Itoa(c.OpenIssues),
		strconv.Itoa(c.ClosedPRs),
	}
}

// FormatTime renders t the way the GitHub API does, or "" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
