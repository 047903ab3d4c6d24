package domain

import (
	"math"
	"strconv"
	"time"
)

// PullRequest is a merged or closed pull request flattened for analysis.
type PullRequest struct {
	RepoFullName string
	Number       int
	URL          string
	State        string
	CreatedAt    time.Time
	ClosedAt     time.Time
	MergedAt     time.Time
	ChangedFiles int
	Additions    int
	Deletions    int
	DescLen      int
	Participants int
	Comments     int
	Reviews      int
}

// PullRequestColumns is the column order of the pull request CSV.
var PullRequestColumns = []string{
	"repo_full_name", "number", "url", "state", "createdAt", "closedAt",
	"mergedAt", "changedFiles", "additions", "deletions", "desc_len",
	"participants", "comments", "reviews", "review_hours",
}

// FinishedAt returns the merge time, or the close time for unmerged pull
// requests. ok is false when the pull request is still open.
func (p PullRequest) FinishedAt() (t time.Time, ok bool) {
	if !p.MergedAt.IsZero() {
		return p.MergedAt, true
	}
	if !p.ClosedAt.IsZero() {
		return p.ClosedAt, true
	}
	return time.Time{}, false
}

// ReviewHours is the time from creation to merge or close, in hours. NaN
// when the pull request has not finished.
func (p PullRequest) ReviewHours() float64 {
	end, ok := p.FinishedAt()
	if !ok || p.CreatedAt.IsZero() {
		return math.NaN()
	}
	return end.Sub(p.CreatedAt).Hours()
}

// Record returns p's values in PullRequestColumns order.
func (p PullRequest) Record() []string {
	return []string{
		p.RepoFullName,
		strconv.Itoa(p.Number),
		p.URL,
		p.State,
		FormatTime(p.CreatedAt),
		FormatTime(p.ClosedAt),
		FormatTime(p.MergedAt),
		strconv.Itoa(p.ChangedFiles),
		strconv.Itoa(p.Additions),
		strconv.Itoa(p.Deletions),
		strconv.Itoa(p.DescLen),
		strconv.Itoa(p.Participants),
		strconv.Itoa(p.Comments),
		strconv.Itoa(p.Reviews),
		FormatFloat(math.Round(p.ReviewHours()*1000) / 1000),
	}
}

// FormatFloat renders f in its shortest form, or "" for NaN.
func FormatFloat(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
