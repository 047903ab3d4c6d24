package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/naka-gawa/github-mining/internal/analysis"
)

const (
	recentPushDays = 30
	maxLanguages   = 20
	noLanguage     = "(none)"
)

// Group holds the star statistics of one group of repositories.
type Group struct {
	Key    string
	Count  int
	Median float64
	Mean   float64
}

// Summary is the content of the Markdown report on a repository search
// dataset.
type Summary struct {
	GeneratedAt         time.Time
	Input               string
	Rows                int
	RecentPushShare     float64
	MedianDaysSincePush float64
	TopicStarsPearson   float64
	Languages           []Group
	OwnerTypes          []Group
	Licenses            []Group
	Charts              []string
}

// Summarize computes the report figures from a repository search table.
func Summarize(t *Table, input string, now time.Time) Summary {
	s := Summary{
		GeneratedAt:         now.UTC(),
		Input:               input,
		Rows:                len(t.Rows),
		MedianDaysSincePush: math.NaN(),
		TopicStarsPearson:   math.NaN(),
	}
	stars, _ := t.Floats("stargazers_count")
	if stars == nil {
		stars = make([]float64, len(t.Rows))
		for i := range stars {
			stars[i] = math.NaN()
		}
	}

	days := make([]float64, len(t.Rows))
	recent := 0
	for i := range t.Rows {
		days[i] = math.NaN()
		pushed, err := time.Parse(time.RFC3339, t.Value(i, "pushed_at"))
		if err != nil {
			continue
		}
		days[i] = math.Floor(now.Sub(pushed).Hours() / 24)
		if days[i] <= recentPushDays {
			recent++
		}
	}
	if s.Rows > 0 {
		s.RecentPushShare = float64(recent) / float64(s.Rows)
		s.MedianDaysSincePush = analysis.Median(days)
	}

	if s.Rows > 1 {
		topics := make([]float64, len(t.Rows))
		for i := range t.Rows {
			topics[i] = float64(topicCount(t.Value(i, "topics")))
		}
		s.TopicStarsPearson = analysis.Pearson(analysis.Pairs(topics, stars))
	}

	s.Languages = groupBy(t, stars, func(i int) string {
		if lang := t.Value(i, "language"); lang != "" {
			return lang
		}
		return noLanguage
	})
	sort.SliceStable(s.Languages, func(a, b int) bool { return s.Languages[a].Count > s.Languages[b].Count })
	if len(s.Languages) > maxLanguages {
		s.Languages = s.Languages[:maxLanguages]
	}

	s.OwnerTypes = groupBy(t, stars, func(i int) string { return t.Value(i, "owner_type") })
	sort.SliceStable(s.OwnerTypes, func(a, b int) bool { return s.OwnerTypes[a].Median > s.OwnerTypes[b].Median })

	s.Licenses = groupBy(t, stars, func(i int) string {
		return fmt.Sprint(t.Value(i, "license_key") != "")
	})
	return s
}

// TopLanguages returns up to n languages by repository count.
func TopLanguages(s Summary, n int) (names []string, counts []float64) {
	for _, g := range s.Languages {
		if g.Key == noLanguage {
			continue
		}
		if len(names) == n {
			break
		}
		names = append(names, g.Key)
		counts = append(counts, float64(g.Count))
	}
	return names, counts
}

func topicCount(s string) int {
	if strings.TrimSpace(s) == "" {
		return 0
	}
	return len(strings.Split(s, ";"))
}

// groupBy groups rows by key, ordered by key.
func groupBy(t *Table, stars []float64, key func(i int) string) []Group {
	values := make(map[string][]float64)
	for i := range t.Rows {
		k := key(i)
		values[k] = append(values[k], stars[i])
	}
	groups := make([]Group, 0, len(values))
	for k, v := range values {
		groups = append(groups, Group{Key: k, Count: len(v), Median: analysis.Median(v), Mean: analysis.Mean(v)})
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].Key < groups[b].Key })
	return groups
}

var funcs = template.FuncMap{
	"comma": func(n int) string { return humanize.Comma(int64(n)) },
	"num": func(f float64) string {
		if math.IsNaN(f) {
			return "n/a"
		}
		return humanize.CommafWithDigits(f, 2)
	},
	"percent": func(f float64) string { return fmt.Sprintf("%.1f%%", f*100) },
	"time":    func(t time.Time) string { return t.Format(time.RFC3339) },
}

var reportTemplate = template.Must(template.New("report").Funcs(funcs).Parse(`# GitHub Repositories Report

**Generated:** {{ time .GeneratedAt }}
**Input CSV:** {{ .Input }}
**Rows:** {{ comma .Rows }}

## Hypotheses
- **H1:** Repositories with more topics tend to have more stars.
- **H2:** JavaScript and TypeScript are among the most common languages of popular repositories.
- **H3:** Repositories with recent activity (push in the last 30 days) have more forks and stars.
- **H4:** Organization-owned repositories have a higher median star count than user-owned ones.
- **H5:** Having a license is associated with higher adoption.

## Method
- Collected through the GitHub Search API, up to 1,000 results per query.
- Fields include repository metadata, counts, timestamps, language, license and topics.

## Quick Summary
- Share with a push in the last 30 days: **{{ percent .RecentPushShare }}**
- Median days since last push: **{{ num .MedianDaysSincePush }}**
- Pearson correlation between topic count and stars: **{{ num .TopicStarsPearson }}**

## Top Languages by Repository Count
{{ template "groups" .Languages }}
## Stars by Owner Type
{{ template "groups" .OwnerTypes }}
## Stars by License Presence
{{ template "groups" .Licenses }}
{{- if .Charts }}
## Charts
{{ range .Charts }}- {{ . }}
{{ end }}{{ end }}`))

func init() {
	template.Must(reportTemplate.New("groups").Parse(`| group | count | median | mean |
|---|---:|---:|---:|
{{ range . }}| {{ .Key }} | {{ comma .Count }} | {{ num .Median }} | {{ num .Mean }} |
{{ end }}`))
}

// RenderMarkdown writes s as a Markdown document.
func RenderMarkdown(w io.Writer, s Summary) error {
	if err := reportTemplate.Execute(w, s); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}
