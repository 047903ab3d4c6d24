// Package metrics holds the Prometheus counters recorded while mining
// GitHub, and exports them as a node_exporter textfile on request.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry collects every metric of this tool. It is kept apart from the
// default registry so the exported file only carries our own series.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// RequestsTotal counts API calls by api (rest, graphql) and outcome
	// (ok, transient, fatal).
	RequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "github_mining_requests_total",
		Help: "GitHub API requests by api and outcome",
	}, []string{"api", "outcome"})

	// RetriesTotal counts retry attempts by reason (reset, backoff).
	RetriesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "github_mining_retries_total",
		Help: "Retry attempts by wait reason",
	}, []string{"reason"})

	// RateLimitWaitsTotal counts proactive waits for a rate limit reset.
	RateLimitWaitsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "github_mining_rate_limit_waits_total",
		Help: "Waits until the rate limit window reset",
	})

	// PagesTotal counts successfully fetched pages by source.
	PagesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "github_mining_pages_total",
		Help: "Pages fetched by source",
	}, []string{"source"})

	// ItemsTotal counts items by source and result (kept, filtered).
	ItemsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "github_mining_items_total",
		Help: "Items seen by source and filter result",
	}, []string{"source", "result"})
)

// WriteFile writes all metrics in the Prometheus text format to path.
func WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
