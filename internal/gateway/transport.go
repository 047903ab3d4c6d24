package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/naka-gawa/github-mining/internal/apierr"
	"github.com/naka-gawa/github-mining/internal/metrics"
	"github.com/naka-gawa/github-mining/internal/pagination"
	"github.com/rs/zerolog"
)

const (
	headerRateRemaining = "X-RateLimit-Remaining"
	headerRateReset     = "X-RateLimit-Reset"
	headerRetryAfter    = "Retry-After"

	maxErrorBody = 64 << 10
)

// rateRecorder keeps the rate limit state of the most recent response.
type rateRecorder struct {
	mu   sync.Mutex
	last pagination.RateLimit
}

func (r *rateRecorder) record(h http.Header) {
	rl, ok := parseRateLimit(h)
	if !ok {
		return
	}
	r.mu.Lock()
	r.last = rl
	r.mu.Unlock()
}

func (r *rateRecorder) Last() pagination.RateLimit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func parseRateLimit(h http.Header) (pagination.RateLimit, bool) {
	remaining, err := strconv.Atoi(h.Get(headerRateRemaining))
	if err != nil {
		return pagination.RateLimit{}, false
	}
	reset, err := strconv.ParseInt(h.Get(headerRateReset), 10, 64)
	if err != nil {
		return pagination.RateLimit{}, false
	}
	return pagination.RateLimit{Remaining: remaining, ResetAt: time.Unix(reset, 0)}, true
}

// classifyingTransport turns failed HTTP exchanges into *apierr.Error
// values before the REST or GraphQL client sees them, so both clients
// fail with the same classification.
type classifyingTransport struct {
	base   http.RoundTripper
	rates  *rateRecorder
	logger zerolog.Logger
	now    func() time.Time
}

// RoundTrip implements http.RoundTripper.
func (t *classifyingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	api := apiName(req)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(api, string(apierr.KindTransient)).Inc()
		return nil, &apierr.Error{Kind: apierr.KindTransient, Message: "network error", Err: err}
	}
	t.rates.record(resp.Header)

	if resp.StatusCode < http.StatusBadRequest {
		metrics.RequestsTotal.WithLabelValues(api, "ok").Inc()
		return resp, nil
	}

	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := t.classify(resp, body)
	metrics.RequestsTotal.WithLabelValues(api, string(apiErr.Kind)).Inc()
	t.logger.Debug().
		Str("api", api).
		Int("status", resp.StatusCode).
		Str("kind", string(apiErr.Kind)).
		Str("path", req.URL.Path).
		Msg("GitHub request failed")
	return nil, apiErr
}

func (t *classifyingTransport) classify(resp *http.Response, body []byte) *apierr.Error {
	message := errorMessage(body)
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		if rl, ok := parseRateLimit(resp.Header); ok && rl.Remaining == 0 {
			e := apierr.Transient(resp.StatusCode, message)
			e.ResetAt = rl.ResetAt
			return e
		}
		if secs, err := strconv.Atoi(resp.Header.Get(headerRetryAfter)); err == nil {
			e := apierr.Transient(resp.StatusCode, message)
			e.ResetAt = t.clock().Add(time.Duration(secs) * time.Second)
			return e
		}
	}
	return apierr.FromStatus(resp.StatusCode, message)
}

func (t *classifyingTransport) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// errorMessage extracts the "message" field GitHub puts in error bodies.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	return payload.Message
}

func apiName(req *http.Request) string {
	if strings.HasSuffix(req.URL.Path, "/graphql") {
		return "graphql"
	}
	return "rest"
}
