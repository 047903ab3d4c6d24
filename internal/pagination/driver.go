package pagination

import (
	"context"
	"errors"
	"fmt"

	"github.com/naka-gawa/github-mining/internal/metrics"
	"github.com/naka-gawa/github-mining/internal/retry"
	"github.com/rs/zerolog"
)

// Options configures a pagination run.
type Options[T any] struct {
	// Name labels log lines and metrics.
	Name string

	// Start is the first cursor. Nil means Token("").
	Start Cursor

	// PageSize is the number of items requested per page.
	PageSize int

	// MaxItems bounds the number of kept items. 0 means unlimited.
	MaxItems int

	// Ceiling is the provider's absolute limit on items it will serve for
	// one query (1000 for search). 0 means none.
	Ceiling int

	// Filter drops items before they count toward MaxItems. Nil keeps all.
	Filter func(T) bool

	Retry    retry.Policy
	Throttle *Throttle
	Logger   zerolog.Logger
}

// Walk issues page requests until MaxItems items have been kept, the
// provider reports no further pages, a page is empty or the Ceiling is
// reached. fn receives the kept items of every page, in order. Any fetch
// error aborts the walk.
func Walk[T any](ctx context.Context, src Source[T], opts Options[T], fn func(items []T) error) error {
	if opts.PageSize <= 0 {
		return errors.New("page size must be positive")
	}

	cursor := opts.Start
	if cursor == nil {
		cursor = Token("")
	}
	logger := opts.Logger.With().Str("source", opts.Name).Logger()

	kept, scanned := 0, 0
	for {
		req := Request{Cursor: cursor, PageSize: requestSize(cursor, opts, kept, scanned)}
		if req.PageSize <= 0 {
			break
		}

		if err := opts.Throttle.Wait(ctx); err != nil {
			return err
		}

		var page Page[T]
		err := opts.Retry.Do(ctx, func(ctx context.Context) error {
			var err error
			page, err = src.FetchPage(ctx, req)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to fetch page %s of %s: %w", cursor, opts.Name, err)
		}
		opts.Throttle.Done()
		metrics.PagesTotal.WithLabelValues(opts.Name).Inc()
		scanned += len(page.Items)

		items := make([]T, 0, len(page.Items))
		for _, item := range page.Items {
			if opts.Filter != nil && !opts.Filter(item) {
				metrics.ItemsTotal.WithLabelValues(opts.Name, "filtered").Inc()
				continue
			}
			items = append(items, item)
			kept++
			metrics.ItemsTotal.WithLabelValues(opts.Name, "kept").Inc()
			if opts.MaxItems > 0 && kept >= opts.MaxItems {
				break
			}
		}

		logger.Debug().
			Str("cursor", cursor.String()).
			Int("page_size", req.PageSize).
			Int("received", len(page.Items)).
			Int("kept", len(items)).
			Int("total_kept", kept).
			Msg("Fetched page")

		if len(items) > 0 {
			if err := fn(items); err != nil {
				return err
			}
		}

		switch {
		case opts.MaxItems > 0 && kept >= opts.MaxItems:
			return nil
		case len(page.Items) == 0, page.Next == nil:
			return nil
		case opts.Ceiling > 0 && scanned >= opts.Ceiling:
			logger.Info().Int("ceiling", opts.Ceiling).Msg("Reached provider result ceiling")
			return nil
		}

		if page.RateLimit.Exhausted() {
			logger.Warn().
				Time("reset_at", page.RateLimit.ResetAt).
				Msg("Rate limit exhausted, waiting for reset")
			metrics.RateLimitWaitsTotal.Inc()
			if err := opts.Retry.WaitUntil(ctx, page.RateLimit.ResetAt); err != nil {
				return err
			}
		}
		cursor = page.Next
	}
	return nil
}

// Collect runs Walk and accumulates every kept item.
func Collect[T any](ctx context.Context, src Source[T], opts Options[T]) ([]T, error) {
	collected := make([]T, 0)
	err := Walk(ctx, src, opts, func(items []T) error {
		collected = append(collected, items...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return collected, nil
}

// requestSize returns the page size of the next request. Token cursors
// only ask for what is still needed; page number cursors keep a constant
// size because the provider computes offsets from it.
func requestSize[T any](cursor Cursor, opts Options[T], kept, scanned int) int {
	size := opts.PageSize
	if _, offset := cursor.(PageNumber); offset {
		if opts.Ceiling > 0 && scanned >= opts.Ceiling {
			return 0
		}
		return size
	}
	if opts.MaxItems > 0 && opts.Filter == nil {
		size = min(size, opts.MaxItems-kept)
	}
	if opts.Ceiling > 0 {
		size = min(size, opts.Ceiling-scanned)
	}
	return size
}
