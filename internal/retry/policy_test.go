package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/naka-gawa/github-mining/internal/apierr"
	"github.com/naka-gawa/github-mining/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy(timer *testutil.FakeTimer, now time.Time) Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		ResetMargin: 2 * time.Second,
		Timer:       timer,
		Now:         func() time.Time { return now },
		Logger:      zerolog.Nop(),
	}
}

func TestPolicy_Do(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name          string
		errs          []error // returned by successive attempts; nil = success
		expectedCalls int
		expectError   bool
		expectedIs    error
		expectedKind  apierr.Kind
	}{
		{
			name:          "success on first attempt",
			errs:          []error{nil},
			expectedCalls: 1,
		},
		{
			name:          "429 then success",
			errs:          []error{apierr.Transient(http.StatusTooManyRequests, "slow down"), nil},
			expectedCalls: 2,
		},
		{
			name:          "404 is not retried",
			errs:          []error{apierr.Fatal(http.StatusNotFound, "Not Found")},
			expectedCalls: 1,
			expectError:   true,
			expectedKind:  apierr.KindFatal,
		},
		{
			name: "exhausted after max attempts",
			errs: []error{
				apierr.Transient(http.StatusBadGateway, "a"),
				apierr.Transient(http.StatusBadGateway, "b"),
				apierr.Transient(http.StatusBadGateway, "c"),
				apierr.Transient(http.StatusBadGateway, "d"),
				apierr.Transient(http.StatusBadGateway, "e"),
			},
			expectedCalls: 5,
			expectError:   true,
			expectedIs:    apierr.ErrRetryExhausted,
			expectedKind:  apierr.KindTransient,
		},
		{
			name:          "unclassified errors are not retried",
			errs:          []error{errors.New("decode failure")},
			expectedCalls: 1,
			expectError:   true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			timer := &testutil.FakeTimer{}
			policy := testPolicy(timer, now)

			calls := 0
			err := policy.Do(context.Background(), func(ctx context.Context) error {
				e := tc.errs[calls]
				calls++
				return e
			})

			assert.Equal(t, tc.expectedCalls, calls)
			assert.Len(t, timer.Waits(), tc.expectedCalls-1)
			if !tc.expectError {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tc.expectedIs != nil {
				assert.ErrorIs(t, err, tc.expectedIs)
			}
			if tc.expectedKind != "" {
				assert.Equal(t, tc.expectedKind, apierr.KindOf(err))
			}
		})
	}
}

func TestPolicy_Do_WaitsUntilReset(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	timer := &testutil.FakeTimer{}
	policy := testPolicy(timer, now)

	limited := apierr.Transient(http.StatusForbidden, "API rate limit exceeded")
	limited.ResetAt = now.Add(40 * time.Second)

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return limited
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{42 * time.Second}, timer.Waits())
}

func TestPolicy_Do_ResetInThePast(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	timer := &testutil.FakeTimer{}
	policy := testPolicy(timer, now)

	limited := apierr.Transient(http.StatusForbidden, "API rate limit exceeded")
	limited.ResetAt = now.Add(-time.Minute)

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return limited
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2 * time.Second}, timer.Waits())
}

func TestPolicy_Do_BackoffGrows(t *testing.T) {
	timer := &testutil.FakeTimer{}
	policy := testPolicy(timer, time.Now())

	err := policy.Do(context.Background(), func(ctx context.Context) error {
		return apierr.Transient(http.StatusServiceUnavailable, "unavailable")
	})
	require.ErrorIs(t, err, apierr.ErrRetryExhausted)

	waits := timer.Waits()
	require.Len(t, waits, 4)
	for _, w := range waits {
		assert.LessOrEqual(t, w, 30*time.Second)
		assert.Greater(t, w, time.Duration(0))
	}
	// With ±50% jitter the fourth interval (16s nominal) always exceeds the first (2s nominal).
	assert.Greater(t, waits[3], waits[0])
}

func TestPolicy_Do_SingleAttempt(t *testing.T) {
	policy := Policy{MaxAttempts: 1, Logger: zerolog.Nop()}
	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return apierr.Transient(http.StatusTooManyRequests, "slow down")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_WaitUntil(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	timer := &testutil.FakeTimer{}
	policy := testPolicy(timer, now)

	require.NoError(t, policy.WaitUntil(context.Background(), now.Add(10*time.Second)))
	assert.Equal(t, []time.Duration{12 * time.Second}, timer.Waits())
}

func TestPolicy_WaitUntil_Cancelled(t *testing.T) {
	policy := Policy{ResetMargin: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := policy.WaitUntil(ctx, time.Now())
	assert.ErrorIs(t, err, context.Canceled)
}
