package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"portal-rest-api/internal/failure"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSleeper records requested delays instead of waiting.
type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func (s *recordingSleeper) total() time.Duration {
	var sum time.Duration
	for _, d := range s.delays {
		sum += d
	}
	return sum
}

func newTestExecutor(s *recordingSleeper) *Executor {
	return New(Config{Sleep: s.sleep})
}

func TestNew_Defaults(t *testing.T) {
	e := New(Config{})
	assert.Equal(t, 4, e.config.MaxAttempts)
	assert.Equal(t, time.Second, e.config.BaseDelay)
	assert.Equal(t, 10*time.Second, e.config.MaxDelay)
}

func TestExecutor_Delay(t *testing.T) {
	e := New(Config{})
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	for i, w := range want {
		assert.Equal(t, w, e.Delay(i), "index %d", i)
	}
}

func TestRun_SucceedsAfterFailures(t *testing.T) {
	for n := 0; n < 4; n++ {
		s := &recordingSleeper{}
		e := newTestExecutor(s)

		attempts := 0
		got, err := Run(context.Background(), e, func(ctx context.Context) (string, error) {
			attempts++
			if attempts <= n {
				return "", errors.New("upstream returned 503")
			}
			return "ok", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, n+1, attempts)

		var want time.Duration
		for i := 0; i < n; i++ {
			want += e.Delay(i)
		}
		assert.Equal(t, want, s.total(), "n=%d", n)
	}
}

func TestRun_NonRetryableStopsImmediately(t *testing.T) {
	s := &recordingSleeper{}
	e := newTestExecutor(s)

	attempts := 0
	_, err := Run(context.Background(), e, func(ctx context.Context) (int, error) {
		attempts++
		return 0, errors.New("JWT expired")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, s.delays)

	var ce *failure.ClassifiedError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, failure.CategoryAuthorization, ce.Category)
}

func TestRun_ExhaustedReturnsLastError(t *testing.T) {
	s := &recordingSleeper{}
	e := newTestExecutor(s)

	attempts := 0
	errs := []error{
		errors.New("timeout 1"),
		errors.New("timeout 2"),
		errors.New("timeout 3"),
		errors.New("timeout 4"),
	}
	err := e.Execute(context.Background(), func(ctx context.Context) error {
		err := errs[attempts]
		attempts++
		return err
	})

	require.Error(t, err)
	assert.Equal(t, 4, attempts)
	assert.ErrorIs(t, err, errs[3])
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, s.delays)
}

func TestRun_UnknownErrorsAreRetried(t *testing.T) {
	s := &recordingSleeper{}
	e := New(Config{MaxAttempts: 2, Sleep: s.sleep})

	attempts := 0
	err := e.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("mystery")
	})

	require.Error(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRun_ContextCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := New(Config{
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	})

	attempts := 0
	err := e.Execute(ctx, func(ctx context.Context) error {
		attempts++
		return errors.New("connection reset")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestSleep_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRun_OnRetryHook(t *testing.T) {
	s := &recordingSleeper{}
	var seen []int
	e := New(Config{
		MaxAttempts: 3,
		Sleep:       s.sleep,
		OnRetry: func(attempt int, err *failure.ClassifiedError, delay time.Duration) {
			seen = append(seen, attempt)
		},
	})

	_ = e.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("503")
	})
	assert.Equal(t, []int{1, 2}, seen)
}
