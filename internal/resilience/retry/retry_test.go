package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	return Config{
		Name:         "test",
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestWithBackoff_FirstCallSucceeds(t *testing.T) {
	calls := 0

	err := WithBackoff(context.Background(), fastConfig(3), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithBackoff_RecoversWithinBudget(t *testing.T) {
	// Arrange: two refused connections, then the transcoder answers
	calls := 0
	fn := func() error {
		calls++
		if calls < 3 {
			return syscall.ECONNREFUSED
		}
		return nil
	}

	// Act
	err := WithBackoff(context.Background(), fastConfig(3), fn)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithBackoff_BudgetOfThreeCallsThreeTimes(t *testing.T) {
	calls := 0
	unavailable := &HTTPError{StatusCode: 503, Message: "Service Unavailable"}

	err := WithBackoff(context.Background(), fastConfig(3), func() error {
		calls++
		return unavailable
	})

	require.ErrorIs(t, err, ErrMaxAttemptsExceeded)
	assert.ErrorIs(t, err, unavailable, "the last failure stays inspectable")
	assert.Equal(t, 3, calls)
}

func TestWithBackoff_PermanentErrorStopsImmediately(t *testing.T) {
	calls := 0
	badRequest := &HTTPError{StatusCode: 400, Message: "Bad Request"}

	err := WithBackoff(context.Background(), fastConfig(5), func() error {
		calls++
		return badRequest
	})

	assert.Same(t, badRequest, err)
	assert.NotErrorIs(t, err, ErrMaxAttemptsExceeded)
	assert.Equal(t, 1, calls)
}

func TestWithBackoff_ZeroBudgetStillCallsOnce(t *testing.T) {
	calls := 0

	err := WithBackoff(context.Background(), fastConfig(0), func() error {
		calls++
		return Transient(errors.New("flaky"))
	})

	assert.ErrorIs(t, err, ErrMaxAttemptsExceeded)
	assert.Equal(t, 1, calls)
}

func TestWithBackoff_CancelDuringWait(t *testing.T) {
	// Arrange: a long delay so the cancel lands between attempts
	cfg := fastConfig(5)
	cfg.InitialDelay = time.Minute
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	// Act
	err := WithBackoff(ctx, cfg, func() error {
		calls++
		cancel()
		return syscall.ECONNRESET
	})

	// Assert
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient wrapper", Transient(errors.New("queue full")), true},
		{"network timeout", timeoutErr{}, true},
		{"refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"reset", syscall.ECONNRESET, true},
		{"unreachable", syscall.ENETUNREACH, true},
		{"truncated body", io.ErrUnexpectedEOF, true},
		{"server error", &HTTPError{StatusCode: 502}, true},
		{"rate limited", &HTTPError{StatusCode: 429}, true},
		{"request timeout", &HTTPError{StatusCode: 408}, true},
		{"not found", &HTTPError{StatusCode: 404}, false},
		{"cancelled", context.Canceled, false},
		{"deadline", fmt.Errorf("submit: %w", context.DeadlineExceeded), false},
		{"plain", errors.New("malformed entry"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestTransient(t *testing.T) {
	base := errors.New("busy")

	err := Transient(base)

	assert.NoError(t, Transient(nil))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "busy", err.Error())
}

func TestPresets(t *testing.T) {
	feed := FeedFetchConfig()
	assert.Equal(t, "feed-fetch", feed.Name)
	assert.Equal(t, 5, feed.MaxAttempts)

	tc := TranscodeConfig()
	assert.Equal(t, "transcoder", tc.Name)
	assert.Equal(t, 3, tc.MaxAttempts)
	assert.Equal(t, 5*time.Second, tc.InitialDelay)
	assert.Equal(t, 2*time.Minute, tc.MaxDelay)
}

func TestHTTPError_Error(t *testing.T) {
	err := &HTTPError{StatusCode: 503, Message: "Service Unavailable"}
	assert.Equal(t, "HTTP 503: Service Unavailable", err.Error())
}

func TestNextDelay_CapsAtMax(t *testing.T) {
	cfg := Config{Multiplier: 3, MaxDelay: 10 * time.Second}

	assert.Equal(t, 6*time.Second, nextDelay(2*time.Second, cfg))
	assert.Equal(t, 10*time.Second, nextDelay(6*time.Second, cfg))
	assert.Equal(t, time.Second, nextDelay(time.Second, Config{}), "multiplier below 1 keeps the delay")
}

func TestAddJitter(t *testing.T) {
	base := 100 * time.Millisecond

	assert.Equal(t, base, addJitter(base, 0))
	for i := 0; i < 50; i++ {
		got := addJitter(base, 0.5)
		assert.GreaterOrEqual(t, got, base)
		assert.LessOrEqual(t, got, 150*time.Millisecond)
	}
	got := addJitter(base, 4)
	assert.LessOrEqual(t, got, 200*time.Millisecond, "fraction is capped at 1")
}
