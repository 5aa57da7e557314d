package vision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// scriptedEngine replays a fixed sequence of outcomes.
type scriptedEngine struct {
	mu    sync.Mutex
	steps []scriptStep
	calls int
}

type scriptStep struct {
	text  string
	err   error
	delay time.Duration
}

func (s *scriptedEngine) Name() string { return "scripted" }

func (s *scriptedEngine) Recognize(ctx context.Context, _ Request) (string, error) {
	s.mu.Lock()
	s.calls++
	var step scriptStep
	if len(s.steps) > 0 {
		step = s.steps[0]
		s.steps = s.steps[1:]
	}
	s.mu.Unlock()

	if step.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(step.delay):
		}
	}
	return step.text, step.err
}

func (s *scriptedEngine) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testCallerConfig() CallerConfig {
	return CallerConfig{
		MaxAttempts: 3,
		Timeout:     time.Second,
		Backoff:     []time.Duration{time.Millisecond, time.Millisecond},
	}
}

func TestCallerFirstAttempt(t *testing.T) {
	eng := &scriptedEngine{steps: []scriptStep{{text: "hello"}}}
	caller := NewCaller(eng, testCallerConfig())

	text, err := caller.Call(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, 1, eng.callCount())
}

func TestCallerRetriesTransient(t *testing.T) {
	eng := &scriptedEngine{steps: []scriptStep{
		{err: errors.New("503 service unavailable")},
		{text: "recovered"},
	}}
	caller := NewCaller(eng, testCallerConfig())

	text, err := caller.Call(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, 2, eng.callCount())
}

func TestCallerStopsOnPermanentError(t *testing.T) {
	eng := &scriptedEngine{steps: []scriptStep{
		{err: errors.New("invalid api key")},
		{text: "never reached"},
	}}
	caller := NewCaller(eng, testCallerConfig())

	_, err := caller.Call(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Equal(t, 1, eng.callCount())
}

func TestCallerExhaustsAttempts(t *testing.T) {
	eng := &scriptedEngine{steps: []scriptStep{
		{err: errors.New("rate limit")},
		{err: errors.New("rate limit")},
		{err: errors.New("rate limit")},
	}}
	caller := NewCaller(eng, testCallerConfig())

	_, err := caller.Call(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, eng.callCount())
}

func TestCallerAttemptTimeoutRetries(t *testing.T) {
	eng := &scriptedEngine{steps: []scriptStep{
		{delay: time.Second, text: "too slow"},
		{text: "fast"},
	}}
	cfg := testCallerConfig()
	cfg.Timeout = 20 * time.Millisecond
	caller := NewCaller(eng, cfg)

	text, err := caller.Call(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "fast", text)
	assert.Equal(t, 2, eng.callCount())
}

func TestCallerHonorsCancellation(t *testing.T) {
	eng := &scriptedEngine{steps: []scriptStep{{text: "unreached"}}}
	caller := NewCaller(eng, testCallerConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := caller.Call(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, eng.callCount())
}

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{context.DeadlineExceeded, true},
		{context.Canceled, false},
		{errors.New("429 too many requests"), true},
		{errors.New("connection reset by peer"), true},
		{errors.New("model is overloaded"), true},
		{errors.New("invalid request payload"), false},
		{&googleapi.Error{Code: 500}, true},
		{&googleapi.Error{Code: 429}, true},
		{&googleapi.Error{Code: 403}, false},
		{status.Error(codes.Unavailable, "upstream down"), true},
		{status.Error(codes.ResourceExhausted, "quota"), true},
		{status.Error(codes.InvalidArgument, "bad image"), false},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, retryable(tc.err), "error %v", tc.err)
	}
}
