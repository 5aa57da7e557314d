package vision

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// CallerConfig tunes the call governor around an engine.
type CallerConfig struct {
	// MaxAttempts is the total number of tries per call.
	MaxAttempts int `yaml:"max_attempts"`
	// Timeout bounds each individual attempt.
	Timeout time.Duration `yaml:"timeout"`
	// RPM throttles call starts per minute across the whole process;
	// zero means unthrottled.
	RPM int `yaml:"rpm"`
	// Backoff holds the waits between attempts; the last entry repeats.
	Backoff []time.Duration `yaml:"backoff"`
}

// DefaultCallerConfig returns the production tuning.
func DefaultCallerConfig() CallerConfig {
	return CallerConfig{
		MaxAttempts: 3,
		Timeout:     2 * time.Minute,
		Backoff:     []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second},
	}
}

// Caller wraps an engine with throttling, per-attempt timeouts and retry
// on transient failures. One Caller is shared by all workers so the RPM
// budget holds process-wide.
type Caller struct {
	engine  Engine
	cfg     CallerConfig
	limiter *rate.Limiter
	log     *logrus.Entry
}

// NewCaller builds a governor around the given engine.
func NewCaller(engine Engine, cfg CallerConfig) *Caller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCallerConfig().Timeout
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RPM > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RPM)), 1)
	}
	return &Caller{
		engine:  engine,
		cfg:     cfg,
		limiter: limiter,
		log:     logrus.WithField("engine", engine.Name()),
	}
}

// Call performs one governed OCR call. Transient failures retry with the
// configured backoff; permanent failures and context cancellation return
// immediately.
func (c *Caller) Call(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt - 1)
			c.log.WithError(lastErr).WithFields(logrus.Fields{
				"attempt": attempt + 1,
				"wait":    wait,
			}).Warn("Retrying OCR call")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		text, err := c.engine.Recognize(callCtx, req)
		cancel()
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !retryable(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("%s call failed after %d attempts: %w",
		c.engine.Name(), c.cfg.MaxAttempts, lastErr)
}

func (c *Caller) backoff(step int) time.Duration {
	ladder := c.cfg.Backoff
	if len(ladder) == 0 {
		ladder = DefaultCallerConfig().Backoff
	}
	if step >= len(ladder) {
		step = len(ladder) - 1
	}
	return ladder[step]
}

// retryable classifies an attempt failure. Timeouts, rate limits and
// server-side trouble retry; everything else, bad requests above all, does
// not.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted:
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range []string{
		"rate limit", "too many requests", "429",
		"timeout", "timed out", "temporarily", "overloaded",
		"connection reset", "502", "503", "504",
	} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
