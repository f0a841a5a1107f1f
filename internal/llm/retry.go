package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sirupsen/logrus"

	"contentmachine/internal/logging"
	"contentmachine/internal/upstream"
)

// RetryConfig bounds how often a failed completion is re-attempted.
// MaxRetries 0 means a single attempt.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Logger     logrus.FieldLogger
}

type retryingCompleter struct {
	next   Completer
	policy retrypolicy.RetryPolicy[string]
	logger logrus.FieldLogger
}

// Retrying wraps next in a bounded retry-with-backoff policy.
// Only network failures, 429 and 5xx responses are retried.
func Retrying(next Completer, cfg RetryConfig) Completer {
	if cfg.MaxRetries <= 0 {
		return next
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = 10 * cfg.BaseDelay
	}

	policy := retrypolicy.NewBuilder[string]().
		HandleIf(func(_ string, err error) bool { return Retryable(err) }).
		WithMaxRetries(cfg.MaxRetries).
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithJitterFactor(0.1).
		ReturnLastFailure().
		Build()

	return &retryingCompleter{next: next, policy: policy, logger: logging.OrDiscard(cfg.Logger)}
}

func (r *retryingCompleter) Complete(ctx context.Context, req Request) (string, error) {
	attempt := 0
	return failsafe.With(r.policy).WithContext(ctx).Get(func() (string, error) {
		attempt++
		text, err := r.next.Complete(ctx, req)
		if err != nil && Retryable(err) {
			r.logger.WithFields(logging.Fields{"attempt": attempt, "error": err.Error()}).Warn("completion attempt failed")
		}
		return text, err
	})
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) {
		return false
	}
	status := upstream.StatusOf(err)
	if status == 0 {
		return true
	}
	return status == http.StatusTooManyRequests || status >= 500
}
