package classroom

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

// call runs fn through gax with a per-attempt timeout, retrying transient failures (429, 5xx,
// transport errors, attempt timeouts) with exponential backoff. Other 4xx responses are returned at once.
func (c *Client) call(ctx context.Context, op string, fn func(context.Context) error) error {
	attempt := func(ctx context.Context, _ gax.CallSettings) error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return fn(attemptCtx)
	}

	err := gax.Invoke(ctx, attempt, gax.WithRetry(func() gax.Retryer {
		return c.retryer(ctx, op)
	}))
	if err == nil {
		return nil
	}
	if isPermissionDenied(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrPermissionDenied, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (c *Client) retryer(ctx context.Context, op string) gax.Retryer {
	backoff := gax.Backoff{
		Initial:    c.baseDelay,
		Max:        c.baseDelay << c.maxRetries,
		Multiplier: 2,
	}
	return &boundedRetryer{
		op:     op,
		left:   c.maxRetries,
		logger: c.logger,
		inner: gax.OnErrorFunc(backoff, func(err error) bool {
			return ctx.Err() == nil && retryable(err)
		}),
	}
}

// boundedRetryer caps the number of retries granted by the wrapped policy.
type boundedRetryer struct {
	op     string
	left   int
	inner  gax.Retryer
	logger *zap.Logger
}

func (r *boundedRetryer) Retry(err error) (time.Duration, bool) {
	if r.left <= 0 {
		return 0, false
	}
	pause, ok := r.inner.Retry(err)
	if !ok {
		return 0, false
	}
	r.left--
	r.logger.Warn("classroom call failed, retrying",
		zap.String("op", r.op),
		zap.Int("retries_left", r.left),
		zap.Duration("delay", pause),
		zap.Error(err),
	)
	return pause, true
}

func isPermissionDenied(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusForbidden
}

func retryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
