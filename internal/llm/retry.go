package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/capitalize-ai/sentiment-support-agent/pkg/logger"
)

// RetryClient retries transient completion failures with exponential backoff.
// Credential failures and cancelled contexts are returned immediately.
type RetryClient struct {
	next       Client
	maxRetries uint64
	newBackOff func() backoff.BackOff
	logger     *logger.Logger
}

// NewRetryClient wraps next so that each exchange is attempted up to
// maxRetries+1 times.
func NewRetryClient(next Client, maxRetries int, log *logger.Logger) *RetryClient {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetryClient{
		next:       next,
		maxRetries: uint64(maxRetries),
		newBackOff: defaultBackOff,
		logger:     logger.OrGlobal(log),
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// Name returns the wrapped provider name.
func (c *RetryClient) Name() string {
	return c.next.Name()
}

// Complete sends the request, retrying transient failures.
func (c *RetryClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	var resp *CompletionResponse

	op := func() error {
		r, err := c.next.Complete(ctx, req)
		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = r
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	err := backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		c.logger.Warn("completion failed, retrying",
			zap.String("provider", c.next.Name()),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
