package content

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// retryStatuses are the responses a read is retried on. Writes are never
// retried: a PUT that timed out may still have committed.
var retryStatuses = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

type retryLogger struct {
	*zap.SugaredLogger
}

func (l retryLogger) Printf(msg string, args ...interface{}) {
	l.Debugf(msg, args...)
}

func readRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	return slices.Contains(retryStatuses, resp.StatusCode), nil
}

func newReadClient(opts Options, logger *zap.Logger) *http.Client {
	retryClient := retryablehttp.NewClient()
	if opts.Transport != nil {
		retryClient.HTTPClient.Transport = opts.Transport
	}
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = retryLogger{logger.Sugar()}
	retryClient.RetryMax = opts.Retries
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.CheckRetry = readRetryPolicy
	// hand the last response back so its status and body reach the caller
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return retryClient.StandardClient()
}

func newWriteClient(opts Options) *http.Client {
	c := &http.Client{Timeout: opts.Timeout}
	if opts.Transport != nil {
		c.Transport = opts.Transport
	}
	return c
}
