package batch

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"postbot/internal/errors"
)

type Status string

const (
	Succeeded Status = "succeeded"
	Failed    Status = "failed"
)

// Outcome is what happened to one item. Detail carries an optional
// success payload, e.g. the path an attachment was written to.
type Outcome struct {
	Status Status           `json:"status"`
	Reason string           `json:"reason,omitempty"`
	Kind   errors.ErrorType `json:"kind,omitempty"`
	Detail string           `json:"detail,omitempty"`
}

func Success(detail string) Outcome {
	return Outcome{Status: Succeeded, Detail: detail}
}

func Failure(err error) Outcome {
	return Outcome{Status: Failed, Reason: err.Error(), Kind: errors.TypeOf(err)}
}

// Result maps item keys (usually repository paths) to their outcome.
type Result map[string]Outcome

// Entry is one key/outcome pair, for ordered presentation.
type Entry struct {
	Key string `json:"key"`
	Outcome
}

func (r Result) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entries returns the outcomes sorted by key.
func (r Result) Entries() []Entry {
	entries := make([]Entry, 0, len(r))
	for _, k := range r.Keys() {
		entries = append(entries, Entry{Key: k, Outcome: r[k]})
	}
	return entries
}

func (r Result) Failed() []string {
	return r.keysWith(Failed)
}

func (r Result) Succeeded() []string {
	return r.keysWith(Succeeded)
}

func (r Result) OK() bool {
	return len(r.Failed()) == 0
}

func (r Result) keysWith(status Status) []string {
	var keys []string
	for _, k := range r.Keys() {
		if r[k].Status == status {
			keys = append(keys, k)
		}
	}
	return keys
}

// Action processes one item. The returned detail is kept on success.
type Action[T any] func(ctx context.Context, item T) (string, error)

type options struct {
	concurrency int
	logger      *zap.Logger
}

type Option func(*options)

// WithConcurrency bounds how many items run at once. The default is 1.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Run applies action to every item. A failing or panicking item is
// recorded and never stops the others; nothing is rolled back. Items
// whose key repeats an earlier one are dropped. Items not yet started
// when ctx is cancelled are recorded as failed.
func Run[T any](ctx context.Context, items []T, key func(T) string, action Action[T], opts ...Option) Result {
	o := options{concurrency: 1, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	result := make(Result, len(items))
	var mu sync.Mutex
	record := func(k string, outcome Outcome) {
		mu.Lock()
		result[k] = outcome
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(o.concurrency)

	seen := make(map[string]bool, len(items))
	for _, item := range items {
		k := key(item)
		if seen[k] {
			o.logger.Debug("skipping duplicate batch item", zap.String("key", k))
			continue
		}
		seen[k] = true

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				record(k, Failure(errors.TransportError("not started", err)))
				return nil
			}
			outcome := runOne(ctx, item, action)
			if outcome.Status == Failed {
				o.logger.Warn("batch item failed",
					zap.String("key", k),
					zap.String("reason", outcome.Reason),
				)
			}
			record(k, outcome)
			return nil
		})
	}
	_ = g.Wait()

	return result
}

func runOne[T any](ctx context.Context, item T, action Action[T]) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = Failure(errors.Internal(fmt.Sprintf("panic: %v", r), nil))
		}
	}()

	detail, err := action(ctx, item)
	if err != nil {
		return Failure(err)
	}
	return Success(detail)
}
