package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ResilientOptions configures NewResilient.
type ResilientOptions struct {
	// Timeout bounds every single backend call. Zero disables it.
	Timeout time.Duration
	// MaxRetries is the number of extra attempts for idempotent reads that
	// fail with ErrUnavailable.
	MaxRetries uint64
	// InitialInterval is the first backoff delay; defaults to 50ms.
	InitialInterval time.Duration
	Logger          *zap.Logger
}

// Resilient wraps a Store with per-call timeouts and bounded retries for
// reads. Writes are never retried.
type Resilient struct {
	next Store
	opts ResilientOptions
}

// NewResilient wraps next.
func NewResilient(next Store, opts ResilientOptions) *Resilient {
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 50 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Resilient{next: next, opts: opts}
}

func (r *Resilient) Get(ctx context.Context, collection, id string) (*Document, error) {
	var doc *Document
	err := r.read(ctx, "get", func(ctx context.Context) error {
		var err error
		doc, err = r.next.Get(ctx, collection, id)
		return err
	})
	return doc, err
}

func (r *Resilient) Query(ctx context.Context, collection string, filter Filter, limit int) ([]Document, error) {
	var docs []Document
	err := r.read(ctx, "query", func(ctx context.Context) error {
		var err error
		docs, err = r.next.Query(ctx, collection, filter, limit)
		return err
	})
	return docs, err
}

func (r *Resilient) All(ctx context.Context, collection string) ([]Document, error) {
	var docs []Document
	err := r.read(ctx, "all", func(ctx context.Context) error {
		var err error
		docs, err = r.next.All(ctx, collection)
		return err
	})
	return docs, err
}

func (r *Resilient) Ping(ctx context.Context) error {
	return r.write(ctx, func(ctx context.Context) error {
		return r.next.Ping(ctx)
	})
}

func (r *Resilient) Set(ctx context.Context, collection, id string, data json.RawMessage) error {
	return r.write(ctx, func(ctx context.Context) error {
		return r.next.Set(ctx, collection, id, data)
	})
}

func (r *Resilient) Add(ctx context.Context, collection string, data json.RawMessage) (string, error) {
	var id string
	err := r.write(ctx, func(ctx context.Context) error {
		var err error
		id, err = r.next.Add(ctx, collection, data)
		return err
	})
	return id, err
}

func (r *Resilient) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return r.write(ctx, func(ctx context.Context) error {
		return r.next.Update(ctx, collection, id, fields)
	})
}

func (r *Resilient) Delete(ctx context.Context, collection, id string) error {
	return r.write(ctx, func(ctx context.Context) error {
		return r.next.Delete(ctx, collection, id)
	})
}

func (r *Resilient) CreateUnique(ctx context.Context, collection, id string, unique Filter, data json.RawMessage) (string, error) {
	var created string
	err := r.write(ctx, func(ctx context.Context) error {
		var err error
		created, err = r.next.CreateUnique(ctx, collection, id, unique, data)
		return err
	})
	return created, err
}

func (r *Resilient) Close() error {
	return r.next.Close()
}

func (r *Resilient) read(ctx context.Context, op string, fn func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.InitialInterval

	attempt := 0
	operation := func() error {
		attempt++
		err := r.call(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrUnavailable) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		r.opts.Logger.Warn("document store read failed, retrying",
			zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, r.opts.MaxRetries), ctx))
}

func (r *Resilient) write(ctx context.Context, fn func(context.Context) error) error {
	return r.call(ctx, fn)
}

func (r *Resilient) call(ctx context.Context, fn func(context.Context) error) error {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	err := fn(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrUnavailable) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
