package blobstore

import (
	"context"
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
	// MaxRetries is the number of extra Delete attempts after ErrUnavailable.
	MaxRetries uint64
	// InitialInterval is the first backoff delay; defaults to 50ms.
	InitialInterval time.Duration
	Logger          *zap.Logger
}

// Resilient wraps a Store with per-call timeouts. Deletes are idempotent and
// retried; uploads are not, since every attempt writes a new object.
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

func (r *Resilient) Upload(ctx context.Context, data []byte, filename, namespace, contentType string) (Object, error) {
	var obj Object
	err := r.call(ctx, func(ctx context.Context) error {
		var err error
		obj, err = r.next.Upload(ctx, data, filename, namespace, contentType)
		return err
	})
	return obj, err
}

func (r *Resilient) Delete(ctx context.Context, name string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.InitialInterval

	attempt := 0
	operation := func() error {
		attempt++
		err := r.call(ctx, func(ctx context.Context) error { return r.next.Delete(ctx, name) })
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrUnavailable) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		r.opts.Logger.Warn("blob delete failed, retrying",
			zap.String("blobName", name), zap.Int("attempt", attempt), zap.Error(err))
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, r.opts.MaxRetries), ctx))
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
