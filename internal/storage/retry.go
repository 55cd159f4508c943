package storage

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"go.uber.org/zap"

	"missionrewards/internal/metrics"
)

// Retrying bounds every Put by Timeout and retries transient network
// failures up to Retries extra times. Timeouts are not retried.
type Retrying struct {
	Next    Store
	Timeout time.Duration
	Retries int
	Backoff time.Duration
	Logger  *zap.Logger
}

func (r *Retrying) Put(ctx context.Context, prefix string, data []byte, contentType string) (string, error) {
	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= r.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				metrics.RecordArtifactUpload("failed", time.Since(start))
				return "", ctx.Err()
			case <-time.After(r.Backoff):
			}
		}
		url, err := r.putOnce(ctx, prefix, data, contentType)
		if err == nil {
			metrics.RecordArtifactUpload("stored", time.Since(start))
			return url, nil
		}
		lastErr = err
		if !IsTransient(err) {
			break
		}
		r.logger().Warn("artifact upload failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	metrics.RecordArtifactUpload("failed", time.Since(start))
	return "", lastErr
}

func (r *Retrying) putOnce(ctx context.Context, prefix string, data []byte, contentType string) (string, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	return r.Next.Put(ctx, prefix, data, contentType)
}

func (r *Retrying) Delete(ctx context.Context, url string) error {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	return r.Next.Delete(ctx, url)
}

func (r *Retrying) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// IsTransient reports whether err looks like a network hiccup worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return !netErr.Timeout()
	}
	return false
}
