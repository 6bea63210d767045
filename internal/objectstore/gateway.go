// Package objectstore implements the Object-Store Gateway (C2): a thin,
// retry-wrapped facade over a pluggable bucket backend. The object store
// itself is an external collaborator — this package only
// owns the contract, the copy-verification invariant, and retry policy.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sethvargo/go-retry"

	pipeerrors "github.com/adverant/idp-retrieval-platform/internal/errors"
	"github.com/adverant/idp-retrieval-platform/internal/logging"
)

// ObjectMeta describes a stored object without its body.
type ObjectMeta struct {
	Key         string
	Size        int64
	ETag        string
	ContentType string
	Tags        map[string]string
}

// Backend is the narrow, swappable contract a concrete object store (S3,
// GCS, MinIO, local disk) must satisfy. Gateway adds retries and copy
// verification on top of it.
type Backend interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, body []byte, contentType string) error
	Head(ctx context.Context, bucket, key string) (*ObjectMeta, error)
	List(ctx context.Context, bucket, prefix, continuationToken string) (keys []string, nextToken string, err error)
	Tag(ctx context.Context, bucket, key string, tags map[string]string) error
	GetTags(ctx context.Context, bucket, key string) (map[string]string, error)
}

// Gateway is the C2 component.
type Gateway struct {
	backend Backend
	log     *logging.Logger
	// MaxAttempts bounds the exponential backoff retry loop for
	// transient ("BackendUnavailable") errors. Zero uses a sane default.
	MaxAttempts int
}

// New constructs a Gateway over backend.
func New(backend Backend, log *logging.Logger) *Gateway {
	return &Gateway{backend: backend, log: log, MaxAttempts: 5}
}

func (g *Gateway) retrier() retry.Backoff {
	b := retry.NewExponential(200 * time.Millisecond)
	return retry.WithMaxRetries(uint64(g.maxAttempts()), b)
}

func (g *Gateway) maxAttempts() int {
	if g.MaxAttempts <= 0 {
		return 5
	}
	return g.MaxAttempts
}

// Get fetches an object's body. Missing objects surface ErrorNotFound;
// other errors are retried with bounded exponential backoff.
func (g *Gateway) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	var body []byte
	err := retry.Do(ctx, g.retrier(), func(ctx context.Context) error {
		b, err := g.backend.Get(ctx, bucket, key)
		if err != nil {
			if isNotFound(err) {
				return err // terminal, not retryable
			}
			return retry.RetryableError(err)
		}
		body = b
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return nil, pipeerrors.NewNotFoundError(key, fmt.Sprintf("%s/%s", bucket, key))
		}
		return nil, pipeerrors.NewBackendUnavailableError(key, "object-store", err)
	}
	return body, nil
}

// Put writes an object's body, retrying transient failures.
func (g *Gateway) Put(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	err := retry.Do(ctx, g.retrier(), func(ctx context.Context) error {
		if err := g.backend.Put(ctx, bucket, key, body, contentType); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return pipeerrors.NewBackendUnavailableError(key, "object-store", err)
	}
	return nil
}

// Head returns metadata for key, or nil (no error) if missing — callers
// that treat absence as "stage not ready" should check for a nil return.
func (g *Gateway) Head(ctx context.Context, bucket, key string) (*ObjectMeta, error) {
	meta, err := g.backend.Head(ctx, bucket, key)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, pipeerrors.NewBackendUnavailableError(key, "object-store", err)
	}
	return meta, nil
}

// Exists is a convenience wrapper around Head.
func (g *Gateway) Exists(ctx context.Context, bucket, key string) (bool, error) {
	meta, err := g.Head(ctx, bucket, key)
	return meta != nil, err
}

// List enumerates keys under prefix, paging via continuationToken.
func (g *Gateway) List(ctx context.Context, bucket, prefix, continuationToken string) ([]string, string, error) {
	keys, next, err := g.backend.List(ctx, bucket, prefix, continuationToken)
	if err != nil {
		return nil, "", pipeerrors.NewBackendUnavailableError(prefix, "object-store", err)
	}
	return keys, next, nil
}

// Copy copies src to dst within bucket and verifies the copy by comparing
// size and ETag via a follow-up Head call to catch silent corruption.
func (g *Gateway) Copy(ctx context.Context, bucket, src, dst string) error {
	body, err := g.Get(ctx, bucket, src)
	if err != nil {
		return err
	}
	srcMeta, err := g.Head(ctx, bucket, src)
	if err != nil {
		return err
	}
	if err := g.Put(ctx, bucket, dst, body, ""); err != nil {
		return err
	}
	dstMeta, err := g.Head(ctx, bucket, dst)
	if err != nil {
		return err
	}
	if dstMeta == nil || srcMeta == nil || dstMeta.Size != srcMeta.Size || dstMeta.ETag != srcMeta.ETag {
		return &pipeerrors.ProcessingError{
			Code:    pipeerrors.ErrorCopyVerification,
			Message: fmt.Sprintf("copy verification failed: %s -> %s", src, dst),
			JobID:   dst,
		}
	}
	return nil
}

// Tag attaches tags to an object.
func (g *Gateway) Tag(ctx context.Context, bucket, key string, tags map[string]string) error {
	if err := g.backend.Tag(ctx, bucket, key, tags); err != nil {
		return pipeerrors.NewBackendUnavailableError(key, "object-store", err)
	}
	return nil
}

// GetTags reads tags attached to an object.
func (g *Gateway) GetTags(ctx context.Context, bucket, key string) (map[string]string, error) {
	tags, err := g.backend.GetTags(ctx, bucket, key)
	if err != nil {
		if isNotFound(err) {
			return map[string]string{}, nil
		}
		return nil, pipeerrors.NewBackendUnavailableError(key, "object-store", err)
	}
	return tags, nil
}

func isNotFound(err error) bool {
	type notFounder interface{ NotFound() bool }
	if nf, ok := err.(notFounder); ok {
		return nf.NotFound()
	}
	return false
}

// IsNotFound reports whether err is the NotFound error Get/Copy/etc return
// for a missing key, including the gateway's wrapped ProcessingError form.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if pe, ok := err.(*pipeerrors.ProcessingError); ok {
		return pe.Code == pipeerrors.ErrorNotFound
	}
	return isNotFound(err)
}

// ReadAll drains r fully, used by backends that stream bodies.
func ReadAll(r io.Reader) ([]byte, error) {
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
