// Package dispatch implements the Stage Dispatcher (C4): it filters
// object-store notifications by prefix/extension and invokes the matching
// stage handler, isolating per-record failures so one bad record never
// fails a whole notification batch (grounded on services/idp/3-pdf-split
// through 7-combine's `_handle_record`/per-record try/except pattern in
// original_source, and the worker-pool shape previously used for
// per-task concurrency in internal/queue).
package dispatch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/adverant/idp-retrieval-platform/internal/logging"
	"github.com/adverant/idp-retrieval-platform/internal/metrics"
)

// Record mirrors an S3-event-shaped object-store notification payload.
type Record struct {
	Bucket    string
	Key       string
	EventType string
}

// Batch is a notification batch as delivered by the queue transport.
type Batch struct {
	Records []Record
}

// ItemFailure reports one record's failure without failing the batch.
type ItemFailure struct {
	Key string
	Err error
}

// StageHandler is a single-purpose, stateless stage. Matches performs the
// bucket/prefix/extension contract check; Handle does the
// actual work for a matched record.
type StageHandler interface {
	Name() string
	Matches(bucket, key string) bool
	Handle(ctx context.Context, bucket, key string) error
}

// Dispatcher is the C4 component: holds the ordered list of stage
// handlers a notification may fan out to (usually exactly one matches).
type Dispatcher struct {
	handlers    []StageHandler
	log         *logging.Logger
	Concurrency int
}

// New constructs a Dispatcher over handlers, invoked in registration order.
func New(log *logging.Logger, handlers ...StageHandler) *Dispatcher {
	return &Dispatcher{handlers: handlers, log: log, Concurrency: 8}
}

// Dispatch processes every record in batch concurrently (bounded by
// Concurrency) and returns the set of per-record failures. It never
// returns an error for the batch as a whole.
func (d *Dispatcher) Dispatch(ctx context.Context, batch Batch) []ItemFailure {
	if d.Concurrency <= 0 {
		d.Concurrency = 8
	}
	sem := make(chan struct{}, d.Concurrency)
	var mu sync.Mutex
	var failures []ItemFailure
	var wg sync.WaitGroup

	for _, rec := range batch.Records {
		rec := rec
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := d.dispatchOne(ctx, rec); err != nil {
				mu.Lock()
				failures = append(failures, ItemFailure{Key: rec.Key, Err: err})
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return failures
}

func (d *Dispatcher) dispatchOne(ctx context.Context, rec Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("stage handler panicked", "key", rec.Key, "panic", r)
			err = panicError{r}
		}
	}()

	matched := false
	for _, h := range d.handlers {
		if !h.Matches(rec.Bucket, rec.Key) {
			continue
		}
		matched = true
		d.log.Debug("dispatching record", "stage", h.Name(), "bucket", rec.Bucket, "key", rec.Key)
		start := time.Now()
		herr := h.Handle(ctx, rec.Bucket, rec.Key)
		metrics.StageDuration.WithLabelValues(h.Name()).Observe(time.Since(start).Seconds())
		if herr != nil {
			d.log.Error("stage handler failed", "stage", h.Name(), "key", rec.Key, "err", herr)
			metrics.StageRecords.WithLabelValues(h.Name(), "error").Inc()
			return herr
		}
		metrics.StageRecords.WithLabelValues(h.Name(), "ok").Inc()
		return nil
	}
	if !matched {
		d.log.Debug("no stage matched record, skipping", "bucket", rec.Bucket, "key", rec.Key)
	}
	return nil
}

type panicError struct{ v interface{} }

func (p panicError) Error() string { return "panic in stage handler" }

// NormalizePrefix ensures prefix ends with "/", mirroring the original
// services' prefix-canonicalization step before a contract check.
func NormalizePrefix(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return prefix
	}
	return prefix + "/"
}

// HasExtension reports whether key ends with any of exts (case-insensitive,
// exts include the leading dot, e.g. ".pdf").
func HasExtension(key string, exts ...string) bool {
	lower := strings.ToLower(key)
	for _, e := range exts {
		if strings.HasSuffix(lower, strings.ToLower(e)) {
			return true
		}
	}
	return false
}
