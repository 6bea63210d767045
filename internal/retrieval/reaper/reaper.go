// Package reaper implements the Ephemeral-Collection Reaper (C17): a
// periodic sweep that drops collections past their TTL and removes their
// registration. Grounded on cleanup_ephemeral_lambda.py, scheduled with
// github.com/robfig/cron/v3 for periodic scheduling.
package reaper

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/adverant/idp-retrieval-platform/internal/logging"
	"github.com/adverant/idp-retrieval-platform/internal/metrics"
	"github.com/adverant/idp-retrieval-platform/internal/retrieval/vectorstore"
)

// Clock is injected so sweeps are deterministic in tests.
type Clock func() time.Time

// Reaper is the C17 component.
type Reaper struct {
	backend vectorstore.Backend
	ttl     vectorstore.TTLRegistry
	log     *logging.Logger
	now     Clock
	cron    *cron.Cron
}

// New constructs a Reaper over the proxy's backend and TTL registry.
func New(backend vectorstore.Backend, ttl vectorstore.TTLRegistry, log *logging.Logger, now Clock) *Reaper {
	if now == nil {
		now = time.Now
	}
	return &Reaper{backend: backend, ttl: ttl, log: log, now: now}
}

// Sweep runs one pass: drop every registered collection whose expires_at
// has elapsed, then remove its registration. Double-drops (backend already
// gone) are tolerated — DropCollection's idempotence is the backend's
// contract.
func (r *Reaper) Sweep(ctx context.Context) error {
	registrations, err := r.ttl.List(ctx)
	if err != nil {
		return err
	}

	now := r.now()
	for _, reg := range registrations {
		if reg.ExpiresAt.After(now) {
			continue
		}
		if err := r.backend.DropCollection(ctx, reg.Collection); err != nil {
			r.log.Error("failed to drop expired collection", "collection", reg.Collection, "error", err)
			continue
		}
		if err := r.ttl.Remove(ctx, reg.Collection); err != nil {
			r.log.Error("failed to remove TTL registration", "collection", reg.Collection, "error", err)
		}
		metrics.CollectionsReaped.Inc()
	}
	return nil
}

// StartSchedule registers Sweep on cronExpr (e.g. "@every 5m") and starts
// the cron scheduler, returning a stop function.
func (r *Reaper) StartSchedule(ctx context.Context, cronExpr string) (func(), error) {
	c := cron.New()
	_, err := c.AddFunc(cronExpr, func() {
		if err := r.Sweep(ctx); err != nil {
			r.log.Error("sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, err
	}
	r.cron = c
	c.Start()
	return func() { c.Stop() }, nil
}
