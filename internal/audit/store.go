// Package audit implements the Audit Store (C3): a per-document
// status/page-count record with monotone state progression, backed by
// PostgreSQL via pgx (generalized from a lib/pq UPSERT
// pattern in internal/storage/postgres.go).
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adverant/idp-retrieval-platform/internal/logging"
)

// Status is the document lifecycle state.
type Status string

const (
	StatusUploaded         Status = "UPLOADED"
	StatusSplit            Status = "SPLIT"
	StatusExtracted        Status = "EXTRACTED"
	StatusMissingPages     Status = "MISSING_PAGES"
	StatusCombined         Status = "COMBINED"
	StatusPIIDetected      Status = "PII_DETECTED"
	StatusRedactionStarted Status = "REDACTION_STARTED"
	StatusRedactionError   Status = "REDACTION_ERROR"
	StatusTimeout          Status = "TIMEOUT"
	StatusFailed           Status = "FAILED"
	StatusRedacted         Status = "REDACTED"
)

// order encodes the monotone-forward progression. MISSING_PAGES is the one
// state allowed to be revisited from itself or from SPLIT/EXTRACTED (the
// Combine Stage may transiently "revert" to it).
var order = map[Status]int{
	StatusUploaded:         0,
	StatusSplit:            1,
	StatusExtracted:        1,
	StatusMissingPages:     2,
	StatusCombined:         3,
	StatusPIIDetected:      4,
	StatusRedactionStarted: 5,
	StatusRedactionError:   6,
	StatusTimeout:          6,
	StatusFailed:           6,
	StatusRedacted:         6,
}

// Record is a single audit trail entry for a document.
type Record struct {
	DocumentID string
	Status     Status
	PageCount  *int
	Info       *string
	UpdatedAt  time.Time
}

// Store is the C3 component. A nil pool degrades every operation to a
// best-effort no-op, matching "missing table configuration degrades to a
// no-op".
type Store struct {
	pool *pgxpool.Pool
	log  *logging.Logger
}

// New constructs a Store. pool may be nil.
func New(pool *pgxpool.Pool, log *logging.Logger) *Store {
	return &Store{pool: pool, log: log}
}

// CreateIfAbsent inserts a fresh record at initialStatus if one does not
// already exist for documentID.
func (s *Store) CreateIfAbsent(ctx context.Context, documentID string, initialStatus Status) error {
	if s.pool == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO idp.audit_records (document_id, status, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (document_id) DO NOTHING
	`, documentID, string(initialStatus))
	if err != nil {
		s.log.Warn("audit create-if-absent failed", "documentId", documentID, "err", err)
	}
	return err
}

// Update applies a conditional status transition: newStatus is rejected
// (silently, logged) if it would move the record backward relative to the
// monotone order, UNLESS newStatus is MISSING_PAGES (explicitly allowed to
// be revisited by the Combine Stage).
func (s *Store) Update(ctx context.Context, documentID string, newStatus Status, pageCount *int, info *string) error {
	if s.pool == nil {
		return nil
	}

	current, err := s.Get(ctx, documentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		s.log.Warn("audit read-before-update failed", "documentId", documentID, "err", err)
	}
	if current != nil && newStatus != StatusMissingPages {
		if order[newStatus] < order[current.Status] {
			s.log.Debug("audit transition rejected: backward", "documentId", documentID,
				"from", current.Status, "to", newStatus)
			return nil
		}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO idp.audit_records (document_id, status, page_count, info, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (document_id) DO UPDATE SET
			status = EXCLUDED.status,
			page_count = COALESCE(EXCLUDED.page_count, idp.audit_records.page_count),
			info = EXCLUDED.info,
			updated_at = NOW()
	`, documentID, string(newStatus), pageCount, info)
	if err != nil {
		s.log.Error("audit update failed", "documentId", documentID, "err", err)
	}
	return err
}

// Get returns the current record, or nil if none exists (or the store is
// unconfigured).
func (s *Store) Get(ctx context.Context, documentID string) (*Record, error) {
	if s.pool == nil {
		return nil, nil
	}
	row := s.pool.QueryRow(ctx, `
		SELECT document_id, status, page_count, info, updated_at
		FROM idp.audit_records WHERE document_id = $1
	`, documentID)

	var rec Record
	var status string
	if err := row.Scan(&rec.DocumentID, &status, &rec.PageCount, &rec.Info, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rec.Status = Status(status)
	return &rec, nil
}
