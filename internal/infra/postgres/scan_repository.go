package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/leekyio/api/pkg/domain/scan"
	"github.com/leekyio/api/pkg/domain/shared"
	"github.com/leekyio/api/pkg/pagination"
)

// ScanRepository implements scan.Repository using PostgreSQL.
type ScanRepository struct {
	db *DB
}

// NewScanRepository creates a new ScanRepository.
func NewScanRepository(db *DB) *ScanRepository {
	return &ScanRepository{db: db}
}

// Create persists a new scan.
func (r *ScanRepository) Create(ctx context.Context, s *scan.Scan) error {
	query := `
		INSERT INTO scans (
			id, owner_id, domain, status, failure_reason,
			findings_count, risk_score, cancel_requested,
			created_at, completed_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		s.ID.String(),
		s.OwnerID.String(),
		s.Domain,
		string(s.Status),
		nullString(string(s.FailureReason)),
		s.FindingsCount,
		s.RiskScore,
		s.CancelRequested,
		s.CreatedAt,
		nullTime(s.CompletedAt),
		s.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.NewDomainError("ALREADY_EXISTS", "scan already exists", shared.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create scan: %w", err)
	}

	return nil
}

// GetByID retrieves a scan by ID without owner scoping.
func (r *ScanRepository) GetByID(ctx context.Context, id shared.ID) (*scan.Scan, error) {
	query := r.selectQuery() + " WHERE id = $1"
	row := r.db.QueryRowContext(ctx, query, id.String())
	return r.scanFromRow(row)
}

// GetByOwnerAndID retrieves a scan by owner and ID. A scan belonging to a
// different owner is reported as not found.
func (r *ScanRepository) GetByOwnerAndID(ctx context.Context, ownerID, id shared.ID) (*scan.Scan, error) {
	query := r.selectQuery() + " WHERE owner_id = $1 AND id = $2"
	row := r.db.QueryRowContext(ctx, query, ownerID.String(), id.String())
	return r.scanFromRow(row)
}

// ListByOwner lists an owner's scans, newest first.
func (r *ScanRepository) ListByOwner(ctx context.Context, ownerID shared.ID, page pagination.Pagination) (pagination.Result[*scan.Scan], error) {
	var result pagination.Result[*scan.Scan]

	var total int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM scans WHERE owner_id = $1", ownerID.String()).Scan(&total)
	if err != nil {
		return result, fmt.Errorf("failed to count scans: %w", err)
	}

	query := r.selectQuery() + fmt.Sprintf(
		" WHERE owner_id = $1 ORDER BY created_at DESC LIMIT %d OFFSET %d",
		page.Limit(), page.Offset(),
	)
	rows, err := r.db.QueryContext(ctx, query, ownerID.String())
	if err != nil {
		return result, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	var scans []*scan.Scan
	for rows.Next() {
		s, err := r.scanFromRows(rows)
		if err != nil {
			return result, err
		}
		scans = append(scans, s)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("failed to iterate scans: %w", err)
	}

	return pagination.NewResult(scans, total, page), nil
}

// Update persists lifecycle fields. The findings aggregates and the
// cancel flag are owned by other writers and deliberately left out.
func (r *ScanRepository) Update(ctx context.Context, s *scan.Scan) error {
	query := `
		UPDATE scans
		SET status = $2, failure_reason = $3, completed_at = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		s.ID.String(),
		string(s.Status),
		nullString(string(s.FailureReason)),
		nullTime(s.CompletedAt),
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update scan: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return shared.NewDomainError("NOT_FOUND", "scan not found", shared.ErrNotFound)
	}

	return nil
}

// RequestCancel sets the cancel flag on a non-terminal scan, scoped to
// the owner.
func (r *ScanRepository) RequestCancel(ctx context.Context, ownerID, id shared.ID) error {
	query := `
		UPDATE scans
		SET cancel_requested = TRUE, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
		  AND status IN ('pending', 'running')
	`

	result, err := r.db.ExecContext(ctx, query, id.String(), ownerID.String())
	if err != nil {
		return fmt.Errorf("failed to request cancel: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check cancel result: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Distinguish a missing or foreign scan from a finished one.
	var status string
	err = r.db.QueryRowContext(ctx,
		"SELECT status FROM scans WHERE id = $1 AND owner_id = $2",
		id.String(), ownerID.String(),
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return shared.NewDomainError("NOT_FOUND", "scan not found", shared.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to inspect scan status: %w", err)
	}
	return shared.NewDomainError("ALREADY_TERMINAL", "scan already finished", shared.ErrAlreadyTerminal)
}

// CancelRequested reports whether cancellation has been requested.
func (r *ScanRepository) CancelRequested(ctx context.Context, id shared.ID) (bool, error) {
	var requested bool
	err := r.db.QueryRowContext(ctx,
		"SELECT cancel_requested FROM scans WHERE id = $1", id.String(),
	).Scan(&requested)
	if errors.Is(err, sql.ErrNoRows) {
		return false, shared.NewDomainError("NOT_FOUND", "scan not found", shared.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cancel flag: %w", err)
	}
	return requested, nil
}

func (r *ScanRepository) selectQuery() string {
	return `
		SELECT id, owner_id, domain, status, failure_reason,
		       findings_count, risk_score, cancel_requested,
		       created_at, completed_at, updated_at
		FROM scans
	`
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ScanRepository) scanFromRow(row *sql.Row) (*scan.Scan, error) {
	s, err := r.scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.NewDomainError("NOT_FOUND", "scan not found", shared.ErrNotFound)
	}
	return s, err
}

func (r *ScanRepository) scanFromRows(rows *sql.Rows) (*scan.Scan, error) {
	return r.scanRow(rows)
}

func (r *ScanRepository) scanRow(row rowScanner) (*scan.Scan, error) {
	s := &scan.Scan{}
	var (
		id            string
		ownerID       string
		status        string
		failureReason sql.NullString
		completedAt   sql.NullTime
	)

	err := row.Scan(
		&id,
		&ownerID,
		&s.Domain,
		&status,
		&failureReason,
		&s.FindingsCount,
		&s.RiskScore,
		&s.CancelRequested,
		&s.CreatedAt,
		&completedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if s.ID, err = shared.IDFromString(id); err != nil {
		return nil, fmt.Errorf("invalid scan id: %w", err)
	}
	if s.OwnerID, err = shared.IDFromString(ownerID); err != nil {
		return nil, fmt.Errorf("invalid owner id: %w", err)
	}
	s.Status = scan.Status(status)
	s.FailureReason = scan.FailureReason(nullStringValue(failureReason))
	s.CompletedAt = nullTimeValue(completedAt)

	return s, nil
}
