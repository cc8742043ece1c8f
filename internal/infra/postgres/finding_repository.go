package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/leekyio/api/pkg/domain/finding"
	"github.com/leekyio/api/pkg/domain/shared"
)

// FindingRepository implements finding.Repository using PostgreSQL.
type FindingRepository struct {
	db *DB
}

// NewFindingRepository creates a new FindingRepository.
func NewFindingRepository(db *DB) *FindingRepository {
	return &FindingRepository{db: db}
}

// Append inserts a finding and updates the owning scan's aggregates in
// one transaction. Concurrent readers either see the finding together
// with the bumped count or neither.
func (r *FindingRepository) Append(ctx context.Context, f *finding.Finding) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		insertQuery := `
			INSERT INTO findings (
				id, scan_id, classification, finding, repository,
				file_path, github_url, raw_content, risk_score, created_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		_, err := tx.ExecContext(ctx, insertQuery,
			f.ID.String(),
			f.ScanID.String(),
			f.Classification,
			f.Finding,
			f.Repository,
			f.FilePath,
			nullString(f.GitHubURL),
			nullString(f.RawContent),
			f.RiskScore,
			f.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert finding: %w", err)
		}

		updateQuery := `
			UPDATE scans
			SET findings_count = findings_count + 1,
			    risk_score = GREATEST(risk_score, $2),
			    updated_at = NOW()
			WHERE id = $1
		`
		result, err := tx.ExecContext(ctx, updateQuery, f.ScanID.String(), f.RiskScore)
		if err != nil {
			return fmt.Errorf("failed to update scan aggregates: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check aggregate update: %w", err)
		}
		if affected == 0 {
			return shared.NewDomainError("NOT_FOUND", "scan not found", shared.ErrNotFound)
		}

		return nil
	})
}

// ListByScan returns a scan's findings in insertion order.
func (r *FindingRepository) ListByScan(ctx context.Context, scanID shared.ID) ([]*finding.Finding, error) {
	query := `
		SELECT id, scan_id, classification, finding, repository,
		       file_path, github_url, raw_content, risk_score, created_at
		FROM findings
		WHERE scan_id = $1
		ORDER BY seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, scanID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list findings: %w", err)
	}
	defer rows.Close()

	var findings []*finding.Finding
	for rows.Next() {
		f := &finding.Finding{}
		var (
			id        string
			scanIDStr string
			githubURL sql.NullString
			rawBody   sql.NullString
		)
		err := rows.Scan(
			&id,
			&scanIDStr,
			&f.Classification,
			&f.Finding,
			&f.Repository,
			&f.FilePath,
			&githubURL,
			&rawBody,
			&f.RiskScore,
			&f.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		if f.ID, err = shared.IDFromString(id); err != nil {
			return nil, fmt.Errorf("invalid finding id: %w", err)
		}
		if f.ScanID, err = shared.IDFromString(scanIDStr); err != nil {
			return nil, fmt.Errorf("invalid scan id: %w", err)
		}
		f.GitHubURL = nullStringValue(githubURL)
		f.RawContent = nullStringValue(rawBody)
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate findings: %w", err)
	}

	return findings, nil
}

// CountByScan returns the number of findings persisted for a scan.
func (r *FindingRepository) CountByScan(ctx context.Context, scanID shared.ID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM findings WHERE scan_id = $1", scanID.String(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count findings: %w", err)
	}
	return count, nil
}
