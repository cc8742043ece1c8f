package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/leekyio/api/pkg/domain/credential"
	"github.com/leekyio/api/pkg/domain/shared"
)

// CredentialRepository implements credential.Repository using PostgreSQL.
type CredentialRepository struct {
	db *DB
}

// NewCredentialRepository creates a new CredentialRepository.
func NewCredentialRepository(db *DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Upsert creates the credential or replaces the token for the same owner
// and service, reactivating it if it was deactivated.
func (r *CredentialRepository) Upsert(ctx context.Context, c *credential.Credential) error {
	query := `
		INSERT INTO user_credentials (
			id, owner_id, service, encrypted_token, is_active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (owner_id, service) DO UPDATE
		SET encrypted_token = EXCLUDED.encrypted_token,
		    is_active = TRUE,
		    updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		c.ID.String(),
		c.OwnerID.String(),
		c.Service,
		c.EncryptedToken,
		c.IsActive,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}
	return nil
}

// GetActive returns the active credential for an owner and service.
func (r *CredentialRepository) GetActive(ctx context.Context, ownerID shared.ID, service string) (*credential.Credential, error) {
	query := `
		SELECT id, owner_id, service, encrypted_token, is_active, created_at, updated_at
		FROM user_credentials
		WHERE owner_id = $1 AND service = $2 AND is_active = TRUE
	`

	c := &credential.Credential{}
	var id, owner string
	err := r.db.QueryRowContext(ctx, query, ownerID.String(), service).Scan(
		&id,
		&owner,
		&c.Service,
		&c.EncryptedToken,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.NewDomainError("NOT_FOUND", "credential not found", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	if c.ID, err = shared.IDFromString(id); err != nil {
		return nil, fmt.Errorf("invalid credential id: %w", err)
	}
	if c.OwnerID, err = shared.IDFromString(owner); err != nil {
		return nil, fmt.Errorf("invalid owner id: %w", err)
	}
	return c, nil
}

// ListServices returns the service names with an active credential for
// the owner. Token columns are never selected here.
func (r *CredentialRepository) ListServices(ctx context.Context, ownerID shared.ID) ([]string, error) {
	query := `
		SELECT service FROM user_credentials
		WHERE owner_id = $1 AND is_active = TRUE
		ORDER BY service
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list credential services: %w", err)
	}
	defer rows.Close()

	var services []string
	for rows.Next() {
		var service string
		if err := rows.Scan(&service); err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, service)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate services: %w", err)
	}

	return services, nil
}

// Deactivate soft-deletes the owner's credential for a service. Absent
// credentials are a no-op.
func (r *CredentialRepository) Deactivate(ctx context.Context, ownerID shared.ID, service string) error {
	query := `
		UPDATE user_credentials
		SET is_active = FALSE, updated_at = NOW()
		WHERE owner_id = $1 AND service = $2
	`

	if _, err := r.db.ExecContext(ctx, query, ownerID.String(), service); err != nil {
		return fmt.Errorf("failed to deactivate credential: %w", err)
	}
	return nil
}
