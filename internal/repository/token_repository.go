package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/prperemyshlev/wearable-sync/internal/domain"
	"github.com/prperemyshlev/wearable-sync/internal/utils"
	"github.com/prperemyshlev/wearable-sync/pkg/database"
)

// tokenRepository implements TokenRepository interface
type tokenRepository struct {
	db     *database.Postgres
	sealer *utils.Sealer
}

// NewTokenRepository creates a new token repository. Token values are sealed
// with sealer before they reach the database.
func NewTokenRepository(db *database.Postgres, sealer *utils.Sealer) TokenRepository {
	return &tokenRepository{db: db, sealer: sealer}
}

// ListByUserProvider retrieves all tokens for the pair ordered by updated_at descending
func (r *tokenRepository) ListByUserProvider(ctx context.Context, userID, provider string) ([]*domain.TokenRecord, error) {
	query := `
		SELECT id, user_id, provider, access_token, refresh_token, expires_at, created_at, updated_at
		FROM integration_tokens
		WHERE user_id = $1 AND provider = $2
		ORDER BY updated_at DESC, created_at DESC
	`

	rows, err := r.db.DB.QueryContext(ctx, query, userID, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens by user and provider: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.TokenRecord
	for rows.Next() {
		token := &domain.TokenRecord{}
		var refreshToken sql.NullString

		err := rows.Scan(
			&token.ID,
			&token.UserID,
			&token.Provider,
			&token.AccessToken,
			&refreshToken,
			&token.ExpiresAt,
			&token.CreatedAt,
			&token.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}

		if token.AccessToken, err = r.sealer.Open(token.AccessToken); err != nil {
			return nil, fmt.Errorf("failed to decrypt access token: %w", err)
		}
		if refreshToken.Valid {
			if token.RefreshToken, err = r.sealer.Open(refreshToken.String); err != nil {
				return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
			}
		}

		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tokens: %w", err)
	}

	return tokens, nil
}

// Upsert updates the newest row for the pair in place, or inserts a new one
// when none exists, in a single statement.
func (r *tokenRepository) Upsert(ctx context.Context, token *domain.TokenRecord) error {
	query := `
		WITH latest AS (
			SELECT id FROM integration_tokens
			WHERE user_id = $2::text AND provider = $3::text
			ORDER BY updated_at DESC, created_at DESC
			LIMIT 1
		), updated AS (
			UPDATE integration_tokens t
			SET access_token = $4::text, refresh_token = $5::text, expires_at = $6::timestamptz, updated_at = $7::timestamptz
			FROM latest
			WHERE t.id = latest.id
			RETURNING t.id, t.created_at
		), inserted AS (
			INSERT INTO integration_tokens (id, user_id, provider, access_token, refresh_token, expires_at, created_at, updated_at)
			SELECT $1::uuid, $2::text, $3::text, $4::text, $5::text, $6::timestamptz, $7::timestamptz, $7::timestamptz
			WHERE NOT EXISTS (SELECT 1 FROM updated)
			RETURNING id, created_at
		)
		SELECT id, created_at FROM updated
		UNION ALL
		SELECT id, created_at FROM inserted
	`

	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.UpdatedAt.IsZero() {
		token.UpdatedAt = time.Now()
	}

	accessToken, err := r.sealer.Seal(token.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refreshToken, err := r.sealer.Seal(token.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	err = r.db.DB.QueryRowContext(ctx, query,
		token.ID,
		token.UserID,
		token.Provider,
		accessToken,
		sql.NullString{String: refreshToken, Valid: refreshToken != ""},
		token.ExpiresAt,
		token.UpdatedAt,
	).Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert token: %w", err)
	}

	return nil
}

// DeleteByIDs deletes the given token rows
func (r *tokenRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := `DELETE FROM integration_tokens WHERE id = ANY($1::uuid[])`

	if _, err := r.db.DB.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to delete tokens: %w", err)
	}

	return nil
}

// DeleteByUserProvider deletes every token row for the pair
func (r *tokenRepository) DeleteByUserProvider(ctx context.Context, userID, provider string) (int64, error) {
	query := `DELETE FROM integration_tokens WHERE user_id = $1 AND provider = $2`

	result, err := r.db.DB.ExecContext(ctx, query, userID, provider)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tokens: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
