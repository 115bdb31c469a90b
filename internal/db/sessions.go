package db

import (
	"context"

	"github.com/authentic/backend/internal/model"
)

func (db *Postgres) InsertRefreshSession(ctx context.Context, session *model.RefreshSession) error {
	query := `
		INSERT INTO refresh_sessions (id, user_id, token_hash, is_valid, device_info, ip_address, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, $4, $5, $6, NOW(), NOW())
	`
	_, err := db.Pool.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.TokenHash,
		session.DeviceInfo,
		session.IPAddress,
		session.ExpiresAt,
	)
	return err
}

func (db *Postgres) GetRefreshSessionByHash(ctx context.Context, userID, tokenHash string) (*model.RefreshSession, error) {
	query := `
		SELECT id, user_id, token_hash, replaced_by_hash, is_valid, device_info, ip_address, expires_at, created_at, updated_at
		FROM refresh_sessions
		WHERE user_id = $1 AND token_hash = $2
	`
	var s model.RefreshSession
	err := db.Pool.QueryRow(ctx, query, userID, tokenHash).Scan(
		&s.ID,
		&s.UserID,
		&s.TokenHash,
		&s.ReplacedByHash,
		&s.IsValid,
		&s.DeviceInfo,
		&s.IPAddress,
		&s.ExpiresAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// RevokeRefreshSession invalidates a session if it is still valid. Returns
// whether this call was the one that flipped the flag.
func (db *Postgres) RevokeRefreshSession(ctx context.Context, sessionID string) (bool, error) {
	query := `
		UPDATE refresh_sessions
		SET is_valid = FALSE, updated_at = NOW()
		WHERE id = $1 AND is_valid = TRUE
	`
	tag, err := db.Pool.Exec(ctx, query, sessionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RotateRefreshSession revokes the old session, records which digest
// replaced it, and inserts the successor, atomically. The old row stays
// behind as the audit trail of the issuance.
func (db *Postgres) RotateRefreshSession(ctx context.Context, oldSessionID string, next *model.RefreshSession) (bool, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, `
		UPDATE refresh_sessions
		SET is_valid = FALSE, replaced_by_hash = $2, updated_at = NOW()
		WHERE id = $1 AND is_valid = TRUE
	`, oldSessionID, next.TokenHash)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		// A concurrent rotation won; the presented secret is spent.
		return false, nil
	}

	if _, err = tx.Exec(ctx, `
		INSERT INTO refresh_sessions (id, user_id, token_hash, is_valid, device_info, ip_address, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, $4, $5, $6, NOW(), NOW())
	`, next.ID, next.UserID, next.TokenHash, next.DeviceInfo, next.IPAddress, next.ExpiresAt); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (db *Postgres) ListRefreshSessionsByUser(ctx context.Context, userID string, limit int) ([]model.RefreshSession, error) {
	query := `
		SELECT id, user_id, token_hash, replaced_by_hash, is_valid, device_info, ip_address, expires_at, created_at, updated_at
		FROM refresh_sessions
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT $2
	`
	rows, err := db.Pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.RefreshSession
	for rows.Next() {
		var s model.RefreshSession
		if err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.TokenHash,
			&s.ReplacedByHash,
			&s.IsValid,
			&s.DeviceInfo,
			&s.IPAddress,
			&s.ExpiresAt,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if sessions == nil {
		sessions = []model.RefreshSession{}
	}
	return sessions, rows.Err()
}

// PurgeExpiredRefreshSessions is the store-level stand-in for a TTL index:
// expired rows are garbage regardless of their validity flag.
func (db *Postgres) PurgeExpiredRefreshSessions(ctx context.Context) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM refresh_sessions WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
