package db

import (
	"context"
	"time"

	"github.com/authentic/backend/internal/model"
)

func (db *Postgres) InsertOtpChallenge(ctx context.Context, userID, code string, expiresAt time.Time) (*model.OtpChallenge, error) {
	query := `
		INSERT INTO otp_challenges (user_id, code, status, consumed, created_at, expires_at)
		VALUES ($1, $2, 'pending', FALSE, NOW(), $3)
		RETURNING id, user_id, code, status, consumed, created_at, expires_at
	`
	var ch model.OtpChallenge
	err := db.Pool.QueryRow(ctx, query, userID, code, expiresAt).Scan(
		&ch.ID,
		&ch.UserID,
		&ch.Code,
		&ch.Status,
		&ch.Consumed,
		&ch.CreatedAt,
		&ch.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// GetLatestPendingOtp returns the most recently created unconsumed challenge
// for the user. Older pending challenges are never authoritative.
func (db *Postgres) GetLatestPendingOtp(ctx context.Context, userID string) (*model.OtpChallenge, error) {
	query := `
		SELECT id, user_id, code, status, consumed, created_at, expires_at
		FROM otp_challenges
		WHERE user_id = $1 AND consumed = FALSE
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	var ch model.OtpChallenge
	err := db.Pool.QueryRow(ctx, query, userID).Scan(
		&ch.ID,
		&ch.UserID,
		&ch.Code,
		&ch.Status,
		&ch.Consumed,
		&ch.CreatedAt,
		&ch.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// GetPendingOtpByCode supports the code-only verification path, when the
// client did not retain the email alongside the code.
func (db *Postgres) GetPendingOtpByCode(ctx context.Context, code string) (*model.OtpChallenge, error) {
	query := `
		SELECT id, user_id, code, status, consumed, created_at, expires_at
		FROM otp_challenges
		WHERE code = $1 AND consumed = FALSE
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	var ch model.OtpChallenge
	err := db.Pool.QueryRow(ctx, query, code).Scan(
		&ch.ID,
		&ch.UserID,
		&ch.Code,
		&ch.Status,
		&ch.Consumed,
		&ch.CreatedAt,
		&ch.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// ConsumeOtp flips a still-pending challenge to a terminal status. The
// conditional WHERE makes concurrent verifications race safely: exactly one
// caller observes true, everyone else false.
func (db *Postgres) ConsumeOtp(ctx context.Context, challengeID int64, status string) (bool, error) {
	query := `
		UPDATE otp_challenges
		SET consumed = TRUE, status = $2
		WHERE id = $1 AND consumed = FALSE
	`
	tag, err := db.Pool.Exec(ctx, query, challengeID, status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ConsumeAllPendingOtps supersedes every outstanding challenge for the user,
// used on resend so an older leaked code cannot stay valid.
func (db *Postgres) ConsumeAllPendingOtps(ctx context.Context, userID string) error {
	query := `
		UPDATE otp_challenges
		SET consumed = TRUE, status = 'used'
		WHERE user_id = $1 AND consumed = FALSE
	`
	_, err := db.Pool.Exec(ctx, query, userID)
	return err
}
