package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/authentic/backend/internal/config"
	"github.com/authentic/backend/internal/db"
	"github.com/authentic/backend/internal/model"
)

// OtpRepo is the challenge slice of the store.
type OtpRepo interface {
	InsertOtpChallenge(ctx context.Context, userID, code string, expiresAt time.Time) (*model.OtpChallenge, error)
	GetLatestPendingOtp(ctx context.Context, userID string) (*model.OtpChallenge, error)
	GetPendingOtpByCode(ctx context.Context, code string) (*model.OtpChallenge, error)
	ConsumeOtp(ctx context.Context, challengeID int64, status string) (bool, error)
	ConsumeAllPendingOtps(ctx context.Context, userID string) error
}

// UserRepo is the credential slice of the store.
type UserRepo interface {
	CreateUser(ctx context.Context, user *model.User) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	LinkGoogleAccount(ctx context.Context, userID, googleID string) (*model.User, error)
}

type OtpService struct {
	repo  OtpRepo
	users UserRepo
	ttl   time.Duration
}

func NewOtpService(repo OtpRepo, users UserRepo, cfg config.AuthConfig) (*OtpService, error) {
	ttl, err := time.ParseDuration(cfg.OtpTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid OTP_TTL", ErrMisconfigured)
	}
	return &OtpService{repo: repo, users: users, ttl: ttl}, nil
}

func (s *OtpService) TTL() time.Duration {
	return s.ttl
}

// Issue creates a fresh challenge and returns its code for out-of-band
// delivery. The code is never returned in an HTTP response body.
func (s *OtpService) Issue(ctx context.Context, userID string) (*model.OtpChallenge, error) {
	code, err := generateOtpCode()
	if err != nil {
		return nil, err
	}
	return s.repo.InsertOtpChallenge(ctx, userID, code, time.Now().Add(s.ttl))
}

// IssueAndInvalidatePrevious supersedes every pending challenge for the
// user before issuing, so a previously leaked code cannot stay valid next
// to the resent one.
func (s *OtpService) IssueAndInvalidatePrevious(ctx context.Context, userID string) (*model.OtpChallenge, error) {
	if err := s.repo.ConsumeAllPendingOtps(ctx, userID); err != nil {
		return nil, err
	}
	return s.Issue(ctx, userID)
}

// Verify resolves a challenge either by the user's email or, when the
// client retained only the code, by the code itself. Wrong digits, consumed
// codes, and unknown emails all report ErrInvalidOtp; only a pending match
// past its deadline reports ErrExpiredOtp.
func (s *OtpService) Verify(ctx context.Context, email, code string) (*model.User, error) {
	var (
		user      *model.User
		challenge *model.OtpChallenge
		err       error
	)

	if email != "" {
		user, err = s.users.GetUserByEmail(ctx, email)
		if err != nil {
			if db.IsNoRows(err) {
				return nil, ErrInvalidOtp
			}
			return nil, err
		}
		challenge, err = s.repo.GetLatestPendingOtp(ctx, user.ID)
		if err != nil {
			if db.IsNoRows(err) {
				return nil, ErrInvalidOtp
			}
			return nil, err
		}
		if challenge.Code != code {
			return nil, ErrInvalidOtp
		}
	} else {
		challenge, err = s.repo.GetPendingOtpByCode(ctx, code)
		if err != nil {
			if db.IsNoRows(err) {
				return nil, ErrInvalidOtp
			}
			return nil, err
		}
		user, err = s.users.GetUserByID(ctx, challenge.UserID)
		if err != nil {
			if db.IsNoRows(err) {
				return nil, ErrInvalidOtp
			}
			return nil, err
		}
	}

	if time.Now().After(challenge.ExpiresAt) {
		// Terminal either way; losing the consume race doesn't change that
		// the deadline has passed.
		if _, err := s.repo.ConsumeOtp(ctx, challenge.ID, model.OtpStatusExpired); err != nil {
			return nil, err
		}
		return nil, ErrExpiredOtp
	}

	won, err := s.repo.ConsumeOtp(ctx, challenge.ID, model.OtpStatusUsed)
	if err != nil {
		return nil, err
	}
	if !won {
		// A concurrent verification consumed it first.
		return nil, ErrInvalidOtp
	}
	return user, nil
}

// generateOtpCode draws a uniformly random fixed-width 6-digit code.
// Leading zeros are kept: "000123" and "123456" are equally likely.
func generateOtpCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
