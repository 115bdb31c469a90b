package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/authentic/backend/internal/config"
	"github.com/authentic/backend/internal/db"
	"github.com/authentic/backend/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const refreshCookieName = "authentic_rt"

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrConflict      = errors.New("conflict")
	ErrNotFound      = errors.New("not found")
	ErrInvalidOtp    = errors.New("invalid otp")
	ErrExpiredOtp    = errors.New("otp expired")
	ErrMisconfigured = errors.New("auth config invalid")
)

type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	MaxAge   int
}

// SessionRepo is the refresh-session slice of the store.
type SessionRepo interface {
	InsertRefreshSession(ctx context.Context, session *model.RefreshSession) error
	GetRefreshSessionByHash(ctx context.Context, userID, tokenHash string) (*model.RefreshSession, error)
	RevokeRefreshSession(ctx context.Context, sessionID string) (bool, error)
	RotateRefreshSession(ctx context.Context, oldSessionID string, next *model.RefreshSession) (bool, error)
	ListRefreshSessionsByUser(ctx context.Context, userID string, limit int) ([]model.RefreshSession, error)
}

type TokenService struct {
	repo       SessionRepo
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	cookieCfg  CookieConfig
}

type accessClaims struct {
	jwt.RegisteredClaims
}

func NewTokenService(repo SessionRepo, cfg config.AuthConfig) (*TokenService, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("%w: JWT_SECRET is required", ErrMisconfigured)
	}

	accessTTL, err := time.ParseDuration(cfg.JWTAccessTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JWT_ACCESS_TTL", ErrMisconfigured)
	}

	refreshTTL, err := time.ParseDuration(cfg.JWTRefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JWT_REFRESH_TTL", ErrMisconfigured)
	}

	cookieSecure, err := parseBool(cfg.CookieSecure, true)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid AUTH_COOKIE_SECURE", ErrMisconfigured)
	}

	cookieSameSite, err := parseSameSite(cfg.CookieSameSite)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid AUTH_COOKIE_SAMESITE", ErrMisconfigured)
	}

	if cookieSameSite == http.SameSiteNoneMode && !cookieSecure {
		return nil, fmt.Errorf("%w: SameSite=None requires Secure cookie", ErrMisconfigured)
	}

	cookiePath := cfg.CookiePath
	if strings.TrimSpace(cookiePath) == "" {
		cookiePath = "/api/auth"
	}

	return &TokenService{
		repo:       repo,
		jwtSecret:  []byte(cfg.JWTSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		cookieCfg: CookieConfig{
			Name:     refreshCookieName,
			Path:     cookiePath,
			Domain:   cfg.CookieDomain,
			Secure:   cookieSecure,
			SameSite: cookieSameSite,
			MaxAge:   int(refreshTTL.Seconds()),
		},
	}, nil
}

func (s *TokenService) CookieConfig() CookieConfig {
	return s.cookieCfg
}

// CreateAccessToken mints a signed, self-contained credential. Verification
// never consults the store.
func (s *TokenService) CreateAccessToken(userID string) (string, error) {
	now := time.Now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ParseAccessToken returns the subject user id for a valid token.
func (s *TokenService) ParseAccessToken(tokenStr string) (string, error) {
	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", ErrUnauthorized
	}
	return claims.Subject, nil
}

// CreateRefreshSession generates a fresh high-entropy secret, persists only
// its digest, and returns the raw secret exactly once.
func (s *TokenService) CreateRefreshSession(ctx context.Context, userID, deviceInfo, ipAddress string) (string, *model.RefreshSession, error) {
	raw, hash, err := newRefreshSecret()
	if err != nil {
		return "", nil, err
	}

	session := &model.RefreshSession{
		ID:         uuid.NewString(),
		UserID:     userID,
		TokenHash:  hash,
		IsValid:    true,
		DeviceInfo: deviceInfo,
		IPAddress:  ipAddress,
		ExpiresAt:  time.Now().Add(s.refreshTTL),
	}
	if err := s.repo.InsertRefreshSession(ctx, session); err != nil {
		return "", nil, err
	}
	return raw, session, nil
}

// VerifyRefreshSession checks a presented secret against the store without
// mutating anything. Rotation and revocation are caller decisions.
func (s *TokenService) VerifyRefreshSession(ctx context.Context, userID, rawSecret string) (*model.RefreshSession, error) {
	if strings.TrimSpace(rawSecret) == "" || strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthorized
	}

	session, err := s.repo.GetRefreshSessionByHash(ctx, userID, hashRefreshSecret(rawSecret))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !session.IsValid || time.Now().After(session.ExpiresAt) {
		return nil, ErrUnauthorized
	}
	return session, nil
}

// RotateRefreshSession revokes the matched session and issues its successor
// in one store transaction. The old row is kept as the audit record of the
// issuance; only its validity flag and replacement digest change.
func (s *TokenService) RotateRefreshSession(ctx context.Context, old *model.RefreshSession, deviceInfo, ipAddress string) (string, error) {
	raw, hash, err := newRefreshSecret()
	if err != nil {
		return "", err
	}

	next := &model.RefreshSession{
		ID:         uuid.NewString(),
		UserID:     old.UserID,
		TokenHash:  hash,
		IsValid:    true,
		DeviceInfo: deviceInfo,
		IPAddress:  ipAddress,
		ExpiresAt:  time.Now().Add(s.refreshTTL),
	}

	rotated, err := s.repo.RotateRefreshSession(ctx, old.ID, next)
	if err != nil {
		return "", err
	}
	if !rotated {
		return "", ErrUnauthorized
	}
	return raw, nil
}

// RevokeRefreshSession invalidates a session (logout). Revoking an already
// invalid session is not an error.
func (s *TokenService) RevokeRefreshSession(ctx context.Context, sessionID string) error {
	_, err := s.repo.RevokeRefreshSession(ctx, sessionID)
	return err
}

func parseBool(value string, fallback bool) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, err
	}
	return parsed, nil
}

func parseSameSite(value string) (http.SameSite, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return http.SameSiteStrictMode, nil
	}
	switch value {
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, ErrInvalidInput
	}
}

func newRefreshSecret() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	secret := base64.RawURLEncoding.EncodeToString(raw)
	return secret, hashRefreshSecret(secret), nil
}

func hashRefreshSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
