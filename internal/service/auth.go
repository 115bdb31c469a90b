package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/authentic/backend/internal/db"
	"github.com/authentic/backend/internal/model"
	"github.com/authentic/backend/internal/template"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

const otpMailSubject = "Your One-Time Password"

// Notifier delivers the OTP code out-of-band. Delivery failures are never
// fatal to the auth flow.
type Notifier interface {
	IsConfigured() bool
	Send(to, subject, body string) error
}

// IdentityVerifier checks federated login assertions against the external
// identity provider.
type IdentityVerifier interface {
	IsConfigured() bool
	VerifyIDToken(ctx context.Context, rawIDToken string) (*model.FederatedIdentity, error)
	ExchangeCode(ctx context.Context, code, redirectURI string) (*model.FederatedIdentity, error)
	RedirectURI() string
}

// CaptchaVerifier gates credential submissions when configured.
type CaptchaVerifier interface {
	IsConfigured() bool
	Verify(ctx context.Context, token string) bool
}

// AuthService orchestrates the login state machine: credential check, OTP
// challenge, session establishment, rotation, and logout.
type AuthService struct {
	users   UserRepo
	otp     *OtpService
	tokens  *TokenService
	mailer  Notifier
	google  IdentityVerifier
	captcha CaptchaVerifier
}

func NewAuthService(users UserRepo, otp *OtpService, tokens *TokenService, mailer Notifier, google IdentityVerifier, captcha CaptchaVerifier) *AuthService {
	return &AuthService{
		users:   users,
		otp:     otp,
		tokens:  tokens,
		mailer:  mailer,
		google:  google,
		captcha: captcha,
	}
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	if err := s.checkCaptcha(ctx, req.Captcha); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrConflict
	} else if !db.IsNoRows(err) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user, err := s.users.CreateUser(ctx, &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		Provider:     model.ProviderLocal,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return user, nil
}

// Login checks the password and, on success, issues an OTP challenge. No
// tokens are minted from a password check alone.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*model.User, error) {
	if err := s.checkCaptcha(ctx, req.Captcha); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if user.PasswordHash == "" {
		// Federated-only account; there is no password to check.
		return nil, ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrUnauthorized
	}

	if _, err := s.beginOtpChallenge(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GoogleLogin verifies a federated assertion (ID token or exchanged auth
// code) and proceeds identically to the password path: OTP, no tokens.
func (s *AuthService) GoogleLogin(ctx context.Context, req model.GoogleLoginRequest) (*model.User, error) {
	if !s.google.IsConfigured() {
		return nil, ErrMisconfigured
	}

	var (
		identity *model.FederatedIdentity
		err      error
	)
	switch {
	case req.IDToken != "":
		identity, err = s.google.VerifyIDToken(ctx, req.IDToken)
	case req.AuthCode != "":
		identity, err = s.google.ExchangeCode(ctx, req.AuthCode, "postmessage")
	default:
		return nil, ErrInvalidInput
	}
	if err != nil {
		return nil, ErrUnauthorized
	}

	user, err := s.resolveFederatedUser(ctx, identity)
	if err != nil {
		return nil, err
	}
	if _, err := s.beginOtpChallenge(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GoogleCallback handles the redirect-based flow and returns the email the
// client needs for its OTP entry view.
func (s *AuthService) GoogleCallback(ctx context.Context, code string) (string, error) {
	if !s.google.IsConfigured() || s.google.RedirectURI() == "" {
		return "", ErrMisconfigured
	}
	if code == "" {
		return "", ErrInvalidInput
	}

	identity, err := s.google.ExchangeCode(ctx, code, s.google.RedirectURI())
	if err != nil {
		return "", ErrUnauthorized
	}

	user, err := s.resolveFederatedUser(ctx, identity)
	if err != nil {
		return "", err
	}
	if _, err := s.beginOtpChallenge(ctx, user); err != nil {
		return "", err
	}
	return user.Email, nil
}

func (s *AuthService) ResendOtp(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrNotFound
		}
		return err
	}

	challenge, err := s.otp.IssueAndInvalidatePrevious(ctx, user.ID)
	if err != nil {
		return err
	}
	s.deliverOtp(user, challenge)
	return nil
}

// VerifyOtp completes the login: on a valid code the session is established
// and both credentials are minted. The raw refresh secret is returned for
// cookie transport only.
func (s *AuthService) VerifyOtp(ctx context.Context, req model.VerifyOtpRequest, deviceInfo, ipAddress string) (string, string, *model.User, error) {
	user, err := s.otp.Verify(ctx, req.Email, req.Code)
	if err != nil {
		return "", "", nil, err
	}

	accessToken, err := s.tokens.CreateAccessToken(user.ID)
	if err != nil {
		return "", "", nil, err
	}
	refreshSecret, _, err := s.tokens.CreateRefreshSession(ctx, user.ID, deviceInfo, ipAddress)
	if err != nil {
		return "", "", nil, err
	}
	return accessToken, refreshSecret, user, nil
}

// Refresh rotates the presented refresh secret and mints a new access
// token. Any verification failure forces re-authentication from scratch.
func (s *AuthService) Refresh(ctx context.Context, userID, refreshSecret, deviceInfo, ipAddress string) (string, string, error) {
	session, err := s.tokens.VerifyRefreshSession(ctx, userID, refreshSecret)
	if err != nil {
		return "", "", err
	}

	newSecret, err := s.tokens.RotateRefreshSession(ctx, session, deviceInfo, ipAddress)
	if err != nil {
		return "", "", err
	}

	accessToken, err := s.tokens.CreateAccessToken(session.UserID)
	if err != nil {
		return "", "", err
	}
	return accessToken, newSecret, nil
}

// Logout is best-effort: the session is revoked when the presented secret
// still matches a valid one, and the call reports success either way so
// session existence is never disclosed.
func (s *AuthService) Logout(ctx context.Context, userID, refreshSecret string) {
	session, err := s.tokens.VerifyRefreshSession(ctx, userID, refreshSecret)
	if err != nil {
		if !errors.Is(err, ErrUnauthorized) {
			log.Printf("logout: session lookup failed: %v", err)
		}
		return
	}
	if err := s.tokens.RevokeRefreshSession(ctx, session.ID); err != nil {
		log.Printf("logout: failed to revoke session %s: %v", session.ID, err)
	}
}

func (s *AuthService) Whoami(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) SecurityAudit(ctx context.Context, userID string) ([]model.SecurityEvent, error) {
	return s.tokens.SecurityAudit(ctx, userID)
}

func (s *AuthService) resolveFederatedUser(ctx context.Context, identity *model.FederatedIdentity) (*model.User, error) {
	email := strings.ToLower(identity.Email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !db.IsNoRows(err) {
			return nil, err
		}
		created, err := s.users.CreateUser(ctx, &model.User{
			ID:       uuid.NewString(),
			Email:    email,
			Name:     identity.Name,
			Provider: model.ProviderGoogle,
			GoogleID: identity.Subject,
		})
		if err != nil {
			return nil, err
		}
		return created, nil
	}

	if user.Provider != model.ProviderGoogle {
		// Previously local account authenticating via the same email.
		return s.users.LinkGoogleAccount(ctx, user.ID, identity.Subject)
	}
	return user, nil
}

func (s *AuthService) beginOtpChallenge(ctx context.Context, user *model.User) (*model.OtpChallenge, error) {
	challenge, err := s.otp.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	s.deliverOtp(user, challenge)
	return challenge, nil
}

// deliverOtp is fire-and-forget: the challenge is already persisted, so a
// delivery failure must not fail the login attempt.
func (s *AuthService) deliverOtp(user *model.User, challenge *model.OtpChallenge) {
	if s.mailer == nil || !s.mailer.IsConfigured() {
		log.Printf("otp delivery skipped for %s: mailer not configured", user.Email)
		return
	}

	body := template.RenderBody(template.OtpMailTemplate,
		&template.OtpData{Code: challenge.Code, ExpiresAt: challenge.ExpiresAt, TTL: s.otp.TTL()},
		&template.UserData{Name: user.DisplayName(), Email: user.Email},
	)
	if err := s.mailer.Send(user.Email, otpMailSubject, body); err != nil {
		log.Printf("otp delivery failed for %s: %v", user.Email, err)
	}
}

func (s *AuthService) checkCaptcha(ctx context.Context, token string) error {
	if s.captcha == nil || !s.captcha.IsConfigured() {
		return nil
	}
	if !s.captcha.Verify(ctx, token) {
		return ErrUnauthorized
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
