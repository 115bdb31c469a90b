package model

import "time"

const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

const (
	OtpStatusPending = "pending"
	OtpStatusUsed    = "used"
	OtpStatusExpired = "expired"
)

type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Provider     string
	GoogleID     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayName falls back to the local part of the email when the user
// never supplied a name (federated signups often don't).
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	for i := 0; i < len(u.Email); i++ {
		if u.Email[i] == '@' {
			return u.Email[:i]
		}
	}
	return u.Email
}

type OtpChallenge struct {
	ID        int64
	UserID    string
	Code      string
	Status    string
	Consumed  bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

type RefreshSession struct {
	ID             string
	UserID         string
	TokenHash      string
	ReplacedByHash string
	IsValid        bool
	DeviceInfo     string
	IPAddress      string
	ExpiresAt      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FederatedIdentity is the verified payload of an external identity
// provider assertion.
type FederatedIdentity struct {
	Subject string
	Email   string
	Name    string
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=1"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Captcha  string `json:"captchaToken"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Captcha  string `json:"captchaToken"`
}

type GoogleLoginRequest struct {
	IDToken  string `json:"idToken"`
	AuthCode string `json:"authCode"`
}

type ResendOtpRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type VerifyOtpRequest struct {
	Email string `json:"email"`
	Code  string `json:"code" binding:"required,len=6"`
}

type RefreshRequest struct {
	UserID string `json:"userId" binding:"required"`
}

type LogoutRequest struct {
	UserID string `json:"userId"`
}

type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type RegisterResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

type PendingUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type LoginResponse struct {
	Message     string      `json:"message"`
	PendingUser PendingUser `json:"pendingUser"`
}

type VerifyOtpResponse struct {
	AccessToken string       `json:"accessToken"`
	User        UserResponse `json:"user"`
}

type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type WhoamiResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type SecurityEvent struct {
	Type       string    `json:"type"`
	At         time.Time `json:"at"`
	DeviceInfo string    `json:"deviceInfo,omitempty"`
	IP         string    `json:"ip,omitempty"`
}
