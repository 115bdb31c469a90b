package handler

import (
	"net/http"
	"net/url"

	"github.com/authentic/backend/internal/model"
	"github.com/authentic/backend/internal/service"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	svc            *service.AuthService
	tokens         *service.TokenService
	frontendOrigin string
}

func NewAuthHandler(svc *service.AuthService, tokens *service.TokenService, frontendOrigin string) *AuthHandler {
	return &AuthHandler{svc: svc, tokens: tokens, frontendOrigin: frontendOrigin}
}

// Register godoc
// @Summary Register a new user
// @Description Creates a local account. Registration never issues tokens.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.RegisterRequest true "Name, email, password"
// @Success 201 {object} model.RegisterResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusCreated, model.RegisterResponse{
		Message: "user registered",
		User: model.UserResponse{
			ID:    user.ID,
			Name:  user.DisplayName(),
			Email: user.Email,
		},
	})
}

// Login godoc
// @Summary Login with email and password
// @Description On success an OTP is mailed and the login pauses; no tokens yet.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.LoginRequest true "Email and password"
// @Success 202 {object} model.LoginResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, model.LoginResponse{
		Message:     "otp sent to email",
		PendingUser: model.PendingUser{ID: user.ID, Email: user.Email},
	})
}

// GoogleLogin godoc
// @Summary Login with a Google assertion
// @Description Accepts an ID token or an authorization code; proceeds to OTP.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.GoogleLoginRequest true "idToken or authCode"
// @Success 202 {object} model.LoginResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/google [post]
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var req model.GoogleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.svc.GoogleLogin(c.Request.Context(), req)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, model.LoginResponse{
		Message:     "otp sent to email",
		PendingUser: model.PendingUser{ID: user.ID, Email: user.Email},
	})
}

// GoogleCallback godoc
// @Summary Google redirect callback
// @Description Exchanges the authorization code and redirects to the OTP entry view.
// @Tags auth
// @Produce json
// @Param code query string true "Authorization code"
// @Success 302
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/auth/google/callback [get]
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	email, err := h.svc.GoogleCallback(c.Request.Context(), c.Query("code"))
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.Redirect(http.StatusFound, h.frontendOrigin+"/otp?email="+url.QueryEscape(email))
}

// ResendOtp godoc
// @Summary Resend the OTP
// @Description Invalidates every pending code for the user before issuing a new one.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.ResendOtpRequest true "Email"
// @Success 200 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/auth/resend-otp [post]
func (h *AuthHandler) ResendOtp(c *gin.Context) {
	var req model.ResendOtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.svc.ResendOtp(c.Request.Context(), req.Email); err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "otp resent"})
}

// VerifyOtp godoc
// @Summary Verify the OTP and establish the session
// @Description On success returns an access token and sets the refresh cookie.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.VerifyOtpRequest true "Email (optional) and code"
// @Success 200 {object} model.VerifyOtpResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/auth/verify-otp [post]
func (h *AuthHandler) VerifyOtp(c *gin.Context) {
	var req model.VerifyOtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	accessToken, refreshSecret, user, err := h.svc.VerifyOtp(c.Request.Context(), req, c.Request.UserAgent(), c.ClientIP())
	if err != nil {
		writeAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, refreshSecret)
	c.JSON(http.StatusOK, model.VerifyOtpResponse{
		AccessToken: accessToken,
		User: model.UserResponse{
			ID:    user.ID,
			Name:  user.DisplayName(),
			Email: user.Email,
		},
	})
}

// Refresh godoc
// @Summary Rotate the refresh session
// @Description Uses the refresh cookie plus the caller-asserted user id.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.RefreshRequest true "User id"
// @Success 200 {object} model.RefreshResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req model.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	refreshSecret, _ := c.Cookie(h.tokens.CookieConfig().Name)
	accessToken, newSecret, err := h.svc.Refresh(c.Request.Context(), req.UserID, refreshSecret, c.Request.UserAgent(), c.ClientIP())
	if err != nil {
		writeAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, newSecret)
	c.JSON(http.StatusOK, model.RefreshResponse{AccessToken: accessToken})
}

// Logout godoc
// @Summary Logout
// @Description Best-effort revocation; always reports success.
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} model.MessageResponse
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	var req model.LogoutRequest
	_ = c.ShouldBindJSON(&req)

	refreshSecret, _ := c.Cookie(h.tokens.CookieConfig().Name)
	h.svc.Logout(c.Request.Context(), req.UserID, refreshSecret)

	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Whoami godoc
// @Summary Get the current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.WhoamiResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/auth/whoami [get]
func (h *AuthHandler) Whoami(c *gin.Context) {
	userID := GetAuthUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.svc.Whoami(c.Request.Context(), userID)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.WhoamiResponse{
		Name:  user.DisplayName(),
		Email: user.Email,
	})
}

// SecurityAudit godoc
// @Summary Recent security events
// @Description Refresh-session issuance, rotation, and validity history, newest first.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.SecurityEvent
// @Failure 401 {object} model.ErrorResponse
// @Router /api/auth/security-audit [get]
func (h *AuthHandler) SecurityAudit(c *gin.Context) {
	userID := GetAuthUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	events, err := h.svc.SecurityAudit(c.Request.Context(), userID)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, secret string) {
	cfg := h.tokens.CookieConfig()
	c.SetSameSite(cfg.SameSite)
	c.SetCookie(cfg.Name, secret, cfg.MaxAge, cfg.Path, cfg.Domain, cfg.Secure, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	cfg := h.tokens.CookieConfig()
	c.SetSameSite(cfg.SameSite)
	c.SetCookie(cfg.Name, "", -1, cfg.Path, cfg.Domain, cfg.Secure, true)
}

func writeAuthError(c *gin.Context, err error) {
	switch err {
	case service.ErrInvalidInput:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
	case service.ErrConflict:
		c.JSON(http.StatusConflict, gin.H{"error": "user exists"})
	case service.ErrUnauthorized:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case service.ErrInvalidOtp:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid otp"})
	case service.ErrExpiredOtp:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "otp expired"})
	case service.ErrNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case service.ErrMisconfigured:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	}
}
