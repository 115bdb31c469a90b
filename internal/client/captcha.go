// CAPTCHA verification client (reCAPTCHA-compatible siteverify endpoint).
//
// Environment (via config.CaptchaConfig):
//   - CAPTCHA_SECRET (empty disables verification)
//   - CAPTCHA_VERIFY_URL (default: google siteverify)

package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/authentic/backend/internal/config"
)

type CaptchaClient struct {
	secret     string
	verifyURL  string
	httpClient *http.Client
}

func NewCaptchaClient(cfg config.CaptchaConfig) *CaptchaClient {
	return &CaptchaClient{
		secret:    cfg.Secret,
		verifyURL: cfg.VerifyURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *CaptchaClient) IsConfigured() bool {
	return c.secret != "" && c.verifyURL != ""
}

// Verify reports whether the token passes the remote check. Transport or
// decode failures count as a failed verification, never an internal error.
func (c *CaptchaClient) Verify(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}

	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("response", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}
	return result.Success
}
