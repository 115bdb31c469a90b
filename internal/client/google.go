// Google identity client: verifies ID-token assertions and exchanges
// authorization codes for the redirect-based login flow.
//
// Environment (via config.GoogleConfig):
//   - GOOGLE_CLIENT_ID
//   - GOOGLE_CLIENT_SECRET (code-exchange flows only)
//   - GOOGLE_REDIRECT_URI  (GET callback flow only)

package client

import (
	"context"
	"fmt"

	"github.com/authentic/backend/internal/config"
	"github.com/authentic/backend/internal/model"
	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleIssuer = "https://accounts.google.com"

type GoogleClient struct {
	clientID     string
	clientSecret string
	redirectURI  string
	verifier     *oidc.IDTokenVerifier
}

func NewGoogleClient(ctx context.Context, cfg config.GoogleConfig) (*GoogleClient, error) {
	c := &GoogleClient{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
	}
	if c.clientID == "" {
		return c, nil
	}

	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init google oidc provider: %w", err)
	}
	c.verifier = provider.Verifier(&oidc.Config{ClientID: c.clientID})
	return c, nil
}

func (c *GoogleClient) IsConfigured() bool {
	return c.clientID != "" && c.verifier != nil
}

// VerifyIDToken checks signature, issuer, audience, and expiry of a raw ID
// token and extracts the identity claims.
func (c *GoogleClient) VerifyIDToken(ctx context.Context, rawIDToken string) (*model.FederatedIdentity, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("google auth not configured")
	}

	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("invalid google token: %w", err)
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("invalid google token claims: %w", err)
	}
	if claims.Email == "" || idToken.Subject == "" {
		return nil, fmt.Errorf("google token missing email or subject")
	}

	return &model.FederatedIdentity{
		Subject: idToken.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
	}, nil
}

// ExchangeCode trades an authorization code for the ID token it carries and
// verifies it. redirectURI selects the flow: "postmessage" for the popup
// variant, the configured callback URL for the redirect variant.
func (c *GoogleClient) ExchangeCode(ctx context.Context, code, redirectURI string) (*model.FederatedIdentity, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("google auth not configured")
	}
	if c.clientSecret == "" {
		return nil, fmt.Errorf("google auth not configured: GOOGLE_CLIENT_SECRET missing")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		RedirectURL:  redirectURI,
		Endpoint:     google.Endpoint,
	}

	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("no id_token in token response")
	}

	return c.VerifyIDToken(ctx, rawIDToken)
}

// RedirectURI is the configured callback URL for the GET flow.
func (c *GoogleClient) RedirectURI() string {
	return c.redirectURI
}
