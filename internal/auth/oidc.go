// Package auth provides OIDC login, cookie sessions and the gin
// middleware that gates authenticated routes.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

var (
	ErrOIDCInit      = errors.New("OIDC initialization failed")
	ErrTokenExchange = errors.New("token exchange failed")
	ErrTokenVerify   = errors.New("token verification failed")
	ErrMissingEmail  = errors.New("email claim is required")
)

// OIDCClaims holds the identity claims the app cares about. Email is
// mandatory; it keys the user record.
type OIDCClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// OIDCProvider wraps provider discovery, the code exchange and ID token
// verification for the configured issuer.
type OIDCProvider struct {
	verifier *oidc.IDTokenVerifier
	config   oauth2.Config
}

// NewOIDCProvider discovers the issuer and prepares the oauth2 config
// and token verifier.
func NewOIDCProvider(ctx context.Context, issuer, clientID, clientSecret, redirectURL string) (*OIDCProvider, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("%w: discovery for %s: %w", ErrOIDCInit, issuer, err)
	}

	return &OIDCProvider{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
	}, nil
}

// AuthCodeURL builds the login redirect URL for the given CSRF state.
func (p *OIDCProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token set.
func (p *OIDCProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenExchange, err)
	}
	return token, nil
}

// VerifyIDToken validates the id_token riding on the token response and
// extracts the identity claims.
func (p *OIDCProvider) VerifyIDToken(ctx context.Context, token *oauth2.Token) (*OIDCClaims, error) {
	raw, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("%w: response carried no id_token", ErrTokenVerify)
	}

	idToken, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenVerify, err)
	}

	claims := &OIDCClaims{}
	if err := idToken.Claims(claims); err != nil {
		return nil, fmt.Errorf("%w: claims: %w", ErrTokenVerify, err)
	}
	if claims.Email == "" {
		return nil, ErrMissingEmail
	}

	return claims, nil
}
