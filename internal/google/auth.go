// Package google wraps Google OAuth credential management and the
// Calendar API behind small interfaces the rest of the app consumes.
package google

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/asesson/job-Application-Tracker/internal/db"
)

var (
	// ErrNotConnected is returned when a user has no stored Google credential.
	ErrNotConnected = errors.New("google account not connected")

	// ErrInvalidGrant is returned when a stored refresh token is rejected
	// by Google. The credential is unusable and must be re-established
	// through the consent flow.
	ErrInvalidGrant = errors.New("google refresh token rejected")
)

// Scopes requested during the consent flow. Calendar list access and
// event read/write are the only permissions the sync engine needs.
var oauthScopes = []string{
	"https://www.googleapis.com/auth/calendar",
	"https://www.googleapis.com/auth/calendar.events",
}

// refreshMargin is how long before expiry a token is considered stale.
// Refreshing early keeps a sync pass from racing the expiry mid-flight.
const refreshMargin = 5 * time.Minute

// TokenStore persists OAuth credentials and hands out valid access tokens,
// refreshing transparently when the stored token is near expiry.
type TokenStore struct {
	db     *db.DB
	config *oauth2.Config
}

// NewTokenStore creates a TokenStore backed by the given database.
func NewTokenStore(database *db.DB, clientID, clientSecret, redirectURL string) *TokenStore {
	return &TokenStore{
		db: database,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       oauthScopes,
			Endpoint:     googleoauth.Endpoint,
		},
	}
}

// AuthCodeURL builds the consent URL for the given CSRF state. Offline
// access and forced consent guarantee Google returns a refresh token
// even when the user has authorized before.
func (s *TokenStore) AuthCodeURL(state string) string {
	return s.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades an authorization code for tokens and persists them.
// A response without a refresh token is rejected because the credential
// could not survive past its first access token.
func (s *TokenStore) Exchange(ctx context.Context, userID, code string) error {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	if token.RefreshToken == "" {
		return db.ErrInvalidCredential
	}

	cred := &db.GoogleCredential{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenExpiry:  token.Expiry.UTC(),
		Scope:        "calendar calendar.events",
	}

	if err := s.db.UpsertGoogleCredential(cred); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	log.Printf("Stored Google credential for user %s (expires %s)", userID, token.Expiry.Format(time.RFC3339))
	return nil
}

// GetValid returns an access token for the user, refreshing it first if
// it expires within the refresh margin. The refreshed token is written
// back so subsequent calls reuse it.
func (s *TokenStore) GetValid(ctx context.Context, userID string) (*oauth2.Token, error) {
	cred, err := s.db.GetGoogleCredential(userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, err
	}

	token := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.TokenExpiry,
		TokenType:    "Bearer",
	}

	if time.Until(token.Expiry) > refreshMargin {
		return token, nil
	}

	refreshed, err := s.refresh(ctx, cred)
	if err != nil {
		return nil, err
	}

	return refreshed, nil
}

// refresh exchanges the stored refresh token for a new access token and
// persists the result. When Google rotates the refresh token the new one
// replaces the old; otherwise the stored one is carried forward.
func (s *TokenStore) refresh(ctx context.Context, cred *db.GoogleCredential) (*oauth2.Token, error) {
	source := s.config.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})

	newToken, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGrant, err)
	}

	if newToken.RefreshToken == "" {
		newToken.RefreshToken = cred.RefreshToken
	}

	cred.AccessToken = newToken.AccessToken
	cred.RefreshToken = newToken.RefreshToken
	cred.TokenExpiry = newToken.Expiry.UTC()

	if err := s.db.UpsertGoogleCredential(cred); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed credential: %w", err)
	}

	return newToken, nil
}

// IsConnected reports whether a usable access token can be obtained for
// the user. A stored credential whose refresh token Google has revoked
// counts as disconnected; the user must run the consent flow again.
func (s *TokenStore) IsConnected(ctx context.Context, userID string) (bool, error) {
	_, err := s.GetValid(ctx, userID)
	if errors.Is(err, ErrNotConnected) || errors.Is(err, ErrInvalidGrant) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes the stored credential for a user. Idempotent.
func (s *TokenStore) Remove(userID string) error {
	return s.db.DeleteGoogleCredential(userID)
}
