package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	sessionName    = "jobtracker_session"
	oauthStateName = "jobtracker_oauth_state"

	sessionMaxAge    = 7 * 24 * 60 * 60 // seconds
	oauthStateMaxAge = 600
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidSession  = errors.New("invalid session data")
)

// SessionData is what a logged-in user's cookie resolves to.
type SessionData struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CSRFToken string `json:"csrf_token"`
}

// SessionManager issues and reads the signed session cookies.
type SessionManager struct {
	store *sessions.CookieStore
}

// NewSessionManager builds the cookie store. The Secure flag follows the
// environment so local development over plain HTTP still gets cookies.
func NewSessionManager(secret string, secure bool) *SessionManager {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionManager{store: store}
}

// Get resolves the request's session cookie. A cookie without a user id
// counts as no session at all.
func (sm *SessionManager) Get(r *http.Request) (*SessionData, error) {
	session, err := sm.store.Get(r, sessionName)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	userID, ok := session.Values["user_id"].(string)
	if !ok || userID == "" {
		return nil, ErrSessionNotFound
	}

	data := &SessionData{UserID: userID}
	data.Email, _ = session.Values["email"].(string)
	data.Name, _ = session.Values["name"].(string)
	data.CSRFToken, _ = session.Values["csrf_token"].(string)

	return data, nil
}

// Set writes the session cookie, minting a CSRF token when the caller
// didn't provide one.
func (sm *SessionManager) Set(w http.ResponseWriter, r *http.Request, data *SessionData) error {
	session, err := sm.store.Get(r, sessionName)
	if err != nil {
		if session, err = sm.store.New(r, sessionName); err != nil {
			return err
		}
	}

	if data.CSRFToken == "" {
		token, err := randomToken()
		if err != nil {
			return err
		}
		data.CSRFToken = token
	}

	session.Values["user_id"] = data.UserID
	session.Values["email"] = data.Email
	session.Values["name"] = data.Name
	session.Values["csrf_token"] = data.CSRFToken

	return session.Save(r, w)
}

// Clear expires the session cookie. Clearing a nonexistent session is
// not an error.
func (sm *SessionManager) Clear(w http.ResponseWriter, r *http.Request) error {
	session, err := sm.store.Get(r, sessionName)
	if err != nil {
		return nil
	}

	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// SetOAuthState stashes the login CSRF state in a short-lived cookie.
func (sm *SessionManager) SetOAuthState(w http.ResponseWriter, r *http.Request, state string) error {
	session, err := sm.store.Get(r, oauthStateName)
	if err != nil {
		if session, err = sm.store.New(r, oauthStateName); err != nil {
			return err
		}
	}

	session.Values["state"] = state
	session.Options.MaxAge = oauthStateMaxAge

	return session.Save(r, w)
}

// GetOAuthState reads the login state and expires it; the state is
// single-use.
func (sm *SessionManager) GetOAuthState(w http.ResponseWriter, r *http.Request) (string, error) {
	session, err := sm.store.Get(r, oauthStateName)
	if err != nil {
		return "", err
	}

	state, ok := session.Values["state"].(string)
	if !ok || state == "" {
		return "", ErrInvalidSession
	}

	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		return "", err
	}

	return state, nil
}

// GenerateState returns a random value for the OAuth state parameter.
func GenerateState() (string, error) {
	return randomToken()
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
