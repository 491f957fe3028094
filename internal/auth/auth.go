package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"gallery/internal/config"
	"gallery/internal/domain"
	"gallery/internal/models"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const (
	// CookieName carries the signed session token.
	CookieName = "auth-token"

	// BcryptPrefix marks a configured password as a bcrypt hash,
	// e.g. "bcrypt:$2a$10$...".
	BcryptPrefix = "bcrypt:"

	usernameKey = contextKey("username")
)

var ErrSecretRequired = errors.New("session secret is required")

type AuthService struct {
	users  []models.UserCredential
	secret []byte
	ttl    time.Duration
	secure bool
	flash  sessions.Store
	now    func() time.Time
}

func NewAuthService(cfg config.AuthConfig) (*AuthService, error) {
	if cfg.Secret == "" {
		return nil, ErrSecretRequired
	}

	users := make([]models.UserCredential, 0, len(cfg.Users))
	for _, u := range cfg.Users {
		users = append(users, models.UserCredential{Username: u.Username, Password: u.Password})
	}

	return &AuthService{
		users:  users,
		secret: []byte(cfg.Secret),
		ttl:    cfg.SessionTTL,
		secure: cfg.SecureCookie,
		flash:  newFlashStore(cfg.Secret, cfg.SecureCookie),
		now:    time.Now,
	}, nil
}

// CheckCredentials reports whether the pair matches one of the configured
// users. Empty values never match.
func (a *AuthService) CheckCredentials(username, password string) bool {
	if username == "" || password == "" {
		return false
	}

	matched := false
	for _, u := range a.users {
		if u.Username == "" {
			continue
		}
		// Every record is checked so timing does not reveal which one matched.
		userOK := subtle.ConstantTimeCompare([]byte(username), []byte(u.Username)) == 1
		passOK := passwordMatches(u.Password, password)
		if userOK && passOK {
			matched = true
		}
	}
	return matched
}

// Login checks the credentials and issues a session token for them.
func (a *AuthService) Login(username, password string) (string, error) {
	if !a.CheckCredentials(username, password) {
		return "", domain.ErrAuthFailed
	}
	return a.IssueToken(username)
}

// passwordMatches compares against a plain-text password, or against a bcrypt
// hash when the configured value carries BcryptPrefix.
func passwordMatches(configured, submitted string) bool {
	if hash, ok := strings.CutPrefix(configured, BcryptPrefix); ok {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(submitted)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(submitted)) == 1
}

// Cookie helpers

func (a *AuthService) SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(a.ttl.Seconds()),
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *AuthService) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromRequest returns the session token, or "" when the cookie is absent.
func TokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Authenticate verifies the request's session cookie. It is the only
// verification path; both the route guard and the handlers go through it.
func (a *AuthService) Authenticate(r *http.Request) (*Claims, error) {
	claims, err := a.Verify(TokenFromRequest(r))
	if err != nil {
		return nil, &domain.DomainError{
			Code:    domain.CodeUnauthenticated,
			Message: domain.ErrUnauthenticated.Message,
			Cause:   err,
		}
	}
	return claims, nil
}

// Context helpers
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

func UsernameFromContext(ctx context.Context) string {
	username, ok := ctx.Value(usernameKey).(string)
	if !ok {
		return ""
	}
	return username
}
