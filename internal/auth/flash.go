package auth

import (
	"crypto/sha256"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	flashSessionName = "gallery-flash"
	flashMaxAge      = 5 * 60
)

func newFlashStore(secret string, secure bool) sessions.Store {
	// The flash cookie gets its own key so it never shares a MAC key with the
	// session token.
	key := sha256.Sum256([]byte("flash:" + secret))

	store := sessions.NewCookieStore(key[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   flashMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// AddFlash queues a one-shot notice for the next login page render.
func (a *AuthService) AddFlash(w http.ResponseWriter, r *http.Request, message string) {
	session, err := a.flash.Get(r, flashSessionName)
	if err != nil {
		// A tampered or stale cookie still yields a fresh session.
		slog.DebugContext(r.Context(), "discarding unreadable flash cookie", "error", err)
	}

	session.AddFlash(message)
	if err := session.Save(r, w); err != nil {
		slog.WarnContext(r.Context(), "failed to save flash message", "error", err)
	}
}

// Flashes returns and clears the queued notices.
func (a *AuthService) Flashes(w http.ResponseWriter, r *http.Request) []string {
	session, err := a.flash.Get(r, flashSessionName)
	if err != nil {
		return nil
	}

	raw := session.Flashes()
	if len(raw) == 0 {
		return nil
	}

	if err := session.Save(r, w); err != nil {
		slog.WarnContext(r.Context(), "failed to clear flash messages", "error", err)
	}

	messages := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			messages = append(messages, s)
		}
	}
	return messages
}
