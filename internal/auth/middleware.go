package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

const (
	LoginPath = "/login"

	sessionExpiredMessage = "Your session has expired. Please sign in again."
)

// IsProtectedPath reports whether path requires a session: the home and
// gallery pages, the image API and locally served media.
func IsProtectedPath(path string) bool {
	switch {
	case path == "/" || path == "/gallery":
		return true
	case strings.HasPrefix(path, "/api/images"):
		return true
	case strings.HasPrefix(path, "/media/"):
		return true
	}
	return false
}

// Guard runs in front of every route. Protected page requests without a valid
// session are redirected to the login page; protected API requests get 401.
func (a *AuthService) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsProtectedPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := a.Authenticate(r)
		if err == nil {
			next.ServeHTTP(w, r.WithContext(WithUsername(r.Context(), claims.Username)))
			return
		}

		if strings.HasPrefix(r.URL.Path, "/api/") {
			writeUnauthorized(w)
			return
		}

		if TokenFromRequest(r) != "" {
			slog.InfoContext(r.Context(), "rejecting stale session cookie", "path", r.URL.Path, "error", err)
			a.ClearSessionCookie(w)
			a.AddFlash(w, r, sessionExpiredMessage)
		}

		http.Redirect(w, r, LoginPath, http.StatusFound)
	})
}

// RequireSession protects an API handler.
func (a *AuthService) RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.Authenticate(r)
		if err != nil {
			writeUnauthorized(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUsername(r.Context(), claims.Username)))
	}
}

// HasValidSession is used by the login page to skip the form for signed-in users.
func (a *AuthService) HasValidSession(r *http.Request) bool {
	_, err := a.Authenticate(r)
	return err == nil
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
}
