package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"gallery/internal/auth"
	"gallery/internal/domain"
	"gallery/internal/gallery"
	"gallery/internal/models"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

// AuditLog records login attempts. *storage.DB satisfies it.
type AuditLog interface {
	RecordLogin(ctx context.Context, event models.LoginEvent) (*models.LoginEvent, error)
	RecentLogins(ctx context.Context, limit int) ([]models.LoginEvent, error)
	FailedLoginsSince(ctx context.Context, username string, since time.Time) (int, error)
	Ping(ctx context.Context) error
}

type Server struct {
	authService *auth.AuthService
	images      *gallery.ImageService
	audit       AuditLog
	logger      *slog.Logger
}

// NewServer builds the JSON API. audit may be nil, in which case login
// attempts are not recorded and the activity endpoint is unavailable.
func NewServer(authService *auth.AuthService, images *gallery.ImageService, audit AuditLog, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		authService: authService,
		images:      images,
		audit:       audit,
		logger:      logger,
	}
}

// Routes registers the API on mux. The image routes verify the session
// again, so they stay protected even without the outer guard.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/login", s.HandleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.HandleLogout)
	mux.HandleFunc("GET /api/auth/session", s.HandleSession)
	mux.HandleFunc("GET /api/auth/activity", s.authService.RequireSession(s.HandleActivity))

	mux.HandleFunc("GET /api/images/list", s.authService.RequireSession(s.HandleListImages))
	mux.HandleFunc("GET /api/images/{imageName}", s.authService.RequireSession(s.HandleGetImage))

	mux.HandleFunc("GET /health", s.HandleHealth)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.WarnContext(r.Context(), "malformed login body", "error", err)
		writeJSON(w, http.StatusInternalServerError, loginResponse{Message: "Authentication failed"})
		return
	}

	// The username is client input; only a bounded prefix reaches logs.
	logName := models.TruncateUTF8(req.Username, models.MaxAuditUsernameLen)

	token, err := s.authService.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrAuthFailed) {
			s.recordLogin(r, req.Username, false)
			s.logger.InfoContext(r.Context(), "login rejected", "username", logName)
			writeJSON(w, http.StatusUnauthorized, loginResponse{Message: domain.ErrAuthFailed.Message})
			return
		}
		s.logger.ErrorContext(r.Context(), "failed to issue session token", "error", err)
		writeJSON(w, http.StatusInternalServerError, loginResponse{Message: "Authentication failed"})
		return
	}

	s.authService.SetSessionCookie(w, token)
	s.recordLogin(r, req.Username, true)
	s.logger.InfoContext(r.Context(), "login succeeded", "username", logName)
	writeJSON(w, http.StatusOK, loginResponse{Success: true})
}

func (s *Server) HandleLogout(w http.ResponseWriter, r *http.Request) {
	s.authService.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, loginResponse{Success: true})
}

type sessionResponse struct {
	Authenticated bool       `json:"authenticated"`
	Username      string     `json:"username,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

func (s *Server) HandleSession(w http.ResponseWriter, r *http.Request) {
	claims, err := s.authService.Authenticate(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, sessionResponse{})
		return
	}

	resp := sessionResponse{Authenticated: true, Username: claims.Username}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time.UTC()
		resp.ExpiresAt = &exp
	}
	writeJSON(w, http.StatusOK, resp)
}

type activityResponse struct {
	Events        []models.LoginEvent `json:"events"`
	FailedLast24h int                 `json:"failedLast24h"`
}

func (s *Server) HandleActivity(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Audit log unavailable"})
		return
	}

	limit := defaultActivityLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxActivityLimit {
			s.writeError(w, r, domain.WrapValidationError("limit", errors.New("must be between 1 and 100")))
			return
		}
		limit = n
	}

	events, err := s.audit.RecentLogins(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	username := auth.UsernameFromContext(r.Context())
	failed, err := s.audit.FailedLoginsSince(r.Context(), username, time.Now().Add(-24*time.Hour))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, activityResponse{Events: events, FailedLast24h: failed})
}

func (s *Server) HandleListImages(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, pageSize, err := gallery.ParsePaging(query.Get("page"), query.Get("pageSize"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.images.ListImages(r.Context(), page, pageSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) HandleGetImage(w http.ResponseWriter, r *http.Request) {
	img, err := s.images.GetImage(r.Context(), r.PathValue("imageName"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, img)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "healthy",
		"storage": s.images.Configured(),
	}

	if s.audit != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.audit.Ping(ctx); err != nil {
			s.logger.ErrorContext(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) recordLogin(r *http.Request, username string, success bool) {
	if s.audit == nil {
		return
	}
	event := models.LoginEvent{
		Username:   username,
		Success:    success,
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	}
	_, err := s.audit.RecordLogin(r.Context(), event.Bounded())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to record login", "error", err)
	}
}

// writeError maps err onto a status and a client-safe message. Anything that
// is not a domain error becomes a generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case domain.IsValidationError(err):
		status = http.StatusBadRequest
	case domain.IsNotFoundError(err):
		status = http.StatusNotFound
	case domain.IsAuthError(err):
		status = http.StatusUnauthorized
	}

	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"request_id", RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}

	writeJSON(w, status, map[string]string{"error": domain.PublicMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
