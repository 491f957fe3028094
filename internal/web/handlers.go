// Package web serves the server-rendered login and gallery pages.
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"gallery/internal/auth"
	"gallery/internal/domain"
	"gallery/internal/gallery"
	"gallery/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const (
	// SlideInterval is how long each slide stays up before the page refreshes.
	SlideInterval = 3 * time.Second

	signedOutMessage = "You have been signed out."
)

// LoginRecorder stores login attempts made through the form.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, event models.LoginEvent) (*models.LoginEvent, error)
}

type Server struct {
	authService *auth.AuthService
	images      *gallery.ImageService
	recorder    LoginRecorder
	logger      *slog.Logger
	pages       map[string]*template.Template
}

func NewServer(authService *auth.AuthService, images *gallery.ImageService, recorder LoginRecorder, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pages, err := parsePages("login.html", "gallery.html")
	if err != nil {
		return nil, err
	}

	return &Server{
		authService: authService,
		images:      images,
		recorder:    recorder,
		logger:      logger,
		pages:       pages,
	}, nil
}

type PageData struct {
	Title    string
	ShowNav  bool
	Username string
	Flashes  []string
	Error    string
}

type LoginData struct {
	PageData
	Form struct {
		Username string
	}
}

type GalleryData struct {
	PageData
	Result         *models.ImagePage
	Current        *models.Image
	Slide          int
	Refresh        string
	RefreshSeconds int
}

func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /login", s.HandleLoginPage)
	mux.HandleFunc("POST /login", sameOrigin(s.HandleLoginSubmit))
	mux.HandleFunc("POST /logout", sameOrigin(s.HandleLogout))
	mux.HandleFunc("GET /{$}", s.HandleGallery)
	mux.HandleFunc("GET /gallery", s.HandleGallery)

	static, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
}

func (s *Server) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if s.authService.HasValidSession(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	data := LoginData{PageData: PageData{
		Title:   "Login",
		Flashes: s.authService.Flashes(w, r),
	}}
	s.render(w, r, http.StatusOK, "login.html", data)
}

func (s *Server) HandleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")

	data := LoginData{PageData: PageData{Title: "Login"}}
	data.Form.Username = username

	if username == "" || password == "" {
		data.Error = "Username and password are required"
		s.render(w, r, http.StatusBadRequest, "login.html", data)
		return
	}

	token, err := s.authService.Login(username, password)
	if err != nil {
		status := http.StatusInternalServerError
		data.Error = "Login failed"
		if domain.IsAuthError(err) {
			status = http.StatusUnauthorized
			data.Error = "Invalid username or password"
			s.record(r, username, false)
		} else {
			s.logger.ErrorContext(r.Context(), "failed to issue session token", "error", err)
		}
		s.render(w, r, status, "login.html", data)
		return
	}

	s.authService.SetSessionCookie(w, token)
	s.record(r, username, true)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) HandleLogout(w http.ResponseWriter, r *http.Request) {
	s.authService.ClearSessionCookie(w)
	s.authService.AddFlash(w, r, signedOutMessage)
	http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
}

// HandleGallery renders one page of the slideshow. The page refreshes itself
// to the next slide, moving on to the next page after the last slide and
// wrapping back to the first page at the end.
func (s *Server) HandleGallery(w http.ResponseWriter, r *http.Request) {
	data := GalleryData{PageData: PageData{
		Title:    "Gallery",
		ShowNav:  true,
		Username: auth.UsernameFromContext(r.Context()),
		Flashes:  s.authService.Flashes(w, r),
	}}

	query := r.URL.Query()
	page, _, err := gallery.ParsePaging(query.Get("page"), "")
	if err != nil {
		data.Error = domain.PublicMessage(err)
		s.render(w, r, http.StatusBadRequest, "gallery.html", data)
		return
	}

	result, err := s.images.ListImages(r.Context(), page, gallery.DefaultPageSize)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to list images for gallery", "page", page, "error", err)
		data.Error = domain.PublicMessage(err)
		s.render(w, r, http.StatusInternalServerError, "gallery.html", data)
		return
	}

	if len(result.Images) == 0 && result.TotalPages > 0 {
		http.Redirect(w, r, "/gallery", http.StatusSeeOther)
		return
	}

	data.Result = result
	if len(result.Images) > 0 {
		data.Slide = clampSlide(query.Get("slide"), len(result.Images))
		data.Current = &result.Images[data.Slide]
		data.Refresh = nextSlideURL(result.Page, data.Slide, len(result.Images), result.TotalPages)
		data.RefreshSeconds = int(SlideInterval.Seconds())
	}

	s.render(w, r, http.StatusOK, "gallery.html", data)
}

// sameOrigin rejects form posts sent from another site. Browsers attach
// Sec-Fetch-Site or Origin to cross-site POSTs; requests carrying neither
// are let through.
func sameOrigin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if site := r.Header.Get("Sec-Fetch-Site"); site == "cross-site" || site == "same-site" {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if origin := r.Header.Get("Origin"); origin != "" {
			u, err := url.Parse(origin)
			if err != nil || u.Host != r.Host {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
		}
		next(w, r)
	}
}

func clampSlide(value string, count int) int {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0
	}
	return min(n, count-1)
}

// nextSlideURL returns where the slideshow goes after slide on page.
func nextSlideURL(page, slide, count, totalPages int) string {
	slide++
	if slide >= count {
		slide = 0
		page++
		if page > totalPages {
			page = 1
		}
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("slide", strconv.Itoa(slide))
	return "/gallery?" + q.Encode()
}

func (s *Server) record(r *http.Request, username string, success bool) {
	if s.recorder == nil {
		return
	}
	event := models.LoginEvent{
		Username:   username,
		Success:    success,
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	}
	_, err := s.recorder.RecordLogin(r.Context(), event.Bounded())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to record login", "error", err)
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.logger.ErrorContext(r.Context(), "unknown template", "template", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "template execution failed", "template", name, "error", err)
	}
}

func parsePages(names ...string) (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"formatFileSize": formatFileSize,
		"formatTime": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			return t.Format("Jan 2, 2006 3:04 PM")
		},
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },
	}

	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/base.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return pages, nil
}

func formatFileSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
