package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gallery/internal/models"
)

// MediaPrefix is where LocalStore serves file contents.
const MediaPrefix = "/media/"

// LocalStore treats a flat directory as the container. Creation time is the
// file's modification time, which is the closest portable equivalent. Only
// regular files count as images; symlinks are never followed.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, ErrNotConfigured
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: media directory %s does not exist", ErrNotConfigured, dir)
		}
		return nil, fmt.Errorf("failed to stat media directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNotConfigured, dir)
	}

	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) List(ctx context.Context) ([]models.Image, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read media directory: %w", err)
	}

	images := make([]models.Image, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}

		images = append(images, s.imageFromInfo(info))
	}

	return images, nil
}

func (s *LocalStore) Get(ctx context.Context, name string) (*models.Image, error) {
	info, err := s.lstat(name)
	if err != nil {
		return nil, err
	}

	img := s.imageFromInfo(info)
	return &img, nil
}

// lstat resolves name to a regular file directly inside the media directory.
func (s *LocalStore) lstat(name string) (fs.FileInfo, error) {
	if !validLocalName(name) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	info, err := os.Lstat(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return info, nil
}

// ServeHTTP serves file contents under MediaPrefix.
func (s *LocalStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, MediaPrefix)

	img, err := s.Get(r.Context(), name)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.ErrorContext(r.Context(), "failed to serve media", "name", name, "error", err)
		}
		http.Error(w, "Image not found", http.StatusNotFound)
		return
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		http.Error(w, "Image not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	// The entry may have been swapped for a link since Get looked at it.
	opened, err := f.Stat()
	if err != nil || !opened.Mode().IsRegular() {
		http.Error(w, "Image not found", http.StatusNotFound)
		return
	}
	if current, err := s.lstat(name); err != nil || !os.SameFile(opened, current) {
		http.Error(w, "Image not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	http.ServeContent(w, r, name, opened.ModTime(), f)
}

func (s *LocalStore) imageFromInfo(info fs.FileInfo) models.Image {
	name := info.Name()
	contentType := s.contentType(name)
	modTime := info.ModTime()
	size := info.Size()
	return newImage(name, MediaPrefix+url.PathEscape(name), &contentType, &modTime, &size)
}

func (s *LocalStore) contentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return "application/octet-stream"
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "application/octet-stream"
	}
	return http.DetectContentType(buf[:n])
}

// validLocalName rejects anything that could escape the media directory.
func validLocalName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return filepath.Base(name) == name && !strings.HasPrefix(name, ".")
}
