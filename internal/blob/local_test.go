package blob

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func writeMedia(t *testing.T, dir, name string, data []byte, mod time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestNewLocalStore(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := NewLocalStore("")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewLocalStore(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewLocalStore(file)
	assert.ErrorIs(t, err, ErrNotConfigured)

	s, err := NewLocalStore(dir)
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestLocalStore_List(t *testing.T) {
	dir := t.TempDir()
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	writeMedia(t, dir, "cat.jpg", []byte("jpeg"), older)
	writeMedia(t, dir, "noext", pngHeader, newer)
	writeMedia(t, dir, ".hidden", []byte("x"), newer)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	s, err := NewLocalStore(dir)
	require.NoError(t, err)

	images, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, images, 2)

	byName := make(map[string]int)
	for i, img := range images {
		byName[img.Name] = i
	}

	cat := images[byName["cat.jpg"]]
	assert.Equal(t, "image/jpeg", cat.ContentType)
	assert.Equal(t, "/media/cat.jpg", cat.URL)
	assert.Equal(t, int64(4), cat.Size)
	require.NotNil(t, cat.CreatedOn)
	assert.True(t, cat.CreatedOn.Equal(older))

	sniffed := images[byName["noext"]]
	assert.Equal(t, "image/png", sniffed.ContentType)
}

func TestLocalStore_ListCancelled(t *testing.T) {
	dir := t.TempDir()
	writeMedia(t, dir, "cat.jpg", []byte("jpeg"), time.Now())

	s, err := NewLocalStore(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalStore_Get(t *testing.T) {
	dir := t.TempDir()
	writeMedia(t, dir, "my cat.png", pngHeader, time.Now())
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	s, err := NewLocalStore(dir)
	require.NoError(t, err)

	img, err := s.Get(context.Background(), "my cat.png")
	require.NoError(t, err)
	assert.Equal(t, "my cat.png", img.Name)
	assert.Equal(t, "/media/my%20cat.png", img.URL)

	for _, name := range []string{"", ".", "..", "../etc/passwd", "sub", "missing.png", ".hidden", `a\b`} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), name)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestLocalStore_ServeHTTP(t *testing.T) {
	dir := t.TempDir()
	writeMedia(t, dir, "cat.png", pngHeader, time.Now())

	s, err := NewLocalStore(dir)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/cat.png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "private")
	assert.Equal(t, pngHeader, rec.Body.Bytes())

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/dog.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLocalStore_IgnoresSymlinks(t *testing.T) {
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.png")
	require.NoError(t, os.WriteFile(secret, pngHeader, 0o644))

	dir := t.TempDir()
	writeMedia(t, dir, "cat.png", pngHeader, time.Now())
	if err := os.Symlink(secret, filepath.Join(dir, "leak.png")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "outside")))

	s, err := NewLocalStore(dir)
	require.NoError(t, err)

	images, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "cat.png", images[0].Name)

	for _, name := range []string{"leak.png", "outside"} {
		_, err = s.Get(context.Background(), name)
		assert.ErrorIs(t, err, ErrNotFound, name)
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/leak.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEqual(t, pngHeader, rec.Body.Bytes())
}
