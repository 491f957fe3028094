package gallery

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gallery/internal/blob"
	"gallery/internal/domain"
	"gallery/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	images []models.Image
	err    error
	delay  time.Duration
}

func (m *memStore) List(ctx context.Context) ([]models.Image, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	out := make([]models.Image, len(m.images))
	copy(out, m.images)
	return out, nil
}

func (m *memStore) Get(ctx context.Context, name string) (*models.Image, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, img := range m.images {
		if img.Name == name {
			return &img, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, name)
}

func at(hour int) *time.Time {
	t := time.Date(2024, 1, 1, hour, 0, 0, 0, time.UTC)
	return &t
}

func sampleImages(n int) []models.Image {
	images := make([]models.Image, n)
	for i := range images {
		images[i] = models.Image{
			Name:      fmt.Sprintf("img-%02d.jpg", i),
			CreatedOn: at(i),
		}
	}
	return images
}

func names(images []models.Image) []string {
	out := make([]string, len(images))
	for i, img := range images {
		out[i] = img.Name
	}
	return out
}

func TestListImages_SevenImagesTwoPages(t *testing.T) {
	svc := NewImageService(&memStore{images: sampleImages(7)}, time.Second, nil)

	first, err := svc.ListImages(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.Len(t, first.Images, 5)
	assert.Equal(t, 7, first.TotalCount)
	assert.Equal(t, 2, first.TotalPages)
	assert.Equal(t, "img-06.jpg", first.Images[0].Name)

	second, err := svc.ListImages(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"img-01.jpg", "img-00.jpg"}, names(second.Images))

	beyond, err := svc.ListImages(context.Background(), 3, 5)
	require.NoError(t, err)
	assert.Empty(t, beyond.Images)
	assert.NotNil(t, beyond.Images)
	assert.Equal(t, 7, beyond.TotalCount)
}

func TestPaginate_CoversEveryImageOnce(t *testing.T) {
	for n := 0; n <= 12; n++ {
		for size := 1; size <= 6; size++ {
			t.Run(fmt.Sprintf("n=%d/size=%d", n, size), func(t *testing.T) {
				images := sampleImages(n)
				SortNewestFirst(images)

				first := Paginate(images, 1, size)
				wantPages := (n + size - 1) / size
				assert.Equal(t, wantPages, first.TotalPages)

				var all []models.Image
				for p := 1; p <= first.TotalPages; p++ {
					page := Paginate(images, p, size)
					assert.LessOrEqual(t, len(page.Images), size)
					all = append(all, page.Images...)
				}
				assert.Equal(t, names(images), names(all))
				assert.Empty(t, Paginate(images, first.TotalPages+1, size).Images)
			})
		}
	}
}

func TestPaginate_HugePage(t *testing.T) {
	page := Paginate(sampleImages(3), int(^uint(0)>>1), 100)
	assert.Empty(t, page.Images)
	assert.Equal(t, 1, page.TotalPages)
}

func TestSortNewestFirst(t *testing.T) {
	images := []models.Image{
		{Name: "undated-b"},
		{Name: "old", CreatedOn: at(1)},
		{Name: "tie-b", CreatedOn: at(5)},
		{Name: "undated-a"},
		{Name: "tie-a", CreatedOn: at(5)},
		{Name: "new", CreatedOn: at(9)},
	}

	SortNewestFirst(images)
	assert.Equal(t, []string{"new", "tie-a", "tie-b", "old", "undated-a", "undated-b"}, names(images))
}

func TestListImages_Errors(t *testing.T) {
	t.Run("no store", func(t *testing.T) {
		svc := NewImageService(nil, time.Second, nil)
		assert.False(t, svc.Configured())

		_, err := svc.ListImages(context.Background(), 1, 5)
		assert.ErrorIs(t, err, domain.ErrStorageNotConfigured)
		assert.True(t, domain.IsConfigurationError(err))
	})

	t.Run("upstream failure", func(t *testing.T) {
		cause := errors.New("connection reset")
		svc := NewImageService(&memStore{err: cause}, time.Second, nil)

		_, err := svc.ListImages(context.Background(), 1, 5)
		assert.ErrorIs(t, err, domain.ErrUpstreamFailure)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "Failed to fetch images from storage", domain.PublicMessage(err))
	})

	t.Run("timeout", func(t *testing.T) {
		svc := NewImageService(&memStore{delay: time.Second}, 10*time.Millisecond, nil)

		_, err := svc.ListImages(context.Background(), 1, 5)
		assert.ErrorIs(t, err, domain.ErrUpstreamFailure)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("invalid paging", func(t *testing.T) {
		svc := NewImageService(&memStore{}, time.Second, nil)

		_, err := svc.ListImages(context.Background(), 0, 5)
		assert.True(t, domain.IsValidationError(err))
		_, err = svc.ListImages(context.Background(), 1, MaxPageSize+1)
		assert.True(t, domain.IsValidationError(err))
	})
}

func TestGetImage(t *testing.T) {
	svc := NewImageService(&memStore{images: sampleImages(3)}, time.Second, nil)

	img, err := svc.GetImage(context.Background(), "img-01.jpg")
	require.NoError(t, err)
	assert.Equal(t, "img-01.jpg", img.Name)

	_, err = svc.GetImage(context.Background(), "nope.jpg")
	assert.ErrorIs(t, err, domain.ErrImageNotFound)
	assert.True(t, domain.IsNotFoundError(err))

	_, err = svc.GetImage(context.Background(), "")
	assert.True(t, domain.IsValidationError(err))

	broken := NewImageService(&memStore{err: errors.New("boom")}, time.Second, nil)
	_, err = broken.GetImage(context.Background(), "img-01.jpg")
	assert.ErrorIs(t, err, domain.ErrUpstreamFailure)

	unconfigured := NewImageService(nil, time.Second, nil)
	_, err = unconfigured.GetImage(context.Background(), "img-01.jpg")
	assert.ErrorIs(t, err, domain.ErrStorageNotConfigured)
}

func TestParsePaging(t *testing.T) {
	tests := []struct {
		name         string
		page, size   string
		wantPage     int
		wantPageSize int
		wantErr      bool
	}{
		{name: "defaults", wantPage: 1, wantPageSize: 5},
		{name: "explicit", page: "3", size: "10", wantPage: 3, wantPageSize: 10},
		{name: "max size", page: "1", size: "100", wantPage: 1, wantPageSize: 100},
		{name: "zero page", page: "0", wantErr: true},
		{name: "negative size", size: "-2", wantErr: true},
		{name: "non numeric", page: "two", wantErr: true},
		{name: "size too large", size: "101", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, size, err := ParsePaging(tt.page, tt.size)
			if tt.wantErr {
				assert.True(t, domain.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantPageSize, size)
		})
	}
}
