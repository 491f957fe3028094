// Package gallery orders and pages the images held by a blob store.
package gallery

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"gallery/internal/blob"
	"gallery/internal/domain"
	"gallery/internal/models"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 5
	MaxPageSize     = 100
)

var errNotPositive = errors.New("must be a positive integer")

type ImageService struct {
	store   blob.Store
	timeout time.Duration
	logger  *slog.Logger
}

// NewImageService accepts a nil store; every call then fails with
// domain.ErrStorageNotConfigured.
func NewImageService(store blob.Store, timeout time.Duration, logger *slog.Logger) *ImageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageService{
		store:   store,
		timeout: timeout,
		logger:  logger,
	}
}

// Configured reports whether a store is attached.
func (s *ImageService) Configured() bool {
	return s.store != nil
}

// ListImages returns one page of the container, newest first.
func (s *ImageService) ListImages(ctx context.Context, page, pageSize int) (*models.ImagePage, error) {
	if err := ValidatePaging(page, pageSize); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, domain.ErrStorageNotConfigured
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	images, err := s.store.List(ctx)
	if err != nil {
		return nil, domain.WrapUpstreamFailure("list images", err)
	}
	s.logger.DebugContext(ctx, "listed images",
		"count", len(images),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	SortNewestFirst(images)
	result := Paginate(images, page, pageSize)
	return &result, nil
}

func (s *ImageService) GetImage(ctx context.Context, name string) (*models.Image, error) {
	if name == "" {
		return nil, domain.WrapValidationError("imageName", errors.New("must not be empty"))
	}
	if s.store == nil {
		return nil, domain.ErrStorageNotConfigured
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	img, err := s.store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, domain.WrapImageNotFound(name, err)
		}
		return nil, domain.WrapUpstreamFailure("get image", err)
	}
	return img, nil
}

func (s *ImageService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// ParsePaging reads page and pageSize query values. Empty values take the
// defaults.
func ParsePaging(pageStr, pageSizeStr string) (page, pageSize int, err error) {
	page, err = parsePositive("page", pageStr, DefaultPage)
	if err != nil {
		return 0, 0, err
	}
	pageSize, err = parsePositive("pageSize", pageSizeStr, DefaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	return page, pageSize, ValidatePaging(page, pageSize)
}

func parsePositive(field, value string, def int) (int, error) {
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, domain.WrapValidationError(field, errNotPositive)
	}
	return n, nil
}

func ValidatePaging(page, pageSize int) error {
	if page < 1 {
		return domain.WrapValidationError("page", errNotPositive)
	}
	if pageSize < 1 {
		return domain.WrapValidationError("pageSize", errNotPositive)
	}
	if pageSize > MaxPageSize {
		return domain.WrapValidationError("pageSize", fmt.Errorf("must be at most %d", MaxPageSize))
	}
	return nil
}

// SortNewestFirst orders by creation time descending. A missing timestamp
// sorts as the epoch, and equal timestamps fall back to name order.
func SortNewestFirst(images []models.Image) {
	slices.SortStableFunc(images, func(a, b models.Image) int {
		if c := createdUnix(b).Compare(createdUnix(a)); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}

func createdUnix(img models.Image) time.Time {
	if img.CreatedOn == nil {
		return time.Unix(0, 0)
	}
	return *img.CreatedOn
}

// Paginate slices an already sorted list. Pages past the end are empty.
func Paginate(images []models.Image, page, pageSize int) models.ImagePage {
	total := len(images)
	result := models.ImagePage{
		Images:     []models.Image{},
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}

	if page > result.TotalPages {
		return result
	}
	start := (page - 1) * pageSize
	end := min(start+pageSize, total)
	result.Images = images[start:end]
	return result
}
