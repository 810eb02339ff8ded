package trio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/trio/pkg/domain"
	"github.com/aretw0/trio/pkg/generation"
	"github.com/aretw0/trio/pkg/ports"
	"github.com/google/uuid"
)

const (
	// DefaultPublicURL is the base of upload URLs when none is configured.
	DefaultPublicURL = "http://localhost:8080"
	// DefaultMaxUploadBytes bounds uploaded images.
	DefaultMaxUploadBytes = 5 << 20
	// DefaultUploadTTL is how long the default store keeps an upload.
	DefaultUploadTTL = time.Hour

	uploadsPath = "/uploads/"
)

// ImageTypes are the media types accepted for upload; they are the ones vision
// models accept.
var ImageTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// Upload stores an image and returns its reference. The media type is sniffed from
// the bytes; declaredType is only used in error messages.
func (s *Service) Upload(ctx context.Context, declaredType string, data []byte) (domain.UploadRef, error) {
	if len(data) == 0 {
		return domain.UploadRef{}, domain.Errorf(domain.KindValidation, "image payload is empty")
	}
	if int64(len(data)) > s.maxUploadBytes {
		return domain.UploadRef{}, domain.Errorf(domain.KindValidation, "image exceeds %d bytes", s.maxUploadBytes)
	}
	mediaType := http.DetectContentType(data)
	if !slices.Contains(ImageTypes, mediaType) {
		if declaredType == "" {
			declaredType = mediaType
		}
		return domain.UploadRef{}, domain.Errorf(domain.KindValidation, "unsupported image type %q", declaredType)
	}

	upload := &domain.Upload{
		ID:          uuid.NewString(),
		ContentType: mediaType,
		Data:        data,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.uploads.Save(ctx, upload); err != nil {
		return domain.UploadRef{}, domain.NewError(domain.KindInternal, fmt.Errorf("failed to store upload: %w", err))
	}
	s.logger.Debug("Upload stored", "id", upload.ID, "type", mediaType, "bytes", len(data))
	return domain.UploadRef{URL: UploadURL(s.publicURL, upload.ID)}, nil
}

// Download returns a stored upload. Missing or expired uploads yield
// domain.ErrUploadNotFound.
func (s *Service) Download(ctx context.Context, id string) (*domain.Upload, error) {
	return s.uploads.Load(ctx, id)
}

// UploadURL is the public URL of upload id.
func UploadURL(publicURL, id string) string {
	return strings.TrimRight(publicURL, "/") + uploadsPath + id
}

// UploadLoader lets a generator inline uploads served by this service, which an
// external model usually cannot reach.
func UploadLoader(store ports.UploadStore, publicURL string) generation.ImageLoader {
	prefix := strings.TrimRight(publicURL, "/") + uploadsPath
	return func(ctx context.Context, url string) (generation.Image, bool, error) {
		id, ok := strings.CutPrefix(url, prefix)
		if !ok || id == "" || strings.Contains(id, "/") {
			return generation.Image{}, false, nil
		}
		upload, err := store.Load(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrUploadNotFound) {
				return generation.Image{}, false, err
			}
			return generation.Image{}, false, fmt.Errorf("failed to load upload %s: %w", id, err)
		}
		return generation.Image{URL: url, MediaType: upload.ContentType, Data: upload.Data}, true, nil
	}
}
