package ports

import (
	"context"

	"github.com/aretw0/trio/pkg/domain"
)

// UploadStore keeps uploaded images for the substance generation step.
// Uploads are transient; implementations may expire them.
type UploadStore interface {
	// Save persists the upload under upload.ID.
	Save(ctx context.Context, upload *domain.Upload) error

	// Load retrieves an upload by ID.
	// Returns domain.ErrUploadNotFound if the upload does not exist or has expired.
	Load(ctx context.Context, id string) (*domain.Upload, error)

	// Delete removes an upload. Deleting a missing upload is not an error.
	Delete(ctx context.Context, id string) error
}
