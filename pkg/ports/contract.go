package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/trio/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunUploadStoreContract runs a suite of tests to verify that an UploadStore implementation
// adheres to the defined interface contract.
func RunUploadStoreContract(t *testing.T, store UploadStore) {
	ctx := context.Background()
	id := "contract-upload-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		upload := &domain.Upload{
			ID:          id,
			ContentType: "image/png",
			Data:        []byte{0x89, 'P', 'N', 'G'},
			CreatedAt:   time.Now().UTC().Truncate(time.Second),
		}
		require.NoError(t, store.Save(ctx, upload), "Save should not return error")

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, upload.ContentType, loaded.ContentType)
		assert.Equal(t, upload.Data, loaded.Data)
		assert.True(t, upload.CreatedAt.Equal(loaded.CreatedAt))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+id)
		assert.ErrorIs(t, err, domain.ErrUploadNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, &domain.Upload{ID: id, ContentType: "image/png", Data: []byte("x")}))
		require.NoError(t, store.Delete(ctx, id))

		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrUploadNotFound)

		assert.NoError(t, store.Delete(ctx, id), "deleting twice should be a no-op")
	})
}
