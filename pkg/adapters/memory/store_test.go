package memory

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/trio/pkg/domain"
	"github.com/aretw0/trio/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunUploadStoreContract(t, NewStore())
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	upload := &domain.Upload{ID: "a", ContentType: "image/png", Data: []byte("png")}
	require.NoError(t, store.Save(ctx, upload))

	upload.Data[0] = 'X'
	loaded, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), loaded.Data)
	assert.False(t, loaded.CreatedAt.IsZero())

	loaded.Data[0] = 'Y'
	again, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), again.Data)
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewStore(WithTTL(time.Minute))
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(ctx, &domain.Upload{ID: "old", Data: []byte("1")}))
	now = now.Add(30 * time.Second)
	require.NoError(t, store.Save(ctx, &domain.Upload{ID: "new", Data: []byte("2")}))
	assert.Equal(t, 2, store.Len())

	now = now.Add(45 * time.Second)
	_, err := store.Load(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrUploadNotFound)
	_, err = store.Load(ctx, "new")
	assert.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Save(ctx, &domain.Upload{ID: "newer", Data: []byte("3")}))
	store.mu.RLock()
	_, kept := store.data["old"]
	store.mu.RUnlock()
	assert.False(t, kept, "expired uploads are swept on save")
}
