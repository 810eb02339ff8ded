package ports_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/trio/pkg/domain"
	"github.com/aretw0/trio/pkg/ports"
)

// MockStore is an in-memory implementation of UploadStore for testing purposes.
type MockStore struct {
	mu   sync.Mutex
	data map[string]domain.Upload
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]domain.Upload),
	}
}

func (m *MockStore) Save(ctx context.Context, upload *domain.Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *upload
	copied.Data = append([]byte(nil), upload.Data...)
	m.data[upload.ID] = copied
	return nil
}

func (m *MockStore) Load(ctx context.Context, id string) (*domain.Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	upload, ok := m.data[id]
	if !ok {
		return nil, domain.ErrUploadNotFound
	}
	return &upload, nil
}

func (m *MockStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

func TestUploadStore_Contract(t *testing.T) {
	ports.RunUploadStoreContract(t, NewMockStore())
}

func TestInvokerFunc(t *testing.T) {
	var inv ports.Invoker = ports.InvokerFunc(func(ctx context.Context, trio domain.Trio) domain.RenderResult {
		return domain.Success("<svg/>")
	})
	if res := inv.Invoke(context.Background(), domain.Trio{}); !res.OK() || res.SVG != "<svg/>" {
		t.Errorf("Invoke() = %+v, want <svg/>", res)
	}
}
