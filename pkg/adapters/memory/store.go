package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/trio/pkg/domain"
)

// Store implements ports.UploadStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Upload
	mu   sync.RWMutex
	ttl  time.Duration
	now  func() time.Time
}

// Option configures the store.
type Option func(*Store)

// WithTTL expires uploads ttl after they were saved. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// NewStore creates a new in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		data: make(map[string]*domain.Upload),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save stores a copy of the upload.
func (s *Store) Save(ctx context.Context, upload *domain.Upload) error {
	copied := *upload
	copied.Data = slices.Clone(upload.Data)
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	s.data[upload.ID] = &copied
	return nil
}

// Load retrieves a copy of the upload so callers cannot mutate the store.
func (s *Store) Load(ctx context.Context, id string) (*domain.Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	upload, ok := s.data[id]
	if !ok || s.expired(upload) {
		return nil, domain.ErrUploadNotFound
	}

	ret := *upload
	ret.Data = slices.Clone(upload.Data)
	return &ret, nil
}

// Delete removes the upload.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// Len returns the number of live uploads.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.data {
		if !s.expired(u) {
			n++
		}
	}
	return n
}

func (s *Store) expired(u *domain.Upload) bool {
	return s.ttl > 0 && s.now().Sub(u.CreatedAt) >= s.ttl
}

// sweep drops expired uploads. Callers hold the write lock.
func (s *Store) sweep() {
	if s.ttl <= 0 {
		return
	}
	for id, u := range s.data {
		if s.expired(u) {
			delete(s.data, id)
		}
	}
}
