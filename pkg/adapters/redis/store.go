package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aretw0/trio/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long an upload survives. Uploads only need to outlive the
// generate step that follows them.
const DefaultTTL = time.Hour

// Store implements ports.UploadStore on Redis hashes with a per-key expiry.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the store.
type Option func(*Store)

// WithTTL sets the upload expiry. Non-positive values disable expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New connects to addr and returns a store.
func New(addr string, opts ...Option) *Store {
	return NewFromClient(backend.NewClient(&backend.Options{Addr: addr}), opts...)
}

// NewFromClient wraps an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: "trio:upload:",
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

// Save writes the upload hash and its expiry in one transaction.
func (s *Store) Save(ctx context.Context, upload *domain.Upload) error {
	created := upload.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	key := s.key(upload.ID)
	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"content_type", upload.ContentType,
			"data", upload.Data,
			"created_at", strconv.FormatInt(created.UnixNano(), 10),
		)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save upload %s: %w", upload.ID, err)
	}
	return nil
}

// Load reads the upload hash.
func (s *Store) Load(ctx context.Context, id string) (*domain.Upload, error) {
	fields, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load upload %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrUploadNotFound
	}

	upload := &domain.Upload{
		ID:          id,
		ContentType: fields["content_type"],
		Data:        []byte(fields["data"]),
	}
	if ns, err := strconv.ParseInt(fields["created_at"], 10, 64); err == nil {
		upload.CreatedAt = time.Unix(0, ns).UTC()
	}
	return upload, nil
}

// Delete removes the upload.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete upload %s: %w", id, err)
	}
	return nil
}
