package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/trio/pkg/domain"
	"github.com/aretw0/trio/pkg/ports"
)

// EnvelopeContentType marks an upload whose payload is encrypted.
const EnvelopeContentType = "application/vnd.trio.encrypted"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.UploadStore
	config EncryptionConfig
}

type sealed struct {
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// NewEncryptionMiddleware creates a middleware that encrypts upload payloads
// using AES-GCM. The upload ID is bound as additional data, so a payload
// copied under another ID fails to decrypt.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, errors.New("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.UploadStore) ports.UploadStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, upload *domain.Upload) error {
	plainText, err := json.Marshal(sealed{ContentType: upload.ContentType, Data: upload.Data})
	if err != nil {
		return fmt.Errorf("failed to marshal upload: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey, []byte(upload.ID))
	if err != nil {
		return fmt.Errorf("failed to encrypt upload: %w", err)
	}

	// The envelope only keeps what the store needs for bookkeeping.
	return m.next.Save(ctx, &domain.Upload{
		ID:          upload.ID,
		ContentType: EnvelopeContentType,
		Data:        ciphertext,
		CreatedAt:   upload.CreatedAt,
	})
}

func (m *encryptionMiddleware) Load(ctx context.Context, id string) (*domain.Upload, error) {
	envelope, err := m.next.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	// Fail secure: a plain upload behind an encrypting store is never served.
	if envelope.ContentType != EnvelopeContentType {
		return nil, errors.New("upload is missing encrypted data envelope")
	}

	plainText, err := decryptWithRotation(envelope.Data, []byte(id), m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt upload: %w", err)
	}

	var s sealed
	if err := json.Unmarshal(plainText, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted upload: %w", err)
	}

	return &domain.Upload{
		ID:          id,
		ContentType: s.ContentType,
		Data:        s.Data,
		CreatedAt:   envelope.CreatedAt,
	}, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

// Helpers

func encrypt(plaintext, key, aad []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, aad), nil
}

func decryptWithRotation(ciphertext, aad, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey, aad); err == nil {
		return plain, nil
	}

	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key, aad); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext, key, aad []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], aad)
}
