package domain

import (
	"errors"
	"time"
)

// ErrUploadNotFound is returned when an upload ID cannot be found in the store.
var ErrUploadNotFound = errors.New("upload not found")

// UploadRef identifies a previously stored image.
type UploadRef struct {
	URL string `json:"url"`
}

// Upload is a stored image payload.
type Upload struct {
	ID          string    `json:"id"`
	ContentType string    `json:"content_type"`
	Data        []byte    `json:"data"`
	CreatedAt   time.Time `json:"created_at"`
}
