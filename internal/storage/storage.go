// Package storage provides the durable key-value store backing session
// credentials and the staged draft booking. Values are plain serialized
// records with no schema versioning; readers treat corrupt entries as
// absent.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("storage: key not found")

// Well-known keys.
const (
	KeyAuthToken = "authToken"
	KeyUser      = "user"
	KeyBarber    = "barber"
	KeyTime      = "time"
	KeyDate      = "date"
)

// KV is a minimal durable key-value store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
