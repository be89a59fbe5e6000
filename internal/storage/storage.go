// Package storage defines the durable per-device key/value port used by
// sessions, and the change notifications every tab of a device observes.
package storage

import (
	"context"
	"errors"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

var (
	// ErrNotFound is returned by Get for a missing key.
	ErrNotFound = apperrors.ErrNotFound

	// ErrQuotaExceeded is returned when a write would overflow the device quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// KV is the durable record store of a single device.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Change describes a mutated key. Origin is the tab that wrote it, or empty
// when the writer did not tag its context.
type Change struct {
	Key    string `json:"key"`
	Origin string `json:"origin,omitempty"`
}

// Watcher delivers changes to subscribers. Subscribe returns a stop function
// that unsubscribes; it must not be called from inside fn.
type Watcher interface {
	Subscribe(ctx context.Context, fn func(Change)) (func(), error)
}

// Device is the storage namespace shared by every tab of one device.
type Device interface {
	KV
	Watcher
}

// Provider hands out device namespaces.
type Provider interface {
	Device(id string) (Device, error)
	Ping(ctx context.Context) error
	Close() error
}

type originKey struct{}

// WithOrigin tags writes made with ctx as coming from tabID.
func WithOrigin(ctx context.Context, tabID string) context.Context {
	return context.WithValue(ctx, originKey{}, tabID)
}

// OriginFromContext returns the tab id set by WithOrigin.
func OriginFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(originKey{}).(string); ok {
		return v
	}
	return ""
}

// IsNotFound reports whether err means the key does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
