// Package memory is an in-process storage.Provider. Change notifications are
// delivered synchronously on the writer's goroutine.
package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/utafrali/storefront/internal/storage"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Provider keeps one Device per id for the life of the process.
type Provider struct {
	mu      sync.Mutex
	quota   int
	devices map[string]*Device
}

var _ storage.Provider = (*Provider)(nil)

// NewProvider creates a provider whose devices hold at most quota bytes of
// keys and values. A quota of 0 means unlimited.
func NewProvider(quota int) *Provider {
	return &Provider{
		quota:   quota,
		devices: make(map[string]*Device),
	}
}

// Device returns the namespace for id, creating it on first use.
func (p *Provider) Device(id string) (storage.Device, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("device id is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	d, ok := p.devices[id]
	if !ok {
		d = NewDevice(p.quota)
		p.devices[id] = d
	}
	return d, nil
}

func (p *Provider) Ping(context.Context) error { return nil }

func (p *Provider) Close() error { return nil }

// Device is a map-backed storage.Device.
type Device struct {
	mu     sync.Mutex
	quota  int
	used   int
	data   map[string][]byte
	subs   map[int]func(storage.Change)
	nextID int
}

var _ storage.Device = (*Device)(nil)

// NewDevice creates an empty device limited to quota bytes (0 = unlimited).
func NewDevice(quota int) *Device {
	return &Device{
		quota: quota,
		data:  make(map[string][]byte),
		subs:  make(map[int]func(storage.Change)),
	}
}

func (d *Device) Get(_ context.Context, key string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, ok := d.data[key]
	if !ok {
		return nil, apperrors.NotFound("key", key)
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set stores value. Writing the value already stored is not a change and
// notifies nobody.
func (d *Device) Set(ctx context.Context, key string, value []byte) error {
	d.mu.Lock()
	old, exists := d.data[key]
	if exists && bytes.Equal(old, value) {
		d.mu.Unlock()
		return nil
	}

	used := d.used + len(value)
	if exists {
		used -= len(old)
	} else {
		used += len(key)
	}
	if d.quota > 0 && used > d.quota {
		d.mu.Unlock()
		return storage.ErrQuotaExceeded
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	d.data[key] = stored
	d.used = used
	subs := d.subscribersLocked()
	d.mu.Unlock()

	notify(subs, storage.Change{Key: key, Origin: storage.OriginFromContext(ctx)})
	return nil
}

// Delete removes key. Deleting a missing key is not a change.
func (d *Device) Delete(ctx context.Context, key string) error {
	d.mu.Lock()
	old, exists := d.data[key]
	if !exists {
		d.mu.Unlock()
		return nil
	}
	delete(d.data, key)
	d.used -= len(key) + len(old)
	subs := d.subscribersLocked()
	d.mu.Unlock()

	notify(subs, storage.Change{Key: key, Origin: storage.OriginFromContext(ctx)})
	return nil
}

func (d *Device) Subscribe(_ context.Context, fn func(storage.Change)) (func(), error) {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.subs[id] = fn
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subs, id)
			d.mu.Unlock()
		})
	}, nil
}

// Used returns the bytes currently counted against the quota.
func (d *Device) Used() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.used
}

// subscribersLocked returns subscribers in registration order.
func (d *Device) subscribersLocked() []func(storage.Change) {
	out := make([]func(storage.Change), 0, len(d.subs))
	for id := 0; id < d.nextID; id++ {
		if fn, ok := d.subs[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func notify(subs []func(storage.Change), c storage.Change) {
	for _, fn := range subs {
		fn(c)
	}
}
