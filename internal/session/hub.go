package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/storefront/internal/identity"
	"github.com/utafrali/storefront/internal/storage"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

type tabKey struct {
	device string
	tab    string
}

type openTab struct {
	store    *Store
	stop     func()
	lastSeen time.Time
}

// Hub owns the open tabs of every device. Each tab gets its own Store,
// subscribed to its device's change notifications.
type Hub struct {
	mu        sync.Mutex
	provider  storage.Provider
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
	tabs      map[tabKey]*openTab
	closed    bool
}

// NewHub creates a hub over provider. A nil publisher discards events.
func NewHub(provider storage.Provider, publisher Publisher, logger *slog.Logger) *Hub {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Hub{
		provider:  provider,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		tabs:      make(map[tabKey]*openTab),
	}
}

// Open returns the store of (device, tab), creating and subscribing it on
// first use. Storage I/O for a new tab runs outside the hub lock; when two
// requests race to open the same tab, the later one is discarded.
func (h *Hub) Open(ctx context.Context, device, tab string) (*Store, error) {
	if device == "" || tab == "" {
		return nil, apperrors.InvalidInput("device and tab ids are required")
	}
	key := tabKey{device: device, tab: tab}

	if store, ok := h.lookup(key); ok {
		return store, nil
	}

	dev, err := h.provider.Device(device)
	if err != nil {
		return nil, fmt.Errorf("open device %s: %w", device, err)
	}

	logger := h.logger.With(slog.String("device_id", device), slog.String("tab_id", tab))
	store := newStore(tab, dev, identity.NewProfiles(dev), h.publisher, logger)

	// Subscribe before loading so a profile change in between is not lost.
	stop, err := dev.Subscribe(context.WithoutCancel(ctx), store.HandleChange)
	if err != nil {
		return nil, fmt.Errorf("subscribe tab %s: %w", tab, err)
	}
	store.Reload(ctx)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		stop()
		return nil, apperrors.ServiceUnavailable("session hub is shut down")
	}
	if t, ok := h.tabs[key]; ok {
		t.lastSeen = h.now()
		h.mu.Unlock()
		stop()
		return t.store, nil
	}
	h.tabs[key] = &openTab{store: store, stop: stop, lastSeen: h.now()}
	openTabs.Inc()
	h.mu.Unlock()

	logger.InfoContext(ctx, "tab opened", slog.String("identity", string(store.State().Identity)))
	return store, nil
}

func (h *Hub) lookup(key tabKey) (*Store, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.tabs[key]
	if !ok {
		return nil, false
	}
	t.lastSeen = h.now()
	return t.store, true
}

// Profiles returns the profile record manager of device.
func (h *Hub) Profiles(device string) (*identity.Profiles, error) {
	dev, err := h.provider.Device(device)
	if err != nil {
		return nil, fmt.Errorf("open device %s: %w", device, err)
	}
	return identity.NewProfiles(dev), nil
}

// Close unsubscribes and forgets the tab. Closing an unknown tab is a no-op.
func (h *Hub) Close(device, tab string) bool {
	h.mu.Lock()
	t, ok := h.tabs[tabKey{device: device, tab: tab}]
	if ok {
		delete(h.tabs, tabKey{device: device, tab: tab})
		openTabs.Dec()
	}
	h.mu.Unlock()

	if ok {
		t.stop()
	}
	return ok
}

// EvictIdle closes tabs not opened since maxIdle ago and returns how many
// were closed.
func (h *Hub) EvictIdle(maxIdle time.Duration) int {
	cutoff := h.now().Add(-maxIdle)

	h.mu.Lock()
	var stale []*openTab
	for key, t := range h.tabs {
		if t.lastSeen.Before(cutoff) {
			stale = append(stale, t)
			delete(h.tabs, key)
			openTabs.Dec()
		}
	}
	h.mu.Unlock()

	for _, t := range stale {
		t.stop()
	}
	return len(stale)
}

// Len returns the number of open tabs.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.tabs)
}

// Shutdown closes every tab. Later calls to Open fail.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	tabs := h.tabs
	h.tabs = make(map[tabKey]*openTab)
	h.closed = true
	openTabs.Sub(float64(len(tabs)))
	h.mu.Unlock()

	for _, t := range tabs {
		t.stop()
	}
}
