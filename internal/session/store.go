// Package session holds the wishlist and cart of one tab, persists them per
// identity and follows sign-in changes made by other tabs of the same device.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/identity"
	"github.com/utafrali/storefront/internal/storage"
)

// reloadTimeout bounds a reload triggered by a change notification.
const reloadTimeout = 5 * time.Second

// Publisher receives every state a store settles on. Errors are logged and
// otherwise ignored.
type Publisher interface {
	PublishUpdated(ctx context.Context, state domain.SessionState) error
	PublishCleared(ctx context.Context, id domain.Identity) error
}

// Store is the session of one tab. Operations never fail: invalid input
// leaves the state as it was, and storage trouble is logged and swallowed so
// the in-memory state stays authoritative.
type Store struct {
	mu        sync.Mutex
	tabID     string
	kv        storage.KV
	resolver  identity.Resolver
	publisher Publisher
	logger    *slog.Logger
	state     domain.SessionState
}

// NewStore resolves the current identity and loads its records.
func NewStore(ctx context.Context, tabID string, kv storage.KV, resolver identity.Resolver, publisher Publisher, logger *slog.Logger) *Store {
	s := newStore(tabID, kv, resolver, publisher, logger)
	s.Reload(ctx)
	return s
}

func newStore(tabID string, kv storage.KV, resolver identity.Resolver, publisher Publisher, logger *slog.Logger) *Store {
	return &Store{
		tabID:     tabID,
		kv:        kv,
		resolver:  resolver,
		publisher: publisher,
		logger:    logger,
		state:     domain.EmptyState(),
	}
}

// TabID returns the tab this store belongs to.
func (s *Store) TabID() string { return s.tabID }

// State returns a snapshot of the current state.
func (s *Store) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// IsWishlisted reports whether id is in the wishlist.
func (s *Store) IsWishlisted(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsWishlisted(id)
}

// IsInCart reports whether id is in the cart.
func (s *Store) IsInCart(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsInCart(id)
}

// Totals computes the cart totals at taxRate.
func (s *Store) Totals(taxRate float64) domain.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Totals(taxRate)
}

func (s *Store) AddToWishlist(ctx context.Context, item domain.CatalogItem) domain.SessionState {
	return s.apply(ctx, "add_to_wishlist", func(st domain.SessionState) (domain.SessionState, bool) {
		return addToWishlist(st, item)
	})
}

func (s *Store) RemoveFromWishlist(ctx context.Context, id string) domain.SessionState {
	return s.apply(ctx, "remove_from_wishlist", func(st domain.SessionState) (domain.SessionState, bool) {
		return removeFromWishlist(st, id)
	})
}

// AddToCart adds qty of item, treating qty < 1 as 1.
func (s *Store) AddToCart(ctx context.Context, item domain.CatalogItem, qty int) domain.SessionState {
	return s.apply(ctx, "add_to_cart", func(st domain.SessionState) (domain.SessionState, bool) {
		return addToCart(st, item, qty)
	})
}

func (s *Store) RemoveFromCart(ctx context.Context, id string) domain.SessionState {
	return s.apply(ctx, "remove_from_cart", func(st domain.SessionState) (domain.SessionState, bool) {
		return removeFromCart(st, id)
	})
}

// UpdateQty sets the quantity of id. qty < 1 is ignored.
func (s *Store) UpdateQty(ctx context.Context, id string, qty int) domain.SessionState {
	return s.apply(ctx, "update_qty", func(st domain.SessionState) (domain.SessionState, bool) {
		return updateQty(st, id, qty)
	})
}

// ClearUser resets to the empty baseline. Nothing is written: the previous
// identity's records stay in storage for its next sign-in.
func (s *Store) ClearUser(ctx context.Context) domain.SessionState {
	s.mu.Lock()
	previous := s.state.Identity
	s.state = clearUser(s.state)
	observeTransition("clear_user", true)
	snapshot := s.state.Clone()
	s.mu.Unlock()

	if previous != "" {
		if err := s.publisher.PublishCleared(ctx, previous); err != nil {
			s.logger.WarnContext(ctx, "failed to publish session cleared", slog.String("error", err.Error()))
		}
	}
	return snapshot
}

// InitUser replaces the state with id's stored records. The empty identity
// loads the guest records.
func (s *Store) InitUser(ctx context.Context, id domain.Identity) domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked(ctx, id)
	return s.state.Clone()
}

// Reload re-resolves the identity and reloads its records.
func (s *Store) Reload(ctx context.Context) domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked(ctx, s.resolver.Resolve(ctx))
	return s.state.Clone()
}

func (s *Store) initLocked(ctx context.Context, id domain.Identity) {
	if id == "" {
		id = domain.GuestIdentity
	}
	wishlist, cart := loadRecords(ctx, s.kv, id, s.logger)
	s.state = initUser(id, wishlist, cart)
	observeTransition("init_user", true)

	s.logger.DebugContext(ctx, "session initialized",
		slog.String("identity", string(id)),
		slog.Int("wishlist", len(s.state.Wishlist)),
		slog.Int("cart", len(s.state.Cart)),
	)
}

// HandleChange reloads the session when another tab changed the profile
// record. Changes to other keys, and changes this tab made itself, are ignored.
func (s *Store) HandleChange(change storage.Change) {
	if change.Key != identity.ProfileKey || (change.Origin != "" && change.Origin == s.tabID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()

	state := s.Reload(ctx)
	reloadsTotal.Inc()
	s.logger.InfoContext(ctx, "session reloaded after profile change",
		slog.String("identity", string(state.Identity)),
		slog.String("origin", change.Origin),
	)
}

// apply runs transition under the lock and persists the result before
// releasing it. The event is published after the lock is released.
func (s *Store) apply(ctx context.Context, op string, transition func(domain.SessionState) (domain.SessionState, bool)) domain.SessionState {
	s.mu.Lock()
	next, changed := transition(s.state)
	observeTransition(op, changed)
	if changed {
		s.state = next
		if s.state.Identity != "" {
			s.persistLocked(ctx, op)
		}
	}
	snapshot := s.state.Clone()
	s.mu.Unlock()

	if !changed || snapshot.Identity == "" {
		return snapshot
	}
	if err := s.publisher.PublishUpdated(ctx, snapshot.Clone()); err != nil {
		s.logger.WarnContext(ctx, "failed to publish session update",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
	}
	return snapshot
}

func (s *Store) persistLocked(ctx context.Context, op string) {
	if err := saveRecords(storage.WithOrigin(ctx, s.tabID), s.kv, s.state); err != nil {
		persistFailuresTotal.Inc()
		s.logger.WarnContext(ctx, "failed to persist session",
			slog.String("op", op),
			slog.String("identity", string(s.state.Identity)),
			slog.String("error", err.Error()),
		)
	}
}

// NopPublisher discards everything.
type NopPublisher struct{}

func (NopPublisher) PublishUpdated(context.Context, domain.SessionState) error { return nil }

func (NopPublisher) PublishCleared(context.Context, domain.Identity) error { return nil }
