package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/storage"
)

// WishlistKey is the durable key of id's wishlist.
func WishlistKey(id domain.Identity) string { return "wishlist_" + string(id) }

// CartKey is the durable key of id's cart.
func CartKey(id domain.Identity) string { return "cart_" + string(id) }

type wishlistRecord struct {
	ID    domain.FlexString `json:"id"`
	Title string            `json:"title"`
	Img   string            `json:"img"`
	Price domain.FlexNumber `json:"price"`
}

type cartRecord struct {
	ID    domain.FlexString `json:"id"`
	Qty   domain.FlexNumber `json:"qty"`
	Title string            `json:"title"`
	Img   string            `json:"img"`
	Price domain.FlexNumber `json:"price"`
}

func encodeWishlist(entries []domain.WishlistEntry) ([]byte, error) {
	records := make([]wishlistRecord, len(entries))
	for i, e := range entries {
		records[i] = wishlistRecord{
			ID:    domain.FlexString(e.ID),
			Title: e.Title,
			Img:   e.Image,
			Price: domain.FlexNumber(e.Price),
		}
	}
	return json.Marshal(records)
}

func encodeCart(entries []domain.CartEntry) ([]byte, error) {
	records := make([]cartRecord, len(entries))
	for i, e := range entries {
		records[i] = cartRecord{
			ID:    domain.FlexString(e.ID),
			Qty:   domain.FlexNumber(e.Qty),
			Title: e.Title,
			Img:   e.Image,
			Price: domain.FlexNumber(e.Price),
		}
	}
	return json.Marshal(records)
}

// decodeWishlist drops entries without an id and repeated ids.
func decodeWishlist(raw []byte) ([]domain.WishlistEntry, error) {
	var records []wishlistRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(records))
	out := make([]domain.WishlistEntry, 0, len(records))
	for _, r := range records {
		id := strings.TrimSpace(string(r.ID))
		if _, dup := seen[id]; id == "" || dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, domain.WishlistEntry{ID: id, Title: r.Title, Image: r.Img, Price: price(r.Price)})
	}
	return out, nil
}

// decodeCart drops entries without an id and repeated ids, and raises
// quantities below 1 to 1.
func decodeCart(raw []byte) ([]domain.CartEntry, error) {
	var records []cartRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(records))
	out := make([]domain.CartEntry, 0, len(records))
	for _, r := range records {
		id := strings.TrimSpace(string(r.ID))
		if _, dup := seen[id]; id == "" || dup {
			continue
		}
		seen[id] = struct{}{}

		qty := 1
		switch {
		case r.Qty >= domain.MaxQty:
			qty = domain.MaxQty
		case r.Qty >= 1:
			qty = int(r.Qty)
		}
		out = append(out, domain.CartEntry{ID: id, Qty: qty, Title: r.Title, Image: r.Img, Price: price(r.Price)})
	}
	return out, nil
}

func price(n domain.FlexNumber) float64 {
	if n < 0 {
		return 0
	}
	return float64(n)
}

// loadRecords reads id's wishlist and cart. Missing, unreadable and corrupt
// records all load as empty.
func loadRecords(ctx context.Context, kv storage.KV, id domain.Identity, logger *slog.Logger) ([]domain.WishlistEntry, []domain.CartEntry) {
	wishlist := []domain.WishlistEntry{}
	if raw, ok := readRecord(ctx, kv, WishlistKey(id), logger); ok {
		entries, err := decodeWishlist(raw)
		if err != nil {
			logger.WarnContext(ctx, "discarding corrupt wishlist record",
				slog.String("key", WishlistKey(id)),
				slog.String("error", err.Error()),
			)
		} else {
			wishlist = entries
		}
	}

	cart := []domain.CartEntry{}
	if raw, ok := readRecord(ctx, kv, CartKey(id), logger); ok {
		entries, err := decodeCart(raw)
		if err != nil {
			logger.WarnContext(ctx, "discarding corrupt cart record",
				slog.String("key", CartKey(id)),
				slog.String("error", err.Error()),
			)
		} else {
			cart = entries
		}
	}

	return wishlist, cart
}

func readRecord(ctx context.Context, kv storage.KV, key string, logger *slog.Logger) ([]byte, bool) {
	raw, err := kv.Get(ctx, key)
	if err != nil {
		if !storage.IsNotFound(err) {
			logger.WarnContext(ctx, "failed to read session record",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}
	return raw, true
}

// saveRecords writes both records of s. The cart is still attempted when the
// wishlist write fails, and the first error is returned.
func saveRecords(ctx context.Context, kv storage.KV, s domain.SessionState) error {
	wishlist, err := encodeWishlist(s.Wishlist)
	if err != nil {
		return fmt.Errorf("encode wishlist: %w", err)
	}
	cart, err := encodeCart(s.Cart)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}

	var firstErr error
	if err := kv.Set(ctx, WishlistKey(s.Identity), wishlist); err != nil {
		firstErr = fmt.Errorf("write %s: %w", WishlistKey(s.Identity), err)
	}
	if err := kv.Set(ctx, CartKey(s.Identity), cart); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("write %s: %w", CartKey(s.Identity), err)
	}
	return firstErr
}
