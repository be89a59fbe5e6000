package session

import "github.com/utafrali/storefront/internal/domain"

// Transitions are pure: they never mutate their input and report whether the
// wishlist or cart changed.

func addToWishlist(s domain.SessionState, item domain.CatalogItem) (domain.SessionState, bool) {
	if item.ID == "" || s.IsWishlisted(item.ID) {
		return s, false
	}
	next := s.Clone()
	next.Wishlist = append(next.Wishlist, domain.NewWishlistEntry(item))
	return next, true
}

func removeFromWishlist(s domain.SessionState, id string) (domain.SessionState, bool) {
	i := s.IndexOfWishlist(id)
	if i < 0 {
		return s, false
	}
	next := s.Clone()
	next.Wishlist = append(next.Wishlist[:i], next.Wishlist[i+1:]...)
	return next, true
}

// addToCart treats qty < 1 as 1. Adding an id already in the cart increases
// its quantity in place, saturating at domain.MaxQty.
func addToCart(s domain.SessionState, item domain.CatalogItem, qty int) (domain.SessionState, bool) {
	if item.ID == "" {
		return s, false
	}
	qty = domain.ClampQty(qty)

	if i := s.IndexOfCart(item.ID); i >= 0 {
		sum := domain.ClampQty(s.Cart[i].Qty + qty)
		if sum == s.Cart[i].Qty {
			return s, false
		}
		next := s.Clone()
		next.Cart[i].Qty = sum
		return next, true
	}
	next := s.Clone()
	next.Cart = append(next.Cart, domain.NewCartEntry(item, qty))
	return next, true
}

func removeFromCart(s domain.SessionState, id string) (domain.SessionState, bool) {
	i := s.IndexOfCart(id)
	if i < 0 {
		return s, false
	}
	next := s.Clone()
	next.Cart = append(next.Cart[:i], next.Cart[i+1:]...)
	return next, true
}

// updateQty ignores qty < 1 and caps qty at domain.MaxQty.
func updateQty(s domain.SessionState, id string, qty int) (domain.SessionState, bool) {
	if qty < 1 {
		return s, false
	}
	qty = domain.ClampQty(qty)
	i := s.IndexOfCart(id)
	if i < 0 || s.Cart[i].Qty == qty {
		return s, false
	}
	next := s.Clone()
	next.Cart[i].Qty = qty
	return next, true
}

func clearUser(domain.SessionState) domain.SessionState {
	return domain.EmptyState()
}

// initUser replaces the state wholesale with id's loaded records. The empty
// identity becomes guest.
func initUser(id domain.Identity, wishlist []domain.WishlistEntry, cart []domain.CartEntry) domain.SessionState {
	if id == "" {
		id = domain.GuestIdentity
	}
	next := domain.SessionState{Identity: id, Wishlist: wishlist, Cart: cart}
	if next.Wishlist == nil {
		next.Wishlist = []domain.WishlistEntry{}
	}
	if next.Cart == nil {
		next.Cart = []domain.CartEntry{}
	}
	return next
}
