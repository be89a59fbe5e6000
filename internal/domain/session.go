package domain

// Identity scopes a wishlist and cart. The empty Identity is the cleared
// baseline that has no durable records.
type Identity string

// GuestIdentity is the identity used while nobody is signed in.
const GuestIdentity Identity = "guest"

// WishlistEntry is a catalog item snapshot without quantity.
type WishlistEntry struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Image string  `json:"img"`
	Price float64 `json:"price"`
}

// MaxQty bounds the quantity of one cart line.
const MaxQty = 999

// ClampQty bounds qty to [1, MaxQty].
func ClampQty(qty int) int {
	switch {
	case qty < 1:
		return 1
	case qty > MaxQty:
		return MaxQty
	}
	return qty
}

// CartEntry is a catalog item snapshot with a quantity between 1 and MaxQty.
type CartEntry struct {
	ID    string  `json:"id"`
	Qty   int     `json:"qty"`
	Title string  `json:"title"`
	Image string  `json:"img"`
	Price float64 `json:"price"`
}

// NewWishlistEntry snapshots item.
func NewWishlistEntry(item CatalogItem) WishlistEntry {
	return WishlistEntry{ID: item.ID, Title: item.Title, Image: item.Image, Price: item.Price}
}

// NewCartEntry snapshots item with qty.
func NewCartEntry(item CatalogItem, qty int) CartEntry {
	return CartEntry{ID: item.ID, Qty: qty, Title: item.Title, Image: item.Image, Price: item.Price}
}

// SessionState is the wishlist and cart of the active identity. Entry ids are
// unique within each list and insertion order is kept.
type SessionState struct {
	Identity Identity        `json:"identity"`
	Wishlist []WishlistEntry `json:"wishlist"`
	Cart     []CartEntry     `json:"cart"`
}

// EmptyState returns the cleared baseline.
func EmptyState() SessionState {
	return SessionState{Wishlist: []WishlistEntry{}, Cart: []CartEntry{}}
}

// IndexOfWishlist returns the position of id in the wishlist or -1.
func (s SessionState) IndexOfWishlist(id string) int {
	for i, e := range s.Wishlist {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// IndexOfCart returns the position of id in the cart or -1.
func (s SessionState) IndexOfCart(id string) int {
	for i, e := range s.Cart {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// IsWishlisted reports whether id is in the wishlist.
func (s SessionState) IsWishlisted(id string) bool { return s.IndexOfWishlist(id) >= 0 }

// IsInCart reports whether id is in the cart.
func (s SessionState) IsInCart(id string) bool { return s.IndexOfCart(id) >= 0 }

// Clone returns a deep copy so snapshots can leave the store safely.
func (s SessionState) Clone() SessionState {
	out := SessionState{
		Identity: s.Identity,
		Wishlist: make([]WishlistEntry, len(s.Wishlist)),
		Cart:     make([]CartEntry, len(s.Cart)),
	}
	copy(out.Wishlist, s.Wishlist)
	copy(out.Cart, s.Cart)
	return out
}
