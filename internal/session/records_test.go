package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/storage/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "wishlist_guest", WishlistKey(domain.GuestIdentity))
	assert.Equal(t, "cart_42", CartKey("42"))
}

func TestEncodeRecords_FieldNames(t *testing.T) {
	w, err := encodeWishlist([]domain.WishlistEntry{{ID: "a", Title: "A", Image: "/a.jpg", Price: 1.5}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a","title":"A","img":"/a.jpg","price":1.5}]`, string(w))

	c, err := encodeCart([]domain.CartEntry{{ID: "a", Qty: 2, Title: "A", Image: "/a.jpg", Price: 1.5}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a","qty":2,"title":"A","img":"/a.jpg","price":1.5}]`, string(c))

	empty, err := encodeCart([]domain.CartEntry{})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))
}

func TestRecords_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewDevice(0)

	state := domain.SessionState{
		Identity: "u1",
		Wishlist: []domain.WishlistEntry{
			{ID: "w2", Title: "Bag", Image: "/b.jpg", Price: 80},
			{ID: "w1", Title: "Ring", Image: "/r.jpg", Price: 15.25},
		},
		Cart: []domain.CartEntry{
			{ID: "c9", Qty: 3, Title: "Dress", Image: "/d.jpg", Price: 49.99},
			{ID: "c1", Qty: 1, Title: "Scarf", Image: "/s.jpg", Price: 0},
		},
	}
	require.NoError(t, saveRecords(ctx, kv, state))

	wishlist, cart := loadRecords(ctx, kv, "u1", discardLogger())
	assert.Equal(t, state.Wishlist, wishlist)
	assert.Equal(t, state.Cart, cart)
}

func TestLoadRecords_Missing(t *testing.T) {
	wishlist, cart := loadRecords(context.Background(), memory.NewDevice(0), "nobody", discardLogger())
	assert.NotNil(t, wishlist)
	assert.NotNil(t, cart)
	assert.Empty(t, wishlist)
	assert.Empty(t, cart)
}

func TestLoadRecords_CorruptIsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewDevice(0)
	require.NoError(t, kv.Set(ctx, WishlistKey("u1"), []byte(`[{"id":"a"`)))
	require.NoError(t, kv.Set(ctx, CartKey("u1"), []byte(`{"not":"an array"}`)))

	wishlist, cart := loadRecords(ctx, kv, "u1", discardLogger())
	assert.Empty(t, wishlist)
	assert.Empty(t, cart)
}

func TestLoadRecords_CorruptWishlistKeepsCart(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewDevice(0)
	require.NoError(t, kv.Set(ctx, WishlistKey("u1"), []byte(`garbage`)))
	require.NoError(t, kv.Set(ctx, CartKey("u1"), []byte(`[{"id":"a","qty":2}]`)))

	wishlist, cart := loadRecords(ctx, kv, "u1", discardLogger())
	assert.Empty(t, wishlist)
	require.Len(t, cart, 1)
	assert.Equal(t, 2, cart[0].Qty)
}

func TestDecodeCart_Sanitizes(t *testing.T) {
	cart, err := decodeCart([]byte(`[
		{"id":7,"qty":0,"title":"Tote","img":"/t.jpg","price":"12.5"},
		{"qty":3,"title":"no id"},
		{"id":"7","qty":9},
		{"id":"x","qty":-2,"price":-3},
		{"id":"big","qty":1e300},
		null
	]`))
	require.NoError(t, err)

	assert.Equal(t, []domain.CartEntry{
		{ID: "7", Qty: 1, Title: "Tote", Image: "/t.jpg", Price: 12.5},
		{ID: "x", Qty: 1, Price: 0},
		{ID: "big", Qty: domain.MaxQty},
	}, cart)
}

func TestDecodeWishlist_DropsDuplicates(t *testing.T) {
	wishlist, err := decodeWishlist([]byte(`[{"id":"a","title":"first"},{"id":"a","title":"second"},{"id":""}]`))
	require.NoError(t, err)
	require.Len(t, wishlist, 1)
	assert.Equal(t, "first", wishlist[0].Title)
}

type brokenKV struct{ err error }

func (b brokenKV) Get(context.Context, string) ([]byte, error) { return nil, b.err }
func (b brokenKV) Set(context.Context, string, []byte) error   { return b.err }
func (b brokenKV) Delete(context.Context, string) error        { return b.err }

func TestLoadRecords_ReadErrorIsEmpty(t *testing.T) {
	wishlist, cart := loadRecords(context.Background(), brokenKV{err: errors.New("io")}, "u1", discardLogger())
	assert.Empty(t, wishlist)
	assert.Empty(t, cart)
}

func TestSaveRecords_ReturnsFirstError(t *testing.T) {
	err := saveRecords(context.Background(), brokenKV{err: errors.New("disk full")}, domain.SessionState{Identity: "u1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write wishlist_u1")
}
