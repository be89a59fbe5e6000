package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// NormalizeProduct Tests
// ============================================================================

func decodeRaw(t *testing.T, body string) RawProduct {
	t.Helper()
	var raw RawProduct
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	return raw
}

func TestNormalizeProduct_CanonicalShape(t *testing.T) {
	item := NormalizeProduct(decodeRaw(t, `{"id":"p1","title":"Dress","img":"/d.jpg","price":49.99}`))
	assert.Equal(t, CatalogItem{ID: "p1", Title: "Dress", Image: "/d.jpg", Price: 49.99}, item)
}

func TestNormalizeProduct_BackendShape(t *testing.T) {
	item := NormalizeProduct(decodeRaw(t, `{"id":7,"name":"Tote","image":"/bags/tote.jpg","price":"120.5","rating":4.5}`))

	assert.Equal(t, "7", item.ID)
	assert.Equal(t, "Tote", item.Title)
	assert.Equal(t, "/bags/tote.jpg", item.Image)
	assert.Equal(t, 120.5, item.Price)
	require.NotNil(t, item.Rating)
	assert.Equal(t, 4.5, *item.Rating)
}

func TestNormalizeProduct_TitlePrefersTitleOverName(t *testing.T) {
	item := NormalizeProduct(decodeRaw(t, `{"id":"1","title":"Ring","name":"ignored"}`))
	assert.Equal(t, "Ring", item.Title)
}

func TestNormalizeProduct_Defaults(t *testing.T) {
	item := NormalizeProduct(decodeRaw(t, `{"id":"1"}`))

	assert.Equal(t, DefaultTitle, item.Title)
	assert.Equal(t, DefaultImage, item.Image)
	assert.Equal(t, 0.0, item.Price)
	assert.Nil(t, item.Rating)
}

func TestNormalizeProduct_BlankFieldsFallBack(t *testing.T) {
	item := NormalizeProduct(decodeRaw(t, `{"id":"1","title":"  ","name":"","img":""}`))
	assert.Equal(t, DefaultTitle, item.Title)
	assert.Equal(t, DefaultImage, item.Image)
}

func TestNormalizeProduct_BadPrices(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"non numeric string", `{"id":"1","price":"free"}`},
		{"negative", `{"id":"1","price":-5}`},
		{"null", `{"id":"1","price":null}`},
		{"bool", `{"id":"1","price":true}`},
		{"object", `{"id":"1","price":{"amount":3}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := NormalizeProduct(decodeRaw(t, tt.body))
			assert.Equal(t, 0.0, item.Price)
		})
	}
}

func TestNormalizeProducts_DropsMissingIDs(t *testing.T) {
	var raws []RawProduct
	require.NoError(t, json.Unmarshal([]byte(`[{"id":1,"name":"a"},{"name":"no id"},{"id":null},{"id":"3"}]`), &raws))

	items := NormalizeProducts(raws)
	require.Len(t, items, 2)
	assert.Equal(t, "1", items[0].ID)
	assert.Equal(t, "3", items[1].ID)
}

func TestCatalogItem_MarshalUsesImgKey(t *testing.T) {
	b, err := json.Marshal(CatalogItem{ID: "1", Title: "t", Image: "/x.jpg", Price: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1","title":"t","img":"/x.jpg","price":2}`, string(b))
}
