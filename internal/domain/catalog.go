package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Fallbacks applied when a product arrives without a title or image.
const (
	DefaultTitle = "Unnamed Product"
	DefaultImage = "/assets/images/default.jpg"
)

// CatalogItem is the canonical product shape held by wishlists and carts.
type CatalogItem struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Image  string   `json:"img"`
	Price  float64  `json:"price"`
	Rating *float64 `json:"rating,omitempty"`
}

// RawProduct is a product as the backend or a client form sends it. Both the
// title/name and img/image spellings occur, ids may be numbers and prices may
// be strings.
type RawProduct struct {
	ID     FlexString  `json:"id"`
	Title  string      `json:"title"`
	Name   string      `json:"name"`
	Img    string      `json:"img"`
	Image  string      `json:"image"`
	Price  FlexNumber  `json:"price"`
	Rating *FlexNumber `json:"rating,omitempty"`
}

// NormalizeProduct is the single place loose product shapes are coerced into
// a CatalogItem.
func NormalizeProduct(raw RawProduct) CatalogItem {
	item := CatalogItem{
		ID:    strings.TrimSpace(string(raw.ID)),
		Title: firstNonBlank(raw.Title, raw.Name, DefaultTitle),
		Image: firstNonBlank(raw.Img, raw.Image, DefaultImage),
		Price: sanitizePrice(float64(raw.Price)),
	}
	if raw.Rating != nil {
		rating := float64(*raw.Rating)
		item.Rating = &rating
	}
	return item
}

// NormalizeProducts normalizes a listing, dropping entries without an id.
func NormalizeProducts(raws []RawProduct) []CatalogItem {
	items := make([]CatalogItem, 0, len(raws))
	for _, raw := range raws {
		item := NormalizeProduct(raw)
		if item.ID == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func sanitizePrice(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return 0
	}
	return p
}

// FlexString decodes a JSON string or number into a string. null decodes to "".
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = FlexString(n.String())
	return nil
}

// FlexNumber decodes a JSON number or numeric string. Anything that is not a
// finite number decodes to 0.
type FlexNumber float64

func (n *FlexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*n = 0

	switch {
	case len(data) == 0:
		return nil
	case data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			*n = FlexNumber(f)
		}
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return nil
		}
		*n = FlexNumber(f)
	}
	return nil
}

// Category is a storefront section card.
type Category struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Image    string `json:"img,omitempty"`
	Link     string `json:"link,omitempty"`
	CTA      string `json:"cta,omitempty"`
}
