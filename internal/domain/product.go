package domain

import "strings"

// OtherCategory groups managed products whose category is not a listing.
const OtherCategory = "other"

// ManagedProduct is a catalog row as the admin console sees it.
type ManagedProduct struct {
	ID        FlexString `json:"id,omitempty"`
	ProductID string     `json:"product_id"`
	Title     string     `json:"title"`
	Image     string     `json:"img"`
	Price     FlexNumber `json:"price"`
	Category  string     `json:"category"`
}

// ProductInput is the editable part of a managed product.
type ProductInput struct {
	ProductID string  `json:"product_id"`
	Title     string  `json:"title"`
	Image     string  `json:"img"`
	Price     float64 `json:"price"`
	Category  string  `json:"category"`
}

// ProductGroups holds managed products keyed by listing category, plus
// OtherCategory.
type ProductGroups map[string][]ManagedProduct

// GroupProducts buckets products by lower-cased category. Every name in
// listings gets a bucket, even if empty.
func GroupProducts(products []ManagedProduct, listings []string) ProductGroups {
	groups := make(ProductGroups, len(listings)+1)
	for _, name := range listings {
		groups[name] = []ManagedProduct{}
	}
	groups[OtherCategory] = []ManagedProduct{}

	for _, p := range products {
		cat := strings.ToLower(strings.TrimSpace(p.Category))
		if _, ok := groups[cat]; !ok {
			cat = OtherCategory
		}
		groups[cat] = append(groups[cat], p)
	}
	return groups
}

// Normalize fills defaults and trims the input.
func (in ProductInput) Normalize() ProductInput {
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.Title = strings.TrimSpace(in.Title)
	in.Image = strings.TrimSpace(in.Image)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.Price = sanitizePrice(in.Price)
	return in
}
