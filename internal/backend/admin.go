package backend

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

type productEnvelope struct {
	Product domain.ManagedProduct `json:"product"`
}

// ListAdminProducts returns every product grouped by category. Products in
// a category the backend does not list land under domain.OtherCategory.
func (c *Client) ListAdminProducts(ctx context.Context) (domain.ProductGroups, error) {
	var groups map[string][]domain.ManagedProduct
	if err := c.call(ctx, http.MethodGet, "/admin/products", nil, http.StatusOK, &groups, nil); err != nil {
		return nil, fmt.Errorf("list admin products: %w", err)
	}

	var all []domain.ManagedProduct
	for _, name := range slices.Sorted(maps.Keys(groups)) {
		all = append(all, groups[name]...)
	}
	return domain.GroupProducts(all, Categories), nil
}

// CreateProduct adds a product. A product_id already in use is a Conflict.
func (c *Client) CreateProduct(ctx context.Context, input domain.ProductInput) (*domain.ManagedProduct, error) {
	input = input.Normalize()

	var out productEnvelope
	err := c.call(ctx, http.MethodPost, "/admin/products", input, http.StatusCreated, &out,
		func(status int) error {
			if status == http.StatusBadRequest {
				return apperrors.Conflict(fmt.Sprintf("product %q already exists", input.ProductID))
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	c.logger.InfoContext(ctx, "product created", slog.String("product_id", out.Product.ProductID))
	return &out.Product, nil
}

// UpdateProduct replaces the product stored under productID.
func (c *Client) UpdateProduct(ctx context.Context, productID string, input domain.ProductInput) (*domain.ManagedProduct, error) {
	productID = strings.TrimSpace(productID)
	input = input.Normalize()

	var out productEnvelope
	err := c.call(ctx, http.MethodPut, "/admin/products/"+url.PathEscape(productID), input, http.StatusOK, &out,
		notFound(productID))
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	c.logger.InfoContext(ctx, "product updated", slog.String("product_id", productID))
	return &out.Product, nil
}

// DeleteProduct removes the product stored under productID.
func (c *Client) DeleteProduct(ctx context.Context, productID string) error {
	productID = strings.TrimSpace(productID)

	err := c.call(ctx, http.MethodDelete, "/admin/products/"+url.PathEscape(productID), nil, http.StatusOK, nil,
		notFound(productID))
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	c.logger.InfoContext(ctx, "product deleted", slog.String("product_id", productID))
	return nil
}

func notFound(productID string) func(int) error {
	return func(status int) error {
		if status == http.StatusNotFound {
			return apperrors.NotFound("product", productID)
		}
		return nil
	}
}
