package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// ProductAdmin manages the backend catalog.
type ProductAdmin interface {
	ListAdminProducts(ctx context.Context) (domain.ProductGroups, error)
	CreateProduct(ctx context.Context, input domain.ProductInput) (*domain.ManagedProduct, error)
	UpdateProduct(ctx context.Context, productID string, input domain.ProductInput) (*domain.ManagedProduct, error)
	DeleteProduct(ctx context.Context, productID string) error
}

// AdminHandler serves catalog management. Like the backend it fronts, it
// performs no authorization.
type AdminHandler struct {
	admin  ProductAdmin
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admin ProductAdmin, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, logger: logger}
}

// ProductRequest is the body of product create and update calls.
type ProductRequest struct {
	ProductID string  `json:"product_id" validate:"required,max=64"`
	Title     string  `json:"title" validate:"required,max=200"`
	Image     string  `json:"img" validate:"omitempty,max=500"`
	Price     float64 `json:"price" validate:"gte=0"`
	Category  string  `json:"category" validate:"required,oneof=dresses bags jewellery"`
}

func (p ProductRequest) input() domain.ProductInput {
	return domain.ProductInput{
		ProductID: p.ProductID,
		Title:     p.Title,
		Image:     p.Image,
		Price:     p.Price,
		Category:  p.Category,
	}
}

// ListProducts handles GET /api/v1/admin/products.
func (h *AdminHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	groups, err := h.admin.ListAdminProducts(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, groups)
}

// CreateProduct handles POST /api/v1/admin/products.
func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	product, err := h.admin.CreateProduct(r.Context(), req.input())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: product})
}

// UpdateProduct handles PUT /api/v1/admin/products/{productId}.
func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	product, err := h.admin.UpdateProduct(r.Context(), chi.URLParam(r, "productId"), req.input())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, product)
}

// DeleteProduct handles DELETE /api/v1/admin/products/{productId}.
func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.DeleteProduct(r.Context(), chi.URLParam(r, "productId")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
