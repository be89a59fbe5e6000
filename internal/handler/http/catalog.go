package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/pkg/httputil"
)

// CatalogHandler serves catalog data that is not tied to a tab.
type CatalogHandler struct {
	backend Backend
	logger  *slog.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(backend Backend, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{backend: backend, logger: logger}
}

// ListCategories handles GET /api/v1/categories.
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.backend.ListCategories(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, categories)
}
