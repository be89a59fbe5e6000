package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// RouterConfig holds the settings the router needs beyond its collaborators.
type RouterConfig struct {
	TaxRate float64
	CORS    middleware.CORSConfig
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(
	hub *session.Hub,
	backend Backend,
	admin ProductAdmin,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("storefront"))
	r.Use(middleware.Tracing("storefront"))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	catalogHandler := NewCatalogHandler(backend, logger)
	sessionHandler := NewSessionHandler(hub, backend, cfg.TaxRate, logger)
	adminHandler := NewAdminHandler(admin, logger)

	r.Get("/api/v1/categories", catalogHandler.ListCategories)

	r.Route("/api/v1/session", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(TabFromHeaders)

		r.Get("/", sessionHandler.GetSession)
		r.Delete("/", sessionHandler.CloseTab)

		r.Post("/login", sessionHandler.Login)
		r.Post("/register", sessionHandler.Register)
		r.Post("/logout", sessionHandler.Logout)

		r.Post("/wishlist", sessionHandler.AddToWishlist)
		r.Delete("/wishlist/{id}", sessionHandler.RemoveFromWishlist)

		r.Post("/cart", sessionHandler.AddToCart)
		r.Put("/cart/{id}", sessionHandler.UpdateQty)
		r.Delete("/cart/{id}", sessionHandler.RemoveFromCart)

		r.Get("/items/{id}", sessionHandler.Membership)
		r.Get("/catalog/{category}", sessionHandler.Catalog)
	})

	r.Route("/api/v1/admin/products", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/", adminHandler.ListProducts)
		r.Post("/", adminHandler.CreateProduct)
		r.Put("/{productId}", adminHandler.UpdateProduct)
		r.Delete("/{productId}", adminHandler.DeleteProduct)
	})

	return r
}
