package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/backend"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/identity"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/internal/storage"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// Backend is the remote catalog and auth service.
type Backend interface {
	Login(ctx context.Context, email, password string) (*identity.Profile, error)
	Register(ctx context.Context, reg backend.Registration) (*identity.Profile, error)
	ListProducts(ctx context.Context, category string) ([]domain.CatalogItem, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// SessionHandler serves the wishlist and cart of the requesting tab.
type SessionHandler struct {
	hub     *session.Hub
	backend Backend
	taxRate float64
	logger  *slog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(hub *session.Hub, backend Backend, taxRate float64, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{hub: hub, backend: backend, taxRate: taxRate, logger: logger}
}

// --- Request / Response types ---

// LoginRequest carries the credentials forwarded to the backend.
type LoginRequest struct {
	UserEmail string `json:"user_email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
}

// RegisterRequest is a new account. The backend enforces uniqueness.
type RegisterRequest struct {
	Username        string `json:"username" validate:"required,max=30"`
	UserEmail       string `json:"user_email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	Address         string `json:"address" validate:"required,min=5,max=200"`
	PhoneNumber     string `json:"phone_number" validate:"required,min=10,max=15"`
}

// AddToCartRequest adds item with an optional quantity, defaulting to 1.
type AddToCartRequest struct {
	Item domain.RawProduct `json:"item"`
	Qty  *int              `json:"qty,omitempty" validate:"omitempty,lte=999"`
}

// UpdateQtyRequest sets the quantity of a cart line.
type UpdateQtyRequest struct {
	Qty *int `json:"qty" validate:"required,lte=999"`
}

// SessionResponse is the state of a tab with its derived totals.
type SessionResponse struct {
	Identity domain.Identity        `json:"identity"`
	Wishlist []domain.WishlistEntry `json:"wishlist"`
	Cart     []domain.CartEntry     `json:"cart"`
	Totals   domain.Totals          `json:"totals"`
}

// MembershipResponse reports whether an item is in the wishlist and cart.
type MembershipResponse struct {
	ID         string `json:"id"`
	Wishlisted bool   `json:"wishlisted"`
	InCart     bool   `json:"in_cart"`
}

// CatalogEntry is a listed product annotated with the tab's membership.
type CatalogEntry struct {
	domain.CatalogItem
	Wishlisted bool `json:"wishlisted"`
	InCart     bool `json:"in_cart"`
}

// --- Handlers ---

// GetSession handles GET /api/v1/session.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	httputil.WriteData(w, h.response(store.State()))
}

// CloseTab handles DELETE /api/v1/session.
func (h *SessionHandler) CloseTab(w http.ResponseWriter, r *http.Request) {
	ref, _ := tabFromContext(r.Context())
	h.hub.Close(ref.device, ref.tab)
	w.WriteHeader(http.StatusNoContent)
}

// Login handles POST /api/v1/session/login.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	store, ok := h.store(w, r)
	if !ok {
		return
	}

	profile, err := h.backend.Login(r.Context(), strings.TrimSpace(req.UserEmail), req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.signIn(w, r, store, profile, http.StatusOK)
}

// Register handles POST /api/v1/session/register. A successful registration
// signs the tab in as the new user.
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	store, ok := h.store(w, r)
	if !ok {
		return
	}

	profile, err := h.backend.Register(r.Context(), backend.Registration{
		Username:        req.Username,
		UserEmail:       req.UserEmail,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Address:         req.Address,
		PhoneNumber:     req.PhoneNumber,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.signIn(w, r, store, profile, http.StatusCreated)
}

// Logout handles POST /api/v1/session/logout.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	ref, _ := tabFromContext(r.Context())
	profiles, err := h.hub.Profiles(ref.device)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := profiles.SignOut(storage.WithOrigin(r.Context(), ref.tab)); err != nil {
		httputil.WriteError(w, r, apperrors.Internal(err), h.logger)
		return
	}

	httputil.WriteData(w, h.response(store.ClearUser(r.Context())))
}

// AddToWishlist handles POST /api/v1/session/wishlist.
func (h *SessionHandler) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	var raw domain.RawProduct
	if err := validator.DecodeAndValidate(r, &raw); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	item, err := catalogItem(raw)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	store, ok := h.store(w, r)
	if !ok {
		return
	}
	httputil.WriteData(w, h.response(store.AddToWishlist(r.Context(), item)))
}

// RemoveFromWishlist handles DELETE /api/v1/session/wishlist/{id}.
func (h *SessionHandler) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	httputil.WriteData(w, h.response(store.RemoveFromWishlist(r.Context(), chi.URLParam(r, "id"))))
}

// AddToCart handles POST /api/v1/session/cart.
func (h *SessionHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req AddToCartRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	item, err := catalogItem(req.Item)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	qty := 1
	if req.Qty != nil {
		qty = *req.Qty
	}

	store, ok := h.store(w, r)
	if !ok {
		return
	}
	httputil.WriteData(w, h.response(store.AddToCart(r.Context(), item, qty)))
}

// UpdateQty handles PUT /api/v1/session/cart/{id}.
func (h *SessionHandler) UpdateQty(w http.ResponseWriter, r *http.Request) {
	var req UpdateQtyRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	store, ok := h.store(w, r)
	if !ok {
		return
	}
	httputil.WriteData(w, h.response(store.UpdateQty(r.Context(), chi.URLParam(r, "id"), *req.Qty)))
}

// RemoveFromCart handles DELETE /api/v1/session/cart/{id}.
func (h *SessionHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	httputil.WriteData(w, h.response(store.RemoveFromCart(r.Context(), chi.URLParam(r, "id"))))
}

// Membership handles GET /api/v1/session/items/{id}.
func (h *SessionHandler) Membership(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	httputil.WriteData(w, MembershipResponse{
		ID:         id,
		Wishlisted: store.IsWishlisted(id),
		InCart:     store.IsInCart(id),
	})
}

// Catalog handles GET /api/v1/session/catalog/{category}.
func (h *SessionHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	items, err := h.backend.ListProducts(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	state := store.State()
	entries := make([]CatalogEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, CatalogEntry{
			CatalogItem: item,
			Wishlisted:  state.IsWishlisted(item.ID),
			InCart:      state.IsInCart(item.ID),
		})
	}
	httputil.WriteData(w, entries)
}

// --- helpers ---

// signIn stores profile for the device, moves the tab onto the user's
// lists and writes the resulting session with status.
func (h *SessionHandler) signIn(w http.ResponseWriter, r *http.Request, store *session.Store, profile *identity.Profile, status int) {
	ref, _ := tabFromContext(r.Context())
	profiles, err := h.hub.Profiles(ref.device)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := profiles.SignIn(storage.WithOrigin(r.Context(), ref.tab), *profile); err != nil {
		httputil.WriteError(w, r, apperrors.Internal(err), h.logger)
		return
	}

	state := store.InitUser(r.Context(), profile.Identity())
	httputil.WriteJSON(w, status, httputil.Response{Data: map[string]any{
		"profile": profile,
		"session": h.response(state),
	}})
}

func (h *SessionHandler) store(w http.ResponseWriter, r *http.Request) (*session.Store, bool) {
	ref, ok := tabFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.InvalidInput("device and tab ids are required"), h.logger)
		return nil, false
	}
	store, err := h.hub.Open(r.Context(), ref.device, ref.tab)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return nil, false
	}
	return store, true
}

func (h *SessionHandler) response(state domain.SessionState) SessionResponse {
	return SessionResponse{
		Identity: state.Identity,
		Wishlist: state.Wishlist,
		Cart:     state.Cart,
		Totals:   state.Totals(h.taxRate),
	}
}

func catalogItem(raw domain.RawProduct) (domain.CatalogItem, error) {
	item := domain.NormalizeProduct(raw)
	if item.ID == "" {
		return domain.CatalogItem{}, apperrors.InvalidInput("item id is required")
	}
	return item, nil
}
