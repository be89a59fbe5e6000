package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/backend"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/identity"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/internal/storage/memory"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// ============================================================================
// Mock Backend
// ============================================================================

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Login(ctx context.Context, email, password string) (*identity.Profile, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Profile), args.Error(1)
}

func (m *mockBackend) Register(ctx context.Context, reg backend.Registration) (*identity.Profile, error) {
	args := m.Called(ctx, reg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Profile), args.Error(1)
}

func (m *mockBackend) ListProducts(ctx context.Context, category string) ([]domain.CatalogItem, error) {
	args := m.Called(ctx, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CatalogItem), args.Error(1)
}

func (m *mockBackend) ListCategories(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Category), args.Error(1)
}

// ============================================================================
// Test helpers
// ============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testServer struct {
	router  http.Handler
	hub     *session.Hub
	backend *mockBackend
	admin   *mockAdmin
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := testLogger()
	hub := session.NewHub(memory.NewProvider(0), nil, logger)
	t.Cleanup(hub.Shutdown)

	backend := new(mockBackend)
	admin := new(mockAdmin)
	router := NewRouter(hub, backend, admin, health.NewHandler(), RouterConfig{
		TaxRate: domain.DefaultTaxRate,
		CORS:    middleware.DefaultCORSConfig(),
	}, logger)

	return &testServer{router: router, hub: hub, backend: backend, admin: admin}
}

func (s *testServer) do(t *testing.T, method, path, tab string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if tab != "" {
		req.Header.Set(middleware.DeviceIDHeader, "device-1")
		req.Header.Set(middleware.TabIDHeader, tab)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) SessionResponse {
	t.Helper()
	env := decodeEnvelope(t, rec)
	require.Nil(t, env.Error)
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	return resp
}

func intPtr(v int) *int { return &v }

// ============================================================================
// Tab headers
// ============================================================================

func TestSession_MissingTabHeaders(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/session/", "", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)
	assert.Equal(t, 0, s.hub.Len())
}

func TestSession_RejectsUnsafeTabID(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/session/", "tab 1/..", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSession_RejectsNonJSONBody(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/wishlist", bytes.NewBufferString("id=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(middleware.DeviceIDHeader, "device-1")
	req.Header.Set(middleware.TabIDHeader, "tab-1")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

// ============================================================================
// State
// ============================================================================

func TestGetSession_FreshTabIsGuest(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/session/", "tab-1", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeSession(t, rec)
	assert.Equal(t, domain.GuestIdentity, resp.Identity)
	assert.Empty(t, resp.Wishlist)
	assert.Empty(t, resp.Cart)
	assert.Equal(t, domain.Totals{}, resp.Totals)
	assert.Equal(t, 1, s.hub.Len())
}

func TestCloseTab(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/api/v1/session/", "tab-1", nil)
	require.Equal(t, 1, s.hub.Len())

	rec := s.do(t, http.MethodDelete, "/api/v1/session/", "tab-1", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, s.hub.Len())
}

// ============================================================================
// Wishlist
// ============================================================================

func TestAddToWishlist_NormalizesItem(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/session/wishlist", "tab-1", map[string]any{
		"id":    7,
		"name":  "Linen Dress",
		"image": "/img/dress.jpg",
		"price": "49.90",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeSession(t, rec)
	require.Len(t, resp.Wishlist, 1)
	assert.Equal(t, domain.WishlistEntry{ID: "7", Title: "Linen Dress", Image: "/img/dress.jpg", Price: 49.90}, resp.Wishlist[0])
}

func TestAddToWishlist_MissingID(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/session/wishlist", "tab-1", map[string]any{"title": "No id"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)
}

func TestRemoveFromWishlist(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/v1/session/wishlist", "tab-1", map[string]any{"id": "a", "price": 10})
	s.do(t, http.MethodPost, "/api/v1/session/wishlist", "tab-1", map[string]any{"id": "b", "price": 20})

	rec := s.do(t, http.MethodDelete, "/api/v1/session/wishlist/a", "tab-1", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeSession(t, rec)
	require.Len(t, resp.Wishlist, 1)
	assert.Equal(t, "b", resp.Wishlist[0].ID)
}

// ============================================================================
// Cart
// ============================================================================

func TestAddToCart_DefaultsQtyAndComputesTotals(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/session/cart", "tab-1", AddToCartRequest{
		Item: domain.RawProduct{ID: "p1", Title: "Bag", Price: 10},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeSession(t, rec)
	require.Len(t, resp.Cart, 1)
	assert.Equal(t, 1, resp.Cart[0].Qty)
	assert.Equal(t, domain.Totals{ItemCount: 1, Subtotal: 10, Tax: 2, Total: 12}, resp.Totals)
}

func TestAddToCart_ExistingLineIncrements(t *testing.T) {
	s := newTestServer(t)
	body := AddToCartRequest{Item: domain.RawProduct{ID: "p1", Price: 5}, Qty: intPtr(2)}
	s.do(t, http.MethodPost, "/api/v1/session/cart", "tab-1", body)

	rec := s.do(t, http.MethodPost, "/api/v1/session/cart", "tab-1", body)

	resp := decodeSession(t, rec)
	require.Len(t, resp.Cart, 1)
	assert.Equal(t, 4, resp.Cart[0].Qty)
	assert.Equal(t, domain.DefaultTitle, resp.Cart[0].Title)
}

func TestUpdateQty(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/v1/session/cart", "tab-1", AddToCartRequest{Item: domain.RawProduct{ID: "p1", Price: 5}})

	rec := s.do(t, http.MethodPut, "/api/v1/session/cart/p1", "tab-1", UpdateQtyRequest{Qty: intPtr(3)})
	resp := decodeSession(t, rec)
	require.Len(t, resp.Cart, 1)
	assert.Equal(t, 3, resp.Cart[0].Qty)

	rec = s.do(t, http.MethodPut, "/api/v1/session/cart/p1", "tab-1", UpdateQtyRequest{Qty: intPtr(0)})
	resp = decodeSession(t, rec)
	assert.Equal(t, 3, resp.Cart[0].Qty)
}

func TestUpdateQty_MissingQty(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPut, "/api/v1/session/cart/p1", "tab-1", map[string]any{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestCart_RejectsQtyAboveMax(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/session/cart", "tab-1", AddToCartRequest{
		Item: domain.RawProduct{ID: "p1"}, Qty: intPtr(domain.MaxQty + 1),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.do(t, http.MethodPost, "/api/v1/session/cart", "tab-1", AddToCartRequest{Item: domain.RawProduct{ID: "p1"}})
	rec = s.do(t, http.MethodPut, "/api/v1/session/cart/p1", "tab-1", UpdateQtyRequest{Qty: intPtr(domain.MaxQty * 1000)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	state := decodeSession(t, s.do(t, http.MethodGet, "/api/v1/session/", "tab-1", nil))
	require.Len(t, state.Cart, 1)
	assert.Equal(t, 1, state.Cart[0].Qty)
}

func TestRemoveFromCart(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/v1/session/cart", "tab-1", AddToCartRequest{Item: domain.RawProduct{ID: "p1", Price: 5}})

	rec := s.do(t, http.MethodDelete, "/api/v1/session/cart/p1", "tab-1", nil)

	resp := decodeSession(t, rec)
	assert.Empty(t, resp.Cart)
}

func TestMembership(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/v1/session/cart", "tab-1", AddToCartRequest{Item: domain.RawProduct{ID: "p1"}})

	rec := s.do(t, http.MethodGet, "/api/v1/session/items/p1", "tab-1", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	var resp MembershipResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, MembershipResponse{ID: "p1", Wishlisted: false, InCart: true}, resp)
}

// ============================================================================
// Login / logout
// ============================================================================

func TestLogin_SwitchesIdentityAndReloadsOtherTabs(t *testing.T) {
	s := newTestServer(t)
	s.backend.On("Login", mock.Anything, "ada@example.com", "secret").
		Return(&identity.Profile{UserID: "42", Username: "ada", UserEmail: "ada@example.com"}, nil)

	// Another tab of the same device is already open as guest.
	s.do(t, http.MethodGet, "/api/v1/session/", "tab-2", nil)

	rec := s.do(t, http.MethodPost, "/api/v1/session/login", "tab-1", LoginRequest{UserEmail: "ada@example.com", Password: "secret"})

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	var body struct {
		Profile identity.Profile `json:"profile"`
		Session SessionResponse  `json:"session"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, domain.Identity("42"), body.Session.Identity)
	assert.Equal(t, "ada", body.Profile.Username)

	other := decodeSession(t, s.do(t, http.MethodGet, "/api/v1/session/", "tab-2", nil))
	assert.Equal(t, domain.Identity("42"), other.Identity)
	s.backend.AssertExpectations(t)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	s := newTestServer(t)
	s.backend.On("Login", mock.Anything, "ada@example.com", "wrong").
		Return(nil, apperrors.Unauthorized("invalid email or password"))

	rec := s.do(t, http.MethodPost, "/api/v1/session/login", "tab-1", LoginRequest{UserEmail: "ada@example.com", Password: "wrong"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	state := decodeSession(t, s.do(t, http.MethodGet, "/api/v1/session/", "tab-1", nil))
	assert.Equal(t, domain.GuestIdentity, state.Identity)
}

func TestLogin_ValidationError(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/session/login", "tab-1", map[string]string{"user_email": "not-an-email"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	s.backend.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogin_RestoresUserRecords(t *testing.T) {
	s := newTestServer(t)
	s.backend.On("Login", mock.Anything, "ada@example.com", "secret").
		Return(&identity.Profile{UserID: "42"}, nil)

	s.do(t, http.MethodPost, "/api/v1/session/login", "tab-1", LoginRequest{UserEmail: "ada@example.com", Password: "secret"})
	s.do(t, http.MethodPost, "/api/v1/session/cart", "tab-1", AddToCartRequest{Item: domain.RawProduct{ID: "p1", Price: 3}})
	s.do(t, http.MethodPost, "/api/v1/session/logout", "tab-1", nil)

	rec := s.do(t, http.MethodPost, "/api/v1/session/login", "tab-1", LoginRequest{UserEmail: "ada@example.com", Password: "secret"})

	env := decodeEnvelope(t, rec)
	var body struct {
		Session SessionResponse `json:"session"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	require.Len(t, body.Session.Cart, 1)
	assert.Equal(t, "p1", body.Session.Cart[0].ID)
}

func validRegistration() RegisterRequest {
	return RegisterRequest{
		Username:        "ada",
		UserEmail:       "ada@example.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Address:         "1 Loop Rd",
		PhoneNumber:     "5550100123",
	}
}

func TestRegister_SignsInAndReloadsOtherTabs(t *testing.T) {
	s := newTestServer(t)
	req := validRegistration()
	s.backend.On("Register", mock.Anything, backend.Registration{
		Username:        req.Username,
		UserEmail:       req.UserEmail,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Address:         req.Address,
		PhoneNumber:     req.PhoneNumber,
	}).Return(&identity.Profile{UserID: "9", Username: "ada", UserEmail: "ada@example.com"}, nil)

	s.do(t, http.MethodGet, "/api/v1/session/", "tab-2", nil)

	rec := s.do(t, http.MethodPost, "/api/v1/session/register", "tab-1", req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	var body struct {
		Profile identity.Profile `json:"profile"`
		Session SessionResponse  `json:"session"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, domain.Identity("9"), body.Session.Identity)
	assert.Equal(t, "ada", body.Profile.Username)

	other := decodeSession(t, s.do(t, http.MethodGet, "/api/v1/session/", "tab-2", nil))
	assert.Equal(t, domain.Identity("9"), other.Identity)
	s.backend.AssertExpectations(t)
}

func TestRegister_ValidationError(t *testing.T) {
	s := newTestServer(t)
	req := validRegistration()
	req.ConfirmPassword = "secret2"
	req.PhoneNumber = "555"

	rec := s.do(t, http.MethodPost, "/api/v1/session/register", "tab-1", req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "must match password", env.Error.Fields["confirm_password"])
	assert.Contains(t, env.Error.Fields, "phone_number")
	s.backend.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestRegister_BackendRejects(t *testing.T) {
	s := newTestServer(t)
	s.backend.On("Register", mock.Anything, mock.Anything).
		Return(nil, apperrors.InvalidInput("backend: Username or email already exists"))

	rec := s.do(t, http.MethodPost, "/api/v1/session/register", "tab-1", validRegistration())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	state := decodeSession(t, s.do(t, http.MethodGet, "/api/v1/session/", "tab-1", nil))
	assert.Equal(t, domain.GuestIdentity, state.Identity)
}

func TestLogout_ClearsAndOtherTabsFallBackToGuest(t *testing.T) {
	s := newTestServer(t)
	s.backend.On("Login", mock.Anything, "ada@example.com", "secret").
		Return(&identity.Profile{UserID: "42"}, nil)
	s.do(t, http.MethodPost, "/api/v1/session/login", "tab-1", LoginRequest{UserEmail: "ada@example.com", Password: "secret"})
	s.do(t, http.MethodGet, "/api/v1/session/", "tab-2", nil)

	rec := s.do(t, http.MethodPost, "/api/v1/session/logout", "tab-1", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeSession(t, rec)
	assert.Equal(t, domain.Identity(""), resp.Identity)
	assert.Empty(t, resp.Cart)

	other := decodeSession(t, s.do(t, http.MethodGet, "/api/v1/session/", "tab-2", nil))
	assert.Equal(t, domain.GuestIdentity, other.Identity)
}

// ============================================================================
// Catalog
// ============================================================================

func TestCatalog_AnnotatesMembership(t *testing.T) {
	s := newTestServer(t)
	s.backend.On("ListProducts", mock.Anything, "bags").Return([]domain.CatalogItem{
		{ID: "b1", Title: "Tote", Image: domain.DefaultImage, Price: 30},
		{ID: "b2", Title: "Clutch", Image: domain.DefaultImage, Price: 45},
	}, nil)
	s.do(t, http.MethodPost, "/api/v1/session/wishlist", "tab-1", map[string]any{"id": "b2"})

	rec := s.do(t, http.MethodGet, "/api/v1/session/catalog/bags", "tab-1", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	var entries []CatalogEntry
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 2)
	assert.False(t, entries[0].Wishlisted)
	assert.True(t, entries[1].Wishlisted)
	assert.False(t, entries[1].InCart)
}

func TestCatalog_UnknownCategory(t *testing.T) {
	s := newTestServer(t)
	s.backend.On("ListProducts", mock.Anything, "shoes").Return(nil, apperrors.NotFound("category", "shoes"))

	rec := s.do(t, http.MethodGet, "/api/v1/session/catalog/shoes", "tab-1", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListCategories(t *testing.T) {
	s := newTestServer(t)
	s.backend.On("ListCategories", mock.Anything).Return([]domain.Category{
		{ID: "1", Title: "Dresses", Link: "/dresses"},
	}, nil)

	rec := s.do(t, http.MethodGet, "/api/v1/categories", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	var categories []domain.Category
	require.NoError(t, json.Unmarshal(env.Data, &categories))
	require.Len(t, categories, 1)
	assert.Equal(t, "Dresses", categories[0].Title)
}

func TestListCategories_BackendDown(t *testing.T) {
	s := newTestServer(t)
	s.backend.On("ListCategories", mock.Anything).Return(nil, apperrors.ServiceUnavailable("backend is unavailable"))

	rec := s.do(t, http.MethodGet, "/api/v1/categories", "", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
