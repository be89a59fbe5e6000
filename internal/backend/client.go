// Package backend calls the storefront REST backend for sign-in,
// registration, product listings and admin product management.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/identity"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
)

const serviceName = "backend"

// Product listing categories served by the backend.
var Categories = []string{"dresses", "bags", "jewellery"}

// HTTPDoer executes HTTP requests. Both httpclient.Client and
// httpclient.CircuitBreakerClient satisfy it.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client talks to the backend at baseURL.
type Client struct {
	http    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a backend client.
func NewClient(doer HTTPDoer, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// IsCategory reports whether the backend serves a listing for name.
func IsCategory(name string) bool {
	for _, c := range Categories {
		if c == name {
			return true
		}
	}
	return false
}

type loginRequest struct {
	UserEmail string `json:"user_email"`
	Password  string `json:"password"`
}

// Registration is a new account as the backend accepts it.
type Registration struct {
	Username        string `json:"username"`
	UserEmail       string `json:"user_email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Address         string `json:"address"`
	PhoneNumber     string `json:"phone_number"`
}

// Login exchanges credentials for the user's profile.
func (c *Client) Login(ctx context.Context, email, password string) (*identity.Profile, error) {
	var profile identity.Profile
	err := c.call(ctx, http.MethodPost, "/login",
		loginRequest{UserEmail: strings.TrimSpace(email), Password: password},
		http.StatusOK, &profile,
		func(status int) error {
			if status == http.StatusBadRequest {
				return apperrors.Unauthorized("invalid email or password")
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if profile.Identity() == domain.GuestIdentity {
		return nil, fmt.Errorf("login response carries no user id")
	}

	c.logger.InfoContext(ctx, "backend login succeeded", slog.String("user_id", string(profile.UserID)))
	return &profile, nil
}

// Register creates an account and returns its profile. Backend rejections
// (duplicate user, password mismatch, bad phone number) come back as
// InvalidInput carrying the backend's message.
func (c *Client) Register(ctx context.Context, reg Registration) (*identity.Profile, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.UserEmail = strings.TrimSpace(reg.UserEmail)

	var profile identity.Profile
	if err := c.call(ctx, http.MethodPost, "/register", reg, http.StatusCreated, &profile, nil); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if profile.Identity() == domain.GuestIdentity {
		return nil, fmt.Errorf("register response carries no user id")
	}

	c.logger.InfoContext(ctx, "backend registration succeeded", slog.String("user_id", string(profile.UserID)))
	return &profile, nil
}

// ListProducts returns the normalized listing of category.
func (c *Client) ListProducts(ctx context.Context, category string) ([]domain.CatalogItem, error) {
	if !IsCategory(category) {
		return nil, apperrors.NotFound("category", category)
	}

	var raws []domain.RawProduct
	if err := c.call(ctx, http.MethodGet, "/"+category, nil, http.StatusOK, &raws, nil); err != nil {
		return nil, fmt.Errorf("list %s: %w", category, err)
	}

	items := domain.NormalizeProducts(raws)
	if dropped := len(raws) - len(items); dropped > 0 {
		c.logger.WarnContext(ctx, "dropped products without id",
			slog.String("category", category),
			slog.Int("dropped", dropped),
		)
	}
	return items, nil
}

// ListCategories returns the category cards the backend advertises.
func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	if err := c.call(ctx, http.MethodGet, "/categories", nil, http.StatusOK, &categories, nil); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// call sends body as JSON when non-nil and decodes a response with status
// want into dst. For any other status, mapStatus may supply the error;
// otherwise the backend's error body is parsed.
func (c *Client) call(ctx context.Context, method, path string, body any, want int, dst any, mapStatus func(int) error) error {
	reader := io.Reader(http.NoBody)
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("call backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		if mapStatus != nil {
			if err := mapStatus(resp.StatusCode); err != nil {
				return err
			}
		}
		return httpclient.ParseResponseError(resp, serviceName)
	}
	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
