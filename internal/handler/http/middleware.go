package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/middleware"
)

const maxIDLength = 128

type contextKey string

const tabKey contextKey = "tab"

type tabRef struct {
	device string
	tab    string
}

// TabFromHeaders reads X-Device-ID and X-Tab-ID and stores them in the request
// context. Requests missing either header are rejected with 400.
func TabFromHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		device := strings.TrimSpace(r.Header.Get(middleware.DeviceIDHeader))
		tab := strings.TrimSpace(r.Header.Get(middleware.TabIDHeader))

		if device == "" || tab == "" {
			httputil.WriteError(w, r, apperrors.InvalidInput(middleware.DeviceIDHeader+" and "+middleware.TabIDHeader+" headers are required"), slog.Default())
			return
		}
		if len(device) > maxIDLength || len(tab) > maxIDLength || !validID(device) || !validID(tab) {
			httputil.WriteError(w, r, apperrors.InvalidInput("device and tab ids must be at most 128 characters of letters, digits, '-', '_' or '.'"), slog.Default())
			return
		}

		ctx := context.WithValue(r.Context(), tabKey, tabRef{device: device, tab: tab})
		ctx = logger.WithTab(ctx, device, tab)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tabFromContext(ctx context.Context) (tabRef, bool) {
	ref, ok := ctx.Value(tabKey).(tabRef)
	return ref, ok
}

// validID keeps ids safe to embed in storage keys and channel names.
func validID(id string) bool {
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
