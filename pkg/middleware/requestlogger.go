package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/pkg/logger"
)

// Headers identifying the durable storage namespace and the execution context of a request.
const (
	DeviceIDHeader = "X-Device-ID"
	TabIDHeader    = "X-Tab-ID"
)

// RequestLogger builds a request-scoped logger enriched with correlation_id,
// device_id, tab_id, trace_id and span_id, and stores it in the request context.
// Mount it after RequestLogging and Tracing.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if device, tab := logger.TabFromContext(ctx); tab == "" {
				device, tab = r.Header.Get(DeviceIDHeader), r.Header.Get(TabIDHeader)
				if tab != "" {
					ctx = logger.WithTab(ctx, device, tab)
				}
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
