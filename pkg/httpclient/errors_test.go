package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestParseResponseError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		contains string
	}{
		{"detail string", http.StatusBadRequest, `{"detail":"Invalid credentials"}`, apperrors.ErrInvalidInput, "Invalid credentials"},
		{"envelope", http.StatusNotFound, `{"error":{"code":"NOT_FOUND","message":"no such category"}}`, apperrors.ErrNotFound, "no such category"},
		{"validation list", http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","email"]}]}`, apperrors.ErrInvalidInput, "email"},
		{"unauthorized", http.StatusUnauthorized, `{"detail":"expired"}`, apperrors.ErrUnauthorized, "expired"},
		{"conflict", http.StatusConflict, `{"detail":"exists"}`, apperrors.ErrConflict, "exists"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseResponseError(response(tt.status, tt.body), "backend")
			assert.True(t, errors.Is(err, tt.sentinel))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestParseResponseError_Unstructured(t *testing.T) {
	err := ParseResponseError(response(http.StatusTeapot, "short and stout"), "backend")
	assert.Contains(t, err.Error(), "backend returned status 418")

	var appErr *apperrors.AppError
	assert.False(t, errors.As(err, &appErr))
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(http.StatusNotFound))
	assert.False(t, IsClientError(http.StatusInternalServerError))
	assert.False(t, IsClientError(http.StatusOK))
}
