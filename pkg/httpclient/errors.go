package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// downstreamError covers the two error body shapes seen from upstream APIs:
// the envelope `{"error":{"code","message"}}` and the `{"detail": "..."}` form.
type downstreamError struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

func (d downstreamError) message() (string, bool) {
	if d.Error != nil && d.Error.Message != "" {
		return d.Error.Message, true
	}
	if len(d.Detail) == 0 {
		return "", false
	}
	var text string
	if json.Unmarshal(d.Detail, &text) == nil {
		return text, text != ""
	}
	// Validation failures carry a list of objects; keep them verbatim.
	return string(d.Detail), true
}

// ParseResponseError consumes and closes a non-2xx response and translates it
// into an AppError, keeping the upstream message when the body is structured.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	var downstream downstreamError
	if json.Unmarshal(body, &downstream) == nil {
		if msg, ok := downstream.message(); ok {
			return mapDownstreamError(resp.StatusCode, msg, serviceName)
		}
	}

	return fmt.Errorf("%s returned status %d: %s", serviceName, resp.StatusCode, string(body))
}

func mapDownstreamError(status int, message, serviceName string) error {
	qualified := fmt.Sprintf("%s: %s", serviceName, message)

	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound(serviceName+" resource", message)
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return apperrors.InvalidInput(qualified)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return apperrors.Unauthorized(qualified)
	case status == http.StatusConflict:
		return apperrors.Conflict(qualified)
	case status == http.StatusServiceUnavailable:
		return apperrors.ServiceUnavailable(qualified)
	default:
		return fmt.Errorf("%s error (%d): %s", serviceName, status, message)
	}
}

// IsClientError reports whether status is a 4xx code.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
