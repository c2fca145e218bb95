package llm

import (
	"context"
	"errors"
	"net/http"

	"github.com/taipm/evalrouter/internal/apierrors"
)

// mapHTTPError turns a non-2xx provider response into the shared error
// taxonomy: 401 -> auth, 429 -> rate limit, 5xx -> upstream, everything else
// -> generic provider error carrying the decoded body.
func mapHTTPError(provider string, statusCode int, body string) error {
	switch {
	case statusCode == http.StatusUnauthorized:
		return apierrors.ProviderAuth(provider, errors.New(body))
	case statusCode == http.StatusTooManyRequests:
		return apierrors.ProviderRateLimit(provider, errors.New(body))
	case statusCode >= 500:
		return apierrors.ProviderUpstream(provider, statusCode, errors.New(body))
	default:
		return apierrors.ProviderGeneric(provider, statusCode, body)
	}
}

// mapTransportError distinguishes a context-deadline/timeout failure from a
// generic transport failure.
func mapTransportError(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apierrors.ProviderTimeout(provider, err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apierrors.ProviderTimeout(provider, err)
	}
	return err
}
