package marketplace

import (
	"fmt"
	"net/http"

	"github.com/channelsync/backend/internal/domain/platform"
)

// statusToError maps a marketplace HTTP status code onto the domain error
// the retry policy understands. Auth and not-found failures are permanent;
// rate limits and server errors are retryable.
func statusToError(statusCode int) error {
	switch {
	case statusCode < 400:
		return nil
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", platform.ErrAuthFailed, statusCode)
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("%w: HTTP %d", platform.ErrListingNotFound, statusCode)
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP %d", platform.ErrRateLimited, statusCode)
	default:
		return fmt.Errorf("%w: HTTP %d", platform.ErrRequestFailed, statusCode)
	}
}
