// Package profile applies bio text to the remote Telegram account.
//
// The rate-limit policy lives here, not in the update loop: a 429 from the
// Bot API is waited out once and the apply retried exactly once more before
// the failure is handed back as an ordinary error.
package profile

import (
	"fmt"
	"time"
)

// RateLimitedError reports that Telegram asked us to back off.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}
