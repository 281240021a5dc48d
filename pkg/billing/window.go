package billing

import "time"

// Within reports whether now falls inside a window ending at end (Unix
// seconds). The boundary is inclusive: an account is still entitled at the
// exact expiry second. A missing or non-positive end is never within.
func Within(now time.Time, end *int64) bool {
	if end == nil || *end <= 0 {
		return false
	}
	return now.Unix() <= *end
}
