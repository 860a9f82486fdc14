package cache

import "strings"

// transientPatterns are error substrings indicating a remote cache operation
// may succeed on retry, rather than the entry being genuinely corrupt or
// permanently rejected.
var transientPatterns = []string{
	"connection refused",
	"connection reset by peer",
	"i/o timeout",
	"no such host",
	"network is unreachable",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"context deadline exceeded",
	"eof",
	"status 429",
	"status 500",
	"status 502",
	"status 503",
	"status 504",
}

// IsTransientError reports whether err looks like a transient remote-cache
// failure, as opposed to a permanent rejection (auth, 4xx other than 429).
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
