package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/snowflakedb/gosnowflake"

	"github.com/vvka-141/sfdash/pkg/sfdash"
)

// SessionTimeoutCode is the Snowflake error number reported when a session
// has been idle past its timeout and must be re-established.
const SessionTimeoutCode = 407002

// recoverableSessionPatterns are matched case-insensitively against the error text.
var recoverableSessionPatterns = []string{
	"access token expired",
	"terminated connection",
}

// SessionErrorClassifier reports query failures that are cured by discarding
// the connection handle and building a new one.
type SessionErrorClassifier struct{}

// NewSessionErrorClassifier creates a new session error classifier.
func NewSessionErrorClassifier() *SessionErrorClassifier {
	return &SessionErrorClassifier{}
}

// IsTransient returns true for expired tokens, terminated connections, the
// session timeout code and queries attempted on an invalidated handle.
func (c *SessionErrorClassifier) IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, sfdash.ErrStaleHandle) {
		return true
	}

	var sfErr *gosnowflake.SnowflakeError
	if errors.As(err, &sfErr) && sfErr.Number == SessionTimeoutCode {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range recoverableSessionPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// NetworkErrorClassifier reports connection attempts that failed for reasons
// likely to clear up on their own (DNS not ready, listener not up yet).
// Authentication failures are never transient.
type NetworkErrorClassifier struct{}

// NewNetworkErrorClassifier creates a new network error classifier.
func NewNetworkErrorClassifier() *NetworkErrorClassifier {
	return &NetworkErrorClassifier{}
}

// IsTransient determines if a connection error is temporary and retryable.
func (c *NetworkErrorClassifier) IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() || dnsErr.Timeout()
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return true
		}
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) ||
			errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ENETUNREACH) ||
			errors.Is(opErr.Err, syscall.EHOSTUNREACH) {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"i/o timeout",
		"server misbehaving",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

var (
	_ sfdash.ErrorClassifier = (*SessionErrorClassifier)(nil)
	_ sfdash.ErrorClassifier = (*NetworkErrorClassifier)(nil)
)
