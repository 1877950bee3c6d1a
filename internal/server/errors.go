package server

import (
	"errors"
	"net"
	"strings"
)

var (
	// ErrHubClosed is returned when a connection arrives after Shutdown.
	ErrHubClosed = errors.New("server: hub is shut down")

	// ErrUnauthenticated is returned by an Authenticator that rejects the caller.
	ErrUnauthenticated = errors.New("server: unauthenticated")
)

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil || errors.Is(err, net.ErrClosed) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}
