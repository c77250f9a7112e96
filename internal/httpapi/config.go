package httpapi

import "time"

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// inferTimeout caps a single POST /infer stream on top of the transport's
// own stall bound. Zero disables it.
var inferTimeout time.Duration

// SetInferTimeout sets the /infer cap (negative values disable it).
func SetInferTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	inferTimeout = d
}

// WebSocket tunables.
var (
	wsWriteTimeout    = 10 * time.Second
	wsPingInterval    = 30 * time.Second
	wsMaxMessageBytes = int64(1 << 20)
	wsAllowedOrigins  []string
)

// SetWebSocketOptions configures the consumer channel. Loopback pages and
// browser extensions are always accepted; origins adds more, "*" allows any.
func SetWebSocketOptions(writeTimeout, pingInterval time.Duration, origins []string) {
	if writeTimeout > 0 {
		wsWriteTimeout = writeTimeout
	}
	if pingInterval > 0 {
		wsPingInterval = pingInterval
	}
	wsAllowedOrigins = append([]string(nil), origins...)
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
