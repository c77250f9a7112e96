package ollama

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrMalformedRecord marks a stream line that is not valid JSON.
var ErrMalformedRecord = errors.New("malformed record")

// maxErrorText bounds raw (non-JSON) error bodies echoed back to consumers.
const maxErrorText = 300

// TransportError is a failed exchange with Ollama: a non-2xx status, a
// network failure (StatusCode 0) or a record carrying an error field.
type TransportError struct {
	Status  int
	Message string
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return "Ollama: " + e.Message
	}
	return fmt.Sprintf("Ollama: %s (status %d)", e.Message, e.Status)
}

// StatusCode maps the failure to an HTTP status for API responses.
func (e *TransportError) StatusCode() int {
	if e.Status == 0 {
		return http.StatusBadGateway
	}
	return e.Status
}

// IsTransportError reports whether err is (or wraps) a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsForbidden reports whether err is a 403 from Ollama, which usually means
// the caller's origin is missing from OLLAMA_ORIGINS.
func IsForbidden(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Status == http.StatusForbidden
}

// originHint is appended to 403 errors. Ollama rejects unknown origins
// unless they are listed in OLLAMA_ORIGINS on the host running it.
func originHint(origin string) string {
	list := "http://localhost,http://127.0.0.1"
	if origin = strings.TrimSpace(origin); origin != "" {
		list = origin + "," + list
	}
	return "Forbidden. Allow this origin in Ollama via OLLAMA_ORIGINS. Example (macOS):\n" +
		"launchctl setenv OLLAMA_ORIGINS \"" + list + "\"\n" +
		"launchctl kickstart -k system/com.ollama.ollama\n" +
		"Or restart Ollama like this: OLLAMA_ORIGINS=\"" + list + "\" ollama serve"
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
