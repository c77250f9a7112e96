package catalog

import (
	"errors"
	"net/http"
)

// FetchError wraps any failure to refresh the catalog. The cache is left
// untouched when one is returned.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return "fetch models: " + e.Err.Error() }

func (e *FetchError) Unwrap() error { return e.Err }

// StatusCode maps catalog failures to 502 Bad Gateway.
func (e *FetchError) StatusCode() int { return http.StatusBadGateway }

// IsFetchError reports whether err is a catalog refresh failure.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
