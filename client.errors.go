package main

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrMissingLocation  = errors.New("books api: created resource has no location")
	ErrInvalidLocation  = errors.New("books api: invalid resource location")
	ErrBookNotAvailable = errors.New("books api: book not available")
)

// StatusError represents a non-2xx HTTP response returned by the books api.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("Response status code does not indicate success: %d (%s). [%s %s]",
		e.StatusCode, http.StatusText(e.StatusCode), e.Method, e.Path)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == code
	}
	return false
}
