package model

import (
	"errors"

	"github.com/rotisserie/eris"
)

// Error kinds shared by the backend clients, the core and the HTTP layer.
var (
	// ErrNotAuthenticated means the caller has no usable session.
	ErrNotAuthenticated = eris.New("not authenticated")
	// ErrConnectionUnavailable means a backend could not be reached at all.
	ErrConnectionUnavailable = eris.New("backend connection unavailable")
	// ErrNotFound means a query succeeded but matched no records.
	ErrNotFound = eris.New("not found")
	// ErrGeocodingFailed means a location could not be resolved to coordinates.
	ErrGeocodingFailed = eris.New("geocoding failed")
	// ErrInvalidInput means a request failed validation.
	ErrInvalidInput = eris.New("invalid input")
)

// IsNotAuthenticated reports whether err is (or wraps) ErrNotAuthenticated.
func IsNotAuthenticated(err error) bool { return errors.Is(err, ErrNotAuthenticated) }

// IsConnectionUnavailable reports whether err is (or wraps) ErrConnectionUnavailable.
func IsConnectionUnavailable(err error) bool { return errors.Is(err, ErrConnectionUnavailable) }

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidInput reports whether err is (or wraps) ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }
