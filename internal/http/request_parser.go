// Package http serves the ledger REST API and the command interpreter.
//
// This file implements utilities for parsing and validating request data:
// size-limited JSON bodies, bounded integer query parameters and path ids.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const maxBodyBytes = 64 << 10

var (
	ErrEmptyBody    = errors.New("request body is empty")
	ErrBodyTooLarge = errors.New("request body too large")
	ErrInvalidJSON  = errors.New("invalid JSON body")
)

// DecodeJSON reads at most maxBodyBytes from r into dst. Unknown fields are
// ignored so older clients that still send user_id keep working.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return ErrEmptyBody
		case errors.As(err, &maxErr):
			return ErrBodyTooLarge
		default:
			return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", ErrInvalidJSON)
	}
	return nil
}

// bodyError maps a DecodeJSON failure to a response.
func bodyError(err error) *JSONResponseBuilder {
	switch {
	case errors.Is(err, ErrBodyTooLarge):
		return ErrorResponse(http.StatusRequestEntityTooLarge, "Request body too large")
	case errors.Is(err, ErrEmptyBody):
		return BadRequestError("Request body is empty")
	default:
		return BadRequestError("Invalid JSON body")
	}
}

// IntParam reads key from query. A missing value yields def; a value that is
// not an integer in [min, max] is an error.
func IntParam(query url.Values, key string, def, min, max int) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a whole number", key)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%s must be between %d and %d", key, min, max)
	}
	return n, nil
}

// PathID parses the positive integer path value name.
func PathID(r *http.Request, name string) (int64, error) {
	v := r.PathValue(name)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return id, nil
}
