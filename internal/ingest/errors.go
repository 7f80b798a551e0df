// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package ingest

import (
	"errors"
	"fmt"
)

// ErrMalformedEvent marks a message that can never be applied.
var ErrMalformedEvent = errors.New("malformed event")

// PermanentError wraps a failure that retrying the same message cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return "permanent: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// malformed builds a PermanentError wrapping ErrMalformedEvent.
func malformed(format string, args ...interface{}) error {
	return &PermanentError{Err: fmt.Errorf("%w: %s", ErrMalformedEvent, fmt.Sprintf(format, args...))}
}

// IsPermanent reports whether err is, or wraps, a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
