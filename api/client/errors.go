// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrTransportFailure  = errors.New("transport failure")
	ErrMalformedResponse = errors.New("malformed response")
)

// TransportError is returned when the API could not be reached or answered
// with a non-200 status. StatusCode is zero when no response was received.
type TransportError struct {
	StatusCode int
	URL        string
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("request to %s returned %d %s: %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransportFailure
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the request may succeed.
func (e *TransportError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

func isRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Temporary()
	}
	return false
}

func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
