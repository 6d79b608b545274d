package board

import (
	"errors"
	"fmt"
	"net/http"
)

// Common board client errors.
var (
	// ErrNotFound is returned when an entity or collection does not exist.
	ErrNotFound = errors.New("entity not found")
	// ErrRateLimited is returned when the store rejects a call for rate limiting.
	ErrRateLimited = errors.New("rate limited")
)

// SchemaMismatchError is a validation-class rejection from the store:
// a property name or option the collection's schema does not accept.
// Receiving one invalidates the whole schema cache for the collection.
type SchemaMismatchError struct {
	CollectionID string
	Message      string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch for collection %s: %s", e.CollectionID, e.Message)
}

// TransientError wraps a network-level or server-side failure that the
// next scheduled cycle may not see again. Nothing retries automatically.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient store error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsSchemaMismatch reports whether err is a schema/validation rejection.
func IsSchemaMismatch(err error) bool {
	var sm *SchemaMismatchError
	return errors.As(err, &sm)
}

// IsTransient reports whether err is a transient network/server failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// classifyStatus maps an HTTP response to the error taxonomy.
// apiCode is the machine-readable code from the response body, if any.
func classifyStatus(status int, collectionID, apiCode, message string) error {
	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusBadRequest && apiCode == "validation_error":
		return &SchemaMismatchError{CollectionID: collectionID, Message: message}
	case status >= 500:
		return &TransientError{Err: fmt.Errorf("status %d: %s", status, message)}
	default:
		return fmt.Errorf("store rejected request: status %d code %s: %s", status, apiCode, message)
	}
}
