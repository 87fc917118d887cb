// Package coreerr defines the engine's typed error: a small, closed set of
// kinds propagated up through every layer rather than ad hoc wrapped errors.
package coreerr

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error classifications the engine propagates.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindNotFound      Kind = "not_found"
	KindVectorStore   Kind = "vector_store"
	KindDatabase      Kind = "database"
	KindParse         Kind = "parse"
	KindAPI           Kind = "api"
	KindInternal      Kind = "internal"
)

// VectorStoreCode further classifies a KindVectorStore error.
type VectorStoreCode string

const (
	VectorStoreConnectionFailed  VectorStoreCode = "connection_failed"
	VectorStoreOperationFailed   VectorStoreCode = "operation_failed"
	VectorStoreCollectionNotFound VectorStoreCode = "collection_not_found"
)

// CoreError is the engine's single error type. Kind selects the category;
// ResourceKind/ResourceID are populated for KindNotFound; VectorCode is
// populated for KindVectorStore. Cause, when set, is unwrapped normally.
type CoreError struct {
	Kind         Kind
	Message      string
	ResourceKind string
	ResourceID   string
	VectorCode   VectorStoreCode
	Cause        error
}

func (e *CoreError) Error() string {
	switch e.Kind {
	case KindNotFound:
		if e.ResourceKind != "" || e.ResourceID != "" {
			return fmt.Sprintf("not found: %s %s", e.ResourceKind, e.ResourceID)
		}
	case KindVectorStore:
		if e.VectorCode != "" {
			return fmt.Sprintf("vector store error (%s): %s", e.VectorCode, e.Message)
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CoreError) Unwrap() error { return e.Cause }

// Is supports errors.Is comparisons by Kind: two *CoreError values match if
// their Kind fields are equal, regardless of Message/Cause.
func (e *CoreError) Is(target error) bool {
	var t *CoreError
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// NotFound builds a KindNotFound error naming the resource kind and ID.
func NotFound(resourceKind, resourceID string) *CoreError {
	return &CoreError{Kind: KindNotFound, ResourceKind: resourceKind, ResourceID: resourceID}
}

// VectorStore builds a KindVectorStore error with the given sub-code.
func VectorStore(code VectorStoreCode, message string, cause error) *CoreError {
	return &CoreError{Kind: KindVectorStore, VectorCode: code, Message: message, Cause: cause}
}

// Database wraps a database-layer failure.
func Database(message string, cause error) *CoreError {
	return &CoreError{Kind: KindDatabase, Message: message, Cause: cause}
}

// Configuration wraps a configuration-layer failure.
func Configuration(message string, cause error) *CoreError {
	return &CoreError{Kind: KindConfiguration, Message: message, Cause: cause}
}

// Parse wraps a parsing failure.
func Parse(message string, cause error) *CoreError {
	return &CoreError{Kind: KindParse, Message: message, Cause: cause}
}

// API wraps an external API call failure.
func API(message string, cause error) *CoreError {
	return &CoreError{Kind: KindAPI, Message: message, Cause: cause}
}

// Internal wraps an unexpected internal failure.
func Internal(message string, cause error) *CoreError {
	return &CoreError{Kind: KindInternal, Message: message, Cause: cause}
}

// IsNotFound reports whether err is (or wraps) a KindNotFound CoreError.
func IsNotFound(err error) bool {
	var ce *CoreError
	return errors.As(err, &ce) && ce.Kind == KindNotFound
}
