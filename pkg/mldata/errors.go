package mldata

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrFileNotFound indicates a dataset or model object was not found
	ErrFileNotFound = errors.New("file not found")

	// ErrTagNotFound indicates a tag was not found under the given object
	ErrTagNotFound = errors.New("tag not found")

	// ErrLabelNotFound indicates a label was not found under the given object
	ErrLabelNotFound = errors.New("label not found")

	// ErrDuplicateContent indicates an upload whose content hash matches an
	// existing dataset object
	ErrDuplicateContent = errors.New("file already exists")

	// ErrDuplicateTag indicates a tag value already present on the object
	ErrDuplicateTag = errors.New("tag already exists")

	// ErrDuplicateLabel indicates a label with identical name and polygon
	// already present on the object
	ErrDuplicateLabel = errors.New("label already exists")

	// ErrInvalidPolygon indicates a polygon payload that is malformed JSON,
	// not a list, or missing required point fields
	ErrInvalidPolygon = errors.New("invalid polygon")

	// ErrInvalidCredentials indicates a missing or unverifiable key/secret pair
	ErrInvalidCredentials = errors.New("incorrect username or password")

	// ErrBlobStoreNotFound indicates the service has no blob store registered
	// under the requested name
	ErrBlobStoreNotFound = errors.New("blob store not found")
)

// StorageError wraps a failure from a blob store operation. Blob store
// failures propagate unchanged; no retries happen at this layer.
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// PolygonError carries the reason a polygon payload was rejected. It
// unwraps to ErrInvalidPolygon.
type PolygonError struct {
	Reason string
}

func (e *PolygonError) Error() string {
	return fmt.Sprintf("invalid polygon: %s", e.Reason)
}

func (e *PolygonError) Unwrap() error {
	return ErrInvalidPolygon
}
