package mldata

import (
	"io"

	"github.com/google/uuid"
)

// Request/Response DTOs

// UploadDatasetFileRequest contains parameters for uploading a dataset
// file. Reader must be seekable: the service hashes it first and rewinds
// it before the blob upload. ContentType is guessed from FileName when
// empty.
type UploadDatasetFileRequest struct {
	FileName    string
	ContentType string
	Reader      io.ReadSeeker
	Tags        []string
}

// UploadModelFileRequest contains parameters for uploading a model
// artifact. Model uploads skip content-hash deduplication.
type UploadModelFileRequest struct {
	FileName    string
	ContentType string
	Reader      io.Reader
	Tags        []string
}

// ListDatasetFilesRequest contains parameters for listing dataset files.
// ExcludeTags filters OUT any object whose tag set intersects it; this is
// exclude-on-match, not search-by-tag. Limit and Offset of zero mean
// unbounded.
type ListDatasetFilesRequest struct {
	ExcludeTags []string
	Limit       int
	Offset      int
}

// ListDatasetFilesResult carries one page of dataset files along with the
// post-filter page count and the unfiltered total.
type ListDatasetFilesResult struct {
	Files      []DatasetFileDetails
	Count      int
	TotalCount int
}

// AddLabelRequest contains parameters for attaching a polygon label.
// Polygon is the raw JSON text as submitted by the client.
type AddLabelRequest struct {
	ObjectID uuid.UUID
	Name     string
	Polygon  string
}

// UpdateLabelRequest contains parameters for overwriting a label in place.
type UpdateLabelRequest struct {
	ObjectID uuid.UUID
	LabelID  uuid.UUID
	Name     string
	Polygon  string
}
