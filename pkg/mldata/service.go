package mldata

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Blob store names the service resolves at upload/download time. Dataset
// files and model artifacts live in separate buckets.
const (
	StoreDataset = "dataset"
	StoreModels  = "models"
)

// Service orchestrates every operation that touches the blob store and
// the repository. It is the only component that talks to more than one
// store, and it owns the ordering of sub-steps within one operation.
// There is no ordering guarantee across concurrent calls touching the
// same object.
type Service interface {
	// Dataset operations
	UploadDatasetFile(ctx context.Context, req UploadDatasetFileRequest) (*DatasetObject, error)
	DownloadDatasetFile(ctx context.Context, id uuid.UUID) (io.ReadCloser, *DatasetObject, error)
	DeleteDatasetFile(ctx context.Context, id uuid.UUID) error
	GetDatasetFileDetails(ctx context.Context, id uuid.UUID) (*DatasetFileDetails, error)
	ListDatasetFiles(ctx context.Context, req ListDatasetFilesRequest) (*ListDatasetFilesResult, error)
	AddDatasetTag(ctx context.Context, objectID uuid.UUID, value string) (*Tag, error)
	DeleteDatasetTag(ctx context.Context, objectID, tagID uuid.UUID) error
	AddDatasetLabel(ctx context.Context, req AddLabelRequest) (*Label, error)
	UpdateDatasetLabel(ctx context.Context, req UpdateLabelRequest) error
	DeleteDatasetLabel(ctx context.Context, objectID, labelID uuid.UUID) error

	// Model operations
	UploadModelFile(ctx context.Context, req UploadModelFileRequest) (*ModelObject, error)
	DownloadModelFile(ctx context.Context, id uuid.UUID) (io.ReadCloser, *ModelObject, error)
	DeleteModelFile(ctx context.Context, id uuid.UUID) error
	ListModelFiles(ctx context.Context, excludeTags []string) ([]ModelFileDetails, error)
	AddModelTag(ctx context.Context, objectID uuid.UUID, value string) (*Tag, error)
	DeleteModelTag(ctx context.Context, objectID, tagID uuid.UUID) error

	// RunInference fetches the model artifact and delegates to the
	// configured Detector with the caller's image.
	RunInference(ctx context.Context, modelID uuid.UUID, image io.Reader) ([]Prediction, error)
}
