package mldata

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// BlobStore defines the interface for blob storage backends. Failures
// propagate unchanged; retries, if any, are the caller's concern.
type BlobStore interface {
	// Upload stores the blob under objectKey, overwriting any existing blob.
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// UploadWithParams stores the blob along with its MIME type.
	UploadWithParams(ctx context.Context, reader io.Reader, params UploadParams) error

	// Download streams the blob back. Returns an error wrapping
	// ErrFileNotFound when the key is absent.
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete removes the blob. Deleting a missing key is not an error, so
	// retrying a half-finished delete is always safe.
	Delete(ctx context.Context, objectKey string) error

	// ListKeys returns every object key in the backend. Used only by the
	// out-of-band reconciliation sweep, never on the request path.
	ListKeys(ctx context.Context) ([]string, error)
}

// UploadParams contains parameters for uploading a blob.
type UploadParams struct {
	ObjectKey string
	MimeType  string
}

// Repository defines typed persistence operations for dataset objects,
// model objects, their tags and labels, and API credentials.
//
// The repository guarantees primary-key uniqueness and tag-value
// uniqueness within one object (CreateDatasetTag and CreateModelTag
// return ErrDuplicateTag). It does not enforce content-hash uniqueness;
// that is the service's dedup check.
type Repository interface {
	// Dataset objects
	CreateDatasetObject(ctx context.Context, obj *DatasetObject) error
	GetDatasetObject(ctx context.Context, id uuid.UUID) (*DatasetObject, error)
	GetDatasetObjectByHash(ctx context.Context, hash string) (*DatasetObject, error)
	ListDatasetObjects(ctx context.Context, limit, offset int) ([]*DatasetObject, error)
	CountDatasetObjects(ctx context.Context) (int, error)
	DeleteDatasetObject(ctx context.Context, id uuid.UUID) error

	// Dataset tags
	CreateDatasetTag(ctx context.Context, tag *Tag) error
	GetDatasetTag(ctx context.Context, objectID, tagID uuid.UUID) (*Tag, error)
	ListDatasetTags(ctx context.Context, objectID uuid.UUID) ([]*Tag, error)
	DeleteDatasetTag(ctx context.Context, objectID, tagID uuid.UUID) error
	DeleteDatasetTagsByObject(ctx context.Context, objectID uuid.UUID) error

	// Dataset labels
	CreateDatasetLabel(ctx context.Context, label *Label) error
	GetDatasetLabel(ctx context.Context, objectID, labelID uuid.UUID) (*Label, error)
	ListDatasetLabels(ctx context.Context, objectID uuid.UUID) ([]*Label, error)
	UpdateDatasetLabel(ctx context.Context, label *Label) error
	DeleteDatasetLabel(ctx context.Context, objectID, labelID uuid.UUID) error
	DeleteDatasetLabelsByObject(ctx context.Context, objectID uuid.UUID) error

	// Model objects
	CreateModelObject(ctx context.Context, obj *ModelObject) error
	GetModelObject(ctx context.Context, id uuid.UUID) (*ModelObject, error)
	ListModelObjects(ctx context.Context) ([]*ModelObject, error)
	DeleteModelObject(ctx context.Context, id uuid.UUID) error

	// Model tags
	CreateModelTag(ctx context.Context, tag *Tag) error
	GetModelTag(ctx context.Context, objectID, tagID uuid.UUID) (*Tag, error)
	ListModelTags(ctx context.Context, objectID uuid.UUID) ([]*Tag, error)
	DeleteModelTag(ctx context.Context, objectID, tagID uuid.UUID) error
	DeleteModelTagsByObject(ctx context.Context, objectID uuid.UUID) error

	// API credentials
	CreateCredential(ctx context.Context, cred *Credential) error
	GetCredentialByAPIKey(ctx context.Context, apiKey string) (*Credential, error)
}

// Detector is the external object-detection collaborator. It takes a
// model artifact and an image and returns structured predictions. The
// implementation is a black box to this library.
type Detector interface {
	Detect(ctx context.Context, model io.Reader, image io.Reader) ([]Prediction, error)
}
