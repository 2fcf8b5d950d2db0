package mldata

import (
	"time"

	"github.com/google/uuid"
)

// DatasetObject is a stored dataset file (image or video used for defect
// detection). The blob lives in a blob store under ObjectKey; everything
// else lives in the repository.
type DatasetObject struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	ObjectKey   string    `json:"s3_object_name"`
	ContentType string    `json:"content_type"`
	// FileHashSHA1 is the content hash used for upload deduplication.
	// Uniqueness is enforced by the service's dedup check, not by a
	// database constraint, so two concurrent uploads of identical bytes
	// can both pass the check.
	FileHashSHA1 string    `json:"file_hash_sha1"`
	UploadDate   time.Time `json:"upload_date"`
	ModifiedDate time.Time `json:"modified_date"`
}

// ModelObject is a stored machine-learning model artifact. Model uploads
// are not deduplicated by content hash.
type ModelObject struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	ObjectKey   string    `json:"s3_object_name"`
	ContentType string    `json:"content_type"`
}

// Tag is a short free-text string attached to a dataset or model object
// for filtering. Tag values are unique within one object.
type Tag struct {
	ID       uuid.UUID `json:"tag_guid"`
	ObjectID uuid.UUID `json:"-"`
	Value    string    `json:"tag"`
}

// Label is a named polygon annotation attached to a dataset object. The
// polygon is persisted as canonical JSON (the marshalled form of the
// normalized points), so equality checks compare canonical text.
type Label struct {
	ID       uuid.UUID `json:"label_guid"`
	ObjectID uuid.UUID `json:"-"`
	Name     string    `json:"label"`
	Polygon  string    `json:"-"`
}

// Point is one vertex of a polygon. Coordinates are fractions of the
// image width and height. BeginFrame/EndFrame bound the annotation in
// time for video objects; they are either both present or both absent.
type Point struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	BeginFrame *int    `json:"begin_frame,omitempty"`
	EndFrame   *int    `json:"end_frame,omitempty"`
}

// Prediction is one detection returned by the external inference
// collaborator.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Polygon    []Point `json:"polygon"`
}

// TagDetails is a tag as presented in object details responses.
type TagDetails struct {
	ID    uuid.UUID `json:"tag_guid"`
	Value string    `json:"tag"`
}

// LabelDetails is a label as presented in object details responses, with
// its polygon decoded for display.
type LabelDetails struct {
	ID      uuid.UUID `json:"label_guid"`
	Name    string    `json:"label"`
	Polygon []Point   `json:"polygon"`
}

// DatasetFileDetails is a dataset object with its full tag and label
// collections attached. Tags are sorted by value, labels by name.
type DatasetFileDetails struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	ObjectKey    string         `json:"s3_object_name"`
	ContentType  string         `json:"content_type"`
	FileHashSHA1 string         `json:"file_hash_sha1"`
	UploadDate   time.Time      `json:"upload_date"`
	ModifiedDate time.Time      `json:"modified_date"`
	Tags         []TagDetails   `json:"tags"`
	Labels       []LabelDetails `json:"labels"`
}

// ModelFileDetails is a model object with its tag values attached.
type ModelFileDetails struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	ObjectKey   string    `json:"s3_object_name"`
	ContentType string    `json:"content_type"`
	Tags        []string  `json:"tags"`
}

// Credential is an API credential record. SecretHash is a bcrypt hash of
// the API secret.
type Credential struct {
	ID           uuid.UUID `json:"id"`
	FriendlyName string    `json:"friendly_name"`
	APIKey       string    `json:"api_key"`
	SecretHash   string    `json:"-"`
}
