package mldata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tsi-mlops/mldata/pkg/mldata/objectkey"
)

// service implements the Service interface
type service struct {
	repository Repository
	blobStores map[string]BlobStore
	detector   Detector
	keys       objectkey.Generator
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore registers a blob storage backend under the given name.
// The service expects StoreDataset and StoreModels to be registered.
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		if s.blobStores == nil {
			s.blobStores = make(map[string]BlobStore)
		}
		s.blobStores[name] = store
	}
}

// WithDetector sets the external inference collaborator
func WithDetector(d Detector) Option {
	return func(s *service) {
		s.detector = d
	}
}

// WithKeyGenerator overrides the default object key strategy
func WithKeyGenerator(g objectkey.Generator) Option {
	return func(s *service) {
		s.keys = g
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		blobStores: make(map[string]BlobStore),
		keys:       objectkey.NewUUIDPrefixGenerator(),
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}

	return s, nil
}

func (s *service) blobStore(name string) (BlobStore, error) {
	store, ok := s.blobStores[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBlobStoreNotFound, name)
	}
	return store, nil
}

// guessContentType fills in the MIME type from the file extension when
// the client did not supply one. Multipart clients that never set a
// type send application/octet-stream, so that is treated as unset too.
func guessContentType(fileName, contentType string) string {
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	if byExt := mime.TypeByExtension(filepath.Ext(fileName)); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}

// Dataset operations

// UploadDatasetFile stores a new dataset file. Sub-steps run in a fixed
// order: hash, dedup lookup, blob upload, metadata insert, tag inserts.
// If the blob upload succeeds and the metadata insert fails, the blob is
// orphaned; that window is documented rather than repaired here (the
// admin sweep reports it). A tag insert failing mid-batch leaves the
// already-inserted tags in place.
func (s *service) UploadDatasetFile(ctx context.Context, req UploadDatasetFileRequest) (*DatasetObject, error) {
	store, err := s.blobStore(StoreDataset)
	if err != nil {
		return nil, err
	}

	hash, err := HashContent(req.Reader)
	if err != nil {
		return nil, err
	}

	existing, err := s.repository.GetDatasetObjectByHash(ctx, hash)
	if err != nil && !errors.Is(err, ErrFileNotFound) {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateContent
	}

	id := uuid.New()
	objectKey := s.keys.GenerateKey(id, req.FileName)
	contentType := guessContentType(req.FileName, req.ContentType)

	if err := store.UploadWithParams(ctx, req.Reader, UploadParams{
		ObjectKey: objectKey,
		MimeType:  contentType,
	}); err != nil {
		return nil, &StorageError{Backend: StoreDataset, Key: objectKey, Op: "upload", Err: err}
	}

	now := time.Now().UTC()
	obj := &DatasetObject{
		ID:           id,
		Name:         req.FileName,
		ObjectKey:    objectKey,
		ContentType:  contentType,
		FileHashSHA1: hash,
		UploadDate:   now,
		ModifiedDate: now,
	}
	if err := s.repository.CreateDatasetObject(ctx, obj); err != nil {
		// The blob is already written; it stays orphaned.
		return nil, fmt.Errorf("insert dataset object: %w", err)
	}

	for _, value := range req.Tags {
		tag := &Tag{ID: uuid.New(), ObjectID: id, Value: value}
		if err := s.repository.CreateDatasetTag(ctx, tag); err != nil {
			if errors.Is(err, ErrDuplicateTag) {
				continue
			}
			return nil, fmt.Errorf("insert initial tag %q: %w", value, err)
		}
	}

	return obj, nil
}

// DownloadDatasetFile looks the object up by ID and streams its blob.
// The content hash is not re-verified on read.
func (s *service) DownloadDatasetFile(ctx context.Context, id uuid.UUID) (io.ReadCloser, *DatasetObject, error) {
	obj, err := s.repository.GetDatasetObject(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	store, err := s.blobStore(StoreDataset)
	if err != nil {
		return nil, nil, err
	}

	body, err := store.Download(ctx, obj.ObjectKey)
	if err != nil {
		return nil, nil, &StorageError{Backend: StoreDataset, Key: obj.ObjectKey, Op: "download", Err: err}
	}

	return body, obj, nil
}

// DeleteDatasetFile removes the blob first, then tags, then labels, then
// the object row. A crash mid-delete leaves a metadata row pointing at a
// missing blob; that is the opposite failure mode from upload, chosen so
// a retry of Delete is always safe.
func (s *service) DeleteDatasetFile(ctx context.Context, id uuid.UUID) error {
	obj, err := s.repository.GetDatasetObject(ctx, id)
	if err != nil {
		return err
	}

	store, err := s.blobStore(StoreDataset)
	if err != nil {
		return err
	}

	if err := store.Delete(ctx, obj.ObjectKey); err != nil {
		return &StorageError{Backend: StoreDataset, Key: obj.ObjectKey, Op: "delete", Err: err}
	}

	if err := s.repository.DeleteDatasetTagsByObject(ctx, id); err != nil {
		return fmt.Errorf("delete tags for object %s: %w", id, err)
	}
	if err := s.repository.DeleteDatasetLabelsByObject(ctx, id); err != nil {
		return fmt.Errorf("delete labels for object %s: %w", id, err)
	}
	if err := s.repository.DeleteDatasetObject(ctx, id); err != nil {
		return fmt.Errorf("delete dataset object %s: %w", id, err)
	}

	return nil
}

// GetDatasetFileDetails returns the object with its full tag and label
// collections, sorted by tag value and label name respectively.
func (s *service) GetDatasetFileDetails(ctx context.Context, id uuid.UUID) (*DatasetFileDetails, error) {
	obj, err := s.repository.GetDatasetObject(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.datasetDetails(ctx, obj)
}

func (s *service) datasetDetails(ctx context.Context, obj *DatasetObject) (*DatasetFileDetails, error) {
	tags, err := s.repository.ListDatasetTags(ctx, obj.ID)
	if err != nil {
		return nil, fmt.Errorf("list tags for object %s: %w", obj.ID, err)
	}
	labels, err := s.repository.ListDatasetLabels(ctx, obj.ID)
	if err != nil {
		return nil, fmt.Errorf("list labels for object %s: %w", obj.ID, err)
	}

	details := &DatasetFileDetails{
		ID:           obj.ID,
		Name:         obj.Name,
		ObjectKey:    obj.ObjectKey,
		ContentType:  obj.ContentType,
		FileHashSHA1: obj.FileHashSHA1,
		UploadDate:   obj.UploadDate,
		ModifiedDate: obj.ModifiedDate,
		Tags:         make([]TagDetails, 0, len(tags)),
		Labels:       make([]LabelDetails, 0, len(labels)),
	}
	for _, t := range tags {
		details.Tags = append(details.Tags, TagDetails{ID: t.ID, Value: t.Value})
	}
	for _, l := range labels {
		details.Labels = append(details.Labels, LabelDetails{
			ID:      l.ID,
			Name:    l.Name,
			Polygon: PolygonForDisplay(l.Polygon),
		})
	}

	sort.Slice(details.Tags, func(i, j int) bool { return details.Tags[i].Value < details.Tags[j].Value })
	sort.Slice(details.Labels, func(i, j int) bool { return details.Labels[i].Name < details.Labels[j].Name })

	return details, nil
}

// ListDatasetFiles returns one page of dataset files ordered by name.
// ExcludeTags filters out any object whose tag set intersects it; note
// this is exclude-on-match semantics. Pagination applies before the tag
// filter, matching the stored ordering.
func (s *service) ListDatasetFiles(ctx context.Context, req ListDatasetFilesRequest) (*ListDatasetFilesResult, error) {
	total, err := s.repository.CountDatasetObjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("count dataset objects: %w", err)
	}

	objects, err := s.repository.ListDatasetObjects(ctx, req.Limit, req.Offset)
	if err != nil {
		return nil, fmt.Errorf("list dataset objects: %w", err)
	}

	exclude := make(map[string]struct{}, len(req.ExcludeTags))
	for _, t := range req.ExcludeTags {
		exclude[t] = struct{}{}
	}

	files := make([]DatasetFileDetails, 0, len(objects))
	for _, obj := range objects {
		if len(exclude) > 0 {
			tags, err := s.repository.ListDatasetTags(ctx, obj.ID)
			if err != nil {
				return nil, fmt.Errorf("list tags for object %s: %w", obj.ID, err)
			}
			if tagSetIntersects(tags, exclude) {
				continue
			}
		}
		details, err := s.datasetDetails(ctx, obj)
		if err != nil {
			return nil, err
		}
		files = append(files, *details)
	}

	return &ListDatasetFilesResult{
		Files:      files,
		Count:      len(files),
		TotalCount: total,
	}, nil
}

func tagSetIntersects(tags []*Tag, set map[string]struct{}) bool {
	for _, t := range tags {
		if _, ok := set[t.Value]; ok {
			return true
		}
	}
	return false
}

// AddDatasetTag attaches a tag after verifying the object exists. Value
// uniqueness within the object is enforced at the data layer, so the
// check and the insert are atomic.
func (s *service) AddDatasetTag(ctx context.Context, objectID uuid.UUID, value string) (*Tag, error) {
	if _, err := s.repository.GetDatasetObject(ctx, objectID); err != nil {
		return nil, err
	}

	tag := &Tag{ID: uuid.New(), ObjectID: objectID, Value: value}
	if err := s.repository.CreateDatasetTag(ctx, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

func (s *service) DeleteDatasetTag(ctx context.Context, objectID, tagID uuid.UUID) error {
	if _, err := s.repository.GetDatasetObject(ctx, objectID); err != nil {
		return err
	}
	if _, err := s.repository.GetDatasetTag(ctx, objectID, tagID); err != nil {
		return err
	}
	return s.repository.DeleteDatasetTag(ctx, objectID, tagID)
}

// AddDatasetLabel normalizes the polygon, rejects a duplicate
// (name, polygon) pair on the same object, and inserts. Validation
// happens before any write.
func (s *service) AddDatasetLabel(ctx context.Context, req AddLabelRequest) (*Label, error) {
	if _, err := s.repository.GetDatasetObject(ctx, req.ObjectID); err != nil {
		return nil, err
	}

	points, err := NormalizePolygon(req.Polygon)
	if err != nil {
		return nil, err
	}
	canonical := EncodePolygon(points)

	existing, err := s.repository.ListDatasetLabels(ctx, req.ObjectID)
	if err != nil {
		return nil, fmt.Errorf("list labels for object %s: %w", req.ObjectID, err)
	}
	for _, l := range existing {
		if l.Name == req.Name && l.Polygon == canonical {
			return nil, ErrDuplicateLabel
		}
	}

	label := &Label{
		ID:       uuid.New(),
		ObjectID: req.ObjectID,
		Name:     req.Name,
		Polygon:  canonical,
	}
	if err := s.repository.CreateDatasetLabel(ctx, label); err != nil {
		return nil, err
	}
	return label, nil
}

// UpdateDatasetLabel overwrites the label's name and polygon in place.
// No duplicate check runs against the label itself.
func (s *service) UpdateDatasetLabel(ctx context.Context, req UpdateLabelRequest) error {
	if _, err := s.repository.GetDatasetObject(ctx, req.ObjectID); err != nil {
		return err
	}
	if _, err := s.repository.GetDatasetLabel(ctx, req.ObjectID, req.LabelID); err != nil {
		return err
	}

	points, err := NormalizePolygon(req.Polygon)
	if err != nil {
		return err
	}

	return s.repository.UpdateDatasetLabel(ctx, &Label{
		ID:       req.LabelID,
		ObjectID: req.ObjectID,
		Name:     req.Name,
		Polygon:  EncodePolygon(points),
	})
}

func (s *service) DeleteDatasetLabel(ctx context.Context, objectID, labelID uuid.UUID) error {
	if _, err := s.repository.GetDatasetObject(ctx, objectID); err != nil {
		return err
	}
	if _, err := s.repository.GetDatasetLabel(ctx, objectID, labelID); err != nil {
		return err
	}
	return s.repository.DeleteDatasetLabel(ctx, objectID, labelID)
}

// Model operations

// UploadModelFile stores a model artifact. Unlike dataset uploads there
// is no content-hash dedup, so the stream only needs to be readable.
func (s *service) UploadModelFile(ctx context.Context, req UploadModelFileRequest) (*ModelObject, error) {
	store, err := s.blobStore(StoreModels)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	objectKey := s.keys.GenerateKey(id, req.FileName)
	contentType := guessContentType(req.FileName, req.ContentType)

	if err := store.UploadWithParams(ctx, req.Reader, UploadParams{
		ObjectKey: objectKey,
		MimeType:  contentType,
	}); err != nil {
		return nil, &StorageError{Backend: StoreModels, Key: objectKey, Op: "upload", Err: err}
	}

	obj := &ModelObject{
		ID:          id,
		Name:        req.FileName,
		ObjectKey:   objectKey,
		ContentType: contentType,
	}
	if err := s.repository.CreateModelObject(ctx, obj); err != nil {
		return nil, fmt.Errorf("insert model object: %w", err)
	}

	for _, value := range req.Tags {
		tag := &Tag{ID: uuid.New(), ObjectID: id, Value: value}
		if err := s.repository.CreateModelTag(ctx, tag); err != nil {
			if errors.Is(err, ErrDuplicateTag) {
				continue
			}
			return nil, fmt.Errorf("insert initial tag %q: %w", value, err)
		}
	}

	return obj, nil
}

func (s *service) DownloadModelFile(ctx context.Context, id uuid.UUID) (io.ReadCloser, *ModelObject, error) {
	obj, err := s.repository.GetModelObject(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	store, err := s.blobStore(StoreModels)
	if err != nil {
		return nil, nil, err
	}

	body, err := store.Download(ctx, obj.ObjectKey)
	if err != nil {
		return nil, nil, &StorageError{Backend: StoreModels, Key: obj.ObjectKey, Op: "download", Err: err}
	}

	return body, obj, nil
}

func (s *service) DeleteModelFile(ctx context.Context, id uuid.UUID) error {
	obj, err := s.repository.GetModelObject(ctx, id)
	if err != nil {
		return err
	}

	store, err := s.blobStore(StoreModels)
	if err != nil {
		return err
	}

	if err := store.Delete(ctx, obj.ObjectKey); err != nil {
		return &StorageError{Backend: StoreModels, Key: obj.ObjectKey, Op: "delete", Err: err}
	}

	if err := s.repository.DeleteModelTagsByObject(ctx, id); err != nil {
		return fmt.Errorf("delete tags for model %s: %w", id, err)
	}
	if err := s.repository.DeleteModelObject(ctx, id); err != nil {
		return fmt.Errorf("delete model object %s: %w", id, err)
	}

	return nil
}

// ListModelFiles returns all model artifacts ordered by name, with the
// same exclude-on-intersect tag filter as dataset listing.
func (s *service) ListModelFiles(ctx context.Context, excludeTags []string) ([]ModelFileDetails, error) {
	objects, err := s.repository.ListModelObjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list model objects: %w", err)
	}

	exclude := make(map[string]struct{}, len(excludeTags))
	for _, t := range excludeTags {
		exclude[t] = struct{}{}
	}

	files := make([]ModelFileDetails, 0, len(objects))
	for _, obj := range objects {
		tags, err := s.repository.ListModelTags(ctx, obj.ID)
		if err != nil {
			return nil, fmt.Errorf("list tags for model %s: %w", obj.ID, err)
		}
		if len(exclude) > 0 && tagSetIntersects(tags, exclude) {
			continue
		}

		values := make([]string, 0, len(tags))
		for _, t := range tags {
			values = append(values, t.Value)
		}
		sort.Strings(values)

		files = append(files, ModelFileDetails{
			ID:          obj.ID,
			Name:        obj.Name,
			ObjectKey:   obj.ObjectKey,
			ContentType: obj.ContentType,
			Tags:        values,
		})
	}

	return files, nil
}

func (s *service) AddModelTag(ctx context.Context, objectID uuid.UUID, value string) (*Tag, error) {
	if _, err := s.repository.GetModelObject(ctx, objectID); err != nil {
		return nil, err
	}

	tag := &Tag{ID: uuid.New(), ObjectID: objectID, Value: value}
	if err := s.repository.CreateModelTag(ctx, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

func (s *service) DeleteModelTag(ctx context.Context, objectID, tagID uuid.UUID) error {
	if _, err := s.repository.GetModelObject(ctx, objectID); err != nil {
		return err
	}
	if _, err := s.repository.GetModelTag(ctx, objectID, tagID); err != nil {
		return err
	}
	return s.repository.DeleteModelTag(ctx, objectID, tagID)
}

// RunInference downloads the model artifact and hands it to the external
// detector together with the caller's image.
func (s *service) RunInference(ctx context.Context, modelID uuid.UUID, image io.Reader) ([]Prediction, error) {
	if s.detector == nil {
		return nil, fmt.Errorf("no detector configured")
	}

	model, _, err := s.DownloadModelFile(ctx, modelID)
	if err != nil {
		return nil, err
	}
	defer model.Close()

	predictions, err := s.detector.Detect(ctx, model, image)
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	return predictions, nil
}
