// Package memory provides an in-memory Repository, used in tests and
// when the server runs without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tsi-mlops/mldata/pkg/mldata"
)

// Repository implements mldata.Repository using in-memory maps.
type Repository struct {
	mu             sync.RWMutex
	datasetObjects map[uuid.UUID]*mldata.DatasetObject
	datasetTags    map[uuid.UUID]*mldata.Tag
	datasetLabels  map[uuid.UUID]*mldata.Label
	modelObjects   map[uuid.UUID]*mldata.ModelObject
	modelTags      map[uuid.UUID]*mldata.Tag
	credentials    map[string]*mldata.Credential // keyed by api_key
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		datasetObjects: make(map[uuid.UUID]*mldata.DatasetObject),
		datasetTags:    make(map[uuid.UUID]*mldata.Tag),
		datasetLabels:  make(map[uuid.UUID]*mldata.Label),
		modelObjects:   make(map[uuid.UUID]*mldata.ModelObject),
		modelTags:      make(map[uuid.UUID]*mldata.Tag),
		credentials:    make(map[string]*mldata.Credential),
	}
}

// Dataset objects

func (r *Repository) CreateDatasetObject(ctx context.Context, obj *mldata.DatasetObject) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// The object key column is unique; mirror that here.
	for _, existing := range r.datasetObjects {
		if existing.ObjectKey == obj.ObjectKey {
			return fmt.Errorf("object key already exists: %s", obj.ObjectKey)
		}
	}

	// Copy to avoid external modifications
	objCopy := *obj
	r.datasetObjects[obj.ID] = &objCopy
	return nil
}

func (r *Repository) GetDatasetObject(ctx context.Context, id uuid.UUID) (*mldata.DatasetObject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	obj, exists := r.datasetObjects[id]
	if !exists {
		return nil, mldata.ErrFileNotFound
	}
	objCopy := *obj
	return &objCopy, nil
}

func (r *Repository) GetDatasetObjectByHash(ctx context.Context, hash string) (*mldata.DatasetObject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, obj := range r.datasetObjects {
		if obj.FileHashSHA1 == hash {
			objCopy := *obj
			return &objCopy, nil
		}
	}
	return nil, mldata.ErrFileNotFound
}

func (r *Repository) ListDatasetObjects(ctx context.Context, limit, offset int) ([]*mldata.DatasetObject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*mldata.DatasetObject, 0, len(r.datasetObjects))
	for _, obj := range r.datasetObjects {
		objCopy := *obj
		all = append(all, &objCopy)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	return paginate(all, limit, offset), nil
}

func (r *Repository) CountDatasetObjects(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.datasetObjects), nil
}

func (r *Repository) DeleteDatasetObject(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.datasetObjects[id]; !exists {
		return mldata.ErrFileNotFound
	}
	delete(r.datasetObjects, id)
	return nil
}

// Dataset tags

func (r *Repository) CreateDatasetTag(ctx context.Context, tag *mldata.Tag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.datasetTags {
		if existing.ObjectID == tag.ObjectID && existing.Value == tag.Value {
			return mldata.ErrDuplicateTag
		}
	}

	tagCopy := *tag
	r.datasetTags[tag.ID] = &tagCopy
	return nil
}

func (r *Repository) GetDatasetTag(ctx context.Context, objectID, tagID uuid.UUID) (*mldata.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tag, exists := r.datasetTags[tagID]
	if !exists || tag.ObjectID != objectID {
		return nil, mldata.ErrTagNotFound
	}
	tagCopy := *tag
	return &tagCopy, nil
}

func (r *Repository) ListDatasetTags(ctx context.Context, objectID uuid.UUID) ([]*mldata.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return collectTags(r.datasetTags, objectID), nil
}

func (r *Repository) DeleteDatasetTag(ctx context.Context, objectID, tagID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tag, exists := r.datasetTags[tagID]
	if !exists || tag.ObjectID != objectID {
		return mldata.ErrTagNotFound
	}
	delete(r.datasetTags, tagID)
	return nil
}

func (r *Repository) DeleteDatasetTagsByObject(ctx context.Context, objectID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, tag := range r.datasetTags {
		if tag.ObjectID == objectID {
			delete(r.datasetTags, id)
		}
	}
	return nil
}

// Dataset labels

func (r *Repository) CreateDatasetLabel(ctx context.Context, label *mldata.Label) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	labelCopy := *label
	r.datasetLabels[label.ID] = &labelCopy
	return nil
}

func (r *Repository) GetDatasetLabel(ctx context.Context, objectID, labelID uuid.UUID) (*mldata.Label, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	label, exists := r.datasetLabels[labelID]
	if !exists || label.ObjectID != objectID {
		return nil, mldata.ErrLabelNotFound
	}
	labelCopy := *label
	return &labelCopy, nil
}

func (r *Repository) ListDatasetLabels(ctx context.Context, objectID uuid.UUID) ([]*mldata.Label, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return collectLabels(r.datasetLabels, objectID), nil
}

func (r *Repository) UpdateDatasetLabel(ctx context.Context, label *mldata.Label) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.datasetLabels[label.ID]
	if !exists || existing.ObjectID != label.ObjectID {
		return mldata.ErrLabelNotFound
	}
	labelCopy := *label
	r.datasetLabels[label.ID] = &labelCopy
	return nil
}

func (r *Repository) DeleteDatasetLabel(ctx context.Context, objectID, labelID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	label, exists := r.datasetLabels[labelID]
	if !exists || label.ObjectID != objectID {
		return mldata.ErrLabelNotFound
	}
	delete(r.datasetLabels, labelID)
	return nil
}

func (r *Repository) DeleteDatasetLabelsByObject(ctx context.Context, objectID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, label := range r.datasetLabels {
		if label.ObjectID == objectID {
			delete(r.datasetLabels, id)
		}
	}
	return nil
}

// Model objects

func (r *Repository) CreateModelObject(ctx context.Context, obj *mldata.ModelObject) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.modelObjects {
		if existing.ObjectKey == obj.ObjectKey {
			return fmt.Errorf("object key already exists: %s", obj.ObjectKey)
		}
	}

	objCopy := *obj
	r.modelObjects[obj.ID] = &objCopy
	return nil
}

func (r *Repository) GetModelObject(ctx context.Context, id uuid.UUID) (*mldata.ModelObject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	obj, exists := r.modelObjects[id]
	if !exists {
		return nil, mldata.ErrFileNotFound
	}
	objCopy := *obj
	return &objCopy, nil
}

func (r *Repository) ListModelObjects(ctx context.Context) ([]*mldata.ModelObject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*mldata.ModelObject, 0, len(r.modelObjects))
	for _, obj := range r.modelObjects {
		objCopy := *obj
		all = append(all, &objCopy)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

func (r *Repository) DeleteModelObject(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modelObjects[id]; !exists {
		return mldata.ErrFileNotFound
	}
	delete(r.modelObjects, id)
	return nil
}

// Model tags

func (r *Repository) CreateModelTag(ctx context.Context, tag *mldata.Tag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.modelTags {
		if existing.ObjectID == tag.ObjectID && existing.Value == tag.Value {
			return mldata.ErrDuplicateTag
		}
	}

	tagCopy := *tag
	r.modelTags[tag.ID] = &tagCopy
	return nil
}

func (r *Repository) GetModelTag(ctx context.Context, objectID, tagID uuid.UUID) (*mldata.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tag, exists := r.modelTags[tagID]
	if !exists || tag.ObjectID != objectID {
		return nil, mldata.ErrTagNotFound
	}
	tagCopy := *tag
	return &tagCopy, nil
}

func (r *Repository) ListModelTags(ctx context.Context, objectID uuid.UUID) ([]*mldata.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return collectTags(r.modelTags, objectID), nil
}

func (r *Repository) DeleteModelTag(ctx context.Context, objectID, tagID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tag, exists := r.modelTags[tagID]
	if !exists || tag.ObjectID != objectID {
		return mldata.ErrTagNotFound
	}
	delete(r.modelTags, tagID)
	return nil
}

func (r *Repository) DeleteModelTagsByObject(ctx context.Context, objectID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, tag := range r.modelTags {
		if tag.ObjectID == objectID {
			delete(r.modelTags, id)
		}
	}
	return nil
}

// API credentials

func (r *Repository) CreateCredential(ctx context.Context, cred *mldata.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	credCopy := *cred
	r.credentials[cred.APIKey] = &credCopy
	return nil
}

func (r *Repository) GetCredentialByAPIKey(ctx context.Context, apiKey string) (*mldata.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cred, exists := r.credentials[apiKey]
	if !exists {
		return nil, mldata.ErrInvalidCredentials
	}
	credCopy := *cred
	return &credCopy, nil
}

// helpers

func collectTags(m map[uuid.UUID]*mldata.Tag, objectID uuid.UUID) []*mldata.Tag {
	var result []*mldata.Tag
	for _, tag := range m {
		if tag.ObjectID == objectID {
			tagCopy := *tag
			result = append(result, &tagCopy)
		}
	}
	return result
}

func collectLabels(m map[uuid.UUID]*mldata.Label, objectID uuid.UUID) []*mldata.Label {
	var result []*mldata.Label
	for _, label := range m {
		if label.ObjectID == objectID {
			labelCopy := *label
			result = append(result, &labelCopy)
		}
	}
	return result
}

func paginate(objects []*mldata.DatasetObject, limit, offset int) []*mldata.DatasetObject {
	if offset > 0 {
		if offset >= len(objects) {
			return nil
		}
		objects = objects[offset:]
	}
	if limit > 0 && limit < len(objects) {
		objects = objects[:limit]
	}
	return objects
}
