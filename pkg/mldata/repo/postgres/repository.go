// Package postgres provides a Repository backed by PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tsi-mlops/mldata/pkg/mldata"
)

// DBTX is an interface that allows us to use either a database connection
// or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements mldata.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// handlePostgresError maps low-level pgx errors onto domain errors.
// The unique index on (dataset_object_id, tag) turns a racing duplicate
// tag insert into ErrDuplicateTag here, which is what makes the add-tag
// check atomic with the insert.
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "tag") {
				return mldata.ErrDuplicateTag
			}
			return fmt.Errorf("duplicate entry in %s: %s", operation, pgErr.ConstraintName)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Dataset objects

func (r *Repository) CreateDatasetObject(ctx context.Context, obj *mldata.DatasetObject) error {
	query := `
		INSERT INTO dataset_objects (
			id, name, s3_object_name, content_type, file_hash_sha1,
			upload_date, modified_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		obj.ID, obj.Name, obj.ObjectKey, obj.ContentType, obj.FileHashSHA1,
		obj.UploadDate, obj.ModifiedDate)
	if err != nil {
		return r.handlePostgresError("create dataset object", err)
	}

	return nil
}

func (r *Repository) GetDatasetObject(ctx context.Context, id uuid.UUID) (*mldata.DatasetObject, error) {
	query := `
		SELECT id, name, s3_object_name, content_type, file_hash_sha1,
		       upload_date, modified_date
		FROM dataset_objects WHERE id = $1`

	var obj mldata.DatasetObject
	err := r.db.QueryRow(ctx, query, id).Scan(
		&obj.ID, &obj.Name, &obj.ObjectKey, &obj.ContentType, &obj.FileHashSHA1,
		&obj.UploadDate, &obj.ModifiedDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mldata.ErrFileNotFound
		}
		return nil, r.handlePostgresError("get dataset object", err)
	}

	return &obj, nil
}

func (r *Repository) GetDatasetObjectByHash(ctx context.Context, hash string) (*mldata.DatasetObject, error) {
	query := `
		SELECT id, name, s3_object_name, content_type, file_hash_sha1,
		       upload_date, modified_date
		FROM dataset_objects WHERE file_hash_sha1 = $1`

	var obj mldata.DatasetObject
	err := r.db.QueryRow(ctx, query, hash).Scan(
		&obj.ID, &obj.Name, &obj.ObjectKey, &obj.ContentType, &obj.FileHashSHA1,
		&obj.UploadDate, &obj.ModifiedDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mldata.ErrFileNotFound
		}
		return nil, r.handlePostgresError("get dataset object by hash", err)
	}

	return &obj, nil
}

func (r *Repository) ListDatasetObjects(ctx context.Context, limit, offset int) ([]*mldata.DatasetObject, error) {
	query := `
		SELECT id, name, s3_object_name, content_type, file_hash_sha1,
		       upload_date, modified_date
		FROM dataset_objects ORDER BY name`

	args := []interface{}{}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list dataset objects", err)
	}
	defer rows.Close()

	var objects []*mldata.DatasetObject
	for rows.Next() {
		var obj mldata.DatasetObject
		if err := rows.Scan(
			&obj.ID, &obj.Name, &obj.ObjectKey, &obj.ContentType, &obj.FileHashSHA1,
			&obj.UploadDate, &obj.ModifiedDate); err != nil {
			return nil, err
		}
		objects = append(objects, &obj)
	}

	return objects, rows.Err()
}

func (r *Repository) CountDatasetObjects(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(id) FROM dataset_objects`).Scan(&count)
	if err != nil {
		return 0, r.handlePostgresError("count dataset objects", err)
	}
	return count, nil
}

func (r *Repository) DeleteDatasetObject(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM dataset_objects WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete dataset object", err)
	}
	if tag.RowsAffected() == 0 {
		return mldata.ErrFileNotFound
	}
	return nil
}

// Dataset tags

func (r *Repository) CreateDatasetTag(ctx context.Context, t *mldata.Tag) error {
	query := `INSERT INTO dataset_object_tags (id, dataset_object_id, tag) VALUES ($1, $2, $3)`

	_, err := r.db.Exec(ctx, query, t.ID, t.ObjectID, t.Value)
	if err != nil {
		return r.handlePostgresError("create dataset tag", err)
	}
	return nil
}

func (r *Repository) GetDatasetTag(ctx context.Context, objectID, tagID uuid.UUID) (*mldata.Tag, error) {
	query := `
		SELECT id, dataset_object_id, tag FROM dataset_object_tags
		WHERE dataset_object_id = $1 AND id = $2`

	var t mldata.Tag
	err := r.db.QueryRow(ctx, query, objectID, tagID).Scan(&t.ID, &t.ObjectID, &t.Value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mldata.ErrTagNotFound
		}
		return nil, r.handlePostgresError("get dataset tag", err)
	}
	return &t, nil
}

func (r *Repository) ListDatasetTags(ctx context.Context, objectID uuid.UUID) ([]*mldata.Tag, error) {
	return r.listTags(ctx, "dataset_object_tags", "dataset_object_id", objectID)
}

func (r *Repository) DeleteDatasetTag(ctx context.Context, objectID, tagID uuid.UUID) error {
	query := `DELETE FROM dataset_object_tags WHERE dataset_object_id = $1 AND id = $2`

	tag, err := r.db.Exec(ctx, query, objectID, tagID)
	if err != nil {
		return r.handlePostgresError("delete dataset tag", err)
	}
	if tag.RowsAffected() == 0 {
		return mldata.ErrTagNotFound
	}
	return nil
}

func (r *Repository) DeleteDatasetTagsByObject(ctx context.Context, objectID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM dataset_object_tags WHERE dataset_object_id = $1`, objectID)
	if err != nil {
		return r.handlePostgresError("delete dataset tags by object", err)
	}
	return nil
}

// Dataset labels

func (r *Repository) CreateDatasetLabel(ctx context.Context, l *mldata.Label) error {
	query := `
		INSERT INTO dataset_object_labels (id, dataset_object_id, label, polygon)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(ctx, query, l.ID, l.ObjectID, l.Name, l.Polygon)
	if err != nil {
		return r.handlePostgresError("create dataset label", err)
	}
	return nil
}

func (r *Repository) GetDatasetLabel(ctx context.Context, objectID, labelID uuid.UUID) (*mldata.Label, error) {
	query := `
		SELECT id, dataset_object_id, label, polygon FROM dataset_object_labels
		WHERE dataset_object_id = $1 AND id = $2`

	var l mldata.Label
	err := r.db.QueryRow(ctx, query, objectID, labelID).Scan(&l.ID, &l.ObjectID, &l.Name, &l.Polygon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mldata.ErrLabelNotFound
		}
		return nil, r.handlePostgresError("get dataset label", err)
	}
	return &l, nil
}

func (r *Repository) ListDatasetLabels(ctx context.Context, objectID uuid.UUID) ([]*mldata.Label, error) {
	query := `
		SELECT id, dataset_object_id, label, polygon FROM dataset_object_labels
		WHERE dataset_object_id = $1`

	rows, err := r.db.Query(ctx, query, objectID)
	if err != nil {
		return nil, r.handlePostgresError("list dataset labels", err)
	}
	defer rows.Close()

	var labels []*mldata.Label
	for rows.Next() {
		var l mldata.Label
		if err := rows.Scan(&l.ID, &l.ObjectID, &l.Name, &l.Polygon); err != nil {
			return nil, err
		}
		labels = append(labels, &l)
	}

	return labels, rows.Err()
}

func (r *Repository) UpdateDatasetLabel(ctx context.Context, l *mldata.Label) error {
	query := `
		UPDATE dataset_object_labels SET label = $3, polygon = $4
		WHERE dataset_object_id = $1 AND id = $2`

	tag, err := r.db.Exec(ctx, query, l.ObjectID, l.ID, l.Name, l.Polygon)
	if err != nil {
		return r.handlePostgresError("update dataset label", err)
	}
	if tag.RowsAffected() == 0 {
		return mldata.ErrLabelNotFound
	}
	return nil
}

func (r *Repository) DeleteDatasetLabel(ctx context.Context, objectID, labelID uuid.UUID) error {
	query := `DELETE FROM dataset_object_labels WHERE dataset_object_id = $1 AND id = $2`

	tag, err := r.db.Exec(ctx, query, objectID, labelID)
	if err != nil {
		return r.handlePostgresError("delete dataset label", err)
	}
	if tag.RowsAffected() == 0 {
		return mldata.ErrLabelNotFound
	}
	return nil
}

func (r *Repository) DeleteDatasetLabelsByObject(ctx context.Context, objectID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM dataset_object_labels WHERE dataset_object_id = $1`, objectID)
	if err != nil {
		return r.handlePostgresError("delete dataset labels by object", err)
	}
	return nil
}

// Model objects

func (r *Repository) CreateModelObject(ctx context.Context, obj *mldata.ModelObject) error {
	query := `
		INSERT INTO mlmodel_objects (id, name, s3_object_name, content_type)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(ctx, query, obj.ID, obj.Name, obj.ObjectKey, obj.ContentType)
	if err != nil {
		return r.handlePostgresError("create model object", err)
	}
	return nil
}

func (r *Repository) GetModelObject(ctx context.Context, id uuid.UUID) (*mldata.ModelObject, error) {
	query := `SELECT id, name, s3_object_name, content_type FROM mlmodel_objects WHERE id = $1`

	var obj mldata.ModelObject
	err := r.db.QueryRow(ctx, query, id).Scan(&obj.ID, &obj.Name, &obj.ObjectKey, &obj.ContentType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mldata.ErrFileNotFound
		}
		return nil, r.handlePostgresError("get model object", err)
	}
	return &obj, nil
}

func (r *Repository) ListModelObjects(ctx context.Context) ([]*mldata.ModelObject, error) {
	query := `SELECT id, name, s3_object_name, content_type FROM mlmodel_objects ORDER BY name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, r.handlePostgresError("list model objects", err)
	}
	defer rows.Close()

	var objects []*mldata.ModelObject
	for rows.Next() {
		var obj mldata.ModelObject
		if err := rows.Scan(&obj.ID, &obj.Name, &obj.ObjectKey, &obj.ContentType); err != nil {
			return nil, err
		}
		objects = append(objects, &obj)
	}

	return objects, rows.Err()
}

func (r *Repository) DeleteModelObject(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM mlmodel_objects WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete model object", err)
	}
	if tag.RowsAffected() == 0 {
		return mldata.ErrFileNotFound
	}
	return nil
}

// Model tags

func (r *Repository) CreateModelTag(ctx context.Context, t *mldata.Tag) error {
	query := `INSERT INTO mlmodel_object_tags (id, mlmodel_object_id, tag) VALUES ($1, $2, $3)`

	_, err := r.db.Exec(ctx, query, t.ID, t.ObjectID, t.Value)
	if err != nil {
		return r.handlePostgresError("create model tag", err)
	}
	return nil
}

func (r *Repository) GetModelTag(ctx context.Context, objectID, tagID uuid.UUID) (*mldata.Tag, error) {
	query := `
		SELECT id, mlmodel_object_id, tag FROM mlmodel_object_tags
		WHERE mlmodel_object_id = $1 AND id = $2`

	var t mldata.Tag
	err := r.db.QueryRow(ctx, query, objectID, tagID).Scan(&t.ID, &t.ObjectID, &t.Value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mldata.ErrTagNotFound
		}
		return nil, r.handlePostgresError("get model tag", err)
	}
	return &t, nil
}

func (r *Repository) ListModelTags(ctx context.Context, objectID uuid.UUID) ([]*mldata.Tag, error) {
	return r.listTags(ctx, "mlmodel_object_tags", "mlmodel_object_id", objectID)
}

func (r *Repository) DeleteModelTag(ctx context.Context, objectID, tagID uuid.UUID) error {
	query := `DELETE FROM mlmodel_object_tags WHERE mlmodel_object_id = $1 AND id = $2`

	tag, err := r.db.Exec(ctx, query, objectID, tagID)
	if err != nil {
		return r.handlePostgresError("delete model tag", err)
	}
	if tag.RowsAffected() == 0 {
		return mldata.ErrTagNotFound
	}
	return nil
}

func (r *Repository) DeleteModelTagsByObject(ctx context.Context, objectID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM mlmodel_object_tags WHERE mlmodel_object_id = $1`, objectID)
	if err != nil {
		return r.handlePostgresError("delete model tags by object", err)
	}
	return nil
}

// API credentials

func (r *Repository) CreateCredential(ctx context.Context, cred *mldata.Credential) error {
	query := `
		INSERT INTO api_credentials (id, friendly_name, api_key, secret_hash)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(ctx, query, cred.ID, cred.FriendlyName, cred.APIKey, cred.SecretHash)
	if err != nil {
		return r.handlePostgresError("create credential", err)
	}
	return nil
}

func (r *Repository) GetCredentialByAPIKey(ctx context.Context, apiKey string) (*mldata.Credential, error) {
	query := `SELECT id, friendly_name, api_key, secret_hash FROM api_credentials WHERE api_key = $1`

	var cred mldata.Credential
	err := r.db.QueryRow(ctx, query, apiKey).Scan(&cred.ID, &cred.FriendlyName, &cred.APIKey, &cred.SecretHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mldata.ErrInvalidCredentials
		}
		return nil, r.handlePostgresError("get credential", err)
	}
	return &cred, nil
}

// listTags reads tag rows from either tag table; the two share a shape.
func (r *Repository) listTags(ctx context.Context, table, fkColumn string, objectID uuid.UUID) ([]*mldata.Tag, error) {
	query := fmt.Sprintf(`SELECT id, %s, tag FROM %s WHERE %s = $1`, fkColumn, table, fkColumn)

	rows, err := r.db.Query(ctx, query, objectID)
	if err != nil {
		return nil, r.handlePostgresError("list tags", err)
	}
	defer rows.Close()

	var tags []*mldata.Tag
	for rows.Next() {
		var t mldata.Tag
		if err := rows.Scan(&t.ID, &t.ObjectID, &t.Value); err != nil {
			return nil, err
		}
		tags = append(tags, &t)
	}

	return tags, rows.Err()
}
