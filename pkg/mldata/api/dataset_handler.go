package api

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tsi-mlops/mldata/pkg/mldata"
)

// Uploads are buffered to disk above this size.
const maxUploadMemory = 32 << 20 // 32 MiB

// DatasetHandler handles dataset file endpoints.
type DatasetHandler struct {
	service mldata.Service
}

// NewDatasetHandler creates a new dataset handler
func NewDatasetHandler(service mldata.Service) *DatasetHandler {
	return &DatasetHandler{service: service}
}

// Routes returns the router for dataset endpoints
func (h *DatasetHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Upload)
	r.Get("/", h.List)
	r.Get("/{id}", h.Download)
	r.Delete("/{id}", h.Delete)
	r.Get("/{id}/details", h.Details)

	r.Post("/{id}/tags", h.AddTag)
	r.Delete("/{id}/tags/{tag_id}", h.DeleteTag)

	r.Post("/{id}/labels", h.AddLabel)
	r.Put("/{id}/labels/{label_id}", h.UpdateLabel)
	r.Delete("/{id}/labels/{label_id}", h.DeleteLabel)

	return r
}

// UploadResponse is the response body for a successful upload.
type UploadResponse struct {
	Status    string    `json:"status"`
	ObjectKey string    `json:"s3_object_name"`
	ObjectID  uuid.UUID `json:"dataset_object_id"`
}

// Upload accepts a multipart file plus optional repeated "tags" fields,
// deduplicates by content hash, and stores the blob and its metadata.
func (h *DatasetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		slog.Error("Failed to parse multipart form", "error", err)
		renderBadRequest(w, r, "expected multipart form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		renderBadRequest(w, r, "missing file field")
		return
	}
	defer file.Close()

	obj, err := h.service.UploadDatasetFile(r.Context(), mldata.UploadDatasetFileRequest{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Reader:      file,
		Tags:        r.MultipartForm.Value["tags"],
	})
	if err != nil {
		slog.Error("Failed to upload dataset file", "file_name", header.Filename, "error", err)
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, UploadResponse{
		Status:    "OK",
		ObjectKey: obj.ObjectKey,
		ObjectID:  obj.ID,
	})
}

// ListResponse is the response body for a dataset listing.
type ListResponse struct {
	Status     string                      `json:"status"`
	Count      int                         `json:"count"`
	TotalCount int                         `json:"total_count"`
	Files      []mldata.DatasetFileDetails `json:"files"`
}

// List returns dataset files. The search_tags parameter EXCLUDES every
// file whose tag set intersects it.
func (h *DatasetHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit, err := parseIntParam(query.Get("limit"))
	if err != nil {
		renderBadRequest(w, r, "invalid limit")
		return
	}
	offset, err := parseIntParam(query.Get("offset"))
	if err != nil {
		renderBadRequest(w, r, "invalid offset")
		return
	}

	result, err := h.service.ListDatasetFiles(r.Context(), mldata.ListDatasetFilesRequest{
		ExcludeTags: parseSearchTags(query["search_tags"]),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		slog.Error("Failed to list dataset files", "error", err)
		renderError(w, r, err)
		return
	}

	files := result.Files
	if files == nil {
		files = []mldata.DatasetFileDetails{}
	}
	render.JSON(w, r, ListResponse{
		Status:     "OK",
		Count:      result.Count,
		TotalCount: result.TotalCount,
		Files:      files,
	})
}

// Download streams the blob bytes back to the client.
func (h *DatasetHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		renderBadRequest(w, r, "invalid object id")
		return
	}

	reader, obj, err := h.service.DownloadDatasetFile(r.Context(), id)
	if err != nil {
		slog.Error("Failed to download dataset file", "object_id", id, "error", err)
		renderError(w, r, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+obj.Name+`"`)
	if _, err := io.Copy(w, reader); err != nil {
		slog.Error("Failed to stream dataset file", "object_id", id, "error", err)
	}
}

// Delete removes the blob, the file's tags and labels, and the metadata
// row, in that order.
func (h *DatasetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		renderBadRequest(w, r, "invalid object id")
		return
	}

	if err := h.service.DeleteDatasetFile(r.Context(), id); err != nil {
		slog.Error("Failed to delete dataset file", "object_id", id, "error", err)
		renderError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]string{"status": "OK"})
}

// DetailsResponse is the response body for a details request.
type DetailsResponse struct {
	Status string                     `json:"status"`
	File   *mldata.DatasetFileDetails `json:"file"`
}

// Details returns the file with its full tag and label collections.
func (h *DatasetHandler) Details(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		renderBadRequest(w, r, "invalid object id")
		return
	}

	details, err := h.service.GetDatasetFileDetails(r.Context(), id)
	if err != nil {
		slog.Error("Failed to get dataset file details", "object_id", id, "error", err)
		renderError(w, r, err)
		return
	}

	render.JSON(w, r, DetailsResponse{Status: "OK", File: details})
}

// TagResponse is the response body after adding a tag.
type TagResponse struct {
	Status string    `json:"status"`
	TagID  uuid.UUID `json:"tag_guid"`
}

// AddTag attaches one tag value from the "tag" form field.
func (h *DatasetHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		renderBadRequest(w, r, "invalid object id")
		return
	}

	value := r.FormValue("tag")
	if value == "" {
		renderBadRequest(w, r, "missing tag field")
		return
	}

	tag, err := h.service.AddDatasetTag(r.Context(), id, value)
	if err != nil {
		slog.Error("Failed to add dataset tag", "object_id", id, "tag", value, "error", err)
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, TagResponse{Status: "OK", TagID: tag.ID})
}

// DeleteTag removes one tag by id.
func (h *DatasetHandler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		renderBadRequest(w, r, "invalid object id")
		return
	}
	tagID, err := parseID(r, "tag_id")
	if err != nil {
		renderBadRequest(w, r, "invalid tag id")
		return
	}

	if err := h.service.DeleteDatasetTag(r.Context(), id, tagID); err != nil {
		slog.Error("Failed to delete dataset tag", "object_id", id, "tag_id", tagID, "error", err)
		renderError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]string{"status": "OK"})
}

// LabelResponse is the response body after adding a label.
type LabelResponse struct {
	Status  string    `json:"status"`
	LabelID uuid.UUID `json:"label_guid"`
}

// AddLabel attaches a polygon label from the "label" and "polygon" form
// fields. The polygon is validated and canonicalized before anything is
// written.
func (h *DatasetHandler) AddLabel(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		renderBadRequest(w, r, "invalid object id")
		return
	}

	name := r.FormValue("label")
	if name == "" {
		renderBadRequest(w, r, "missing label field")
		return
	}

	label, err := h.service.AddDatasetLabel(r.Context(), mldata.AddLabelRequest{
		ObjectID: id,
		Name:     name,
		Polygon:  r.FormValue("polygon"),
	})
	if err != nil {
		slog.Error("Failed to add dataset label", "object_id", id, "label", name, "error", err)
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, LabelResponse{Status: "OK", LabelID: label.ID})
}

// UpdateLabel overwrites a label's name and polygon in place.
func (h *DatasetHandler) UpdateLabel(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		renderBadRequest(w, r, "invalid object id")
		return
	}
	labelID, err := parseID(r, "label_id")
	if err != nil {
		renderBadRequest(w, r, "invalid label id")
		return
	}

	name := r.FormValue("label")
	if name == "" {
		renderBadRequest(w, r, "missing label field")
		return
	}

	err = h.service.UpdateDatasetLabel(r.Context(), mldata.UpdateLabelRequest{
		ObjectID: id,
		LabelID:  labelID,
		Name:     name,
		Polygon:  r.FormValue("polygon"),
	})
	if err != nil {
		slog.Error("Failed to update dataset label", "object_id", id, "label_id", labelID, "error", err)
		renderError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]string{"status": "OK"})
}

// DeleteLabel removes one label by id.
func (h *DatasetHandler) DeleteLabel(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		renderBadRequest(w, r, "invalid object id")
		return
	}
	labelID, err := parseID(r, "label_id")
	if err != nil {
		renderBadRequest(w, r, "invalid label id")
		return
	}

	if err := h.service.DeleteDatasetLabel(r.Context(), id, labelID); err != nil {
		slog.Error("Failed to delete dataset label", "object_id", id, "label_id", labelID, "error", err)
		renderError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]string{"status": "OK"})
}

// helpers

func parseID(r *http.Request, param string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, param))
}

func parseIntParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// parseSearchTags accepts both wire forms for the filter: repeated
// search_tags parameters and one comma-separated value.
func parseSearchTags(values []string) []string {
	var tags []string
	for _, value := range values {
		for _, tag := range strings.Split(value, ",") {
			if tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}
