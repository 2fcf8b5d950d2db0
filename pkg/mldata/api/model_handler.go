package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tsi-mlops/mldata/pkg/mldata"
)

// ModelHandler handles model artifact endpoints. It mirrors the dataset
// surface minus labels; model uploads skip content-hash deduplication.
type ModelHandler struct {
	service mldata.Service
}

// NewModelHandler creates a new model handler
func NewModelHandler(service mldata.Service) *ModelHandler {
	return &ModelHandler{service: service}
}

// Routes returns the router for model endpoints
func (h *ModelHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Upload)
	r.Get("/", h.List)
	r.Get("/{id}", h.Download)
	r.Delete("/{id}", h.Delete)

	r.Post("/{id}/tags", h.AddTag)
	r.Delete("/{id}/tags/{tag_id}", h.DeleteTag)

	r.Post("/{id}/inference", h.Inference)

	return r
}

// ModelUploadResponse is the response body for a successful model upload.
type ModelUploadResponse struct {
	Status    string    `json:"status"`
	ObjectKey string    `json:"s3_object_name"`
	ObjectID  uuid.UUID `json:"mlmodel_object_id"`
}

// Upload accepts a multipart model artifact plus optional repeated
// "tags" fields.
func (h *ModelHandler) Upload(w http.ResponseWriter, r *http.Request) {
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

	obj, err := h.service.UploadModelFile(r.Context(), mldata.UploadModelFileRequest{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Reader:      file,
		Tags:        r.MultipartForm.Value["tags"],
	})
	if err != nil {
		slog.Error("Failed to upload model file", "file_name", header.Filename, "error", err)
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, ModelUploadResponse{
		Status:    "OK",
		ObjectKey: obj.ObjectKey,
		ObjectID:  obj.ID,
	})
}

// ModelListResponse is the response body for a model listing.
type ModelListResponse struct {
	Status string                    `json:"status"`
	Count  int                       `json:"count"`
	Files  []mldata.ModelFileDetails `json:"files"`
}

// List returns model files, excluding any whose tag set intersects
// search_tags.
func (h *ModelHandler) List(w http.ResponseWriter, r *http.Request) {
	files, err := h.service.ListModelFiles(r.Context(), parseSearchTags(r.URL.Query()["search_tags"]))
	if err != nil {
		slog.Error("Failed to list model files", "error", err)
		renderError(w, r, err)
		return
	}

	if files == nil {
		files = []mldata.ModelFileDetails{}
	}
	render.JSON(w, r, ModelListResponse{
		Status: "OK",
		Count:  len(files),
		Files:  files,
	})
}

// Download streams the model artifact back to the client.
func (h *ModelHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		renderBadRequest(w, r, "invalid object id")
		return
	}

	reader, obj, err := h.service.DownloadModelFile(r.Context(), id)
	if err != nil {
		slog.Error("Failed to download model file", "object_id", id, "error", err)
		renderError(w, r, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+obj.Name+`"`)
	if _, err := io.Copy(w, reader); err != nil {
		slog.Error("Failed to stream model file", "object_id", id, "error", err)
	}
}

// Delete removes the blob, the model's tags, and the metadata row.
func (h *ModelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		renderBadRequest(w, r, "invalid object id")
		return
	}

	if err := h.service.DeleteModelFile(r.Context(), id); err != nil {
		slog.Error("Failed to delete model file", "object_id", id, "error", err)
		renderError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]string{"status": "OK"})
}

// AddTag attaches one tag value from the "tag" form field.
func (h *ModelHandler) AddTag(w http.ResponseWriter, r *http.Request) {
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

	tag, err := h.service.AddModelTag(r.Context(), id, value)
	if err != nil {
		slog.Error("Failed to add model tag", "object_id", id, "tag", value, "error", err)
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, TagResponse{Status: "OK", TagID: tag.ID})
}

// DeleteTag removes one tag by id.
func (h *ModelHandler) DeleteTag(w http.ResponseWriter, r *http.Request) {
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

	if err := h.service.DeleteModelTag(r.Context(), id, tagID); err != nil {
		slog.Error("Failed to delete model tag", "object_id", id, "tag_id", tagID, "error", err)
		renderError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]string{"status": "OK"})
}

// InferenceResponse is the response body for an inference request.
type InferenceResponse struct {
	Status      string              `json:"status"`
	Predictions []mldata.Prediction `json:"predictions"`
}

// Inference accepts a multipart image and delegates detection to the
// configured inference service using the stored model artifact.
func (h *ModelHandler) Inference(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		renderBadRequest(w, r, "invalid object id")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		slog.Error("Failed to parse multipart form", "error", err)
		renderBadRequest(w, r, "expected multipart form data")
		return
	}

	image, _, err := r.FormFile("file")
	if err != nil {
		renderBadRequest(w, r, "missing file field")
		return
	}
	defer image.Close()

	predictions, err := h.service.RunInference(r.Context(), id, image)
	if err != nil {
		slog.Error("Failed to run inference", "model_id", id, "error", err)
		renderError(w, r, err)
		return
	}

	if predictions == nil {
		predictions = []mldata.Prediction{}
	}
	render.JSON(w, r, InferenceResponse{Status: "OK", Predictions: predictions})
}
