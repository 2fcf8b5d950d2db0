package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tsi-mlops/mldata/pkg/mldata"
)

// ErrorResponse is the error body for every failed request.
type ErrorResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// renderError maps domain errors onto HTTP statuses: not-found to 404,
// client mistakes (duplicates, bad polygons) to 400, everything else,
// including blob store IO, to 500.
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, mldata.ErrFileNotFound),
		errors.Is(err, mldata.ErrTagNotFound),
		errors.Is(err, mldata.ErrLabelNotFound):
		status = http.StatusNotFound
	case errors.Is(err, mldata.ErrDuplicateContent),
		errors.Is(err, mldata.ErrDuplicateTag),
		errors.Is(err, mldata.ErrDuplicateLabel),
		errors.Is(err, mldata.ErrInvalidPolygon):
		status = http.StatusBadRequest
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{
		Status: http.StatusText(status),
		Detail: err.Error(),
	})
}

func renderBadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{
		Status: http.StatusText(http.StatusBadRequest),
		Detail: detail,
	})
}
