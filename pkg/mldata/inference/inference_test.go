package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsi-mlops/mldata/pkg/mldata"
)

func TestHTTPDetectorDetect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		modelFile, _, err := r.FormFile("model")
		require.NoError(t, err)
		defer modelFile.Close()

		imageFile, _, err := r.FormFile("image")
		require.NoError(t, err)
		defer imageFile.Close()

		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "OK",
			"predictions": []map[string]interface{}{
				{"label": "scratch", "confidence": 0.91},
			},
		})
	}))
	defer server.Close()

	detector := NewHTTPDetector(server.URL)

	preds, err := detector.Detect(context.Background(),
		strings.NewReader("model-bytes"), strings.NewReader("image-bytes"))
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, "scratch", preds[0].Label)
	assert.InDelta(t, 0.91, preds[0].Confidence, 1e-9)
}

func TestHTTPDetectorServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	detector := NewHTTPDetector(server.URL)

	_, err := detector.Detect(context.Background(),
		strings.NewReader("model"), strings.NewReader("image"))
	assert.Error(t, err)
}

func TestNoopDetector(t *testing.T) {
	detector := NewNoopDetector()

	preds, err := detector.Detect(context.Background(),
		strings.NewReader("model"), strings.NewReader("image"))
	require.NoError(t, err)
	assert.Empty(t, preds)
	var _ mldata.Detector = detector
}
