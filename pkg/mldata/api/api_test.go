package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsi-mlops/mldata/pkg/mldata"
	"github.com/tsi-mlops/mldata/pkg/mldata/api"
	"github.com/tsi-mlops/mldata/pkg/mldata/auth"
	"github.com/tsi-mlops/mldata/pkg/mldata/inference"
	memoryrepo "github.com/tsi-mlops/mldata/pkg/mldata/repo/memory"
	memorystorage "github.com/tsi-mlops/mldata/pkg/mldata/storage/memory"
)

const (
	testAPIKey    = "test-api-key"
	testAPISecret = "test-api-secret-long-enough"
)

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()

	repo := memoryrepo.New()

	secretHash, err := auth.HashSecret(testAPISecret)
	require.NoError(t, err)
	require.NoError(t, repo.CreateCredential(context.Background(), &mldata.Credential{
		ID:           uuid.New(),
		FriendlyName: "test",
		APIKey:       testAPIKey,
		SecretHash:   secretHash,
	}))

	svc, err := mldata.New(
		mldata.WithRepository(repo),
		mldata.WithBlobStore(mldata.StoreDataset, memorystorage.New()),
		mldata.WithBlobStore(mldata.StoreModels, memorystorage.New()),
		mldata.WithDetector(inference.NewNoopDetector()),
	)
	require.NoError(t, err)

	server := httptest.NewServer(api.NewRouter(svc, auth.New(repo)))
	t.Cleanup(server.Close)
	return server
}

func doRequest(t *testing.T, method, url string, body io.Reader, contentType string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	req.SetBasicAuth(testAPIKey, testAPISecret)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func multipartFile(t *testing.T, fileName, content string, fields map[string][]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)

	for name, values := range fields {
		for _, v := range values {
			require.NoError(t, writer.WriteField(name, v))
		}
	}
	require.NoError(t, writer.Close())

	return &buf, writer.FormDataContentType()
}

func uploadDataset(t *testing.T, server *httptest.Server, fileName, content string, tags ...string) uuid.UUID {
	t.Helper()

	body, contentType := multipartFile(t, fileName, content, map[string][]string{"tags": tags})
	resp := doRequest(t, http.MethodPost, server.URL+"/dataset", body, contentType)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var decoded struct {
		Status   string    `json:"status"`
		ObjectID uuid.UUID `json:"dataset_object_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, "OK", decoded.Status)
	return decoded.ObjectID
}

func TestLivenessNoAuth(t *testing.T) {
	server := setupServer(t)

	resp, err := http.Get(server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	server := setupServer(t)

	resp, err := http.Get(server.URL + "/dataset")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Basic")
}

func TestAuthBadSecret(t *testing.T) {
	server := setupServer(t)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/dataset", nil)
	require.NoError(t, err)
	req.SetBasicAuth(testAPIKey, "wrong-secret-wrong-secret")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUploadAndDownloadDataset(t *testing.T) {
	server := setupServer(t)

	id := uploadDataset(t, server, "photo.jpg", "jpeg bytes", "camera-1")

	resp := doRequest(t, http.MethodGet, server.URL+"/dataset/"+id.String(), nil, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
}

func TestUploadDuplicateContentRejected(t *testing.T) {
	server := setupServer(t)

	uploadDataset(t, server, "a.jpg", "same bytes")

	body, contentType := multipartFile(t, "b.jpg", "same bytes", nil)
	resp := doRequest(t, http.MethodPost, server.URL+"/dataset", body, contentType)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var decoded struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Contains(t, decoded.Detail, "already exists")
}

func TestDatasetDetailsAndTagFlow(t *testing.T) {
	server := setupServer(t)

	id := uploadDataset(t, server, "f.csv", "col\n1\n", "test")

	resp := doRequest(t, http.MethodGet, server.URL+"/dataset/"+id.String()+"/details", nil, "")
	var details struct {
		Status string `json:"status"`
		File   struct {
			Tags []struct {
				ID    uuid.UUID `json:"tag_guid"`
				Value string    `json:"tag"`
			} `json:"tags"`
			Labels []json.RawMessage `json:"labels"`
		} `json:"file"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&details))
	resp.Body.Close()
	require.Equal(t, "OK", details.Status)
	require.Len(t, details.File.Tags, 1)
	assert.Equal(t, "test", details.File.Tags[0].Value)
	assert.Empty(t, details.File.Labels)

	// Duplicate tag value is a client error.
	form := url.Values{"tag": {"test"}}
	resp = doRequest(t, http.MethodPost, server.URL+"/dataset/"+id.String()+"/tags",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Delete the tag.
	tagID := details.File.Tags[0].ID
	resp = doRequest(t, http.MethodDelete, server.URL+"/dataset/"+id.String()+"/tags/"+tagID.String(), nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Deleting again is 404.
	resp = doRequest(t, http.MethodDelete, server.URL+"/dataset/"+id.String()+"/tags/"+tagID.String(), nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLabelFlow(t *testing.T) {
	server := setupServer(t)

	id := uploadDataset(t, server, "labeled.jpg", "bytes")

	form := url.Values{"label": {"crack"}, "polygon": {`[{"left":0.1,"top":0.1},{"left":0.9,"top":0.1}]`}}
	resp := doRequest(t, http.MethodPost, server.URL+"/dataset/"+id.String()+"/labels",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		LabelID uuid.UUID `json:"label_guid"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	// Details show the canonical x/y encoding regardless of input form.
	resp = doRequest(t, http.MethodGet, server.URL+"/dataset/"+id.String()+"/details", nil, "")
	var details struct {
		File struct {
			Labels []struct {
				Name    string         `json:"label"`
				Polygon []mldata.Point `json:"polygon"`
			} `json:"labels"`
		} `json:"file"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&details))
	resp.Body.Close()
	require.Len(t, details.File.Labels, 1)
	assert.Equal(t, "crack", details.File.Labels[0].Name)
	assert.Equal(t, []mldata.Point{{X: 0.1, Y: 0.1}, {X: 0.9, Y: 0.1}}, details.File.Labels[0].Polygon)

	// Invalid polygon is rejected with 400 before any write.
	form = url.Values{"label": {"bad"}, "polygon": {"not json"}}
	resp = doRequest(t, http.MethodPost, server.URL+"/dataset/"+id.String()+"/labels",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Update in place.
	form = url.Values{"label": {"dent"}, "polygon": {`[{"x":0.5,"y":0.5}]`}}
	resp = doRequest(t, http.MethodPut, server.URL+"/dataset/"+id.String()+"/labels/"+created.LabelID.String(),
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Delete.
	resp = doRequest(t, http.MethodDelete, server.URL+"/dataset/"+id.String()+"/labels/"+created.LabelID.String(), nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListExcludesOnSearchTags(t *testing.T) {
	server := setupServer(t)

	uploadDataset(t, server, "only-a.jpg", "content a", "A")
	onlyB := uploadDataset(t, server, "only-b.jpg", "content b", "B")
	uploadDataset(t, server, "both.jpg", "content ab", "A", "B")

	resp := doRequest(t, http.MethodGet, server.URL+"/dataset?search_tags=A", nil, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded struct {
		Status     string `json:"status"`
		Count      int    `json:"count"`
		TotalCount int    `json:"total_count"`
		Files      []struct {
			ID uuid.UUID `json:"id"`
		} `json:"files"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	require.Len(t, decoded.Files, 1)
	assert.Equal(t, onlyB, decoded.Files[0].ID)
	assert.Equal(t, 1, decoded.Count)
	assert.Equal(t, 3, decoded.TotalCount)
}

func TestListSearchTagsCommaSeparated(t *testing.T) {
	server := setupServer(t)

	uploadDataset(t, server, "only-a.jpg", "content a", "A")
	uploadDataset(t, server, "only-b.jpg", "content b", "B")
	onlyC := uploadDataset(t, server, "only-c.jpg", "content c", "C")

	// One comma-joined value filters like repeated parameters.
	resp := doRequest(t, http.MethodGet, server.URL+"/dataset?search_tags=A,B", nil, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded struct {
		Count int `json:"count"`
		Files []struct {
			ID uuid.UUID `json:"id"`
		} `json:"files"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	require.Len(t, decoded.Files, 1)
	assert.Equal(t, onlyC, decoded.Files[0].ID)

	// Mixed form: repeated parameter plus a comma-joined one.
	resp2 := doRequest(t, http.MethodGet, server.URL+"/dataset?search_tags=A&search_tags=B,C", nil, "")
	defer resp2.Body.Close()
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&decoded))
	assert.Equal(t, 0, decoded.Count)
	assert.Empty(t, decoded.Files)
}

func TestDeleteDataset(t *testing.T) {
	server := setupServer(t)

	id := uploadDataset(t, server, "gone.jpg", "bytes")

	resp := doRequest(t, http.MethodDelete, server.URL+"/dataset/"+id.String(), nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, server.URL+"/dataset/"+id.String(), nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestModelMirrorAndInference(t *testing.T) {
	server := setupServer(t)

	body, contentType := multipartFile(t, "detector.onnx", "weights", map[string][]string{"tags": {"prod"}})
	resp := doRequest(t, http.MethodPost, server.URL+"/models", body, contentType)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Status   string    `json:"status"`
		ObjectID uuid.UUID `json:"mlmodel_object_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	require.Equal(t, "OK", created.Status)

	// Models are not deduplicated: identical bytes upload fine.
	body, contentType = multipartFile(t, "detector-copy.onnx", "weights", nil)
	resp = doRequest(t, http.MethodPost, server.URL+"/models", body, contentType)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, server.URL+"/models", nil, "")
	var listed struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	resp.Body.Close()
	assert.Equal(t, 2, listed.Count)

	// Inference delegates to the configured detector.
	body, contentType = multipartFile(t, "image.jpg", "image bytes", nil)
	resp = doRequest(t, http.MethodPost, server.URL+"/models/"+created.ObjectID.String()+"/inference", body, contentType)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var inf struct {
		Status      string              `json:"status"`
		Predictions []mldata.Prediction `json:"predictions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&inf))
	resp.Body.Close()
	assert.Equal(t, "OK", inf.Status)
	assert.NotNil(t, inf.Predictions)
}

func TestInvalidIDIsBadRequest(t *testing.T) {
	server := setupServer(t)

	resp := doRequest(t, http.MethodGet, server.URL+"/dataset/not-a-uuid", nil, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
