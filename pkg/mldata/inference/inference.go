// Package inference delegates defect detection to an external service.
//
// The asset store never runs models itself; it streams the model blob
// and the candidate image to a detection service and relays the
// predictions back.
package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/tsi-mlops/mldata/pkg/mldata"
)

const defaultTimeout = 120 * time.Second

// HTTPDetector implements mldata.Detector by POSTing a multipart
// request to a detection service endpoint.
type HTTPDetector struct {
	endpoint string
	client   *http.Client
}

// Option configures an HTTPDetector.
type Option func(*HTTPDetector)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *HTTPDetector) {
		d.client = client
	}
}

// NewHTTPDetector creates a detector that calls the given endpoint.
func NewHTTPDetector(endpoint string, opts ...Option) *HTTPDetector {
	d := &HTTPDetector{
		endpoint: endpoint,
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type detectResponse struct {
	Status      string              `json:"status"`
	Detail      string              `json:"detail"`
	Predictions []mldata.Prediction `json:"predictions"`
}

// Detect sends the model and image as multipart form fields and decodes
// the prediction list from the response.
func (d *HTTPDetector) Detect(ctx context.Context, model io.Reader, image io.Reader) ([]mldata.Prediction, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		err := writeParts(writer, model, image)
		if cerr := writer.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, pr)
	if err != nil {
		return nil, fmt.Errorf("failed to build inference request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("inference service returned %d: %s", resp.StatusCode, body)
	}

	var decoded detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode inference response: %w", err)
	}
	if decoded.Status != "" && decoded.Status != "OK" {
		return nil, fmt.Errorf("inference service error: %s", decoded.Detail)
	}

	return decoded.Predictions, nil
}

func writeParts(writer *multipart.Writer, model, image io.Reader) error {
	modelPart, err := writer.CreateFormFile("model", "model.bin")
	if err != nil {
		return err
	}
	if _, err := io.Copy(modelPart, model); err != nil {
		return err
	}

	imagePart, err := writer.CreateFormFile("image", "image.bin")
	if err != nil {
		return err
	}
	if _, err := io.Copy(imagePart, image); err != nil {
		return err
	}
	return nil
}

// NoopDetector drains its inputs and returns no predictions. It stands
// in when no detection service is configured.
type NoopDetector struct{}

// NewNoopDetector creates a NoopDetector.
func NewNoopDetector() *NoopDetector {
	return &NoopDetector{}
}

// Detect consumes the model and image and returns an empty prediction
// list.
func (d *NoopDetector) Detect(ctx context.Context, model io.Reader, image io.Reader) ([]mldata.Prediction, error) {
	if _, err := io.Copy(io.Discard, model); err != nil {
		return nil, err
	}
	if _, err := io.Copy(io.Discard, image); err != nil {
		return nil, err
	}
	return []mldata.Prediction{}, nil
}
