package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// HTTPClassifier calls the ML classification service over HTTP.
type HTTPClassifier struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClassifier creates a classifier client. The timeout bounds the
// whole request; a classifier that takes longer yields ErrUnavailable.
func NewHTTPClassifier(baseURL, apiKey string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// ScanBytes posts raw file content as multipart form data to /predict.
func (h *HTTPClassifier) ScanBytes(ctx context.Context, filename string, data []byte) (*Verdict, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write multipart body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/predict", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build scan request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return h.do(req)
}

// ScanFileInfo posts file identity metadata as JSON to /predict.
func (h *HTTPClassifier) ScanFileInfo(ctx context.Context, info FileInfo) (*Verdict, error) {
	payload, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scan request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/predict", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build scan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return h.do(req)
}

func (h *HTTPClassifier) do(req *http.Request) (*Verdict, error) {
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	v := &Verdict{}
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
	}
	if err := validate(v); err != nil {
		return nil, fmt.Errorf("%w: schema violation", ErrUnavailable)
	}
	return v, nil
}
