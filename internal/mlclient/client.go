package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// ErrModelUnavailable is returned when the service answers without a loaded model.
var ErrModelUnavailable = errors.New("mlclient: model not loaded")

// Client talks to the image classification model service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Prediction is the model's top label for an image.
type Prediction struct {
	Success    bool               `json:"success"`
	Label      string             `json:"issue_category"`
	Confidence float64            `json:"confidence"`
	AllProbs   map[string]float64 `json:"all_probs"`
	Message    string             `json:"message,omitempty"`
}

// NewClient creates a new model service client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Predict uploads the image and returns the model's prediction.
func (c *Client) Predict(ctx context.Context, image []byte, filename, mimeType string) (*Prediction, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("write image part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("model service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result Prediction
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !result.Success || result.Label == "" {
		return nil, ErrModelUnavailable
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return nil, fmt.Errorf("model service returned confidence %v outside [0,1]", result.Confidence)
	}
	return &result, nil
}
