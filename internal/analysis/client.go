package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/craigvandotcom/eatzone/internal/models"
)

// APIError is the analysis service's structured error envelope. Any non-200
// answer is a whole-batch failure for that call.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("analysis service error %s: %s", e.Code, e.Message)
	}
	return "analysis service error: " + e.Message
}

// Client talks to a remote ingredient-analysis service. There is no enforced
// client-side timeout; cancellation comes from the caller's context and
// standard network failure signaling.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{},
	}
}

// Analyze submits one batch of data-URI images. A single image is sent as
// {image: ...}, multiple as {images: [...]}; the shape distinction is part
// of the service contract.
func (c *Client) Analyze(ctx context.Context, images []string) (*models.AnalysisResult, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("no images to analyze")
	}

	var payload any
	if len(images) == 1 {
		payload = map[string]string{"image": images[0]}
	} else {
		payload = map[string][]string{"images": images}
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/analyze", bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var envelope struct {
			Error APIError `json:"error"`
		}
		body, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error.Message == "" {
			return nil, &APIError{Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body))}
		}
		return nil, &envelope.Error
	}

	var result models.AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	for i := range result.Ingredients {
		result.Ingredients[i].FromAI = true
		if !result.Ingredients[i].Zone.Valid() {
			result.Ingredients[i].Zone = models.ZoneUnzoned
		}
	}
	return &result, nil
}
