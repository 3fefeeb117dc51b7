// Package expression provides an adapter for a remote facial expression
// model. It posts one camera frame per call and maps the scores of the most
// prominent face onto the emotion label set.
package expression

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/moodlist/internal/core/domain"
	"github.com/ewilliams-labs/moodlist/internal/core/ports"
)

const defaultBaseURL = "http://localhost:8501"

// ErrNoFace is returned when the frame holds no detectable face.
var ErrNoFace = errors.New("expression: no face detected")

var _ ports.FrameClassifier = (*Client)(nil)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type classifyRequest struct {
	Image string `json:"image"`
}

type face struct {
	Score       float64            `json:"score"`
	Expressions map[string]float64 `json:"expressions"`
}

type classifyResponse struct {
	Faces []face `json:"faces"`
	Error string `json:"error,omitempty"`
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// NewClient builds a client. A non-positive timeout selects ten seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Classify scores frame. When several faces are found the one detected with
// the highest score wins. Labels outside the emotion set are dropped.
func (c *Client) Classify(ctx context.Context, frame []byte) (domain.Expressions, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("expression: %w: empty frame", domain.ErrInvalidInput)
	}

	body, err := json.Marshal(classifyRequest{Image: base64.StdEncoding.EncodeToString(frame)})
	if err != nil {
		return nil, fmt.Errorf("expression: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/expressions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("expression: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("expression: request failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("expression: unexpected status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("expression: decode response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("expression: %s", parsed.Error)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("expression: unexpected status %d", resp.StatusCode)
	}

	if len(parsed.Faces) == 0 {
		return nil, ErrNoFace
	}
	best := parsed.Faces[0]
	for _, f := range parsed.Faces[1:] {
		if f.Score > best.Score {
			best = f
		}
	}

	exprs := make(domain.Expressions, len(best.Expressions))
	for name, p := range best.Expressions {
		l := domain.EmotionLabel(domain.NormalizeEmotion(name))
		if l.Valid() {
			exprs[l] = p
		}
	}
	if len(exprs) == 0 {
		return nil, fmt.Errorf("expression: response carried no known labels")
	}
	return exprs, nil
}

// Ready returns nil once the remote model has finished loading.
func (c *Client) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("expression: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("expression: health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expression: health status %d", resp.StatusCode)
	}
	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("expression: decode health: %w", err)
	}
	if !health.ModelLoaded {
		return fmt.Errorf("expression: model not loaded (status %q)", health.Status)
	}
	return nil
}
