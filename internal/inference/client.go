package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrUnavailable = errors.New("inference: service unavailable")

// Client is the inference/embedding boundary. Implementations call an
// external model service; failures surface as downstream errors to the
// dispatcher.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Embed(ctx context.Context, text string) ([]float64, error)
}

// HTTPClient talks JSON to an inference endpoint.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient builds a client for the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Text string `json:"text"`
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Vector []float64 `json:"vector"`
}

func (c *HTTPClient) Generate(ctx context.Context, prompt string) (string, error) {
	var out generateResponse
	if err := c.post(ctx, "/generate", generateRequest{Prompt: prompt}, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func (c *HTTPClient) Embed(ctx context.Context, text string) ([]float64, error) {
	var out embedResponse
	if err := c.post(ctx, "/embed", embedRequest{Text: text}, &out); err != nil {
		return nil, err
	}
	return out.Vector, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, in, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("%w: no endpoint configured", ErrUnavailable)
	}
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("inference: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("inference: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("inference: decode response: %w", err)
	}
	return nil
}
