package toxicity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// RemoteEngine scores text by calling an external moderation HTTP API
// (Perspective-style). The caller bounds each request with a context; the
// engine itself sets no timeout.
type RemoteEngine struct {
	url    string
	apiKey string
	client *http.Client
}

// NewRemoteEngine creates an engine that POSTs to url with the given API
// key. A nil httpClient falls back to http.DefaultClient.
func NewRemoteEngine(url, apiKey string, httpClient *http.Client) *RemoteEngine {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RemoteEngine{url: url, apiKey: apiKey, client: httpClient}
}

type remoteRequest struct {
	Text string `json:"text"`
}

type remoteResponse struct {
	Score float64 `json:"score"`
}

// Score implements Engine.
func (e *RemoteEngine) Score(ctx context.Context, text string) (float64, error) {
	body, err := json.Marshal(remoteRequest{Text: text})
	if err != nil {
		return 0, fmt.Errorf("toxicity: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("toxicity: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("toxicity: remote call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("toxicity: remote API returned %d", resp.StatusCode)
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("toxicity: decode response: %w", err)
	}
	if out.Score < 0 || out.Score > 1 {
		return 0, fmt.Errorf("toxicity: remote score %f out of range", out.Score)
	}
	return out.Score, nil
}
