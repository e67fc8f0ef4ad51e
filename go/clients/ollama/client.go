package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jstats/matchlens/go/clients"
)

const DefaultBaseURL = "http://localhost:11434"

// Local models load lazily, so the first completion after a restart can
// take well over the usual HTTP budget.
const requestTimeout = 2 * time.Minute

type Client struct {
	*clients.BaseClient
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := &Client{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(requestTimeout)

	return client
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate runs a single non-streaming completion and returns the model's
// raw text response.
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{Model: model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("failed to encode generate request: %w", err)
	}

	body, err := c.Post(ctx, "/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("generate with model %s: %w", model, err)
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode generate response: %w", err)
	}

	return decoded.Response, nil
}

type embeddingsRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingsResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed returns the embedding vector for one text.
func (c *Client) Embed(ctx context.Context, model, text string) ([]float64, error) {
	payload, err := json.Marshal(embeddingsRequest{Model: model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embeddings request: %w", err)
	}

	body, err := c.Post(ctx, "/api/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("embed with model %s: %w", model, err)
	}

	var decoded embeddingsResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode embeddings response: %w", err)
	}
	if len(decoded.Embedding) == 0 {
		return nil, fmt.Errorf("model %s returned an empty embedding", model)
	}

	return decoded.Embedding, nil
}
