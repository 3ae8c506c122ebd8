package embedders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nestor-ai/nestor/pkg/httpclient"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "text-embedding-004"
)

// GeminiEmbedder calls the Gemini embedContent REST API.
type GeminiEmbedder struct {
	apiKey     string
	model      string
	baseURL    string
	dimension  int
	httpClient *httpclient.Client
}

// GeminiEmbedderOption configures a GeminiEmbedder.
type GeminiEmbedderOption func(*GeminiEmbedder)

// WithGeminiBaseURL overrides the API endpoint.
func WithGeminiBaseURL(url string) GeminiEmbedderOption {
	return func(e *GeminiEmbedder) {
		e.baseURL = url
	}
}

// NewGeminiEmbedder creates an embedder for the given model (empty selects
// text-embedding-004).
func NewGeminiEmbedder(apiKey, model string, opts ...GeminiEmbedderOption) *GeminiEmbedder {
	if model == "" {
		model = defaultGeminiModel
	}

	e := &GeminiEmbedder{
		apiKey:    apiKey,
		model:     model,
		baseURL:   defaultGeminiBaseURL,
		dimension: 768,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type geminiContentPart struct {
	Text string `json:"text"`
}

type geminiEmbedContent struct {
	Parts []geminiContentPart `json:"parts"`
}

type geminiEmbedRequest struct {
	Model   string             `json:"model"`
	Content geminiEmbedContent `json:"content"`
}

type geminiBatchEmbedRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

type geminiEmbedding struct {
	Values []float32 `json:"values"`
}

type geminiEmbedResponse struct {
	Embedding geminiEmbedding `json:"embedding"`
}

type geminiBatchEmbedResponse struct {
	Embeddings []geminiEmbedding `json:"embeddings"`
}

// Embed implements Embedder.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	request := geminiEmbedRequest{
		Model:   "models/" + e.model,
		Content: geminiEmbedContent{Parts: []geminiContentPart{{Text: text}}},
	}

	endpoint := fmt.Sprintf("%s/models/%s:embedContent", e.baseURL, e.model)
	body, err := e.post(ctx, endpoint, request)
	if err != nil {
		return nil, err
	}

	var response geminiEmbedResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(response.Embedding.Values) == 0 {
		return nil, fmt.Errorf("received empty embedding from Gemini")
	}
	return response.Embedding.Values, nil
}

// EmbedBatch implements Embedder.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := geminiBatchEmbedRequest{Requests: make([]geminiEmbedRequest, len(texts))}
	for i, text := range texts {
		request.Requests[i] = geminiEmbedRequest{
			Model:   "models/" + e.model,
			Content: geminiEmbedContent{Parts: []geminiContentPart{{Text: text}}},
		}
	}

	endpoint := fmt.Sprintf("%s/models/%s:batchEmbedContents", e.baseURL, e.model)
	body, err := e.post(ctx, endpoint, request)
	if err != nil {
		return nil, err
	}

	var response geminiBatchEmbedResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("received %d embeddings for %d inputs", len(response.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range response.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func (e *GeminiEmbedder) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(reqBody)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", e.apiKey)

	resp, err := e.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if resp != nil && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Gemini API returned status %d: %s", resp.StatusCode, string(body))
	}
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// GetDimension implements Embedder.
func (e *GeminiEmbedder) GetDimension() int {
	return e.dimension
}

// GetModelName implements Embedder.
func (e *GeminiEmbedder) GetModelName() string {
	return e.model
}

// Close implements Embedder.
func (e *GeminiEmbedder) Close() error {
	return nil
}
