// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

// Package embedding provides a client for the Ollama embeddings API.
// Item metadata is flattened into a single prompt and sent to a locally
// running model; the resulting vector becomes the item's content signal.
package embedding

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/bibliograph/internal/metrics"
	"github.com/tomtom215/bibliograph/internal/recommend"
)

// maxErrorBody bounds how much of an error response is kept for messages.
const maxErrorBody = 512

// Options configures the Ollama client.
type Options struct {
	// URL is the Ollama base URL, e.g. http://127.0.0.1:11434.
	URL string

	// Model is the embedding model name, e.g. nomic-embed-text.
	Model string

	// Dimensions is the expected vector length. Responses with a
	// different length are rejected, since mixing dimensions silently
	// corrupts cosine similarity.
	Dimensions int

	// Timeout is the per-request timeout.
	Timeout time.Duration
}

// Client calls the Ollama /api/embeddings endpoint.
type Client struct {
	baseURL    string
	model      string
	dimensions int
	httpClient *http.Client
}

// NewClient creates an Ollama embeddings client.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.URL, "/"),
		model:      opts.Model,
		dimensions: opts.Dimensions,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// embedRequest is the Ollama /api/embeddings request body.
type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// embedResponse is the Ollama /api/embeddings response body.
type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed returns the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	start := time.Now()
	vec, err := c.embed(ctx, text)
	metrics.ObserveEmbedding(time.Since(start), err)
	return vec, err
}

func (c *Client) embed(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embedding: empty prompt")
	}

	body, err := json.Marshal(embedRequest{Model: c.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	reqURL := c.baseURL + "/api/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("embedding request failed with status %d: %s", resp.StatusCode, string(snippet))
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(decoded.Embedding) == 0 {
		return nil, fmt.Errorf("embedding response contained no vector")
	}
	if c.dimensions > 0 && len(decoded.Embedding) != c.dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(decoded.Embedding), c.dimensions)
	}

	return decoded.Embedding, nil
}

// PromptForItem flattens item metadata into the embedding prompt.
// The free-text description comes from the upsert request and is not
// part of the stored item.
func PromptForItem(item recommend.Item, description string) string {
	var sb strings.Builder

	sb.WriteString(item.Title)
	if item.Author != "" {
		sb.WriteString(" by ")
		sb.WriteString(item.Author)
	}
	if item.Series != "" {
		sb.WriteString(". Series: ")
		sb.WriteString(item.Series)
	}
	if len(item.Tags) > 0 {
		sb.WriteString(". Topics: ")
		sb.WriteString(strings.Join(item.Tags, ", "))
	}
	if description != "" {
		sb.WriteString(". ")
		sb.WriteString(description)
	}

	return sb.String()
}
