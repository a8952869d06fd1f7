package rewriter

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

var ErrEmptyResponse = errors.New("language model returned no content")

type Options struct {
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Style       string
	Tone        string
	MaxTokens   int
	Temperature float64
}

func DefaultOptions() Options {
	return Options{
		BaseURL:     "http://localhost:1234/v1",
		Timeout:     120 * time.Second,
		Style:       "informative",
		Tone:        "neutral",
		MaxTokens:   4000,
		Temperature: 0.7,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Client talks to an OpenAI-compatible chat completions endpoint such as LM Studio.
type Client struct {
	opts   Options
	client *http.Client
}

func NewClient(opts Options, client *http.Client) *Client {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{opts: opts, client: client}
}

func (c *Client) Model() string {
	if c.opts.Model == "" {
		return "local-model"
	}
	return c.opts.Model
}

// Complete sends a single user message and returns the assistant reply.
// LM Studio rejects system messages for some models, so instructions travel in the prompt.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = c.opts.MaxTokens
	}

	payload, err := json.Marshal(chatRequest{
		Model:       c.opts.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: c.opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call chat endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chat endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
