// Package anthropic implements provider.TextModel over the Anthropic
// Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/manash/olive/internal/provider"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultVersion   = "2023-06-01"
	defaultTimeout   = 120 * time.Second
	defaultMaxTokens = 1024
)

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func New(cfg *provider.Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, provider.ErrAPIKeyRequired
	}
	baseURL := defaultBaseURL
	if cfg.BaseURL != "" {
		baseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  provider.NewHTTPClient(cfg, defaultTimeout),
	}, nil
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Model   string             `json:"model"`
	Content []anthropicContent `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one user turn made of req.Parts and returns the
// concatenated text blocks of the reply.
func (c *Client) Complete(ctx context.Context, req *provider.TextRequest) (*provider.TextResponse, error) {
	payload := anthropicRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		System:    strings.TrimSpace(req.System),
		Messages: []anthropicMessage{{
			Role:    "user",
			Content: toContent(req.Parts),
		}},
	}
	if payload.MaxTokens <= 0 {
		payload.MaxTokens = defaultMaxTokens
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	respBody, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}

	var response anthropicResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	text := extractText(response.Content)
	if text == "" {
		return nil, provider.ErrEmptyResponse
	}

	model := response.Model
	if model == "" {
		model = req.Model
	}
	return &provider.TextResponse{
		Text:         text,
		Model:        model,
		InputTokens:  response.Usage.InputTokens,
		OutputTokens: response.Usage.OutputTokens,
	}, nil
}

func toContent(parts []provider.Part) []anthropicContent {
	content := make([]anthropicContent, 0, len(parts))
	for _, p := range parts {
		if p.ImageBase64 != "" {
			mediaType := p.MediaType
			if mediaType == "" {
				mediaType = "image/png"
			}
			content = append(content, anthropicContent{
				Type:   "image",
				Source: &imageSource{Type: "base64", MediaType: mediaType, Data: p.ImageBase64},
			})
			continue
		}
		if p.Text != "" {
			content = append(content, anthropicContent{Type: "text", Text: p.Text})
		}
	}
	return content
}

func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", defaultVersion)
	req.Header.Set("content-type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &provider.StatusError{Code: resp.StatusCode, Message: errorMessage(respBody)}
	}
	return respBody, nil
}

func errorMessage(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return strings.TrimSpace(string(body))
}

func extractText(contents []anthropicContent) string {
	var buf bytes.Buffer
	for _, item := range contents {
		if item.Type == "text" {
			buf.WriteString(item.Text)
		}
	}
	return buf.String()
}
