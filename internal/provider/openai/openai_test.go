package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/manash/olive/internal/provider"
	"github.com/manash/olive/pkg/models"
)

type imageRequestBody struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	Quality        string `json:"quality"`
	Style          string `json:"style"`
	ResponseFormat string `json:"response_format"`
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, body imageRequestBody)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			t.Errorf("path = %s, want /images/generations", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("wrong authorization header")
		}
		var body imageRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		handler(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func imagesJSON(payloads ...string) map[string]any {
	data := make([]map[string]any, len(payloads))
	for i, p := range payloads {
		data[i] = map[string]any{"b64_json": base64.StdEncoding.EncodeToString([]byte(p))}
	}
	return map[string]any{"created": time.Now().Unix(), "data": data}
}

func TestNew(t *testing.T) {
	registry := models.DefaultRegistry()

	tests := []struct {
		name    string
		cfg     *provider.Config
		wantErr error
	}{
		{"valid config", &provider.Config{APIKey: "test-key"}, nil},
		{"empty API key", &provider.Config{APIKey: ""}, provider.ErrAPIKeyRequired},
		{"custom base URL", &provider.Config{APIKey: "test-key", BaseURL: "https://custom.api.com"}, nil},
		{"custom timeout", &provider.Config{APIKey: "test-key", TimeoutSec: 60}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg, registry)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v, want nil", err)
			}
			if p == nil {
				t.Fatal("New() returned nil provider")
			}
		})
	}
}

func TestProvider_Name(t *testing.T) {
	p, _ := New(&provider.Config{APIKey: "test"}, models.DefaultRegistry())
	if p.Name() != models.ProviderOpenAI {
		t.Errorf("Name() = %v, want %v", p.Name(), models.ProviderOpenAI)
	}
}

func TestProvider_SupportsModel(t *testing.T) {
	p, _ := New(&provider.Config{APIKey: "test"}, models.DefaultRegistry())

	tests := []struct {
		model string
		want  bool
	}{
		{"gpt-image-1", true},
		{"dall-e-3", true},
		{"dall-e-2", true},
		{"claude-sonnet-4-20250514", false},
		{"unknown-model", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := p.SupportsModel(tt.model); got != tt.want {
				t.Errorf("SupportsModel(%s) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestProvider_ListModels(t *testing.T) {
	p, _ := New(&provider.Config{APIKey: "test"}, models.DefaultRegistry())

	got := p.ListModels()
	want := []string{"dall-e-2", "dall-e-3", "gpt-image-1"}
	if len(got) != len(want) {
		t.Fatalf("ListModels() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ListModels()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestProvider_Generate_Success(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, body imageRequestBody) {
		if body.Prompt != "scandinavian living room" {
			t.Errorf("wrong prompt: %s", body.Prompt)
		}
		if body.Model != "dall-e-3" || body.Size != "1024x1024" || body.Quality != "standard" {
			t.Errorf("defaults not applied: %+v", body)
		}
		if body.ResponseFormat != "b64_json" {
			t.Errorf("response_format = %q, want b64_json", body.ResponseFormat)
		}
		resp := imagesJSON("fake image data")
		resp["data"].([]map[string]any)[0]["revised_prompt"] = "revised prompt"
		json.NewEncoder(w).Encode(resp)
	})

	p, err := New(&provider.Config{APIKey: "test-key", BaseURL: server.URL}, models.DefaultRegistry())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	resp, err := p.Generate(context.Background(), &models.Request{Model: "dall-e-3", Prompt: "scandinavian living room", Count: 1})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if len(resp.Images) != 1 {
		t.Fatalf("Generate() returned %d images, want 1", len(resp.Images))
	}
	if resp.RevisedPrompt != "revised prompt" {
		t.Errorf("RevisedPrompt = %s, want 'revised prompt'", resp.RevisedPrompt)
	}
	if string(resp.Images[0].Data) != "fake image data" {
		t.Error("image data mismatch")
	}
	if resp.Cost == nil || resp.Cost.Total != 0.040 {
		t.Errorf("Cost = %+v, want 0.040 total", resp.Cost)
	}
}

func TestProvider_Generate_MultipleImages(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, body imageRequestBody) {
		if body.ResponseFormat != "" {
			t.Errorf("gpt-image-1 must not send response_format, got %q", body.ResponseFormat)
		}
		json.NewEncoder(w).Encode(imagesJSON("img1", "img2", "img3"))
	})

	p, _ := New(&provider.Config{APIKey: "test-key", BaseURL: server.URL}, models.DefaultRegistry())

	resp, err := p.Generate(context.Background(), &models.Request{Model: "gpt-image-1", Prompt: "kitchen", Count: 3})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(resp.Images) != 3 {
		t.Fatalf("Generate() returned %d images, want 3", len(resp.Images))
	}
	for i, want := range []string{"img1", "img2", "img3"} {
		if string(resp.Images[i].Data) != want || resp.Images[i].Index != i {
			t.Errorf("image %d = %q/%d", i, resp.Images[i].Data, resp.Images[i].Index)
		}
	}
	if resp.Cost.PerImage <= 0 || resp.Cost.Total != resp.Cost.PerImage*3 {
		t.Errorf("Cost = %+v", resp.Cost)
	}
}

func TestProvider_Generate_Validation(t *testing.T) {
	p, _ := New(&provider.Config{APIKey: "test-key", BaseURL: "http://127.0.0.1:1"}, models.DefaultRegistry())

	tests := []struct {
		name    string
		req     *models.Request
		wantErr error
	}{
		{"unknown model", &models.Request{Model: "sdxl", Prompt: "x", Count: 1}, provider.ErrModelNotSupported},
		{"empty prompt", &models.Request{Model: "dall-e-3", Count: 1}, models.ErrEmptyPrompt},
		{"too many", &models.Request{Model: "dall-e-3", Prompt: "x", Count: 2}, models.ErrCountExceedsMax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Generate(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Generate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestProvider_Generate_StatusErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, provider.ErrUnauthorized},
		{"rate limited", http.StatusTooManyRequests, provider.ErrRateLimited},
		{"server error", http.StatusInternalServerError, provider.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, func(w http.ResponseWriter, _ imageRequestBody) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"message": "nope", "type": "invalid_request_error"},
				})
			})
			p, _ := New(&provider.Config{APIKey: "test-key", BaseURL: server.URL}, models.DefaultRegistry())

			_, err := p.Generate(context.Background(), &models.Request{Model: "dall-e-3", Prompt: "x", Count: 1})
			if !errors.Is(err, provider.ErrGenerationFailed) {
				t.Errorf("error = %v, want ErrGenerationFailed", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			var se *provider.StatusError
			if !errors.As(err, &se) || se.Code != tt.status {
				t.Errorf("StatusError = %v, want code %d", se, tt.status)
			}
		})
	}
}

func TestProvider_Generate_EmptyData(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, _ imageRequestBody) {
		json.NewEncoder(w).Encode(map[string]any{"created": 1, "data": []any{}})
	})
	p, _ := New(&provider.Config{APIKey: "test-key", BaseURL: server.URL}, models.DefaultRegistry())

	_, err := p.Generate(context.Background(), &models.Request{Model: "dall-e-3", Prompt: "x", Count: 1})
	if !errors.Is(err, provider.ErrEmptyResponse) {
		t.Errorf("error = %v, want ErrEmptyResponse", err)
	}
}

func TestProvider_Generate_ContextCanceled(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, _ imageRequestBody) {
		time.Sleep(100 * time.Millisecond)
		json.NewEncoder(w).Encode(imagesJSON("late"))
	})
	p, _ := New(&provider.Config{APIKey: "test-key", BaseURL: server.URL}, models.DefaultRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Generate(ctx, &models.Request{Model: "dall-e-3", Prompt: "x", Count: 1})
	if err == nil {
		t.Fatal("Generate() error = nil, want error")
	}
}

func TestBuildAPIRequest(t *testing.T) {
	tests := []struct {
		name       string
		req        *models.Request
		wantFormat string
		wantStyle  string
	}{
		{"gpt-image-1", &models.Request{Model: "gpt-image-1", Prompt: "p", Count: 2, Quality: "high"}, "", ""},
		{"dall-e-3", &models.Request{Model: "dall-e-3", Prompt: "p", Count: 1, Style: "natural"}, goopenai.CreateImageResponseFormatB64JSON, "natural"},
		{"dall-e-2", &models.Request{Model: "dall-e-2", Prompt: "p", Count: 5, Size: "512x512"}, goopenai.CreateImageResponseFormatB64JSON, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildAPIRequest(tt.req)
			if got.ResponseFormat != tt.wantFormat {
				t.Errorf("ResponseFormat = %q, want %q", got.ResponseFormat, tt.wantFormat)
			}
			if got.Style != tt.wantStyle {
				t.Errorf("Style = %q, want %q", got.Style, tt.wantStyle)
			}
			if got.N != tt.req.Count || got.Model != tt.req.Model {
				t.Errorf("buildAPIRequest() = %+v", got)
			}
		})
	}
}

func TestBuildResponse_InvalidBase64(t *testing.T) {
	_, err := buildResponse(goopenai.ImageResponse{
		Data: []goopenai.ImageResponseDataInner{{B64JSON: "not-valid-base64!!!"}},
	})
	if err == nil {
		t.Fatal("buildResponse() error = nil, want error for invalid base64")
	}
}
