package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/manash/olive/pkg/models"
)

var (
	ErrProviderNotFound  = errors.New("provider not found")
	ErrModelNotSupported = errors.New("model not supported by provider")
	ErrAPIKeyRequired    = errors.New("API key is required")
	ErrGenerationFailed  = errors.New("image generation failed")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnavailable       = errors.New("service unavailable")
	ErrEmptyResponse     = errors.New("empty response")
)

// StatusError is a non-2xx reply from an upstream HTTP API.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

// Unwrap maps well-known status codes onto the sentinel errors.
func (e *StatusError) Unwrap() error {
	switch {
	case e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden:
		return ErrUnauthorized
	case e.Code == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.Code >= 500:
		return ErrUnavailable
	}
	return nil
}

type Config struct {
	APIKey     string
	BaseURL    string
	TimeoutSec int
	Verbose    bool
}

// ImageGenerator renders images from a text prompt.
type ImageGenerator interface {
	Name() models.ProviderType
	Generate(ctx context.Context, req *models.Request) (*models.Response, error)
	SupportsModel(model string) bool
	ListModels() []string
}

// Part is one block of a multimodal prompt: text or a base64 image.
type Part struct {
	Text        string
	ImageBase64 string
	MediaType   string
}

func TextPart(s string) Part {
	return Part{Text: s}
}

type TextRequest struct {
	Model     string
	System    string
	Parts     []Part
	MaxTokens int
}

type TextResponse struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// TextModel completes a single-turn multimodal prompt.
type TextModel interface {
	Complete(ctx context.Context, req *TextRequest) (*TextResponse, error)
}

type StyleAnalyzer interface {
	AnalyzeStyle(ctx context.Context, req models.StyleRequest) (*models.StyleProfile, error)
}

type DesignGenerator interface {
	GenerateDesign(ctx context.Context, req models.DesignRequest) (*models.DesignResult, error)
}

type VariationGenerator interface {
	GenerateVariations(ctx context.Context, req models.VariationRequest) ([]models.DesignVariation, error)
}

type MaterialExtractor interface {
	ExtractMaterials(ctx context.Context, req models.MaterialRequest) ([]models.Material, error)
}

type ShopSearcher interface {
	Search(ctx context.Context, q models.SearchQuery) (*models.SearchResult, error)
}

// Designer bundles the four design collaborators.
type Designer interface {
	StyleAnalyzer
	DesignGenerator
	VariationGenerator
	MaterialExtractor
}

type Factory struct {
	registry  *models.ModelRegistry
	configs   map[models.ProviderType]*Config
	providers map[models.ProviderType]ImageGenerator
}

func NewFactory(registry *models.ModelRegistry) *Factory {
	return &Factory{
		registry:  registry,
		configs:   make(map[models.ProviderType]*Config),
		providers: make(map[models.ProviderType]ImageGenerator),
	}
}

func (f *Factory) Configure(providerType models.ProviderType, cfg *Config) {
	f.configs[providerType] = cfg
}

func (f *Factory) Register(p ImageGenerator) {
	f.providers[p.Name()] = p
}

func (f *Factory) Get(providerType models.ProviderType) (ImageGenerator, error) {
	p, ok := f.providers[providerType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerType)
	}
	return p, nil
}

func (f *Factory) GetForModel(model string) (ImageGenerator, error) {
	cap, ok := f.registry.Get(model)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotSupported, model)
	}

	p, ok := f.providers[cap.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s (required by model %s)", ErrProviderNotFound, cap.Provider, model)
	}

	return p, nil
}

func (f *Factory) GetConfig(providerType models.ProviderType) (*Config, bool) {
	cfg, ok := f.configs[providerType]
	return cfg, ok
}
