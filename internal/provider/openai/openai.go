package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/manash/olive/internal/cost"
	"github.com/manash/olive/internal/metrics"
	"github.com/manash/olive/internal/provider"
	"github.com/manash/olive/pkg/models"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 120 * time.Second
)

type Provider struct {
	client     *goopenai.Client
	registry   *models.ModelRegistry
	calculator *cost.Calculator
}

func New(cfg *provider.Config, registry *models.ModelRegistry) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, provider.ErrAPIKeyRequired
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = defaultBaseURL
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = provider.NewHTTPClient(cfg, defaultTimeout)

	return &Provider{
		client:     goopenai.NewClientWithConfig(clientCfg),
		registry:   registry,
		calculator: cost.NewCalculator(),
	}, nil
}

// WithCalculator replaces the price table used to attach cost to responses.
func (p *Provider) WithCalculator(c *cost.Calculator) *Provider {
	p.calculator = c
	return p
}

func (p *Provider) Name() models.ProviderType {
	return models.ProviderOpenAI
}

func (p *Provider) SupportsModel(model string) bool {
	cap, ok := p.registry.Get(model)
	if !ok {
		return false
	}
	return cap.Provider == models.ProviderOpenAI
}

func (p *Provider) ListModels() []string {
	return p.registry.ListByProvider(models.ProviderOpenAI)
}

func (p *Provider) Generate(ctx context.Context, req *models.Request) (*models.Response, error) {
	cap, ok := p.registry.Get(req.Model)
	if !ok || cap.Provider != models.ProviderOpenAI {
		return nil, fmt.Errorf("%w: %s", provider.ErrModelNotSupported, req.Model)
	}
	cap.ApplyDefaults(req)
	if err := cap.Validate(req); err != nil {
		return nil, err
	}

	resp, err := p.client.CreateImage(ctx, buildAPIRequest(req))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", provider.ErrGenerationFailed, mapError(err))
	}

	out, err := buildResponse(resp)
	if err != nil {
		return nil, err
	}
	if len(out.Images) == 0 {
		return nil, fmt.Errorf("%w: %w", provider.ErrGenerationFailed, provider.ErrEmptyResponse)
	}

	out.Cost = p.calculator.Calculate(models.ProviderOpenAI, req.Model, req.Size, req.Quality, len(out.Images))
	metrics.Spend(string(models.ProviderOpenAI), req.Model, out.Cost.Total)
	return out, nil
}

func buildAPIRequest(req *models.Request) goopenai.ImageRequest {
	apiReq := goopenai.ImageRequest{
		Model:   req.Model,
		Prompt:  req.Prompt,
		N:       req.Count,
		Size:    req.Size,
		Quality: req.Quality,
	}

	switch req.Model {
	case "dall-e-3":
		apiReq.ResponseFormat = goopenai.CreateImageResponseFormatB64JSON
		apiReq.Style = req.Style
	case "dall-e-2":
		apiReq.ResponseFormat = goopenai.CreateImageResponseFormatB64JSON
	}
	// gpt-image-1 always answers with b64_json and rejects response_format.

	return apiReq
}

func buildResponse(apiResp goopenai.ImageResponse) (*models.Response, error) {
	response := &models.Response{
		Images: make([]models.GeneratedImage, 0, len(apiResp.Data)),
	}

	for i, data := range apiResp.Data {
		if data.B64JSON == "" {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(data.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image %d: %w", i, err)
		}

		if len(response.Images) == 0 && data.RevisedPrompt != "" {
			response.RevisedPrompt = data.RevisedPrompt
		}

		response.Images = append(response.Images, models.GeneratedImage{
			Index:  len(response.Images),
			Base64: data.B64JSON,
			Data:   decoded,
		})
	}

	return response, nil
}

// mapError turns client errors carrying an HTTP status into a StatusError.
func mapError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &provider.StatusError{Code: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &provider.StatusError{Code: reqErr.HTTPStatusCode, Message: reqErr.HTTPStatus}
	}
	return err
}
