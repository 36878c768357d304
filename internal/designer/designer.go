// Package designer turns a multimodal text model and an image generator
// into the style, design, variation and material collaborators.
package designer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/manash/olive/internal/cost"
	"github.com/manash/olive/internal/decode"
	"github.com/manash/olive/internal/image"
	"github.com/manash/olive/internal/metrics"
	"github.com/manash/olive/internal/provider"
	"github.com/manash/olive/pkg/models"
)

const (
	DefaultVisionModel = "claude-sonnet-4-5-20250929"
	DefaultFastModel   = "claude-haiku-4-5-20251001"
	DefaultImageModel  = "dall-e-3"

	MinVariations = 2
	MaxVariations = 3

	renderSize = "1024x1024"
)

var (
	ErrNoVariations    = errors.New("variation prompt generation returned no usable variations")
	ErrNoMaterials     = errors.New("material extraction returned no materials")
	ErrInvalidProfile  = errors.New("style profile is incomplete")
	ErrInvalidResponse = errors.New("could not read model response")
)

// Models names the model used for each kind of call. Vision handles style
// analysis where quality matters; Fast handles prompt writing, captions and
// structured extraction.
type Models struct {
	Vision string
	Fast   string
	Image  string
}

func (m Models) withDefaults() Models {
	if m.Vision == "" {
		m.Vision = DefaultVisionModel
	}
	if m.Fast == "" {
		m.Fast = DefaultFastModel
	}
	if m.Image == "" {
		m.Image = DefaultImageModel
	}
	return m
}

type Options struct {
	Models     Models
	Recorder   cost.Recorder
	Calculator *cost.Calculator
	Logger     *slog.Logger
	Now        func() time.Time
}

type Designer struct {
	text     provider.TextModel
	images   provider.ImageGenerator
	models   Models
	recorder cost.Recorder
	calc     *cost.Calculator
	logger   *slog.Logger
	now      func() time.Time
	validate *validator.Validate
}

var _ provider.Designer = (*Designer)(nil)

func New(text provider.TextModel, images provider.ImageGenerator, opts Options) *Designer {
	d := &Designer{
		text:     text,
		images:   images,
		models:   opts.Models.withDefaults(),
		recorder: opts.Recorder,
		calc:     opts.Calculator,
		logger:   opts.Logger,
		now:      opts.Now,
		validate: validator.New(),
	}
	if d.calc == nil {
		d.calc = cost.NewCalculator()
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

func (d *Designer) Models() Models {
	return d.models
}

func (d *Designer) AnalyzeStyle(ctx context.Context, req models.StyleRequest) (*models.StyleProfile, error) {
	if len(req.Images) == 0 {
		return nil, models.ErrNoImages
	}
	if len(req.Images) > models.MaxUploads {
		return nil, fmt.Errorf("%w: max %d, got %d", models.ErrTooManyImages, models.MaxUploads, len(req.Images))
	}

	parts := make([]provider.Part, 0, len(req.Images)+1)
	for i, uri := range req.Images {
		mediaType, payload, err := image.ParseDataURI(uri)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		parts = append(parts, provider.Part{ImageBase64: payload, MediaType: mediaType})
	}
	parts = append(parts, provider.TextPart(buildStylePrompt(req.Text)))

	text, err := d.complete(ctx, "style", d.models.Vision, 2000, parts)
	if err != nil {
		return nil, err
	}

	var profile models.StyleProfile
	if err := decode.Object(text, &profile); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	if err := d.validate.Struct(profile); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	return &profile, nil
}

// GenerateDesign writes an image prompt from the room description, renders
// it and captions the render. With refinements and a previous description
// the prompt modifies the earlier design instead of starting fresh.
func (d *Designer) GenerateDesign(ctx context.Context, req models.DesignRequest) (*models.DesignResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, models.ErrEmptyPrompt
	}

	promptText := buildFreshPrompt(req.Prompt, req.StyleProfile)
	if req.IsRefinement() {
		promptText = buildModifyPrompt(req)
	}

	dallePrompt, err := d.complete(ctx, "design.prompt", d.models.Fast, 500, []provider.Part{provider.TextPart(promptText)})
	if err != nil {
		return nil, err
	}
	dallePrompt = strings.TrimSpace(dallePrompt)

	b64, err := d.render(ctx, "design.image", dallePrompt)
	if err != nil {
		return nil, err
	}

	description, err := d.complete(ctx, "design.describe", d.models.Fast, 1000, []provider.Part{
		{ImageBase64: b64, MediaType: "image/png"},
		provider.TextPart(buildDescribePrompt(req.Prompt, req.StyleProfile)),
	})
	if err != nil {
		return nil, err
	}

	return &models.DesignResult{
		ImageBase64: image.EncodeDataURI("image/png", b64),
		Description: strings.TrimSpace(description),
		Prompt:      dallePrompt,
	}, nil
}

type variationPrompt struct {
	Label       string `json:"label"`
	DallePrompt string `json:"dallePrompt"`
}

// ClampVariations maps a requested count into [MinVariations, MaxVariations].
// Zero or negative counts mean the minimum.
func ClampVariations(count int) int {
	return min(max(count, MinVariations), MaxVariations)
}

func (d *Designer) GenerateVariations(ctx context.Context, req models.VariationRequest) ([]models.DesignVariation, error) {
	count := ClampVariations(req.Count)

	raw, err := d.complete(ctx, "variations.prompt", d.models.Fast, 2000, []provider.Part{
		provider.TextPart(buildVariationPrompt(req, count)),
	})
	if err != nil {
		return nil, err
	}

	var decoded []variationPrompt
	if err := decode.Array(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	prompts := make([]variationPrompt, 0, len(decoded))
	for _, p := range decoded {
		if strings.TrimSpace(p.DallePrompt) != "" {
			prompts = append(prompts, p)
		}
	}
	if len(prompts) == 0 {
		return nil, ErrNoVariations
	}

	stamp := d.now().UnixMilli()
	out := make([]models.DesignVariation, len(prompts))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range prompts {
		g.Go(func() error {
			b64, err := d.render(gctx, "variations.image", p.DallePrompt)
			if err != nil {
				return fmt.Errorf("variation %d: %w", i+1, err)
			}
			desc, err := d.complete(gctx, "variations.describe", d.models.Fast, 300, []provider.Part{
				{ImageBase64: b64, MediaType: "image/png"},
				provider.TextPart(buildVariationDescribePrompt(p.Label)),
			})
			if err != nil {
				return fmt.Errorf("variation %d: %w", i+1, err)
			}
			out[i] = models.DesignVariation{
				ID:          fmt.Sprintf("var-%d-%d", stamp, i),
				Label:       p.Label,
				ImageBase64: image.EncodeDataURI("image/png", b64),
				Description: strings.TrimSpace(desc),
				DallePrompt: p.DallePrompt,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ExtractMaterials lists construction materials visible in a render. The
// prompt asks for 5 to 15 items; any non-empty list is accepted.
func (d *Designer) ExtractMaterials(ctx context.Context, req models.MaterialRequest) ([]models.Material, error) {
	if req.ImageBase64 == "" {
		return nil, models.ErrNoDesignResult
	}
	mediaType, payload, err := image.ParseDataURI(req.ImageBase64)
	if err != nil {
		return nil, err
	}

	raw, err := d.complete(ctx, "materials", d.models.Fast, 2000, []provider.Part{
		{ImageBase64: payload, MediaType: mediaType},
		provider.TextPart(buildMaterialPrompt(req.Description)),
	})
	if err != nil {
		return nil, err
	}

	var decoded []models.Material
	if err := decode.Array(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	materials := make([]models.Material, 0, len(decoded))
	for _, m := range decoded {
		if strings.TrimSpace(m.Name) != "" {
			materials = append(materials, m)
		}
	}
	if len(materials) == 0 {
		return nil, ErrNoMaterials
	}
	return materials, nil
}

func (d *Designer) complete(ctx context.Context, op, model string, maxTokens int, parts []provider.Part) (string, error) {
	resp, err := d.text.Complete(ctx, &provider.TextRequest{
		Model:     model,
		Parts:     parts,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}

	spend := d.calc.CalculateText(resp.Model, resp.InputTokens, resp.OutputTokens)
	d.record(ctx, cost.Entry{
		Operation:    op,
		Provider:     string(models.ProviderAnthropic),
		Model:        resp.Model,
		Cost:         spend.Total,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	})
	return resp.Text, nil
}

// render returns the base64 payload of a single square render.
func (d *Designer) render(ctx context.Context, op, prompt string) (string, error) {
	req := models.NewRequest(prompt)
	req.Model = d.models.Image
	req.Size = renderSize

	resp, err := d.images.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Images) == 0 || resp.Images[0].Base64 == "" {
		return "", provider.ErrEmptyResponse
	}

	entry := cost.Entry{
		Operation:  op,
		Provider:   string(d.images.Name()),
		Model:      req.Model,
		ImageCount: len(resp.Images),
	}
	if resp.Cost != nil {
		entry.Cost = resp.Cost.Total
	}
	d.record(ctx, entry)
	return resp.Images[0].Base64, nil
}

func (d *Designer) record(ctx context.Context, e cost.Entry) {
	if e.Provider == string(models.ProviderAnthropic) {
		metrics.Spend(e.Provider, e.Model, e.Cost)
	}
	if d.recorder == nil {
		return
	}
	e.Timestamp = d.now()
	if err := d.recorder.Record(ctx, e); err != nil {
		d.logger.Warn("failed to record spend", "operation", e.Operation, "error", err)
	}
}
