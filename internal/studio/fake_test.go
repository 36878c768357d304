package studio

import (
	"context"
	"fmt"
	"sync"

	"github.com/manash/olive/pkg/models"
)

const pixel = "data:image/png;base64,iVBORw0KGgo="

// fakeDesigner records requests and answers with deterministic results.
// Hooks replace the default behavior per operation.
type fakeDesigner struct {
	mu         sync.Mutex
	designReqs []models.DesignRequest
	varReqs    []models.VariationRequest
	matReqs    []models.MaterialRequest
	styleReqs  []models.StyleRequest

	onAnalyze  func(ctx context.Context, req models.StyleRequest) (*models.StyleProfile, error)
	onGenerate func(ctx context.Context, req models.DesignRequest) (*models.DesignResult, error)
	onVary     func(ctx context.Context, req models.VariationRequest) ([]models.DesignVariation, error)
	onExtract  func(ctx context.Context, req models.MaterialRequest) ([]models.Material, error)
}

func (f *fakeDesigner) AnalyzeStyle(ctx context.Context, req models.StyleRequest) (*models.StyleProfile, error) {
	f.mu.Lock()
	f.styleReqs = append(f.styleReqs, req)
	f.mu.Unlock()
	if f.onAnalyze != nil {
		return f.onAnalyze(ctx, req)
	}
	return &models.StyleProfile{Style: "모던", Mood: "차분함", Colors: []string{"white"}}, nil
}

func (f *fakeDesigner) GenerateDesign(ctx context.Context, req models.DesignRequest) (*models.DesignResult, error) {
	f.mu.Lock()
	f.designReqs = append(f.designReqs, req)
	f.mu.Unlock()
	if f.onGenerate != nil {
		return f.onGenerate(ctx, req)
	}
	return defaultDesign(req), nil
}

func defaultDesign(req models.DesignRequest) *models.DesignResult {
	return &models.DesignResult{
		ImageBase64: pixel,
		Description: fmt.Sprintf("%s #%d", req.Prompt, len(req.Refinements)),
		Prompt:      "render " + req.Prompt,
	}
}

func (f *fakeDesigner) GenerateVariations(ctx context.Context, req models.VariationRequest) ([]models.DesignVariation, error) {
	f.mu.Lock()
	f.varReqs = append(f.varReqs, req)
	f.mu.Unlock()
	if f.onVary != nil {
		return f.onVary(ctx, req)
	}
	vars := make([]models.DesignVariation, req.Count)
	for i := range vars {
		vars[i] = models.DesignVariation{
			ID:          fmt.Sprintf("var-%d", i),
			Label:       fmt.Sprintf("변형 %d", i+1),
			ImageBase64: fmt.Sprintf("data:image/png;base64,dmFy%d", i),
			Description: fmt.Sprintf("variation %d", i),
			DallePrompt: fmt.Sprintf("prompt %d", i),
		}
	}
	return vars, nil
}

func (f *fakeDesigner) ExtractMaterials(ctx context.Context, req models.MaterialRequest) ([]models.Material, error) {
	f.mu.Lock()
	f.matReqs = append(f.matReqs, req)
	f.mu.Unlock()
	if f.onExtract != nil {
		return f.onExtract(ctx, req)
	}
	return []models.Material{
		{Name: "원목 마루", Category: "바닥", SearchKeyword: "원목 마루"},
		{Name: "화이트 도장", Category: "벽"},
	}, nil
}

func (f *fakeDesigner) lastDesignRequest() models.DesignRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.designReqs[len(f.designReqs)-1]
}

type fakeSearch struct {
	result *models.SearchResult
	err    error
}

func (f *fakeSearch) Search(_ context.Context, q models.SearchQuery) (*models.SearchResult, error) {
	return f.result, f.err
}

// gate blocks a fake call until released and signals when it started.
type gate struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGate() *gate {
	return &gate{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) wait(ctx context.Context) error {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
