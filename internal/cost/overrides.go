package cost

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalPricing holds user-supplied prices that win over the built-in tables.
type LocalPricing struct {
	UpdatedAt time.Time                     `json:"updated_at"`
	Source    string                        `json:"source"`
	Image     map[string]map[string]float64 `json:"image"`
	Text      map[string]TextRate           `json:"text,omitempty"`
}

// ImagePrice is nil-safe so a calculator without overrides needs no checks.
func (p *LocalPricing) ImagePrice(model, size, quality string) (float64, bool) {
	if p == nil {
		return 0, false
	}
	modelPricing, ok := p.Image[model]
	if !ok {
		return 0, false
	}
	price, ok := modelPricing[buildPriceKey(model, size, quality)]
	return price, ok
}

func (p *LocalPricing) TextRate(model string) (TextRate, bool) {
	if p == nil {
		return TextRate{}, false
	}
	rate, ok := p.Text[model]
	return rate, ok
}

func SavePricing(path string, pricing *LocalPricing) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create pricing directory: %w", err)
	}

	data, err := json.MarshalIndent(pricing, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pricing: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write pricing file: %w", err)
	}

	return nil
}

// LoadPricing returns nil without error when no override file exists.
func LoadPricing(path string) (*LocalPricing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read pricing file: %w", err)
	}

	var pricing LocalPricing
	if err := json.Unmarshal(data, &pricing); err != nil {
		return nil, fmt.Errorf("failed to parse pricing file: %w", err)
	}

	return &pricing, nil
}

func DefaultPricingPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".olive", "pricing.json"), nil
}

// SetImagePrice records a per-image price override.
func SetImagePrice(path, model, size, quality string, price float64) error {
	pricing, err := loadOrNew(path)
	if err != nil {
		return err
	}
	if pricing.Image[model] == nil {
		pricing.Image[model] = make(map[string]float64)
	}
	pricing.Image[model][buildPriceKey(model, size, quality)] = price
	pricing.UpdatedAt = time.Now()
	return SavePricing(path, pricing)
}

// SetTextRate records a per-million-token override for a text model.
func SetTextRate(path, model string, rate TextRate) error {
	pricing, err := loadOrNew(path)
	if err != nil {
		return err
	}
	if pricing.Text == nil {
		pricing.Text = make(map[string]TextRate)
	}
	pricing.Text[model] = rate
	pricing.UpdatedAt = time.Now()
	return SavePricing(path, pricing)
}

func loadOrNew(path string) (*LocalPricing, error) {
	pricing, err := LoadPricing(path)
	if err != nil {
		return nil, err
	}
	if pricing == nil {
		pricing = &LocalPricing{}
	}
	if pricing.Image == nil {
		pricing.Image = make(map[string]map[string]float64)
	}
	pricing.Source = "manual"
	return pricing, nil
}

// buildPriceKey turns size and quality into "quality-1024-1024", or
// "1024-1024" for dall-e-2.
func buildPriceKey(model, size, quality string) string {
	normalizedSize := strings.ReplaceAll(size, "x", "-")
	if model == "dall-e-2" {
		return normalizedSize
	}
	return quality + "-" + normalizedSize
}

// ParsePricingKey is the inverse of buildPriceKey.
func ParsePricingKey(key string) (quality, size string) {
	parts := strings.FieldsFunc(key, func(r rune) bool { return r == '-' })
	switch len(parts) {
	case 3:
		return parts[0], parts[1] + "x" + parts[2]
	case 2:
		return "", parts[0] + "x" + parts[1]
	}
	return "", ""
}
