package cost

import "github.com/manash/olive/pkg/models"

const (
	CurrencyUSD = "USD"
)

type Calculator struct {
	overrides *LocalPricing
}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// NewCalculatorWithOverrides prefers prices from p over the built-in table.
func NewCalculatorWithOverrides(p *LocalPricing) *Calculator {
	return &Calculator{overrides: p}
}

func (c *Calculator) Calculate(provider models.ProviderType, model, size, quality string, count int) *models.CostInfo {
	var perImage float64

	switch provider {
	case models.ProviderOpenAI:
		perImage = c.calculateOpenAI(model, size, quality)
	default:
		perImage = 0
	}

	return &models.CostInfo{
		PerImage: perImage,
		Total:    perImage * float64(count),
		Currency: CurrencyUSD,
	}
}

func (c *Calculator) calculateOpenAI(model, size, quality string) float64 {
	if price, ok := c.overrides.ImagePrice(model, size, quality); ok {
		return price
	}

	price, ok := GetOpenAIPrice(model, size, quality)
	if ok {
		return price
	}

	// dall-e-2 has no quality tiers
	if model == "dall-e-2" {
		price, ok = GetOpenAIPrice(model, size, "")
		if ok {
			return price
		}
	}

	switch model {
	case "gpt-image-1":
		return 0.042
	case "dall-e-3":
		return 0.040
	case "dall-e-2":
		return 0.020
	default:
		return 0
	}
}

// CalculateText prices one text completion from its token usage.
// Unknown models fall back to the fast tier.
func (c *Calculator) CalculateText(model string, inputTokens, outputTokens int) *models.CostInfo {
	rate, ok := c.overrides.TextRate(model)
	if !ok {
		rate, ok = GetTextRate(model)
	}
	if !ok {
		rate = defaultTextRate
	}

	inputCost := (float64(inputTokens) / 1_000_000) * rate.InputPer1M
	outputCost := (float64(outputTokens) / 1_000_000) * rate.OutputPer1M
	total := inputCost + outputCost

	return &models.CostInfo{
		PerImage: total,
		Total:    total,
		Currency: CurrencyUSD,
	}
}
