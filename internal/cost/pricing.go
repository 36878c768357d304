package cost

import "strings"

// OpenAI Image Generation Pricing (USD per image)
// Source: https://openai.com/api/pricing/

type PricingKey struct {
	Model   string
	Size    string
	Quality string
}

var openAIPricing = map[PricingKey]float64{
	{Model: "gpt-image-1", Size: "1024x1024", Quality: "low"}:    0.011,
	{Model: "gpt-image-1", Size: "1024x1024", Quality: "medium"}: 0.042,
	{Model: "gpt-image-1", Size: "1024x1024", Quality: "high"}:   0.167,
	{Model: "gpt-image-1", Size: "1024x1024", Quality: "auto"}:   0.042,

	{Model: "dall-e-3", Size: "1024x1024", Quality: "standard"}: 0.040,
	{Model: "dall-e-3", Size: "1024x1024", Quality: "hd"}:       0.080,
	{Model: "dall-e-3", Size: "1024x1792", Quality: "standard"}: 0.080,
	{Model: "dall-e-3", Size: "1024x1792", Quality: "hd"}:       0.120,
	{Model: "dall-e-3", Size: "1792x1024", Quality: "standard"}: 0.080,
	{Model: "dall-e-3", Size: "1792x1024", Quality: "hd"}:       0.120,

	{Model: "dall-e-2", Size: "256x256", Quality: ""}:   0.016,
	{Model: "dall-e-2", Size: "512x512", Quality: ""}:   0.018,
	{Model: "dall-e-2", Size: "1024x1024", Quality: ""}: 0.020,
}

func GetOpenAIPrice(model, size, quality string) (float64, bool) {
	key := PricingKey{Model: model, Size: size, Quality: quality}
	price, ok := openAIPricing[key]
	return price, ok
}

// TextRate is a per-million-token price pair in USD.
type TextRate struct {
	InputPer1M  float64 `json:"input_per_1m"`
	OutputPer1M float64 `json:"output_per_1m"`
}

// Anthropic pricing by model family. Dated snapshots resolve to their
// family by prefix.
var textPricing = map[string]TextRate{
	"claude-sonnet-4": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-haiku-4":  {InputPer1M: 1.00, OutputPer1M: 5.00},
	"claude-opus-4":   {InputPer1M: 15.00, OutputPer1M: 75.00},
}

var defaultTextRate = textPricing["claude-haiku-4"]

func GetTextRate(model string) (TextRate, bool) {
	if rate, ok := textPricing[model]; ok {
		return rate, true
	}
	best := ""
	for family := range textPricing {
		if strings.HasPrefix(model, family) && len(family) > len(best) {
			best = family
		}
	}
	if best == "" {
		return TextRate{}, false
	}
	return textPricing[best], true
}
