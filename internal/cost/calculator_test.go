package cost

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/manash/olive/pkg/models"
)

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCalculator_Calculate(t *testing.T) {
	calc := NewCalculator()

	tests := []struct {
		name     string
		provider models.ProviderType
		model    string
		size     string
		quality  string
		count    int
		expected float64
	}{
		{"dall-e-3 standard", models.ProviderOpenAI, "dall-e-3", "1024x1024", "standard", 1, 0.040},
		{"dall-e-3 hd wide", models.ProviderOpenAI, "dall-e-3", "1792x1024", "hd", 1, 0.120},
		{"dall-e-2 ignores quality", models.ProviderOpenAI, "dall-e-2", "512x512", "standard", 5, 0.090},
		{"gpt-image-1 high", models.ProviderOpenAI, "gpt-image-1", "1024x1024", "high", 2, 0.334},
		{"gpt-image-1 fallback", models.ProviderOpenAI, "gpt-image-1", "1536x1024", "medium", 1, 0.042},
		{"unknown model", models.ProviderOpenAI, "mystery", "1024x1024", "", 1, 0},
		{"non-image provider", models.ProviderAnthropic, "dall-e-3", "1024x1024", "standard", 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Calculate(tt.provider, tt.model, tt.size, tt.quality, tt.count)
			if !floatEquals(got.Total, tt.expected) {
				t.Errorf("Total = %.4f, want %.4f", got.Total, tt.expected)
			}
			if got.Currency != CurrencyUSD {
				t.Errorf("Currency = %s, want %s", got.Currency, CurrencyUSD)
			}
		})
	}
}

func TestCalculator_CalculateText(t *testing.T) {
	calc := NewCalculator()

	tests := []struct {
		name     string
		model    string
		in, out  int
		expected float64
	}{
		{"sonnet snapshot", "claude-sonnet-4-5-20250929", 1_000_000, 100_000, 3.00 + 1.50},
		{"haiku snapshot", "claude-haiku-4-5-20251001", 2000, 1000, 0.002 + 0.005},
		{"unknown uses fast tier", "some-model", 1_000_000, 0, 1.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.CalculateText(tt.model, tt.in, tt.out)
			if !floatEquals(got.Total, tt.expected) {
				t.Errorf("Total = %.6f, want %.6f", got.Total, tt.expected)
			}
		})
	}
}

func TestGetTextRate(t *testing.T) {
	if _, ok := GetTextRate("gpt-4o"); ok {
		t.Error("GetTextRate(gpt-4o) should not match")
	}
	rate, ok := GetTextRate("claude-opus-4-1")
	if !ok || rate.InputPer1M != 15.00 {
		t.Errorf("GetTextRate(claude-opus-4-1) = %+v, %v", rate, ok)
	}
}

func TestOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.json")

	if p, err := LoadPricing(path); err != nil || p != nil {
		t.Fatalf("LoadPricing(missing) = %v, %v; want nil, nil", p, err)
	}

	if err := SetImagePrice(path, "dall-e-3", "1024x1024", "standard", 0.05); err != nil {
		t.Fatalf("SetImagePrice() error = %v", err)
	}
	if err := SetTextRate(path, "claude-haiku-4-5", TextRate{InputPer1M: 2, OutputPer1M: 4}); err != nil {
		t.Fatalf("SetTextRate() error = %v", err)
	}

	p, err := LoadPricing(path)
	if err != nil {
		t.Fatalf("LoadPricing() error = %v", err)
	}
	if p.Source != "manual" {
		t.Errorf("Source = %q, want manual", p.Source)
	}

	calc := NewCalculatorWithOverrides(p)
	if got := calc.Calculate(models.ProviderOpenAI, "dall-e-3", "1024x1024", "standard", 2); !floatEquals(got.Total, 0.10) {
		t.Errorf("overridden image Total = %.4f, want 0.10", got.Total)
	}
	if got := calc.CalculateText("claude-haiku-4-5", 1_000_000, 1_000_000); !floatEquals(got.Total, 6) {
		t.Errorf("overridden text Total = %.4f, want 6", got.Total)
	}
	if got := calc.Calculate(models.ProviderOpenAI, "dall-e-3", "1024x1024", "hd", 1); !floatEquals(got.Total, 0.08) {
		t.Errorf("non-overridden Total = %.4f, want built-in 0.08", got.Total)
	}
}

func TestPricingKey(t *testing.T) {
	tests := []struct {
		model, size, quality string
		key                  string
	}{
		{"dall-e-3", "1024x1792", "hd", "hd-1024-1792"},
		{"dall-e-2", "512x512", "", "512-512"},
	}
	for _, tt := range tests {
		key := buildPriceKey(tt.model, tt.size, tt.quality)
		if key != tt.key {
			t.Errorf("buildPriceKey() = %s, want %s", key, tt.key)
		}
		q, s := ParsePricingKey(key)
		if q != tt.quality || s != tt.size {
			t.Errorf("ParsePricingKey(%s) = %s, %s", key, q, s)
		}
	}
}

func TestLedger(t *testing.T) {
	ctx := context.Background()
	ledger, err := OpenLedger(filepath.Join(t.TempDir(), "olive.db"))
	if err != nil {
		t.Fatalf("OpenLedger() error = %v", err)
	}
	defer ledger.Close()

	now := time.Now()
	entries := []Entry{
		{Operation: "design", Provider: "openai", Model: "dall-e-3", Cost: 0.04, ImageCount: 1, Timestamp: now},
		{Operation: "design", Provider: "anthropic", Model: "claude-haiku-4-5", Cost: 0.002, InputTokens: 900, OutputTokens: 200, Timestamp: now},
		{Operation: "variations", Provider: "openai", Model: "dall-e-3", Cost: 0.08, ImageCount: 2, Timestamp: now.Add(-48 * time.Hour)},
	}
	for _, e := range entries {
		if err := ledger.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	total, err := ledger.Total(ctx)
	if err != nil {
		t.Fatalf("Total() error = %v", err)
	}
	if total.EntryCount != 3 || total.ImageCount != 3 || !floatEquals(total.TotalCost, 0.122) {
		t.Errorf("Total() = %+v", total)
	}

	recent, err := ledger.ByDateRange(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("ByDateRange() error = %v", err)
	}
	if recent.EntryCount != 2 {
		t.Errorf("ByDateRange() EntryCount = %d, want 2", recent.EntryCount)
	}

	byProvider, err := ledger.ByProvider(ctx)
	if err != nil {
		t.Fatalf("ByProvider() error = %v", err)
	}
	if len(byProvider) != 2 || byProvider[0].Provider != "anthropic" || byProvider[1].ImageCount != 3 {
		t.Errorf("ByProvider() = %+v", byProvider)
	}
}

func TestMemoryRecorder(t *testing.T) {
	var rec MemoryRecorder
	rec.Record(context.Background(), Entry{Cost: 0.04})
	rec.Record(context.Background(), Entry{Cost: 0.01})

	if len(rec.Entries()) != 2 || !floatEquals(rec.Total(), 0.05) {
		t.Errorf("MemoryRecorder = %+v", rec.Entries())
	}
}
