package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/manash/olive/internal/cost"
)

func newCostCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:       "cost [today|week|month|total|provider]",
		Short:     "Show recorded API spend",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"today", "week", "month", "total", "provider"},
		RunE: func(cmd *cobra.Command, args []string) error {
			period := "total"
			if len(args) == 1 {
				period = strings.ToLower(args[0])
			}
			return runCost(cmd.Context(), app, period, time.Now())
		},
	}
}

func runCost(ctx context.Context, app *App, period string, now time.Time) error {
	if ctx == nil {
		ctx = context.Background()
	}
	path, err := app.LedgerPath()
	if err != nil {
		return err
	}
	ledger, err := cost.OpenLedger(path)
	if err != nil {
		return err
	}
	defer ledger.Close()

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	tomorrow := today.AddDate(0, 0, 1)

	switch period {
	case "today":
		return printRange(ctx, app.Out, ledger, "Today's cost", "today", today, tomorrow)
	case "week":
		return printRange(ctx, app.Out, ledger, "Last 7 days cost", "in the last 7 days", today.AddDate(0, 0, -6), tomorrow)
	case "month":
		return printRange(ctx, app.Out, ledger, "Last 30 days cost", "in the last 30 days", today.AddDate(0, 0, -29), tomorrow)
	case "total":
		summary, err := ledger.Total(ctx)
		if err != nil {
			return err
		}
		if summary.EntryCount == 0 {
			fmt.Fprintln(app.Out, "No costs recorded yet.")
			return nil
		}
		fmt.Fprintf(app.Out, "Total cost: %s (%s call(s), %s image(s))\n",
			usd(summary.TotalCost), humanize.Comma(int64(summary.EntryCount)), humanize.Comma(int64(summary.ImageCount)))
		return nil
	case "provider":
		return printByProvider(ctx, app.Out, ledger)
	default:
		return fmt.Errorf("unknown cost period: %s (use today, week, month, total or provider)", period)
	}
}

func printRange(ctx context.Context, w io.Writer, ledger *cost.Ledger, label, empty string, start, end time.Time) error {
	summary, err := ledger.ByDateRange(ctx, start, end)
	if err != nil {
		return err
	}
	if summary.EntryCount == 0 {
		fmt.Fprintf(w, "No costs recorded %s.\n", empty)
		return nil
	}
	fmt.Fprintf(w, "%s: %s (%s call(s), %s image(s))\n",
		label, usd(summary.TotalCost), humanize.Comma(int64(summary.EntryCount)), humanize.Comma(int64(summary.ImageCount)))
	return nil
}

func printByProvider(ctx context.Context, w io.Writer, ledger *cost.Ledger) error {
	summaries, err := ledger.ByProvider(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No costs recorded yet.")
		return nil
	}

	fmt.Fprintf(w, "%-12s  %-8s  %s\n", "Provider", "Images", "Cost")
	fmt.Fprintln(w, strings.Repeat("-", 35))

	var totalCost float64
	var totalImages int
	for _, ps := range summaries {
		fmt.Fprintf(w, "%-12s  %-8d  %s\n", ps.Provider, ps.ImageCount, usd(ps.TotalCost))
		totalCost += ps.TotalCost
		totalImages += ps.ImageCount
	}

	fmt.Fprintln(w, strings.Repeat("-", 35))
	fmt.Fprintf(w, "%-12s  %-8d  %s\n", "Total", totalImages, usd(totalCost))
	return nil
}

func usd(v float64) string {
	return "$" + humanize.CommafWithDigits(v, 4)
}

func newPriceCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Override the prices used for spend tracking",
		Long: `Price manages pricing.json, whose entries win over the built-in price tables.

Examples:
  olive price list
  olive price image gpt-image-1 1024x1024 medium 0.05
  olive price text claude-sonnet-4-5 3 15`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show the current overrides",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runPriceList(app)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "image <model> <size> <quality> <usd>",
		Short: "Set the per-image price (use \"\" as quality for dall-e-2)",
		Args:  cobra.ExactArgs(4),
		RunE: func(_ *cobra.Command, args []string) error {
			price, err := parsePrice(args[3])
			if err != nil {
				return err
			}
			path, err := cost.DefaultPricingPath()
			if err != nil {
				return err
			}
			if err := cost.SetImagePrice(path, args[0], args[1], args[2], price); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Set %s %s %s to %s per image\n", args[0], args[1], args[2], usd(price))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "text <model> <input-per-1m> <output-per-1m>",
		Short: "Set the per-million-token rates of a text model",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			in, err := parsePrice(args[1])
			if err != nil {
				return err
			}
			out, err := parsePrice(args[2])
			if err != nil {
				return err
			}
			path, err := cost.DefaultPricingPath()
			if err != nil {
				return err
			}
			if err := cost.SetTextRate(path, args[0], cost.TextRate{InputPer1M: in, OutputPer1M: out}); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Set %s to %s in / %s out per 1M tokens\n", args[0], usd(in), usd(out))
			return nil
		},
	})
	return cmd
}

func parsePrice(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	return v, nil
}

func runPriceList(app *App) error {
	path, err := cost.DefaultPricingPath()
	if err != nil {
		return err
	}
	pricing, err := cost.LoadPricing(path)
	if err != nil {
		return err
	}
	if pricing == nil || (len(pricing.Image) == 0 && len(pricing.Text) == 0) {
		fmt.Fprintln(app.Out, "No price overrides.")
		return nil
	}

	for _, model := range sortedKeys(pricing.Image) {
		prices := pricing.Image[model]
		for _, key := range sortedKeys(prices) {
			quality, size := cost.ParsePricingKey(key)
			if quality == "" {
				quality = "-"
			}
			fmt.Fprintf(app.Out, "image  %-14s %-10s %-8s %s\n", model, size, quality, usd(prices[key]))
		}
	}
	for _, model := range sortedKeys(pricing.Text) {
		rate := pricing.Text[model]
		fmt.Fprintf(app.Out, "text   %-14s in %s  out %s\n", model, usd(rate.InputPer1M), usd(rate.OutputPer1M))
	}
	if !pricing.UpdatedAt.IsZero() {
		fmt.Fprintf(app.Out, "Updated %s\n", humanize.Time(pricing.UpdatedAt))
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
