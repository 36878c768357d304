package repl

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/manash/olive/internal/estimate"
	"github.com/manash/olive/internal/studio"
	"github.com/manash/olive/pkg/models"
)

// MaterialsCommand extracts the material list from the current design
type MaterialsCommand struct{}

func (c *MaterialsCommand) Name() string      { return "materials" }
func (c *MaterialsCommand) Aliases() []string { return []string{"mat", "m"} }
func (c *MaterialsCommand) Description() string {
	return "Extract materials from the design (all rooms with 'all')"
}
func (c *MaterialsCommand) Usage() string { return "materials [all|list]" }

func (c *MaterialsCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	sub := ""
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}

	switch sub {
	case "list", "ls":
		printMaterials(r, r.studio.Snapshot().Materials)
		return nil
	case "all":
		fmt.Fprintln(r.out, "Extracting materials for every room...")
		out, err := r.studio.ExtractAllRoomMaterials(ctx)
		if err != nil {
			return err
		}
		printMaterials(r, out.Materials)
		if len(out.Failed) > 0 {
			fmt.Fprintf(r.out, "Failed: %s\n", strings.Join(out.Failed, ", "))
		}
		r.printSteps()
		return nil
	case "":
	default:
		return fmt.Errorf("usage: %s", c.Usage())
	}

	roomID, err := r.target()
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Extracting materials...")
	var mats []models.Material
	if roomID == "" {
		mats, err = r.studio.ExtractMaterials(ctx)
	} else {
		mats, err = r.studio.ExtractRoomMaterials(ctx, roomID)
	}
	if err != nil {
		return err
	}
	printMaterials(r, mats)
	r.printSteps()
	return nil
}

func printMaterials(r *REPL, mats []models.Material) {
	if len(mats) == 0 {
		fmt.Fprintln(r.out, "No materials")
		return
	}
	fmt.Fprintf(r.out, "%-4s  %-20s  %-10s  %-20s  %s\n", "#", "Name", "Category", "Spec", "Search")
	fmt.Fprintln(r.out, strings.Repeat("-", 80))
	for i, m := range mats {
		fmt.Fprintf(r.out, "%-4d  %-20s  %-10s  %-20s  %s\n",
			i+1, truncate(m.Name, 20), truncate(m.Category, 10), truncate(m.EstimatedSpec, 20), m.SearchKeyword)
	}
}

// SearchCommand queries the shopping search
type SearchCommand struct{}

func (c *SearchCommand) Name() string        { return "search" }
func (c *SearchCommand) Aliases() []string   { return []string{"find"} }
func (c *SearchCommand) Description() string { return "Search products; a material number searches its keyword" }
func (c *SearchCommand) Usage() string       { return "search <query|#material>" }

func (c *SearchCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	query := strings.Join(args, " ")
	if ref, ok := strings.CutPrefix(query, "#"); ok {
		n, err := parseIndex([]string{ref})
		if err != nil {
			return err
		}
		mats := r.studio.Snapshot().Materials
		if n >= len(mats) {
			return fmt.Errorf("%w: material %d", studio.ErrInvalidIndex, n+1)
		}
		query = mats[n].SearchKeyword
		if query == "" {
			query = mats[n].Name
		}
	}

	res, err := r.studio.Search(ctx, models.SearchQuery{Query: query})
	if err != nil {
		return err
	}
	r.results = res.Items
	if len(res.Items) == 0 {
		fmt.Fprintf(r.out, "No results for %q\n", query)
		return nil
	}

	for i, item := range res.Items {
		row := estimate.FromSearchItem(item)
		fmt.Fprintf(r.out, "  [%d] %s  %s원  (%s)\n",
			i+1, truncate(row.Name, 50), estimate.FormatWon(estimate.UnitPrice(row)), item.MallName)
	}
	fmt.Fprintf(r.out, "%d of %d results. Use 'pick <n>' to add one to the estimate.\n", len(res.Items), res.Total)
	return nil
}

func (r *REPL) result(args []string) (models.ShopItem, error) {
	n, err := parseIndex(args)
	if err != nil {
		return models.ShopItem{}, err
	}
	if n >= len(r.results) {
		return models.ShopItem{}, fmt.Errorf("%w: result %d", studio.ErrInvalidIndex, n+1)
	}
	return r.results[n], nil
}

// PickCommand adds a search result to the estimate
type PickCommand struct{}

func (c *PickCommand) Name() string        { return "pick" }
func (c *PickCommand) Aliases() []string   { return nil }
func (c *PickCommand) Description() string { return "Add a search result to the estimate" }
func (c *PickCommand) Usage() string       { return "pick <n>" }

func (c *PickCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	item, err := r.result(args)
	if err != nil {
		return err
	}
	row, err := r.studio.AddSearchItem(ctx, item)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Added: %s  %s원\n", row.Name, estimate.FormatWon(estimate.UnitPrice(row)))
	return nil
}

// ThumbCommand shows a search result's product image
type ThumbCommand struct{}

func (c *ThumbCommand) Name() string        { return "thumb" }
func (c *ThumbCommand) Aliases() []string   { return nil }
func (c *ThumbCommand) Description() string { return "Show the product image of a search result" }
func (c *ThumbCommand) Usage() string       { return "thumb <n>" }

func (c *ThumbCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if r.displayer == nil {
		return fmt.Errorf("terminal cannot display images")
	}
	item, err := r.result(args)
	if err != nil {
		return err
	}
	if item.Image == "" {
		return fmt.Errorf("result has no image")
	}
	data, err := r.saver.DownloadThumbnail(ctx, item.Image)
	if err != nil {
		return fmt.Errorf("failed to fetch image: %w", err)
	}
	if err := r.displayer.ShowBytes(data); err != nil {
		return err
	}
	fmt.Fprintln(r.out)
	return nil
}

// RowCommand edits the estimate rows
type RowCommand struct{}

func (c *RowCommand) Name() string        { return "row" }
func (c *RowCommand) Aliases() []string   { return []string{"rows", "est"} }
func (c *RowCommand) Description() string { return "Edit estimate rows (list, add, set, qty, rm)" }
func (c *RowCommand) Usage() string {
	return "row <list|add <name> <price> [qty]|set <n> <name> <price> <qty>|qty <n> <qty>|rm <n>>"
}

func (c *RowCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		return c.list(r)
	}

	subArgs := args[1:]
	switch strings.ToLower(args[0]) {
	case "list", "ls":
		return c.list(r)
	case "add":
		if len(subArgs) < 2 {
			return fmt.Errorf("usage: row add <name> <price> [qty]")
		}
		row := models.EstimateRow{Name: subArgs[0], Price: subArgs[1], Qty: 1}
		if len(subArgs) > 2 {
			qty, err := strconv.Atoi(subArgs[2])
			if err != nil {
				return fmt.Errorf("invalid quantity: %s", subArgs[2])
			}
			row.Qty = qty
		}
		return r.studio.AddEstimateRow(ctx, row)
	case "set":
		if len(subArgs) < 4 {
			return fmt.Errorf("usage: row set <n> <name> <price> <qty>")
		}
		n, err := parseIndex(subArgs)
		if err != nil {
			return err
		}
		qty, err := strconv.Atoi(subArgs[3])
		if err != nil {
			return fmt.Errorf("invalid quantity: %s", subArgs[3])
		}
		return r.studio.UpdateEstimateRow(ctx, n, models.EstimateRow{Name: subArgs[1], Price: subArgs[2], Qty: qty})
	case "qty":
		if len(subArgs) < 2 {
			return fmt.Errorf("usage: row qty <n> <qty>")
		}
		n, err := parseIndex(subArgs)
		if err != nil {
			return err
		}
		qty, err := strconv.Atoi(subArgs[1])
		if err != nil {
			return fmt.Errorf("invalid quantity: %s", subArgs[1])
		}
		rows := r.studio.Snapshot().EstimateRows
		if n >= len(rows) {
			return fmt.Errorf("%w: row %d", studio.ErrInvalidIndex, n+1)
		}
		row := rows[n]
		row.Qty = qty
		return r.studio.UpdateEstimateRow(ctx, n, row)
	case "rm", "remove":
		n, err := parseIndex(subArgs)
		if err != nil {
			return err
		}
		return r.studio.RemoveEstimateRow(ctx, n)
	default:
		return fmt.Errorf("unknown row command: %s", args[0])
	}
}

func (c *RowCommand) list(r *REPL) error {
	rows := r.studio.Snapshot().EstimateRows
	if len(rows) == 0 {
		fmt.Fprintln(r.out, "No estimate rows")
		return nil
	}
	fmt.Fprintf(r.out, "%-4s  %-30s  %12s  %4s  %14s\n", "#", "Item", "Unit", "Qty", "Total")
	fmt.Fprintln(r.out, strings.Repeat("-", 72))
	for i, row := range rows {
		fmt.Fprintf(r.out, "%-4d  %-30s  %12s  %4d  %14s\n",
			i+1, truncate(row.Name, 30),
			estimate.FormatWon(estimate.UnitPrice(row)), row.Qty,
			estimate.FormatWon(estimate.RowTotal(row)))
	}
	fmt.Fprintln(r.out, strings.Repeat("-", 72))
	fmt.Fprintf(r.out, "%-4s  %-30s  %12s  %4s  %14s\n", "", "합계", "", "", estimate.FormatWon(estimate.GrandTotal(rows)))
	return nil
}

// CustomerCommand sets the customer named on exported documents
type CustomerCommand struct{}

func (c *CustomerCommand) Name() string        { return "customer" }
func (c *CustomerCommand) Aliases() []string   { return nil }
func (c *CustomerCommand) Description() string { return "Get or set the customer name" }
func (c *CustomerCommand) Usage() string       { return "customer [name]" }

func (c *CustomerCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(r.out, "Customer: %s\n", r.studio.Snapshot().CustomerName)
		return nil
	}
	return r.studio.SetCustomerName(ctx, strings.Join(args, " "))
}

// ExportCommand writes the estimate or construction plan document
type ExportCommand struct{}

func (c *ExportCommand) Name() string        { return "export" }
func (c *ExportCommand) Aliases() []string   { return nil }
func (c *ExportCommand) Description() string { return "Export the estimate or construction plan as HTML" }
func (c *ExportCommand) Usage() string       { return "export <estimate|construction>" }

func (c *ExportCommand) Execute(_ context.Context, r *REPL, args []string) error {
	kind := "estimate"
	if len(args) > 0 {
		kind = strings.ToLower(args[0])
	}

	var (
		buf  bytes.Buffer
		name string
		err  error
	)
	switch kind {
	case "estimate", "est":
		name, err = r.studio.ExportEstimate(&buf)
	case "construction", "plan":
		name, err = r.studio.ExportConstruction(&buf)
	default:
		return fmt.Errorf("usage: %s", c.Usage())
	}
	if err != nil {
		return err
	}

	path := filepath.Join(r.exportDir, name)
	if r.exportDir != "" {
		if err := os.MkdirAll(r.exportDir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(r.out, "Exported: %s\n", path)
	return nil
}
