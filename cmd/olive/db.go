package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/manash/olive/internal/config"
	"github.com/manash/olive/internal/cost"
	"github.com/manash/olive/internal/logging"
	"github.com/manash/olive/internal/wizard"
)

var flagBackup bool

func newDBCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect or reset the saved session",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show where the session is stored and what it holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDBInfo(cmd.Context(), app)
		},
	})

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard the saved session (spend history is kept)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDBReset(cmd.Context(), app)
		},
	}
	resetCmd.Flags().BoolVar(&flagBackup, "backup", false, "copy the sqlite database aside first")
	cmd.AddCommand(resetCmd)

	return cmd
}

func runDBInfo(ctx context.Context, app *App) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path, err := storePath(cfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(app.Out, "Store driver: %s\n", cfg.Store.Driver)
	if cfg.Store.Driver == config.DriverMemory {
		fmt.Fprintln(app.Out, "Sessions are not persisted with the memory driver.")
		return nil
	}
	fmt.Fprintf(app.Out, "Store location: %s\n", path)
	size, err := diskUsage(path)
	if err != nil {
		fmt.Fprintln(app.Out, "Store does not exist yet.")
		return nil
	}
	fmt.Fprintf(app.Out, "Store size: %s (quota %s)\n", humanize.Bytes(uint64(size)), humanize.Bytes(uint64(cfg.Store.QuotaBytes)))

	store, err := openStore(cfg, logging.Nop())
	if err != nil {
		return err
	}
	sess := store.Load(ctx)
	store.Close()

	if wizard.MaxReached(sess) <= wizard.StepStyle && len(sess.UploadedImages) == 0 {
		fmt.Fprintln(app.Out, "No saved session.")
	} else {
		fmt.Fprintf(app.Out, "Saved session: step %d (%s), %d upload(s), %d room(s), %d estimate row(s)\n",
			sess.Step, wizard.Label(sess.Step), len(sess.UploadedImages), len(sess.Rooms), len(sess.EstimateRows))
	}

	if ledgerPath, err := app.LedgerPath(); err == nil {
		if _, err := os.Stat(ledgerPath); err == nil {
			ledger, err := cost.OpenLedger(ledgerPath)
			if err != nil {
				return err
			}
			defer ledger.Close()
			summary, err := ledger.Total(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Total cost: %s over %s call(s)\n", usd(summary.TotalCost), humanize.Comma(int64(summary.EntryCount)))
		}
	}
	return nil
}

func runDBReset(ctx context.Context, app *App) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Store.Driver == config.DriverMemory {
		fmt.Fprintln(app.Out, "Memory store, nothing to reset.")
		return nil
	}
	path, err := storePath(cfg)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(app.Out, "No store found, nothing to reset.")
		return nil
	}

	if flagBackup {
		if cfg.Store.Driver != config.DriverSQLite {
			return fmt.Errorf("--backup is only supported for the sqlite driver")
		}
		backup := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		if err := copyFile(path, backup); err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		fmt.Fprintf(app.Out, "Backup written to %s\n", backup)
	}

	store, err := openStore(cfg, logging.Nop())
	if err != nil {
		return err
	}
	defer store.Close()
	store.Clear(ctx)
	fmt.Fprintln(app.Out, "Saved session discarded.")
	return nil
}

// diskUsage sums file sizes under path, which may be a file or a directory.
func diskUsage(path string) (int64, error) {
	var total int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
