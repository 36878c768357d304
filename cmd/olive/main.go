package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/manash/olive/internal/batch"
	"github.com/manash/olive/internal/config"
	"github.com/manash/olive/internal/cost"
	"github.com/manash/olive/internal/designer"
	"github.com/manash/olive/internal/display"
	"github.com/manash/olive/internal/image"
	"github.com/manash/olive/internal/keys"
	"github.com/manash/olive/internal/logging"
	"github.com/manash/olive/internal/provider"
	"github.com/manash/olive/internal/provider/anthropic"
	"github.com/manash/olive/internal/provider/naver"
	"github.com/manash/olive/internal/provider/openai"
	"github.com/manash/olive/internal/repl"
	"github.com/manash/olive/internal/session"
	"github.com/manash/olive/internal/studio"
	"github.com/manash/olive/pkg/models"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	flagConfig       string
	flagDebug        bool
	flagAnthropicKey string
	flagOpenAIKey    string
	flagExportDir    string
	flagNoImages     bool
	flagEphemeral    bool
)

type App struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	NewKeyStore func() (*keys.Store, error)
	NewText     func(cfg *provider.Config) (provider.TextModel, error)
	NewImages   func(cfg *provider.Config, registry *models.ModelRegistry, calc *cost.Calculator) (provider.ImageGenerator, error)
	NewSearch   func(cfg naver.Config) (provider.ShopSearcher, error)
	NewSaver    func() *image.Saver
	// LedgerPath locates the spend ledger database.
	LedgerPath func() (string, error)
	ReadSecret func() (string, error)
	IsTerminal func() bool
}

func DefaultApp() *App {
	return &App{
		In:          os.Stdin,
		Out:         os.Stdout,
		Err:         os.Stderr,
		NewKeyStore: keys.NewStore,
		NewText: func(cfg *provider.Config) (provider.TextModel, error) {
			return anthropic.New(cfg)
		},
		NewImages: func(cfg *provider.Config, registry *models.ModelRegistry, calc *cost.Calculator) (provider.ImageGenerator, error) {
			p, err := openai.New(cfg, registry)
			if err != nil {
				return nil, err
			}
			return p.WithCalculator(calc), nil
		},
		NewSearch: func(cfg naver.Config) (provider.ShopSearcher, error) {
			return naver.New(cfg)
		},
		NewSaver:   image.NewSaver,
		LedgerPath: session.DefaultDBPath,
		ReadSecret: func() (string, error) {
			b, err := term.ReadPassword(int(os.Stdin.Fd()))
			return string(b), err
		},
		IsTerminal: func() bool {
			return term.IsTerminal(int(os.Stdout.Fd())) && display.IsTerminalSupported()
		},
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	app := DefaultApp()
	rootCmd := newRootCmd(app)
	return rootCmd.Execute()
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "olive",
		Short: "Interior design studio: style analysis, AI renders, materials and estimates",
		Long: `olive walks through an interior design in five steps:

  1. analyze the style of reference photos
  2. describe the space (one room, or several)
  3. render the design, refine it and compare variations
  4. extract the material list
  5. price it with shopping search and export the estimate

Run without arguments for the interactive wizard.

Examples:
  olive
  olive rooms rooms.txt --image ref1.jpg --image ref2.jpg --out renders/
  olive serve --addr :8080
  olive keys set anthropic`,
		Args:          cobra.NoArgs,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInteractive(cmd.Context(), app)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default <config dir>/olive/config.yaml)")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "write a debug log under the config directory")
	cmd.PersistentFlags().StringVar(&flagAnthropicKey, "anthropic-key", "", "Anthropic API key (overrides stored key and ANTHROPIC_API_KEY)")
	cmd.PersistentFlags().StringVar(&flagOpenAIKey, "openai-key", "", "OpenAI API key (overrides stored key and OPENAI_API_KEY)")
	cmd.Flags().StringVar(&flagExportDir, "export-dir", "", "directory for exported documents")
	cmd.Flags().BoolVar(&flagNoImages, "no-images", false, "never draw images in the terminal")
	cmd.Flags().BoolVar(&flagEphemeral, "ephemeral", false, "keep the session in memory only")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newRoomsCmd(app))
	cmd.AddCommand(newKeysCmd(app))
	cmd.AddCommand(newCostCmd(app))
	cmd.AddCommand(newPriceCmd(app))
	cmd.AddCommand(newDBCmd(app))

	return cmd
}

// env is everything a command needs that is derived from config and keys.
type env struct {
	cfg      config.Config
	logger   *slog.Logger
	keys     *keys.Store
	designer provider.Designer
	search   provider.ShopSearcher
	avail    availability
	closers  []func() error
}

type availability struct {
	anthropic bool
	openai    bool
	naver     bool
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.logger.Warn("close failed", "error", err)
		}
	}
}

func loadConfig() (config.Config, error) {
	path := flagConfig
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return config.Config{}, err
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if flagDebug {
		cfg.Debug = true
	}
	return cfg, nil
}

// setup loads config, opens the log and the spend ledger, and builds the
// collaborators whose credentials resolve. Missing credentials are not an
// error here; the affected operations fail when used.
func setup(app *App) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logDir, err := keys.ConfigDir()
	if err != nil {
		return nil, err
	}
	fl, err := logging.New(logging.Options{Debug: cfg.Debug, Dir: logDir})
	if err != nil {
		return nil, fmt.Errorf("open debug log: %w", err)
	}
	e := &env{cfg: cfg, logger: fl.Logger, closers: []func() error{fl.Close}}

	e.keys, err = app.NewKeyStore()
	if err != nil {
		e.Close()
		return nil, err
	}

	var recorder cost.Recorder
	if ledgerPath, err := app.LedgerPath(); err == nil {
		if ledger, err := cost.OpenLedger(ledgerPath); err == nil {
			recorder = ledger
			e.closers = append(e.closers, ledger.Close)
		} else {
			e.logger.Warn("spend ledger unavailable", "error", err)
		}
	}

	e.designer, e.avail.anthropic, e.avail.openai = buildDesigner(app, e, recorder)
	e.search, e.avail.naver = buildSearch(app, e)
	return e, nil
}

func buildDesigner(app *App, e *env, recorder cost.Recorder) (provider.Designer, bool, bool) {
	calc := cost.NewCalculator()
	if pricingPath, err := cost.DefaultPricingPath(); err == nil {
		if pricing, err := cost.LoadPricing(pricingPath); err != nil {
			e.logger.Warn("ignoring pricing overrides", "error", err)
		} else if pricing != nil {
			calc = cost.NewCalculatorWithOverrides(pricing)
		}
	}

	var text provider.TextModel
	hasText := false
	if key, _, err := e.keys.Resolve(flagAnthropicKey, keys.Anthropic); err != nil {
		text = unavailableText{err: err}
	} else if t, err := app.NewText(providerConfig(e.cfg, key)); err != nil {
		text = unavailableText{err: err}
	} else {
		text, hasText = t, true
	}

	registry := models.DefaultRegistry()
	var images provider.ImageGenerator
	hasImages := false
	if key, _, err := e.keys.Resolve(flagOpenAIKey, keys.OpenAI); err != nil {
		images = unavailableImages{err: err}
	} else if img, err := selectImages(app, e.cfg, key, registry, calc); err != nil {
		images = unavailableImages{err: err}
	} else {
		images, hasImages = img, true
	}

	d := designer.New(text, images, designer.Options{
		Models: designer.Models{
			Vision: e.cfg.Models.Vision,
			Fast:   e.cfg.Models.Fast,
			Image:  e.cfg.Models.Image,
		},
		Recorder:   recorder,
		Calculator: calc,
		Logger:     e.logger,
	})
	return d, hasText, hasImages
}

// selectImages registers the image providers and picks the one serving the
// configured image model.
func selectImages(app *App, cfg config.Config, key string, registry *models.ModelRegistry, calc *cost.Calculator) (provider.ImageGenerator, error) {
	factory := provider.NewFactory(registry)
	factory.Configure(models.ProviderOpenAI, providerConfig(cfg, key))

	pcfg, _ := factory.GetConfig(models.ProviderOpenAI)
	p, err := app.NewImages(pcfg, registry, calc)
	if err != nil {
		return nil, err
	}
	factory.Register(p)
	return factory.GetForModel(cfg.Models.Image)
}

func buildSearch(app *App, e *env) (provider.ShopSearcher, bool) {
	id, _, err := e.keys.Resolve("", keys.NaverID)
	if err != nil {
		return nil, false
	}
	secret, _, err := e.keys.Resolve("", keys.NaverSecret)
	if err != nil {
		return nil, false
	}
	s, err := app.NewSearch(naver.Config{
		Config:            *providerConfig(e.cfg, secret),
		ClientID:          id,
		RequestsPerSecond: e.cfg.Search.RequestsPerSecond,
	})
	if err != nil {
		e.logger.Warn("shopping search disabled", "error", err)
		return nil, false
	}
	return s, true
}

func providerConfig(cfg config.Config, key string) *provider.Config {
	return &provider.Config{APIKey: key, TimeoutSec: cfg.TimeoutSec, Verbose: cfg.Debug}
}

// storePath is where the session KV lives for the configured driver. It is
// empty for the memory driver.
func storePath(cfg config.Config) (string, error) {
	if cfg.Store.Path != "" || cfg.Store.Driver == config.DriverMemory {
		return cfg.Store.Path, nil
	}
	if cfg.Store.Driver == config.DriverBadger {
		dir, err := keys.ConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "state"), nil
	}
	return session.DefaultDBPath()
}

// openStore opens the session KV selected by the store driver, capped at the
// configured quota.
func openStore(cfg config.Config, logger *slog.Logger) (*session.Store, error) {
	path, err := storePath(cfg)
	if err != nil {
		return nil, err
	}

	var kv session.KV
	switch cfg.Store.Driver {
	case config.DriverMemory:
		kv = session.NewMemoryKV()
	case config.DriverBadger:
		kv, err = session.NewBadgerKV(path, logger)
	default:
		kv, err = session.NewSQLiteKVWithPath(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return session.NewStore(session.WithQuota(kv, cfg.Store.QuotaBytes), logger), nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func runInteractive(parent context.Context, app *App) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	e, err := setup(app)
	if err != nil {
		return err
	}
	defer e.Close()

	if flagEphemeral {
		e.cfg.Store.Driver = config.DriverMemory
	}
	store, err := openStore(e.cfg, e.logger)
	if err != nil {
		return err
	}
	e.closers = append(e.closers, store.Close)

	if !e.avail.anthropic || !e.avail.openai {
		fmt.Fprintln(app.Err, "Warning: design features need both Anthropic and OpenAI keys (see 'olive keys set').")
	}

	svc := studio.New(ctx, studio.Options{
		Designer: e.designer,
		Search:   e.search,
		Store:    store,
		Batch:    batchOptions(e),
		Logger:   e.logger,
	})

	var displayer *display.Displayer
	if !flagNoImages && app.IsTerminal() {
		displayer = display.New(app.Out)
	}

	r := repl.New(&repl.Config{
		In:        app.In,
		Out:       app.Out,
		Err:       app.Err,
		Studio:    svc,
		Displayer: displayer,
		Saver:     app.NewSaver(),
		ExportDir: flagExportDir,
	})
	return r.Run(ctx)
}

func batchOptions(e *env) batch.Options {
	return batch.Options{BatchSize: e.cfg.Batch.Size, Stagger: e.cfg.Batch.Stagger}
}

// unavailableText stands in for the text model when no key resolves, so the
// key error surfaces from the operation that needed it.
type unavailableText struct{ err error }

func (u unavailableText) Complete(context.Context, *provider.TextRequest) (*provider.TextResponse, error) {
	return nil, u.err
}

type unavailableImages struct{ err error }

func (u unavailableImages) Name() models.ProviderType { return models.ProviderOpenAI }

func (u unavailableImages) Generate(context.Context, *models.Request) (*models.Response, error) {
	return nil, u.err
}

func (u unavailableImages) SupportsModel(string) bool { return false }

func (u unavailableImages) ListModels() []string { return nil }
