package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	stdimage "image"

	"github.com/manash/olive/internal/config"
	"github.com/manash/olive/internal/cost"
	"github.com/manash/olive/internal/image"
	"github.com/manash/olive/internal/keys"
	"github.com/manash/olive/internal/logging"
	"github.com/manash/olive/internal/provider"
	"github.com/manash/olive/internal/provider/naver"
	"github.com/manash/olive/pkg/models"
)

const profileJSON = `{"style":"modern","colors":["white","oak"],"materials":["oak"],"mood":"calm","keywords":["bright"],"summary":"밝은 모던"}`

// mockText answers every completion with a style profile, which is also
// acceptable as a prompt or a caption.
type mockText struct {
	mu    sync.Mutex
	calls int
}

func (m *mockText) Complete(_ context.Context, req *provider.TextRequest) (*provider.TextResponse, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return &provider.TextResponse{Text: profileJSON, Model: req.Model, InputTokens: 100, OutputTokens: 50}, nil
}

type mockImages struct{}

func (mockImages) Name() models.ProviderType { return models.ProviderOpenAI }

func (mockImages) Generate(_ context.Context, req *models.Request) (*models.Response, error) {
	return &models.Response{
		Images: []models.GeneratedImage{{Base64: base64.StdEncoding.EncodeToString([]byte("render:" + req.Prompt))}},
		Cost:   &models.CostInfo{PerImage: 0.04, Total: 0.04, Currency: "USD"},
	}, nil
}

func (mockImages) SupportsModel(string) bool { return true }

func (mockImages) ListModels() []string { return []string{"dall-e-3"} }

type mockSearch struct{}

func (mockSearch) Search(context.Context, models.SearchQuery) (*models.SearchResult, error) {
	return &models.SearchResult{}, nil
}

// resetFlags resets all global flags to their default values.
func resetFlags() {
	flagConfig = ""
	flagDebug = false
	flagAnthropicKey = ""
	flagOpenAIKey = ""
	flagExportDir = ""
	flagNoImages = false
	flagEphemeral = false
	flagAddr = ""
	flagImages = nil
	flagStyleText = ""
	flagOut = ""
	flagBackup = false
}

type testEnv struct {
	app *App
	out *bytes.Buffer
	err *bytes.Buffer
	dir string
}

// newTestApp isolates config, keys, pricing and the ledger under a temp
// directory and clears credential variables.
func newTestApp(t *testing.T) *testEnv {
	t.Helper()
	resetFlags()

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("OLIVE_CONFIG_DIR", dir)
	t.Setenv("OLIVE_STORE_DRIVER", "memory")
	t.Setenv("OLIVE_STORE_PATH", "")
	for _, name := range keys.Names() {
		t.Setenv(keys.EnvVars[name], "")
	}

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	app := &App{
		In:  strings.NewReader(""),
		Out: out,
		Err: errOut,
		NewKeyStore: func() (*keys.Store, error) {
			return keys.NewStoreAt(dir), nil
		},
		NewText: func(*provider.Config) (provider.TextModel, error) {
			return &mockText{}, nil
		},
		NewImages: func(*provider.Config, *models.ModelRegistry, *cost.Calculator) (provider.ImageGenerator, error) {
			return mockImages{}, nil
		},
		NewSearch: func(naver.Config) (provider.ShopSearcher, error) {
			return mockSearch{}, nil
		},
		NewSaver: image.NewSaver,
		LedgerPath: func() (string, error) {
			return filepath.Join(dir, "ledger.db"), nil
		},
		ReadSecret: func() (string, error) { return "sk-hidden-secret", nil },
		IsTerminal: func() bool { return false },
	}
	return &testEnv{app: app, out: out, err: errOut, dir: dir}
}

func (e *testEnv) execute(args ...string) error {
	cmd := newRootCmd(e.app)
	cmd.SetArgs(args)
	cmd.SetOut(e.out)
	cmd.SetErr(e.err)
	return cmd.Execute()
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 180, B: 150, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestDefaultApp(t *testing.T) {
	app := DefaultApp()

	if app.In == nil || app.Out == nil || app.Err == nil {
		t.Error("DefaultApp() left a stream nil")
	}
	if app.NewKeyStore == nil || app.NewText == nil || app.NewImages == nil || app.NewSearch == nil {
		t.Error("DefaultApp() left a factory nil")
	}
	if app.NewSaver == nil || app.LedgerPath == nil || app.ReadSecret == nil || app.IsTerminal == nil {
		t.Error("DefaultApp() left a helper nil")
	}
}

func TestApp_DefaultNewImages(t *testing.T) {
	app := DefaultApp()

	p, err := app.NewImages(&provider.Config{APIKey: "test-key"}, models.DefaultRegistry(), cost.NewCalculator())
	if err != nil {
		t.Fatalf("NewImages() error = %v", err)
	}
	if p.Name() != models.ProviderOpenAI {
		t.Errorf("Name() = %s, want openai", p.Name())
	}
	if !p.SupportsModel("dall-e-3") {
		t.Error("default image provider should support dall-e-3")
	}
}

func TestNewRootCmd(t *testing.T) {
	env := newTestApp(t)
	cmd := newRootCmd(env.app)

	if cmd.Use != "olive" {
		t.Errorf("Use = %s, want olive", cmd.Use)
	}

	for _, name := range []string{"config", "debug", "anthropic-key", "openai-key"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("persistent flag --%s not found", name)
		}
	}
	for _, name := range []string{"export-dir", "no-images", "ephemeral"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("flag --%s not found", name)
		}
	}

	for _, name := range []string{"serve", "rooms", "keys", "cost", "price", "db"} {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub == cmd {
			t.Errorf("subcommand %q not found", name)
		}
	}
}

func TestRootCmd_Version(t *testing.T) {
	env := newTestApp(t)
	cmd := newRootCmd(env.app)

	if !strings.Contains(cmd.Version, version) {
		t.Errorf("Version = %q, want it to contain %q", cmd.Version, version)
	}
}

func TestRootCmd_RejectsArgs(t *testing.T) {
	env := newTestApp(t)

	if err := env.execute("a sunset"); err == nil {
		t.Error("Execute() error = nil, want error for a positional argument")
	}
}

func TestInteractive_WarnsWithoutKeys(t *testing.T) {
	env := newTestApp(t)
	env.app.In = strings.NewReader("status\nquit\n")

	if err := env.execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !strings.Contains(env.out.String(), "olive interior design studio") {
		t.Errorf("output missing welcome banner: %s", env.out.String())
	}
	if !strings.Contains(env.err.String(), "need both Anthropic and OpenAI keys") {
		t.Errorf("stderr missing key warning: %s", env.err.String())
	}
}

func TestInteractive_NoWarningWithKeys(t *testing.T) {
	env := newTestApp(t)
	env.app.In = strings.NewReader("quit\n")

	if err := env.execute("--anthropic-key", "sk-ant", "--openai-key", "sk-oai"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.Contains(env.err.String(), "Warning") {
		t.Errorf("unexpected warning: %s", env.err.String())
	}
}

func TestSetup_Availability(t *testing.T) {
	env := newTestApp(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")

	e, err := setup(env.app)
	if err != nil {
		t.Fatalf("setup() error = %v", err)
	}
	defer e.Close()

	if !e.avail.anthropic {
		t.Error("anthropic should resolve from the environment")
	}
	if e.avail.openai {
		t.Error("openai should be unavailable")
	}
	if e.avail.naver || e.search != nil {
		t.Error("naver search should be disabled without credentials")
	}

	_, err = e.designer.GenerateDesign(context.Background(), models.DesignRequest{
		Prompt:       "밝은 거실",
		StyleProfile: models.StyleProfile{Style: "modern"},
	})
	if err == nil || !strings.Contains(err.Error(), "openai key required") {
		t.Errorf("GenerateDesign() error = %v, want openai key error", err)
	}
}

func TestSetup_NaverSearch(t *testing.T) {
	env := newTestApp(t)
	t.Setenv("NAVER_CLIENT_ID", "id")
	t.Setenv("NAVER_CLIENT_SECRET", "secret")

	var got naver.Config
	env.app.NewSearch = func(cfg naver.Config) (provider.ShopSearcher, error) {
		got = cfg
		return mockSearch{}, nil
	}

	e, err := setup(env.app)
	if err != nil {
		t.Fatalf("setup() error = %v", err)
	}
	defer e.Close()

	if !e.avail.naver || e.search == nil {
		t.Fatal("naver search should be enabled")
	}
	if got.ClientID != "id" || got.APIKey != "secret" {
		t.Errorf("naver config = %+v, want id/secret", got)
	}
}

func TestSelectImages_UnknownModel(t *testing.T) {
	env := newTestApp(t)
	cfg := config.Default()
	cfg.Models.Image = "not-a-model"

	_, err := selectImages(env.app, cfg, "key", models.DefaultRegistry(), cost.NewCalculator())
	if !errors.Is(err, provider.ErrModelNotSupported) {
		t.Errorf("selectImages() error = %v, want ErrModelNotSupported", err)
	}
}

func TestOpenStore_Drivers(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OLIVE_CONFIG_DIR", dir)

	tests := []struct {
		name   string
		driver string
		path   string
	}{
		{"memory", config.DriverMemory, ""},
		{"sqlite", config.DriverSQLite, filepath.Join(dir, "s.db")},
		{"badger", config.DriverBadger, filepath.Join(dir, "badger")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Store.Driver = tt.driver
			cfg.Store.Path = tt.path

			store, err := openStore(cfg, logging.Nop())
			if err != nil {
				t.Fatalf("openStore() error = %v", err)
			}
			defer store.Close()

			sess := models.DefaultSession()
			sess.DesignPrompt = "밝은 거실"
			store.Save(context.Background(), sess)
			if got := store.Load(context.Background()); got.DesignPrompt != "밝은 거실" {
				t.Errorf("DesignPrompt = %q after round trip", got.DesignPrompt)
			}
		})
	}
}

func TestKeys_SetGetList(t *testing.T) {
	env := newTestApp(t)
	t.Setenv("NAVER_CLIENT_ID", "env-id")

	if err := env.execute("keys", "set", "openai", "sk-test-1234567890"); err != nil {
		t.Fatalf("keys set error = %v", err)
	}
	if !strings.Contains(env.out.String(), "Saved openai key sk-t") {
		t.Errorf("set output = %q", env.out.String())
	}
	if strings.Contains(env.out.String(), "1234567890") {
		t.Error("set output leaked the key")
	}

	env.out.Reset()
	resetFlags()
	if err := env.execute("keys", "get", "openai"); err != nil {
		t.Fatalf("keys get error = %v", err)
	}
	if !strings.Contains(env.out.String(), "stored key") {
		t.Errorf("get output = %q, want stored key source", env.out.String())
	}

	env.out.Reset()
	resetFlags()
	if err := env.execute("keys", "list"); err != nil {
		t.Fatalf("keys list error = %v", err)
	}
	output := env.out.String()
	for _, want := range []string{"openai         stored", "anthropic      missing", "naver-id       env NAVER_CLIENT_ID"} {
		if !strings.Contains(output, want) {
			t.Errorf("list output missing %q:\n%s", want, output)
		}
	}
}

func TestKeys_SetPrompted(t *testing.T) {
	tests := []struct {
		name     string
		terminal bool
		in       string
		want     string
	}{
		{"piped", false, "sk-from-stdin\n", "sk-from-stdin"},
		{"terminal", true, "", "sk-hidden-secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestApp(t)
			env.app.In = strings.NewReader(tt.in)
			env.app.IsTerminal = func() bool { return tt.terminal }

			if err := env.execute("keys", "set", "anthropic"); err != nil {
				t.Fatalf("keys set error = %v", err)
			}
			got, err := keys.NewStoreAt(env.dir).Get("anthropic")
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("stored key = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeys_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown name", []string{"keys", "set", "google", "x"}, "unknown credential"},
		{"empty value", []string{"keys", "set", "openai", "  "}, "key cannot be empty"},
		{"delete missing", []string{"keys", "delete", "openai"}, "no key found"},
		{"get unresolved", []string{"keys", "get", "anthropic"}, "anthropic key required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestApp(t)
			err := env.execute(tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestRunCost_Empty(t *testing.T) {
	env := newTestApp(t)

	if err := env.execute("cost"); err != nil {
		t.Fatalf("cost error = %v", err)
	}
	if !strings.Contains(env.out.String(), "No costs recorded yet.") {
		t.Errorf("output = %q", env.out.String())
	}
}

func TestRunCost_Periods(t *testing.T) {
	env := newTestApp(t)
	path, _ := env.app.LedgerPath()
	now := time.Now()

	ledger, err := cost.OpenLedger(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	ledger.Record(ctx, cost.Entry{Provider: "openai", Model: "dall-e-3", Cost: 0.04, ImageCount: 1, Timestamp: now})
	ledger.Record(ctx, cost.Entry{Provider: "anthropic", Model: "claude", Cost: 0.002, Timestamp: now})
	ledger.Record(ctx, cost.Entry{Provider: "openai", Model: "dall-e-3", Cost: 0.1, ImageCount: 1, Timestamp: now.AddDate(0, 0, -10)})
	ledger.Close()

	tests := []struct {
		period string
		want   []string
	}{
		{"today", []string{"Today's cost: $0.042", "2 call(s)", "1 image(s)"}},
		{"week", []string{"Last 7 days cost: $0.042"}},
		{"month", []string{"Last 30 days cost: $0.142", "3 call(s)"}},
		{"total", []string{"Total cost: $0.142", "2 image(s)"}},
		{"provider", []string{"anthropic", "openai", "Total"}},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			env.out.Reset()
			if err := runCost(ctx, env.app, tt.period, now); err != nil {
				t.Fatalf("runCost() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(env.out.String(), want) {
					t.Errorf("output missing %q:\n%s", want, env.out.String())
				}
			}
		})
	}

	if err := runCost(ctx, env.app, "yearly", now); err == nil {
		t.Error("runCost() error = nil for unknown period")
	}
}

func TestPrice(t *testing.T) {
	env := newTestApp(t)

	if err := env.execute("price", "list"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(env.out.String(), "No price overrides.") {
		t.Errorf("output = %q", env.out.String())
	}

	steps := [][]string{
		{"price", "image", "gpt-image-1", "1024x1024", "medium", "0.05"},
		{"price", "text", "claude-test", "3", "15"},
	}
	for _, args := range steps {
		resetFlags()
		if err := env.execute(args...); err != nil {
			t.Fatalf("%v error = %v", args, err)
		}
	}

	env.out.Reset()
	resetFlags()
	if err := env.execute("price", "list"); err != nil {
		t.Fatal(err)
	}
	output := env.out.String()
	for _, want := range []string{"gpt-image-1", "1024x1024", "medium", "$0.05", "claude-test", "in $3", "out $15"} {
		if !strings.Contains(output, want) {
			t.Errorf("list output missing %q:\n%s", want, output)
		}
	}

	path, _ := cost.DefaultPricingPath()
	pricing, err := cost.LoadPricing(path)
	if err != nil {
		t.Fatal(err)
	}
	calc := cost.NewCalculatorWithOverrides(pricing)
	if got := calc.Calculate(models.ProviderOpenAI, "gpt-image-1", "1024x1024", "medium", 2); got.Total != 0.1 {
		t.Errorf("override total = %v, want 0.1", got.Total)
	}

	resetFlags()
	if err := env.execute("price", "image", "dall-e-3", "1024x1024", "hd", "-1"); err == nil {
		t.Error("negative price accepted")
	}
}

func writeRoomsFixture(t *testing.T, dir string) (roomsFile, refImage string) {
	t.Helper()
	roomsFile = filepath.Join(dir, "rooms.txt")
	if err := os.WriteFile(roomsFile, []byte("거실: 밝은 원목 거실\n주방: 화이트 모던 주방\n"), 0644); err != nil {
		t.Fatal(err)
	}
	refImage = filepath.Join(dir, "ref.png")
	writePNG(t, refImage)

	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := "batch:\n  size: 2\n  stagger: 0s\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	return roomsFile, refImage
}

func TestRooms(t *testing.T) {
	env := newTestApp(t)
	t.Chdir(env.dir)
	roomsFile, ref := writeRoomsFixture(t, env.dir)

	err := env.execute("rooms", roomsFile, "--image", ref, "--out", "renders",
		"--anthropic-key", "sk-ant", "--openai-key", "sk-oai")
	if err != nil {
		t.Fatalf("rooms error = %v\n%s", err, env.err.String())
	}

	output := env.out.String()
	for _, want := range []string{"Style: modern", "Rendering 2 room(s)", "Successful: 2/2 rooms"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
	for _, name := range []string{"01_거실.png", "02_주방.png"} {
		data, err := os.ReadFile(filepath.Join(env.dir, "renders", name))
		if err != nil {
			t.Errorf("render %s not written: %v", name, err)
			continue
		}
		if !strings.HasPrefix(string(data), "render:") {
			t.Errorf("render %s = %q", name, data)
		}
	}

	path, _ := env.app.LedgerPath()
	ledger, err := cost.OpenLedger(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ledger.Close()
	summary, err := ledger.Total(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.ImageCount != 2 {
		t.Errorf("ledger ImageCount = %d, want 2", summary.ImageCount)
	}
}

func TestRooms_Errors(t *testing.T) {
	t.Run("missing image flag", func(t *testing.T) {
		env := newTestApp(t)
		roomsFile, _ := writeRoomsFixture(t, env.dir)
		err := env.execute("rooms", roomsFile)
		if err == nil || !strings.Contains(err.Error(), "required flag") {
			t.Errorf("error = %v, want required flag error", err)
		}
	})

	t.Run("missing keys", func(t *testing.T) {
		env := newTestApp(t)
		roomsFile, ref := writeRoomsFixture(t, env.dir)
		err := env.execute("rooms", roomsFile, "--image", ref)
		if err == nil || !strings.Contains(err.Error(), "anthropic key required") {
			t.Errorf("error = %v, want anthropic key error", err)
		}
	})

	t.Run("absolute output", func(t *testing.T) {
		env := newTestApp(t)
		roomsFile, ref := writeRoomsFixture(t, env.dir)
		err := env.execute("rooms", roomsFile, "--image", ref, "--out", env.dir)
		if err == nil || !strings.Contains(err.Error(), "invalid output directory") {
			t.Errorf("error = %v, want output directory error", err)
		}
	})

	t.Run("unsupported room file", func(t *testing.T) {
		env := newTestApp(t)
		_, ref := writeRoomsFixture(t, env.dir)
		bad := filepath.Join(env.dir, "rooms.csv")
		os.WriteFile(bad, []byte("a,b"), 0644)
		err := env.execute("rooms", bad, "--image", ref)
		if err == nil || !strings.Contains(err.Error(), "unsupported file format") {
			t.Errorf("error = %v, want format error", err)
		}
	})
}

func TestDB_InfoAndReset(t *testing.T) {
	env := newTestApp(t)
	dbPath := filepath.Join(env.dir, "state.db")
	t.Setenv("OLIVE_STORE_DRIVER", "sqlite")
	t.Setenv("OLIVE_STORE_PATH", dbPath)

	if err := env.execute("db", "info"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(env.out.String(), "does not exist yet") {
		t.Errorf("info output = %q", env.out.String())
	}

	cfg, err := loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	store, err := openStore(cfg, logging.Nop())
	if err != nil {
		t.Fatal(err)
	}
	sess := models.DefaultSession()
	sess.UploadedImages = []string{"data:image/png;base64,AAAA"}
	sess.Rooms = []models.RoomEntry{{ID: "r1", Name: "거실"}}
	store.Save(context.Background(), sess)
	store.Close()

	env.out.Reset()
	resetFlags()
	if err := env.execute("db", "info"); err != nil {
		t.Fatal(err)
	}
	output := env.out.String()
	for _, want := range []string{"Store driver: sqlite", "Store location: " + dbPath, "Store size:", "Saved session: step 1", "1 upload(s), 1 room(s)"} {
		if !strings.Contains(output, want) {
			t.Errorf("info output missing %q:\n%s", want, output)
		}
	}

	env.out.Reset()
	resetFlags()
	if err := env.execute("db", "reset", "--backup"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(env.out.String(), "Backup written to") {
		t.Errorf("reset output = %q", env.out.String())
	}
	backups, _ := filepath.Glob(dbPath + ".*.bak")
	if len(backups) != 1 {
		t.Errorf("backups = %v, want one", backups)
	}

	env.out.Reset()
	resetFlags()
	if err := env.execute("db", "info"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(env.out.String(), "No saved session.") {
		t.Errorf("info after reset = %q", env.out.String())
	}
}

func TestDB_ResetMemory(t *testing.T) {
	env := newTestApp(t)

	if err := env.execute("db", "reset"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(env.out.String(), "nothing to reset") {
		t.Errorf("output = %q", env.out.String())
	}
}
