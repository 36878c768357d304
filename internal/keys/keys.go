// Package keys stores collaborator credentials in a private keys.json under
// the user config directory.
package keys

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// Credential names understood by the stack. Naver needs two values.
const (
	Anthropic   = "anthropic"
	OpenAI      = "openai"
	NaverID     = "naver-id"
	NaverSecret = "naver-secret"
)

var ErrUnknownCredential = errors.New("unknown credential name")

// EnvVars maps each credential to the environment variable consulted last.
var EnvVars = map[string]string{
	Anthropic:   "ANTHROPIC_API_KEY",
	OpenAI:      "OPENAI_API_KEY",
	NaverID:     "NAVER_CLIENT_ID",
	NaverSecret: "NAVER_CLIENT_SECRET",
}

// Names returns the known credential names in sorted order.
func Names() []string {
	names := make([]string, 0, len(EnvVars))
	for name := range EnvVars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Validate(name string) error {
	if _, ok := EnvVars[name]; !ok {
		return fmt.Errorf("%w: %q (known: %s)", ErrUnknownCredential, name, strings.Join(Names(), ", "))
	}
	return nil
}

type Store struct {
	configDir string
}

type KeyEntry struct {
	Key string `json:"key"`
}

type Keys map[string]KeyEntry

func NewStore() (*Store, error) {
	configDir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return &Store{configDir: configDir}, nil
}

// NewStoreAt keeps keys.json in dir.
func NewStoreAt(dir string) *Store {
	return &Store{configDir: dir}
}

// ConfigDir returns the platform-specific olive config directory.
// OLIVE_CONFIG_DIR overrides it.
func ConfigDir() (string, error) {
	if dir := os.Getenv("OLIVE_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "olive"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "olive"), nil
	default:
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configHome = filepath.Join(home, ".config")
		}
		return filepath.Join(configHome, "olive"), nil
	}
}

func (s *Store) Path() string {
	return filepath.Join(s.configDir, "keys.json")
}

func (s *Store) load() (Keys, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return make(Keys), nil
		}
		return nil, err
	}

	var keys Keys
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("failed to parse keys.json: %w", err)
	}
	return keys, nil
}

func (s *Store) save(keys Keys) error {
	if err := os.MkdirAll(s.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return err
	}

	// owner read/write only
	if err := os.WriteFile(s.Path(), data, 0600); err != nil {
		return fmt.Errorf("failed to write keys.json: %w", err)
	}
	return nil
}

func (s *Store) Set(name, key string) error {
	if err := Validate(name); err != nil {
		return err
	}
	keys, err := s.load()
	if err != nil {
		return err
	}

	keys[name] = KeyEntry{Key: strings.TrimSpace(key)}
	return s.save(keys)
}

// Get returns "" without error when no key is stored.
func (s *Store) Get(name string) (string, error) {
	keys, err := s.load()
	if err != nil {
		return "", err
	}
	return keys[name].Key, nil
}

func (s *Store) Delete(name string) error {
	keys, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := keys[name]; !ok {
		return fmt.Errorf("no key found for %s", name)
	}

	delete(keys, name)
	return s.save(keys)
}

// List returns the stored credential names in sorted order.
func (s *Store) List() ([]string, error) {
	keys, err := s.load()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(keys))
	for name := range keys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func MaskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// Resolve finds a credential by priority: explicit value, keys.json, then
// the environment. It also reports where the value came from.
func (s *Store) Resolve(explicit, name string) (key, source string, err error) {
	if err := Validate(name); err != nil {
		return "", "", err
	}
	if explicit != "" {
		return explicit, "command-line flag", nil
	}

	if s != nil {
		if stored, err := s.Get(name); err == nil && stored != "" {
			return stored, fmt.Sprintf("stored key (%s)", s.Path()), nil
		}
	}

	envVar := EnvVars[name]
	if envKey := os.Getenv(envVar); envKey != "" {
		return envKey, fmt.Sprintf("environment variable (%s)", envVar), nil
	}

	return "", "", fmt.Errorf("%s key required: run 'olive keys set %s' or set %s", name, name, envVar)
}

// Status reports which credentials resolve, without revealing them.
func (s *Store) Status() map[string]bool {
	status := make(map[string]bool, len(EnvVars))
	for _, name := range Names() {
		_, _, err := s.Resolve("", name)
		status[name] = err == nil
	}
	return status
}
