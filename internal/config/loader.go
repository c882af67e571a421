// internal/config/loader.go
//
// Configuration loader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from three layers (highest
precedence last):

  1. Optional `.env` file at `<root>/conf/.env`.
  2. `conf/harvest.yaml`.
  3. Environment variables prefixed `HARVEST_`, where `__` maps to “.”
     (e.g., `HARVEST_SOURCE__MAX_RECORDS → source.max_records`).

After merging, every `vault:<mount/path>#<key>` string is swapped for the
secret it names, the tree is unmarshalled into strongly-typed structs,
defaulted, validated, enriched with the runtime root path, and cached in an
`atomic.Pointer` for lock-free reads.  `Reload()` simply loads again and
swaps the pointer.

Instrumentation
---------------
  • DEBUG spans: root discovery, YAML read, env overlay.
  • ERROR spans: YAML parse, env overlay, secret, unmarshal, validation.
  • INFO  span:  final “config loaded” with key highlights.
  • Logs use the global *sugared* logger (`zap.S()`) so early boot issues
    surface even before the file logger is installed.

Notes
-----
  • `RootDir()` climbs the cwd tree until it finds `conf/harvest.yaml`;
    this lets `go run ./cmd/harvest` work from any sub-directory.
  • Secret values are never logged.
  • Oxford commas, two spaces after periods.
*/
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/yanizio/harvest/internal/vault"
)

// FileName is the primary configuration file under <root>/conf.
const FileName = "harvest.yaml"

// EnvPrefix marks environment overrides.
const EnvPrefix = "HARVEST_"

// secretTTL bounds how long a resolved secret is cached by the Vault client.
const secretTTL = 10 * time.Minute

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// SecretGetter is satisfied by *vault.Client.
type SecretGetter interface {
	GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error)
}

var current atomic.Pointer[Config]

/*──────────────────────────── root discovery ───────────────────────────────*/

// RootDir resolves HARVEST_ROOT or climbs directories until conf/harvest.yaml
// is found.  Falls back to executable heuristic for production layout.
func RootDir() string {
	if r := os.Getenv(EnvPrefix + "ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", FileName)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached filesystem root
			break
		}
		dir = parent
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads config from the discovered root.  secrets may be nil when no
// value uses a `vault:` reference.
func Load(ctx context.Context, secrets SecretGetter) (*Config, error) {
	return LoadFrom(ctx, RootDir(), secrets)
}

// LoadFrom reads .env, YAML, env overrides, resolves secrets, validates, and
// caches Config.
func LoadFrom(ctx context.Context, root string, secrets SecretGetter) (*Config, error) {
	zap.S().Debugw("config root resolved", "root", root)

	// .env (optional, no error if missing)
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", FileName)
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
		return nil, fmt.Errorf("load %s: %w", yamlPath, err)
	}
	zap.S().Debugw("config yaml loaded", "file", yamlPath)

	// Env overrides: HARVEST_SOURCE__MAX_RECORDS → source.max_records
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(s, EnvPrefix), "__", "."))
	}), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	if err := resolveSecrets(ctx, k, secrets); err != nil {
		zap.S().Errorw("config secret resolution failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	applyDefaults(&cfg)
	cfg.Paths.Root = root
	if !filepath.IsAbs(cfg.Notifications.OutputDir) {
		cfg.Notifications.OutputDir = filepath.Join(root, cfg.Notifications.OutputDir)
	}
	if cfg.Validator.RulesFile != "" && !filepath.IsAbs(cfg.Validator.RulesFile) {
		cfg.Validator.RulesFile = filepath.Join(root, cfg.Validator.RulesFile)
	}

	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	current.Store(&cfg)
	zap.S().Infow("config loaded",
		"source", cfg.Source.URL,
		"channel", cfg.Notifications.Channel,
		"rules_file", cfg.Validator.RulesFile,
		"listen_addr", cfg.HTTP.ListenAddr,
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

// resolveSecrets replaces every `vault:` string in k.  Keys are visited in
// sorted order so errors are deterministic.
func resolveSecrets(ctx context.Context, k *koanf.Koanf, secrets SecretGetter) error {
	all := k.All()
	keys := make([]string, 0, len(all))
	for key := range all {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		s, ok := all[key].(string)
		if !ok {
			continue
		}
		path, field, isRef := vault.ParseRef(s)
		if !isRef {
			continue
		}
		if path == "" || field == "" {
			return fmt.Errorf("%w: %s: malformed vault reference", ErrInvalid, key)
		}
		if secrets == nil {
			return fmt.Errorf("%w: %s: vault reference but no vault client configured", ErrInvalid, key)
		}
		val, err := secrets.GetKV(ctx, path, field, secretTTL)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", key, err)
		}
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// Get returns the last successfully loaded Config, or nil.
func Get() *Config { return current.Load() }

// Reload loads again from the same root as the cached Config.
func Reload(ctx context.Context, secrets SecretGetter) error {
	root := RootDir()
	if c := Get(); c != nil {
		root = c.Paths.Root
	}
	_, err := LoadFrom(ctx, root, secrets)
	return err
}

// ResolvedDSN splices the password into the first %s of the template.
func (d Database) ResolvedDSN() string {
	if strings.Contains(d.DSN, "%s") {
		return strings.Replace(d.DSN, "%s", d.Password, 1)
	}
	return d.DSN
}
