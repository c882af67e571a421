// internal/config/model.go
//
// Typed configuration model for the harvester.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                           – dotenv values,
//   • `conf/harvest.yaml`                       – primary static file,
//   • `HARVEST_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client *before* unmarshalling, so the model never
// stores Vault URIs, only plain strings.
//
// Zero values are replaced by the defaults in applyDefaults, then the whole
// tree is validated.  The app fails fast if required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.  Koanf ignores `yaml` tags
//     unless configured otherwise.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

import "time"

//
// Source section
//

// Source describes the GeoNetwork catalogue we harvest from.
type Source struct {
	URL               string        `koanf:"url"                 validate:"required,url"`
	SearchEndpoint    string        `koanf:"search_endpoint"     validate:"required,endpoint"`
	GetRecordEndpoint string        `koanf:"get_record_endpoint" validate:"required,endpoint"`
	TestEndpoint      string        `koanf:"test_endpoint"       validate:"required,endpoint"`
	MaxRecords        int           `koanf:"max_records"         validate:"gt=0"`
	FilterKeywords    []string      `koanf:"filter_keywords"`
	Lookback          time.Duration `koanf:"lookback"            validate:"gt=0"`
	Timeout           time.Duration `koanf:"timeout"             validate:"gt=0"`
	Retries           int           `koanf:"retries"             validate:"gte=0,lte=10"`
	Concurrency       int           `koanf:"concurrency"         validate:"gt=0"`
}

//
// Validator section
//

// Validation selects the rule set and how hard we work on it.
type Validation struct {
	RulesFile string `koanf:"rules_file"` // empty → compiled-in GRDC rules
	Workers   int    `koanf:"workers" validate:"gt=0"`
	Watch     bool   `koanf:"watch"`
}

//
// Notifications section
//

// Notifications configures where reports go.
type Notifications struct {
	Channel           string   `koanf:"channel"             validate:"oneof=file email log"`
	Destination       []string `koanf:"destination"         validate:"required_if=Channel email,dive,email"`
	OutputDir         string   `koanf:"output_dir"          validate:"required_if=Channel file"`
	Sender            string   `koanf:"sender"              validate:"required_if=Channel email,omitempty,email"`
	ServerToken       string   `koanf:"server_token"        validate:"required_if=Channel email"`
	AccountToken      string   `koanf:"account_token"`
	NotifyEachInvalid bool     `koanf:"notify_each_invalid"`
}

//
// Database section
//

// Database holds the run-state DSN template and its secret.
//
// The *template* (`DSN`) is kept in YAML so operators can tweak host, port,
// or flags without touching Vault.  The *secret* (`Password`) is usually a
// `vault:` reference and is spliced into the first `%s` of the template.
// An empty DSN keeps run state in memory.
type Database struct {
	DSN      string `koanf:"dsn" validate:"dsn_template"`
	Password string `koanf:"password"`
}

//
// HTTP section
//

// HTTP holds ops-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
	CacheSize  int    `koanf:"cache_size"  validate:"gt=0"`
}

//
// Schedule section
//

// Schedule drives `harvest serve`.
type Schedule struct {
	Interval time.Duration `koanf:"interval" validate:"gte=0"` // 0 disables the scheduler
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.  The loader
// discovers `Root` (repo root or HARVEST_ROOT override) so later code can
// build absolute file paths.
type Paths struct {
	Root string
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	Source        Source        `koanf:"source"`
	Validator     Validation    `koanf:"validator"`
	Notifications Notifications `koanf:"notifications"`
	Database      Database      `koanf:"database"`
	HTTP          HTTP          `koanf:"http"`
	Schedule      Schedule      `koanf:"schedule"`
	Paths         Paths         `koanf:"-"` // not loaded from config files
}

//
// Defaults
//

// applyDefaults fills zero values.  Schedule.Interval is left alone so an
// explicit 0 can disable scheduling; the YAML sample sets it.
func applyDefaults(c *Config) {
	setDefault(&c.Source.SearchEndpoint, "/srv/api/search/records/_search")
	setDefault(&c.Source.GetRecordEndpoint, "/srv/api/records")
	setDefault(&c.Source.TestEndpoint, "/srv/api/site")
	setDefault(&c.Source.MaxRecords, 100)
	setDefault(&c.Source.Lookback, 7*24*time.Hour)
	setDefault(&c.Source.Timeout, 30*time.Second)
	setDefault(&c.Source.Retries, 3)
	setDefault(&c.Source.Concurrency, 4)

	setDefault(&c.Validator.Workers, 4)

	setDefault(&c.Notifications.Channel, "file")
	setDefault(&c.Notifications.OutputDir, "notifications")

	setDefault(&c.HTTP.ListenAddr, ":9090")
	setDefault(&c.HTTP.CacheSize, 1024)
}

func setDefault[T comparable](dst *T, v T) {
	var zero T
	if *dst == zero {
		*dst = v
	}
}
