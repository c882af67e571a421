package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
source:
  url: https://geonetwork.example.org/geonetwork
  filter_keywords: [GRDC, grains]
  lookback: 72h
validator:
  rules_file: conf/rules.yaml
  workers: 2
notifications:
  channel: email
  destination: [data@example.org]
  sender: harvester@example.org
  server_token: vault:secret/harvest#postmark
database:
  dsn: "harvest:%s@tcp(db:3306)/harvest?parseTime=true"
  password: vault:secret/harvest#db
schedule:
  interval: 24h
`

type fakeSecrets struct {
	values map[string]string
	calls  int
}

func (f *fakeSecrets) GetKV(_ context.Context, path, key string, _ time.Duration) (string, error) {
	f.calls++
	v, ok := f.values[path+"#"+key]
	if !ok {
		return "", errors.New("no such secret")
	}
	return v, nil
}

func writeConf(t *testing.T, body string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "conf"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "conf", FileName), []byte(body), 0o600))
	return root
}

func TestLoadFrom(t *testing.T) {
	root := writeConf(t, sampleYAML)
	secrets := &fakeSecrets{values: map[string]string{
		"secret/harvest#postmark": "pm-token",
		"secret/harvest#db":       "s3cret",
	}}

	cfg, err := LoadFrom(context.Background(), root, secrets)
	require.NoError(t, err)

	assert.Equal(t, "https://geonetwork.example.org/geonetwork", cfg.Source.URL)
	assert.Equal(t, []string{"GRDC", "grains"}, cfg.Source.FilterKeywords)
	assert.Equal(t, 72*time.Hour, cfg.Source.Lookback)
	assert.Equal(t, 100, cfg.Source.MaxRecords)
	assert.Equal(t, 30*time.Second, cfg.Source.Timeout)
	assert.Equal(t, "/srv/api/search/records/_search", cfg.Source.SearchEndpoint)

	assert.Equal(t, filepath.Join(root, "conf/rules.yaml"), cfg.Validator.RulesFile)
	assert.Equal(t, 2, cfg.Validator.Workers)

	assert.Equal(t, "pm-token", cfg.Notifications.ServerToken)
	assert.Equal(t, "harvest:s3cret@tcp(db:3306)/harvest?parseTime=true", cfg.Database.ResolvedDSN())
	assert.Equal(t, 2, secrets.calls)

	assert.Equal(t, ":9090", cfg.HTTP.ListenAddr)
	assert.Equal(t, 24*time.Hour, cfg.Schedule.Interval)
	assert.Equal(t, root, cfg.Paths.Root)
	assert.Same(t, cfg, Get())
}

func TestLoadFromEnvOverrides(t *testing.T) {
	root := writeConf(t, `
source:
  url: https://geonetwork.example.org
notifications:
  channel: file
`)
	t.Setenv("HARVEST_SOURCE__MAX_RECORDS", "25")
	t.Setenv("HARVEST_HTTP__LISTEN_ADDR", "127.0.0.1:8088")
	t.Setenv("HARVEST_NOTIFICATIONS__OUTPUT_DIR", "/var/harvest/out")

	cfg, err := LoadFrom(context.Background(), root, nil)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Source.MaxRecords)
	assert.Equal(t, "127.0.0.1:8088", cfg.HTTP.ListenAddr)
	assert.Equal(t, "/var/harvest/out", cfg.Notifications.OutputDir)
}

func TestLoadFromDefaultsOutputDirUnderRoot(t *testing.T) {
	root := writeConf(t, "source:\n  url: https://gn.example.org\n")

	cfg, err := LoadFrom(context.Background(), root, nil)
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Notifications.Channel)
	assert.Equal(t, filepath.Join(root, "notifications"), cfg.Notifications.OutputDir)
	assert.Empty(t, cfg.Database.ResolvedDSN())
}

func TestLoadFromInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing url", "notifications:\n  channel: log\n"},
		{"bad url", "source:\n  url: not a url\n"},
		{"bad channel", "source:\n  url: https://gn.example.org\nnotifications:\n  channel: pager\n"},
		{"email without sender", "source:\n  url: https://gn.example.org\nnotifications:\n  channel: email\n  destination: [a@b.org]\n  server_token: t\n"},
		{"endpoint without slash", "source:\n  url: https://gn.example.org\n  test_endpoint: srv/api/site\n"},
		{"two dsn verbs", "source:\n  url: https://gn.example.org\ndatabase:\n  dsn: \"%s:%s@tcp(db)/h\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(context.Background(), writeConf(t, tt.yaml), nil)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoadFromSecrets(t *testing.T) {
	yaml := "source:\n  url: https://gn.example.org\ndatabase:\n  password: vault:secret/harvest#db\n"

	_, err := LoadFrom(context.Background(), writeConf(t, yaml), nil)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = LoadFrom(context.Background(), writeConf(t, yaml), &fakeSecrets{})
	assert.ErrorContains(t, err, "no such secret")

	malformed := "source:\n  url: https://gn.example.org\ndatabase:\n  password: vault:secret/harvest\n"
	_, err = LoadFrom(context.Background(), writeConf(t, malformed), &fakeSecrets{})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadFromMissingFile(t *testing.T) {
	_, err := LoadFrom(context.Background(), t.TempDir(), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRootDirFromEnv(t *testing.T) {
	t.Setenv("HARVEST_ROOT", "/srv/harvest")
	assert.Equal(t, "/srv/harvest", RootDir())
}

func TestSampleConfigLoads(t *testing.T) {
	root, err := filepath.Abs(filepath.Join("..", ".."))
	require.NoError(t, err)

	cfg, err := LoadFrom(context.Background(), root, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "conf", "rules.yaml"), cfg.Validator.RulesFile)
	assert.Equal(t, 24*time.Hour, cfg.Schedule.Interval)
	assert.Empty(t, cfg.Database.DSN)
}
