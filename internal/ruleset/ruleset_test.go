package ruleset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/harvest/internal/logger"
	"github.com/yanizio/harvest/internal/rules"
	"github.com/yanizio/harvest/internal/xmldoc"
)

const abstractOnly = `
rules:
  - kind: field_exists
    path: .//mri:abstract/gco:CharacterString
    field: abstract
`

const withNamespace = `
namespaces:
  grdc: http://example.org/grdc/1.0
rules:
  - kind: ValueInList
    path: .//grdc:program/@code
    field: program
    allowed_values: [core, pilot]
  - kind: date
    path: .//grdc:start
    field: start date
`

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDefault(t *testing.T) {
	t.Parallel()

	s, err := Default(xmldoc.DefaultNamespaces())
	require.NoError(t, err)
	assert.Equal(t, DefaultVersion, s.Version)
	assert.Len(t, s.Rules, len(rules.DefaultDefinitions()))
	assert.NotNil(t, s.Validator)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	p := writeFile(t, t.TempDir(), withNamespace)
	s, err := Load(p, xmldoc.DefaultNamespaces())
	require.NoError(t, err)

	assert.Equal(t, p, s.Source)
	assert.Len(t, s.Version, 12)
	require.Len(t, s.Definitions, 2)
	assert.Equal(t, rules.ValueInList, s.Definitions[0].Kind)
	assert.Equal(t, []string{"core", "pilot"}, s.Definitions[0].AllowedValues)
	assert.Equal(t, rules.Date, s.Definitions[1].Kind)

	uri, ok := s.Namespaces.Lookup("grdc")
	assert.True(t, ok)
	assert.Equal(t, "http://example.org/grdc/1.0", uri)

	doc := `<r xmlns="http://example.org/grdc/1.0"><program code="core"/><start>2024-01-31</start></r>`
	res := s.Validator.Validate([]byte(doc))
	assert.True(t, res.Valid, "errors: %v", res.Errors)

	doc = `<r xmlns="http://example.org/grdc/1.0"><program code="other"/></r>`
	res = s.Validator.Validate([]byte(doc))
	assert.Equal(t, []string{
		"invalid program: 'other'. Allowed values are: core, pilot",
		"Record is missing a start date.",
	}, res.Errors)
}

func TestLoadVersionTracksContent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a, err := Load(writeFile(t, dir, abstractOnly), xmldoc.DefaultNamespaces())
	require.NoError(t, err)
	b, err := Load(writeFile(t, dir, withNamespace), xmldoc.DefaultNamespaces())
	require.NoError(t, err)
	c, err := Load(writeFile(t, dir, abstractOnly), xmldoc.DefaultNamespaces())
	require.NoError(t, err)

	assert.NotEqual(t, a.Version, b.Version)
	assert.Equal(t, a.Version, c.Version)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	ns := xmldoc.DefaultNamespaces()

	_, err := Parse([]byte(""), ns)
	assert.ErrorIs(t, err, ErrNoRules)

	_, err = Parse([]byte("rules: []"), ns)
	assert.ErrorIs(t, err, ErrNoRules)

	_, err = Parse([]byte("rules:\n  - kind: regex\n    path: .//a\n    field: a\n"), ns)
	assert.ErrorIs(t, err, rules.ErrUnknownKind)
	var ce *rules.ConfigError
	assert.True(t, errors.As(err, &ce))

	_, err = Parse([]byte("rules:\n  - kind: date\n    path: .//zz:a\n    field: a\n"), ns)
	assert.ErrorIs(t, err, xmldoc.ErrInvalidPath)

	_, err = Parse([]byte("rules:\n  - kind: date\n    path: .//mri:a\n    feild: a\n"), ns)
	assert.ErrorContains(t, err, "parse YAML")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), ns)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpen(t *testing.T) {
	t.Parallel()

	s, err := Open("", xmldoc.DefaultNamespaces())
	require.NoError(t, err)
	assert.Equal(t, DefaultVersion, s.Version)
}

func TestStoreReloadKeepsPreviousOnFailure(t *testing.T) {
	t.Parallel()

	ns := xmldoc.DefaultNamespaces()
	dir := t.TempDir()
	p := writeFile(t, dir, abstractOnly)
	first, err := Load(p, ns)
	require.NoError(t, err)
	st := NewStore(first)

	writeFile(t, dir, "rules: [")
	_, err = st.Reload(p, ns)
	require.Error(t, err)
	assert.Same(t, first, st.Current())

	writeFile(t, dir, withNamespace)
	next, err := st.Reload(p, ns)
	require.NoError(t, err)
	assert.Same(t, next, st.Current())
}

func TestStoreWatch(t *testing.T) {
	ns := xmldoc.DefaultNamespaces()
	dir := t.TempDir()
	p := writeFile(t, dir, abstractOnly)
	first, err := Load(p, ns)
	require.NoError(t, err)
	st := NewStore(first)

	reloaded := make(chan error, 64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- st.Watch(ctx, p, ns, 20*time.Millisecond, logger.Nop(), func(_ *Set, err error) {
			reloaded <- err
		})
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	// Writes may surface as several events; wait for the reload we expect.
	await := func(wantErr bool) {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case err := <-reloaded:
				if (err != nil) == wantErr {
					return
				}
			case <-deadline:
				t.Fatalf("no reload with error=%v", wantErr)
			}
		}
	}

	writeFile(t, dir, "rules: [")
	await(true)
	assert.Same(t, first, st.Current())

	writeFile(t, dir, withNamespace)
	await(false)
	assert.Len(t, st.Current().Rules, 2)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSampleRulesFile(t *testing.T) {
	t.Parallel()

	set, err := Load(filepath.Join("..", "..", "conf", "rules.yaml"), xmldoc.DefaultNamespaces())
	require.NoError(t, err)
	assert.Len(t, set.Rules, len(rules.DefaultDefinitions()))

	raw, err := os.ReadFile(filepath.Join("..", "rules", "testdata", "valid.xml"))
	require.NoError(t, err)
	res := set.Validator.Validate(raw)
	assert.True(t, res.Valid, "errors: %v", res.Errors)
}
