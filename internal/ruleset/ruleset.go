// internal/ruleset/ruleset.go
//
// Rule-set YAML loader.
//
// Context
//   Operators describe the checks a record must pass in one YAML file:
//
//	namespaces:            # optional, added to the ISO 19115-3 defaults
//	  grdc: http://example.org/grdc/1.0
//	rules:
//	  - kind: field_exists
//	    path: .//mri:abstract/gco:CharacterString
//	    field: abstract
//	  - kind: value_in_list
//	    path: .//mcc:MD_ScopeCode/@codeListValue
//	    field: resource type
//	    allowed_values: [dataset, product]
//
//   Load decodes the file, maps kind tags through rules.ParseKind, and builds
//   the rules immediately, so a typo surfaces at startup (or at reload time)
//   instead of as a rule that silently never fires.  The result is an
//   immutable Set: definitions, compiled rules, and a ready Validator.
//
// Notes
//   • Unknown YAML keys are rejected.
//   • Version is a digest of the file bytes.  Caches keyed by it are
//     invalidated by any edit.
//   • Oxford commas, two spaces after periods.
//
//------------------------------------------------------------------------------

package ruleset

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yanizio/harvest/internal/rules"
	"github.com/yanizio/harvest/internal/xmldoc"
)

// DefaultVersion identifies the compiled-in GRDC rule set.
const DefaultVersion = "default"

// ErrNoRules is returned for a rules file without any entries.
var ErrNoRules = errors.New("rules file defines no rules")

// -----------------------------------------------------------------------------
// Data structures
// -----------------------------------------------------------------------------

// fileDef mirrors the YAML schema.
type fileDef struct {
	Namespaces map[string]string `yaml:"namespaces"`
	Rules      []ruleDef         `yaml:"rules"`
}

type ruleDef struct {
	Kind          string   `yaml:"kind"`
	Path          string   `yaml:"path"`
	Field         string   `yaml:"field"`
	AllowedValues []string `yaml:"allowed_values"`
}

// Set is one loaded rule set.  Treat it as read-only.
type Set struct {
	Version     string
	Source      string // file path, or "" for the compiled-in set
	Namespaces  xmldoc.NamespaceTable
	Definitions []rules.Definition
	Rules       []rules.Rule
	Validator   *rules.Validator
}

// -----------------------------------------------------------------------------
// Loader API
// -----------------------------------------------------------------------------

// Default returns the compiled-in GRDC rule set over ns.
func Default(ns xmldoc.NamespaceTable) (*Set, error) {
	return newSet(DefaultVersion, "", ns, rules.DefaultDefinitions())
}

// Load reads and builds the rule set at path.  Namespaces declared in the
// file extend ns.
func Load(path string, ns xmldoc.NamespaceTable) (*Set, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file %s: %w", path, err)
	}
	s, err := Parse(raw, ns)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	s.Source = path
	return s, nil
}

// Parse builds a rule set from YAML bytes.
func Parse(raw []byte, ns xmldoc.NamespaceTable) (*Set, error) {
	var fd fileDef
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&fd); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if len(fd.Rules) == 0 {
		return nil, ErrNoRules
	}

	defs := make([]rules.Definition, 0, len(fd.Rules))
	for i, rd := range fd.Rules {
		d := rules.Definition{
			Path:          strings.TrimSpace(rd.Path),
			Field:         rd.Field,
			AllowedValues: rd.AllowedValues,
		}
		k, ok := rules.ParseKind(rd.Kind)
		if !ok {
			return nil, &rules.ConfigError{
				Index: i,
				Def:   d,
				Err:   fmt.Errorf("%w: %q", rules.ErrUnknownKind, rd.Kind),
			}
		}
		d.Kind = k
		defs = append(defs, d)
	}

	sum := sha256.Sum256(raw)
	return newSet(hex.EncodeToString(sum[:6]), "", ns.Extend(fd.Namespaces), defs)
}

func newSet(version, source string, ns xmldoc.NamespaceTable, defs []rules.Definition) (*Set, error) {
	rs, err := rules.Build(defs, ns)
	if err != nil {
		return nil, err
	}
	return &Set{
		Version:     version,
		Source:      source,
		Namespaces:  ns,
		Definitions: defs,
		Rules:       rs,
		Validator:   rules.NewValidator(rs),
	}, nil
}

// Open returns the set at path, or the compiled-in set when path is empty.
func Open(path string, ns xmldoc.NamespaceTable) (*Set, error) {
	if path == "" {
		return Default(ns)
	}
	return Load(path, ns)
}
