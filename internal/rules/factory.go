// internal/rules/factory.go
//
// Rule factory.
//
// Context
// -------
// Build turns the configured Definitions into Rule instances, one-to-one and
// in the same order.  Any problem here (unknown kind, bad path, missing field
// name, empty allowed-value list) is a ConfigError: the process must refuse
// to start rather than skip the rule and silently validate less.
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yanizio/harvest/internal/xmldoc"
)

// ConfigError reports a Definition that cannot be turned into a Rule.
type ConfigError struct {
	Index int // position in the configured list
	Def   Definition
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("rule %d (%s %q): %v", e.Index, e.Def.Kind, e.Def.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Configuration problems wrapped by ConfigError.
var (
	ErrUnknownKind     = errors.New("unknown rule kind")
	ErrMissingField    = errors.New("field name is required")
	ErrNoAllowedValues = errors.New("allowed values are required")
)

// Build constructs rules from defs.  Paths are compiled against ns.
func Build(defs []Definition, ns xmldoc.NamespaceTable) ([]Rule, error) {
	out := make([]Rule, 0, len(defs))
	for i, d := range defs {
		r, err := build(d, ns)
		if err != nil {
			return nil, &ConfigError{Index: i, Def: d, Err: err}
		}
		out = append(out, r)
	}
	return out, nil
}

func build(d Definition, ns xmldoc.NamespaceTable) (Rule, error) {
	if _, ok := kindNames[d.Kind]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(d.Kind))
	}
	if strings.TrimSpace(d.Field) == "" {
		return nil, ErrMissingField
	}

	p, err := xmldoc.Compile(d.Path, ns)
	if err != nil {
		return nil, err
	}
	d.AllowedValues = append([]string(nil), d.AllowedValues...)
	b := base{def: d, path: p}

	switch d.Kind {
	case FieldExists:
		return fieldExists{b}, nil
	case ValueInList:
		if len(d.AllowedValues) == 0 {
			return nil, ErrNoAllowedValues
		}
		return valueInList{b}, nil
	case Float:
		return float{b}, nil
	case Date:
		return date{b}, nil
	case ValidPurpose:
		return validPurpose{b}, nil
	case Identifier:
		return identifier{b}, nil
	case Citation:
		return citation{b}, nil
	case PrincipalInvestigator:
		pp, err := compilePartyPaths(ns)
		if err != nil {
			return nil, err
		}
		return principalInvestigator{base: b, party: pp}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownKind, d.Kind)
}

// MustBuild is Build for rule sets compiled into the binary.
func MustBuild(defs []Definition, ns xmldoc.NamespaceTable) []Rule {
	rs, err := Build(defs, ns)
	if err != nil {
		panic(err)
	}
	return rs
}
