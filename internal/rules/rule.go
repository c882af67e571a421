// internal/rules/rule.go
//
// Rule contract and rule kinds.
//
// Context
// -------
// A Rule is one declarative check bound to a path in the record.  Evaluate
// never panics on absent nodes and never returns a Go error: a failing check
// is a human-readable message, and "no message" means the check passed.
// Rules hold only their Definition and compiled paths, so one instance is
// shared by every record and every goroutine.
//
// Notes
// -----
//   - Kinds form a closed set.  Build rejects anything else at startup.
//   - Oxford commas, two spaces after periods.
package rules

import (
	"fmt"
	"strings"

	"github.com/yanizio/harvest/internal/xmldoc"
)

// Kind tags a rule variant.
type Kind int

const (
	FieldExists Kind = iota + 1
	ValueInList
	Float
	Date
	ValidPurpose
	Identifier
	Citation
	PrincipalInvestigator
)

var kindNames = map[Kind]string{
	FieldExists:           "field_exists",
	ValueInList:           "value_in_list",
	Float:                 "float",
	Date:                  "date",
	ValidPurpose:          "valid_purpose",
	Identifier:            "identifier",
	Citation:              "citation",
	PrincipalInvestigator: "principal_investigator",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a configuration tag to a Kind.  Case, underscores, and
// hyphens are ignored, so "FieldExists", "field_exists", and "field-exists"
// are the same tag.
func ParseKind(tag string) (Kind, bool) {
	norm := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(tag))
	for k, name := range kindNames {
		if strings.ReplaceAll(name, "_", "") == norm {
			return k, true
		}
	}
	return 0, false
}

// Definition is one configured rule.  AllowedValues is only read by
// ValueInList.
type Definition struct {
	Kind          Kind
	Path          string
	Field         string
	AllowedValues []string
}

// Rule evaluates one Definition against a parsed record.
type Rule interface {
	Kind() Kind
	Definition() Definition
	// Evaluate returns the failure message and true when the record fails
	// the check.
	Evaluate(doc *xmldoc.Document) (string, bool)
}

// base carries what every variant shares.
type base struct {
	def  Definition
	path xmldoc.Path
}

func (b base) Kind() Kind             { return b.def.Kind }
func (b base) Definition() Definition { return b.def }

func (b base) missing() (string, bool) {
	return fmt.Sprintf("Record is missing a %s.", b.def.Field), true
}

func pass() (string, bool) { return "", false }

func fail(format string, args ...any) (string, bool) {
	return fmt.Sprintf(format, args...), true
}
