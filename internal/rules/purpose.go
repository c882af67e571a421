// internal/rules/purpose.go
//
// ValidPurpose rule.
//
// Context
// -------
// The purpose statement must read "contract code, project title": exactly
// one comma, a well-formed GRDC contract code before it, and a non-blank
// title after it.
package rules

import (
	"regexp"
	"strings"

	"github.com/yanizio/harvest/internal/xmldoc"
)

// contractCode is three capitals, four digits, a hyphen, three digits, an
// optional hyphen, and three capitals: ABC1234-567-XYZ or ABC1234-567XYZ.
var contractCode = regexp.MustCompile(`^[A-Z]{3}[0-9]{4}-[0-9]{3}-?[A-Z]{3}$`)

// validPurpose expects "GRDC contract code, project title".
type validPurpose struct{ base }

func (r validPurpose) Evaluate(doc *xmldoc.Document) (string, bool) {
	v, ok := r.path.ValueDoc(doc)
	if !ok {
		return r.missing()
	}
	v = strings.TrimSpace(v)

	parts := strings.Split(v, ",")
	if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
		return fail("invalid %s: '%s'. Expected format 'GRDC contract code, project title'",
			r.def.Field, v)
	}

	code := strings.TrimSpace(parts[0])
	if !contractCode.MatchString(code) {
		return fail("invalid contract code: %s. Expected format ABC1234-567-XYZ or ABC1234-567XYZ", code)
	}
	return pass()
}
