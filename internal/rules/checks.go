// internal/rules/checks.go
//
// Single-value rule variants.
//
// Context
// -------
// Every variant here resolves its path to one string (element text or
// attribute value) and runs a format check on the trimmed value.
// FieldExists only asks whether a non-blank value is present; the others
// treat a path with no match as a missing field and an empty value as a
// format violation, so a record never slips through because the node is
// absent.
package rules

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/yanizio/harvest/internal/xmldoc"
)

//
// FieldExists
//

type fieldExists struct{ base }

func (r fieldExists) Evaluate(doc *xmldoc.Document) (string, bool) {
	v, ok := r.path.ValueDoc(doc)
	if !ok || strings.TrimSpace(v) == "" {
		return r.missing()
	}
	return pass()
}

//
// ValueInList
//

type valueInList struct{ base }

func (r valueInList) Evaluate(doc *xmldoc.Document) (string, bool) {
	v, ok := r.path.ValueDoc(doc)
	if !ok {
		return r.missing()
	}
	v = strings.TrimSpace(v)
	if slices.Contains(r.def.AllowedValues, v) {
		return pass()
	}
	return fail("invalid %s: '%s'. Allowed values are: %s",
		r.def.Field, v, strings.Join(r.def.AllowedValues, ", "))
}

//
// Float
//

type float struct{ base }

func (r float) Evaluate(doc *xmldoc.Document) (string, bool) {
	v, ok := r.path.ValueDoc(doc)
	if !ok {
		return r.missing()
	}
	v = strings.TrimSpace(v)
	if isHexFloat(v) {
		return fail("invalid float: %s", v)
	}
	if _, err := strconv.ParseFloat(v, 64); err != nil {
		return fail("invalid float: %s", v)
	}
	return pass()
}

// isHexFloat reports a 0x mantissa, which ParseFloat would otherwise accept.
func isHexFloat(v string) bool {
	v = strings.TrimLeft(v, "+-")
	return strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X")
}

//
// Date
//

// dateLayouts are tried in order.
var dateLayouts = []string{"2006-01-02", "02-01-2006"}

type date struct{ base }

func (r date) Evaluate(doc *xmldoc.Document) (string, bool) {
	v, ok := r.path.ValueDoc(doc)
	if !ok {
		return r.missing()
	}
	v = strings.TrimSpace(v)
	if parseDate(v) {
		return pass()
	}
	return fail("invalid date: %s", v)
}

func parseDate(v string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

//
// Identifier and Citation
//

const (
	doiPrefix    = "10."
	handlePrefix = "http://hdl.handle.net/"
)

func isURL(v string) bool {
	return strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://")
}

type identifier struct{ base }

// Evaluate checks DOI, then handle, then URL.  The first match wins.
func (r identifier) Evaluate(doc *xmldoc.Document) (string, bool) {
	v, ok := r.path.ValueDoc(doc)
	if !ok {
		return r.missing()
	}
	v = strings.TrimSpace(v)
	switch {
	case strings.HasPrefix(v, doiPrefix):
	case strings.HasPrefix(v, handlePrefix):
	case isURL(v):
	default:
		return fail("invalid identifier: %s", v)
	}
	return pass()
}

type citation struct{ base }

func (r citation) Evaluate(doc *xmldoc.Document) (string, bool) {
	v, ok := r.path.ValueDoc(doc)
	if !ok {
		return r.missing()
	}
	v = strings.TrimSpace(v)
	if !isURL(v) {
		return fail("invalid citation: %s", v)
	}
	return pass()
}
