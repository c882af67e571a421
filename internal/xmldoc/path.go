// internal/xmldoc/path.go
//
// Namespace-qualified path expressions.
//
// Context
// -------
// Rules address the record with a small XPath subset:
//
//	.//mri:abstract/gco:CharacterString
//	.//mdb:metadataScope//mcc:MD_ScopeCode/@codeListValue
//	mdb:identificationInfo/mri:MD_DataIdentification
//
// A leading `.//` or an inner `//` selects descendants at any depth below the
// current node; a single `/` is a direct child step.  A final `/@name`
// selects an attribute of the matched elements.  Predicates, functions,
// unions, and absolute paths are rejected at compile time so that a bad rule
// fails at startup rather than on every record.
//
// Notes
// -----
//   - "No match" is reported through the bool/nil results, never as an error.
//   - Select returns matches in the order they are reached, without
//     duplicates.
package xmldoc

import (
	"errors"
	"fmt"
	"strings"
)

// Axis describes how a step relates to its context node.
type Axis int

const (
	AxisChild Axis = iota
	AxisDescendant
)

// NodeTest matches an element or attribute name.
type NodeTest struct {
	Any  bool
	Name Name
}

func (t NodeTest) matches(n Name) bool {
	return t.Any || t.Name == n
}

// Step is one location step.
type Step struct {
	Axis Axis
	Test NodeTest
}

// Path is a compiled expression.
type Path struct {
	expr      string
	steps     []Step
	attribute *NodeTest
}

// ErrInvalidPath reports a path outside the supported subset or one that uses
// an unknown prefix.
var ErrInvalidPath = errors.New("invalid path")

func pathErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidPath}, args...)...)
}

// Compile parses expr, expanding prefixes through ns.
func Compile(expr string, ns NamespaceTable) (Path, error) {
	src := strings.TrimSpace(expr)
	if src == "" {
		return Path{}, pathErrorf("path cannot be empty")
	}
	if strings.ContainsAny(src, "[]()|") {
		return Path{}, pathErrorf("predicates, functions, and unions are not supported: %s", expr)
	}
	if strings.HasPrefix(src, "/") {
		return Path{}, pathErrorf("path must be relative: %s", expr)
	}

	p := Path{expr: src}
	axis := AxisChild
	if rest, ok := strings.CutPrefix(src, ".//"); ok {
		axis = AxisDescendant
		src = rest
	}

	for src != "" {
		var token string
		i := strings.IndexByte(src, '/')
		if i < 0 {
			token, src = src, ""
		} else {
			token, src = src[:i], src[i:]
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return Path{}, pathErrorf("path step is missing a node test: %s", expr)
		}

		if name, ok := strings.CutPrefix(token, "@"); ok {
			if src != "" {
				return Path{}, pathErrorf("attribute step must be final: %s", expr)
			}
			if axis != AxisChild {
				return Path{}, pathErrorf("attribute step cannot follow '//': %s", expr)
			}
			test, err := nodeTest(name, ns, true)
			if err != nil {
				return Path{}, err
			}
			p.attribute = &test
			break
		}

		if token == "." {
			if axis != AxisChild || len(p.steps) > 0 {
				return Path{}, pathErrorf("'.' is only allowed as the first step: %s", expr)
			}
		} else {
			test, err := nodeTest(token, ns, false)
			if err != nil {
				return Path{}, err
			}
			p.steps = append(p.steps, Step{Axis: axis, Test: test})
		}

		switch {
		case src == "":
		case strings.HasPrefix(src, "//"):
			axis = AxisDescendant
			src = src[2:]
			if src == "" {
				return Path{}, pathErrorf("path ends with '//': %s", expr)
			}
		default:
			axis = AxisChild
			src = src[1:]
			if src == "" {
				return Path{}, pathErrorf("path ends with '/': %s", expr)
			}
		}
	}

	if len(p.steps) == 0 && p.attribute == nil {
		return Path{}, pathErrorf("path must contain at least one step: %s", expr)
	}
	return p, nil
}

// MustCompile is Compile for package-level paths known to be valid.
func MustCompile(expr string, ns NamespaceTable) Path {
	p, err := Compile(expr, ns)
	if err != nil {
		panic(err)
	}
	return p
}

func nodeTest(token string, ns NamespaceTable, attribute bool) (NodeTest, error) {
	if token == "*" {
		if attribute {
			return NodeTest{}, pathErrorf("attribute wildcards are not supported")
		}
		return NodeTest{Any: true}, nil
	}
	prefix, local, qualified := strings.Cut(token, ":")
	if !qualified {
		local, prefix = prefix, ""
	}
	if local == "" || strings.ContainsAny(local, ": \t") || (qualified && prefix == "") {
		return NodeTest{}, pathErrorf("invalid name %q", token)
	}
	if !qualified {
		return NodeTest{Name: Name{Local: local}}, nil
	}
	uri, ok := ns.Lookup(prefix)
	if !ok {
		return NodeTest{}, pathErrorf("unknown namespace prefix %q", prefix)
	}
	return NodeTest{Name: Name{Space: uri, Local: local}}, nil
}

// String returns the source expression.
func (p Path) String() string { return p.expr }

// IsAttribute reports whether the path ends in an attribute step.
func (p Path) IsAttribute() bool { return p.attribute != nil }

// Select returns every element matched by the element steps, starting at ctx.
// For attribute paths only elements carrying the attribute are returned.
func (p Path) Select(ctx *Element) []*Element {
	if ctx == nil {
		return nil
	}
	current := []*Element{ctx}
	for _, st := range p.steps {
		current = step(current, st)
		if len(current) == 0 {
			return nil
		}
	}
	if p.attribute == nil {
		return current
	}
	out := current[:0:0]
	for _, el := range current {
		if _, ok := el.Attr(p.attribute.Name); ok {
			out = append(out, el)
		}
	}
	return out
}

// First returns the first element matched, or nil.
func (p Path) First(ctx *Element) *Element {
	if m := p.Select(ctx); len(m) > 0 {
		return m[0]
	}
	return nil
}

// Value resolves the path to a string: the attribute value for attribute
// paths, otherwise the first matched element's text.  The bool is false when
// nothing matched.
func (p Path) Value(ctx *Element) (string, bool) {
	el := p.First(ctx)
	if el == nil {
		return "", false
	}
	if p.attribute != nil {
		return el.Attr(p.attribute.Name)
	}
	return el.Text, true
}

// SelectDoc, FirstDoc, and ValueDoc evaluate against the document element.
func (p Path) SelectDoc(d *Document) []*Element    { return p.Select(root(d)) }
func (p Path) FirstDoc(d *Document) *Element       { return p.First(root(d)) }
func (p Path) ValueDoc(d *Document) (string, bool) { return p.Value(root(d)) }

func root(d *Document) *Element {
	if d == nil {
		return nil
	}
	return d.Root
}

func step(ctx []*Element, st Step) []*Element {
	var (
		out  []*Element
		seen map[*Element]struct{}
	)
	if st.Axis == AxisDescendant && len(ctx) > 1 {
		seen = make(map[*Element]struct{})
	}
	for _, el := range ctx {
		switch st.Axis {
		case AxisChild:
			for _, c := range el.Children {
				if st.Test.matches(c.Name) {
					out = append(out, c)
				}
			}
		case AxisDescendant:
			walk(el, func(d *Element) {
				if !st.Test.matches(d.Name) {
					return
				}
				if seen != nil {
					if _, dup := seen[d]; dup {
						return
					}
					seen[d] = struct{}{}
				}
				out = append(out, d)
			})
		}
	}
	return out
}

// walk visits the descendants of el (not el itself) in document order.
func walk(el *Element, fn func(*Element)) {
	for _, c := range el.Children {
		fn(c)
		walk(c, fn)
	}
}
