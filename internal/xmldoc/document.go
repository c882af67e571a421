// internal/xmldoc/document.go
//
// Read-only element tree for one metadata record.
//
// Context
// -------
// Parse turns raw record text into a Document once per validation call.
// Nothing in the tree is mutated after Parse returns, which lets every rule
// walk the same Document without copying it.
//
// Notes
// -----
//   - Element.Text holds the element's own character data (CDATA included),
//     not the text of its descendants.
//   - Non-UTF-8 encodings declared in the prolog are decoded through
//     x/net/html/charset.
package xmldoc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// Name is a namespace-qualified element or attribute name.
type Name struct {
	Space string // namespace URI, empty when unqualified
	Local string
}

func (n Name) String() string {
	if n.Space == "" {
		return n.Local
	}
	return "{" + n.Space + "}" + n.Local
}

// Attr is one attribute on an Element.
type Attr struct {
	Name  Name
	Value string
}

// Element is a node of the parsed tree.
type Element struct {
	Name     Name
	Text     string
	Attrs    []Attr
	Children []*Element
	Parent   *Element
}

// Attr returns the value of the attribute matching name.
func (e *Element) Attr(name Name) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// TrimmedText returns Text without surrounding whitespace.
func (e *Element) TrimmedText() string { return strings.TrimSpace(e.Text) }

// Document is a parsed record.
type Document struct {
	Root *Element
}

// Parse errors.
var (
	ErrEmptyDocument = errors.New("no element found")
	ErrTrailingData  = errors.New("junk after document element")
	ErrUnboundPrefix = errors.New("unbound prefix")
)

// xmlNamespace is the URI the reserved xml prefix is always bound to.
const xmlNamespace = "http://www.w3.org/XML/1998/namespace"

// Parse decodes raw into a Document.  Any error means the text is not a
// well-formed XML document.
func Parse(raw []byte) (*Document, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.CharsetReader = charset.NewReaderLabel

	var (
		root  *Element
		stack []*Element
		text  []strings.Builder
		// URIs declared on each open element, and how many open
		// declarations bind each URI.
		decls   [][]string
		inScope = map[string]int{}
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if root != nil && len(stack) == 0 {
				return nil, fmt.Errorf("line %d: %w", lineOf(dec), ErrTrailingData)
			}
			var declared []string
			for _, a := range t.Attr {
				if isNamespaceDecl(a.Name) && a.Value != "" {
					declared = append(declared, a.Value)
					inScope[a.Value]++
				}
			}
			decls = append(decls, declared)

			// The decoder leaves an unbound prefix in Name.Space instead
			// of a namespace URI.
			if !bound(t.Name.Space, inScope) {
				return nil, fmt.Errorf("line %d: %w %q", lineOf(dec), ErrUnboundPrefix, t.Name.Space)
			}

			el := &Element{Name: Name{Space: t.Name.Space, Local: t.Name.Local}}
			for _, a := range t.Attr {
				if isNamespaceDecl(a.Name) {
					continue
				}
				if !bound(a.Name.Space, inScope) {
					return nil, fmt.Errorf("line %d: %w %q", lineOf(dec), ErrUnboundPrefix, a.Name.Space)
				}
				el.Attrs = append(el.Attrs, Attr{
					Name:  Name{Space: a.Name.Space, Local: a.Name.Local},
					Value: a.Value,
				})
			}
			if n := len(stack); n > 0 {
				parent := stack[n-1]
				el.Parent = parent
				parent.Children = append(parent.Children, el)
			} else {
				root = el
			}
			stack = append(stack, el)
			text = append(text, strings.Builder{})

		case xml.EndElement:
			n := len(stack)
			stack[n-1].Text = text[n-1].String()
			stack = stack[:n-1]
			text = text[:n-1]
			for _, uri := range decls[n-1] {
				inScope[uri]--
			}
			decls = decls[:n-1]

		case xml.CharData:
			if n := len(stack); n > 0 {
				text[n-1].Write(t)
				continue
			}
			if len(bytes.TrimSpace(t)) > 0 {
				if root == nil {
					return nil, fmt.Errorf("line %d: text before document element", lineOf(dec))
				}
				return nil, fmt.Errorf("line %d: %w", lineOf(dec), ErrTrailingData)
			}
		}
	}

	if root == nil {
		return nil, ErrEmptyDocument
	}
	return &Document{Root: root}, nil
}

func isNamespaceDecl(n xml.Name) bool {
	return n.Space == "xmlns" || (n.Space == "" && n.Local == "xmlns")
}

func bound(space string, inScope map[string]int) bool {
	return space == "" || space == xmlNamespace || inScope[space] > 0
}

func lineOf(dec *xml.Decoder) int {
	line, _ := dec.InputPos()
	return line
}
