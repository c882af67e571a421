// internal/xmldoc/namespace.go
//
// Prefix table for the ISO 19115-3 dialect served by GeoNetwork.
//
// Context
// -------
// Rule paths are written with short prefixes (`mri:abstract`,
// `gco:CharacterString`).  Every path is expanded against a NamespaceTable
// at compile time, so the table has to exist before any rule is built.  It
// is a value, not a package global: callers start from DefaultNamespaces()
// and may Extend() it, which returns a fresh table.
//
// Notes
// -----
//   - The table is never mutated after construction, so it is safe to share
//     across goroutines.
//   - Oxford commas, two spaces after periods.
package xmldoc

import "sort"

// NamespaceTable maps a short prefix to its namespace URI.
type NamespaceTable struct {
	uris map[string]string
}

var iso19115 = map[string]string{
	"mdb":   "http://standards.iso.org/iso/19115/-3/mdb/2.0",
	"xsi":   "http://www.w3.org/2001/XMLSchema-instance",
	"cat":   "http://standards.iso.org/iso/19115/-3/cat/1.0",
	"gfc":   "http://standards.iso.org/iso/19110/gfc/1.1",
	"cit":   "http://standards.iso.org/iso/19115/-3/cit/2.0",
	"gcx":   "http://standards.iso.org/iso/19115/-3/gcx/1.0",
	"gex":   "http://standards.iso.org/iso/19115/-3/gex/1.0",
	"lan":   "http://standards.iso.org/iso/19115/-3/lan/1.0",
	"srv":   "http://standards.iso.org/iso/19115/-3/srv/2.1",
	"mas":   "http://standards.iso.org/iso/19115/-3/mas/1.0",
	"mcc":   "http://standards.iso.org/iso/19115/-3/mcc/1.0",
	"mco":   "http://standards.iso.org/iso/19115/-3/mco/1.0",
	"mda":   "http://standards.iso.org/iso/19115/-3/mda/1.0",
	"mds":   "http://standards.iso.org/iso/19115/-3/mds/2.0",
	"mdt":   "http://standards.iso.org/iso/19115/-3/mdt/2.0",
	"mex":   "http://standards.iso.org/iso/19115/-3/mex/1.0",
	"mmi":   "http://standards.iso.org/iso/19115/-3/mmi/1.0",
	"mpc":   "http://standards.iso.org/iso/19115/-3/mpc/1.0",
	"mrc":   "http://standards.iso.org/iso/19115/-3/mrc/2.0",
	"mrd":   "http://standards.iso.org/iso/19115/-3/mrd/1.0",
	"mri":   "http://standards.iso.org/iso/19115/-3/mri/1.0",
	"mrl":   "http://standards.iso.org/iso/19115/-3/mrl/2.0",
	"mrs":   "http://standards.iso.org/iso/19115/-3/mrs/1.0",
	"msr":   "http://standards.iso.org/iso/19115/-3/msr/2.0",
	"mdq":   "http://standards.iso.org/iso/19157/-2/mdq/1.0",
	"mac":   "http://standards.iso.org/iso/19115/-3/mac/2.0",
	"gco":   "http://standards.iso.org/iso/19115/-3/gco/1.0",
	"gml":   "http://www.opengis.net/gml/3.2",
	"xlink": "http://www.w3.org/1999/xlink",
}

// DefaultNamespaces returns the table for the ISO 19115-3 metadata dialect.
func DefaultNamespaces() NamespaceTable {
	return NewNamespaceTable(iso19115)
}

// NewNamespaceTable copies m into a new table.
func NewNamespaceTable(m map[string]string) NamespaceTable {
	uris := make(map[string]string, len(m))
	for p, u := range m {
		uris[p] = u
	}
	return NamespaceTable{uris: uris}
}

// Extend returns a new table holding t plus extra.  Entries in extra win.
func (t NamespaceTable) Extend(extra map[string]string) NamespaceTable {
	uris := make(map[string]string, len(t.uris)+len(extra))
	for p, u := range t.uris {
		uris[p] = u
	}
	for p, u := range extra {
		uris[p] = u
	}
	return NamespaceTable{uris: uris}
}

// Lookup returns the URI bound to prefix.
func (t NamespaceTable) Lookup(prefix string) (string, bool) {
	u, ok := t.uris[prefix]
	return u, ok
}

// Prefixes lists the known prefixes in sorted order.
func (t NamespaceTable) Prefixes() []string {
	out := make([]string, 0, len(t.uris))
	for p := range t.uris {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Len reports the number of bound prefixes.
func (t NamespaceTable) Len() int { return len(t.uris) }
