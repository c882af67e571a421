package batch

import (
	"strings"
	"time"

	"github.com/yanizio/harvest/internal/connector"
	"github.com/yanizio/harvest/internal/metrics"
	"github.com/yanizio/harvest/internal/ruleset"
	"github.com/yanizio/harvest/internal/xmldoc"
)

// Unassigned is the contact reported for records that name nobody.
const Unassigned = "unassigned"

// parseFailure labels rule-failure metrics for records that do not parse.
const parseFailure = "parse"

// Contact lookups, most specific first.  Compiled against the default table;
// the URIs they resolve to do not change with rule-set namespaces.
var contactPaths = []xmldoc.Path{
	xmldoc.MustCompile(".//mdb:contact//cit:CI_Individual/cit:name/gco:CharacterString", xmldoc.DefaultNamespaces()),
	xmldoc.MustCompile(".//mdb:contact//cit:CI_Organisation/cit:name/gco:CharacterString", xmldoc.DefaultNamespaces()),
}

// Contact returns the record's metadata contact: the first individual name,
// else the first organisation name, else Unassigned.
func Contact(doc *xmldoc.Document) string {
	for _, p := range contactPaths {
		if v, ok := p.ValueDoc(doc); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return Unassigned
}

// evaluate validates one record and updates the record metrics.
func evaluate(set *ruleset.Set, rec connector.Record) RecordOutcome {
	start := time.Now()
	defer func() { metrics.ValidationSeconds.Observe(time.Since(start).Seconds()) }()

	out := RecordOutcome{UUID: rec.UUID, Contact: Unassigned}

	doc, err := xmldoc.Parse([]byte(rec.XML))
	if err != nil {
		res := set.Validator.Validate([]byte(rec.XML))
		out.Errors = res.Errors
		metrics.RuleFailuresTotal.WithLabelValues(parseFailure).Inc()
		metrics.RecordsTotal.WithLabelValues("invalid").Inc()
		return out
	}

	out.Contact = Contact(doc)
	fails := set.Validator.Check(doc)
	out.Errors = make([]string, 0, len(fails))
	for _, f := range fails {
		out.Errors = append(out.Errors, f.Message)
		metrics.RuleFailuresTotal.WithLabelValues(f.Field).Inc()
	}
	out.Valid = len(out.Errors) == 0

	verdict := "valid"
	if !out.Valid {
		verdict = "invalid"
	}
	metrics.RecordsTotal.WithLabelValues(verdict).Inc()
	return out
}
