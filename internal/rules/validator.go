// internal/rules/validator.go
//
// Record validator.
//
// Context
// -------
// Validate is the single entry point the harvester uses per record:
//
//	raw text → xmldoc.Parse → every Rule in configured order → Result
//
// A record that does not parse yields exactly one "XML Parse Error" entry and
// no rule runs.  Otherwise each rule runs behind a recover guard, so one
// misbehaving rule cannot hide the reports of the rules after it.
//
// ValidateAll fans a batch out over a bounded errgroup.  Validators hold no
// per-record state, so the only shared data are the immutable rules.
package rules

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/yanizio/harvest/internal/xmldoc"
)

// Result is the verdict for one record.  Valid is true exactly when Errors
// is empty.  Errors follow configured rule order.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Validator runs a fixed rule list.
type Validator struct {
	rules []Rule
}

// NewValidator returns a Validator over rules.  The slice is copied.
func NewValidator(rules []Rule) *Validator {
	return &Validator{rules: append([]Rule(nil), rules...)}
}

// Rules returns the configured rules in order.
func (v *Validator) Rules() []Rule { return append([]Rule(nil), v.rules...) }

// Validate parses raw and evaluates every rule against it.
func (v *Validator) Validate(raw []byte) Result {
	doc, err := xmldoc.Parse(raw)
	if err != nil {
		return Result{Valid: false, Errors: []string{"XML Parse Error: " + err.Error()}}
	}
	return v.ValidateDocument(doc)
}

// ValidateDocument evaluates every rule against an already parsed record.
func (v *Validator) ValidateDocument(doc *xmldoc.Document) Result {
	errs := make([]string, 0)
	for _, f := range v.Check(doc) {
		errs = append(errs, f.Message)
	}
	return Result{Valid: len(errs) == 0, Errors: errs}
}

// Failure is one failed rule with the definition that produced it.
type Failure struct {
	Kind    Kind
	Field   string
	Message string
}

// Check evaluates every rule and returns the failures in rule order.  It is
// the attributed form of ValidateDocument, used where failures are counted
// per rule kind.
func (v *Validator) Check(doc *xmldoc.Document) []Failure {
	var out []Failure
	for _, r := range v.rules {
		if msg, failed := evaluate(r, doc); failed {
			out = append(out, Failure{Kind: r.Kind(), Field: r.Definition().Field, Message: msg})
		}
	}
	return out
}

func evaluate(r Rule, doc *xmldoc.Document) (msg string, failed bool) {
	defer func() {
		if p := recover(); p != nil {
			msg = fmt.Sprintf("internal error evaluating %s: %v", r.Definition().Field, p)
			failed = true
		}
	}()
	return r.Evaluate(doc)
}

// ValidateAll validates every record in docs using up to workers goroutines.
// out[i] is the verdict for docs[i].  The only error is ctx cancellation;
// records not yet started when ctx ends are left as zero Results.
func (v *Validator) ValidateAll(ctx context.Context, docs [][]byte, workers int) ([]Result, error) {
	if workers < 1 {
		workers = 1
	}
	out := make([]Result, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range docs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = v.Validate(docs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, ctx.Err()
}
