// internal/rules/investigator.go
//
// PrincipalInvestigator rule.
//
// Context
// -------
// The rule path enumerates candidate parties (usually
// `.//cit:citedResponsibleParty`).  Each party is inspected with paths
// relative to the party element:
//
//  1. role code `principalInvestigator` marks the party as a PI,
//  2. a PI needs a non-blank individual name,
//  3. an email, when present, must contain "@",
//  4. an online resource labelled Orcid (or the common Orchid typo), when
//     present, must link to orcid.org.
//
// The scan stops at the first failing sub-check, so a PI with both a bad
// email and a bad ORCID link reports only the email.
package rules

import (
	"strings"

	"github.com/yanizio/harvest/internal/xmldoc"
)

const piRole = "principalInvestigator"

// partyPaths are compiled once per rule against the rule's namespace table.
type partyPaths struct {
	role    xmldoc.Path
	name    xmldoc.Path
	email   xmldoc.Path
	online  xmldoc.Path
	resName xmldoc.Path
	resLink xmldoc.Path
}

func compilePartyPaths(ns xmldoc.NamespaceTable) (partyPaths, error) {
	var (
		pp  partyPaths
		err error
	)
	for _, c := range []struct {
		dst  *xmldoc.Path
		expr string
	}{
		{&pp.role, ".//cit:role/cit:CI_RoleCode/@codeListValue"},
		{&pp.name, ".//cit:individual/cit:CI_Individual/cit:name/gco:CharacterString"},
		{&pp.email, ".//cit:electronicMailAddress/gco:CharacterString"},
		{&pp.online, ".//cit:onlineResource/cit:CI_OnlineResource"},
		{&pp.resName, "cit:name/gco:CharacterString"},
		{&pp.resLink, "cit:linkage/gco:CharacterString"},
	} {
		if *c.dst, err = xmldoc.Compile(c.expr, ns); err != nil {
			return partyPaths{}, err
		}
	}
	return pp, nil
}

type principalInvestigator struct {
	base
	party partyPaths
}

func (r principalInvestigator) Evaluate(doc *xmldoc.Document) (string, bool) {
	found := false
	for _, p := range r.path.SelectDoc(doc) {
		if role, _ := r.party.role.Value(p); strings.TrimSpace(role) != piRole {
			continue
		}
		found = true

		if name, _ := r.party.name.Value(p); strings.TrimSpace(name) == "" {
			return fail("Principal Investigator must have a name")
		}
		if email, ok := r.party.email.Value(p); ok {
			email = strings.TrimSpace(email)
			if !strings.Contains(email, "@") {
				return fail("Principal Investigator has invalid email: %s", email)
			}
		}
		for _, res := range r.party.online.Select(p) {
			label, _ := r.party.resName.Value(res)
			if !isORCIDLabel(label) {
				continue
			}
			link, ok := r.party.resLink.Value(res)
			if !ok {
				continue
			}
			link = strings.TrimSpace(link)
			if !strings.Contains(link, "orcid.org") {
				return fail("Principal Investigator has invalid ORCID URL: %s", link)
			}
		}
	}
	if !found {
		return fail("Record must have at least one Principal Investigator")
	}
	return pass()
}

func isORCIDLabel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "orcid", "orchid":
		return true
	}
	return false
}
