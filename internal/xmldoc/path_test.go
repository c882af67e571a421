package xmldoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<mdb:MD_Metadata xmlns:mdb="http://standards.iso.org/iso/19115/-3/mdb/2.0"
                 xmlns:cit="http://standards.iso.org/iso/19115/-3/cit/2.0"
                 xmlns:gco="http://standards.iso.org/iso/19115/-3/gco/1.0"
                 xmlns:mri="http://standards.iso.org/iso/19115/-3/mri/1.0"
                 xmlns:mcc="http://standards.iso.org/iso/19115/-3/mcc/1.0">
  <mdb:metadataScope>
    <mdb:MD_MetadataScope>
      <mdb:resourceScope>
        <mcc:MD_ScopeCode codeList="x" codeListValue="dataset"/>
      </mdb:resourceScope>
    </mdb:MD_MetadataScope>
  </mdb:metadataScope>
  <mdb:identificationInfo>
    <mri:MD_DataIdentification>
      <mri:citation>
        <cit:CI_Citation>
          <cit:title><gco:CharacterString>First</gco:CharacterString></cit:title>
          <cit:citedResponsibleParty><cit:name>a</cit:name></cit:citedResponsibleParty>
          <cit:citedResponsibleParty><cit:name>b</cit:name></cit:citedResponsibleParty>
        </cit:CI_Citation>
      </mri:citation>
      <mri:abstract><gco:CharacterString><![CDATA[An <abstract>]]></gco:CharacterString></mri:abstract>
    </mri:MD_DataIdentification>
  </mdb:identificationInfo>
</mdb:MD_Metadata>`

func mustParse(t *testing.T, raw string) *Document {
	t.Helper()
	doc, err := Parse([]byte(raw))
	require.NoError(t, err)
	return doc
}

func TestPathValue(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, sample)
	ns := DefaultNamespaces()

	tests := []struct {
		name  string
		expr  string
		want  string
		found bool
	}{
		{"descendant text", ".//cit:title/gco:CharacterString", "First", true},
		{"cdata", ".//mri:abstract/gco:CharacterString", "An <abstract>", true},
		{"direct children", "mdb:identificationInfo/mri:MD_DataIdentification/mri:abstract/gco:CharacterString", "An <abstract>", true},
		{"inner descendant", "mdb:identificationInfo//cit:title/gco:CharacterString", "First", true},
		{"attribute", ".//mdb:resourceScope/mcc:MD_ScopeCode/@codeListValue", "dataset", true},
		{"missing attribute", ".//mcc:MD_ScopeCode/@codeSpace", "", false},
		{"missing element", ".//mri:purpose/gco:CharacterString", "", false},
		{"child step is strict", "mri:abstract/gco:CharacterString", "", false},
		{"wildcard", ".//cit:title/*", "First", true},
		{"dot prefix", "./mdb:metadataScope//mcc:MD_ScopeCode/@codeList", "x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := Compile(tt.expr, ns)
			require.NoError(t, err)

			got, ok := p.ValueDoc(doc)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPathSelectRepeated(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, sample)
	p := MustCompile(".//cit:citedResponsibleParty", DefaultNamespaces())

	parties := p.SelectDoc(doc)
	require.Len(t, parties, 2)

	name := MustCompile("cit:name", DefaultNamespaces())
	got, _ := name.Value(parties[1])
	assert.Equal(t, "b", got)
}

func TestPathSelectNoDuplicates(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, `<a><b><b><c/></b></b></a>`)
	p := MustCompile(".//b//c", NewNamespaceTable(nil))

	assert.Len(t, p.SelectDoc(doc), 1)
}

func TestCompileRejects(t *testing.T) {
	t.Parallel()

	ns := DefaultNamespaces()
	for _, expr := range []string{
		"",
		"/mdb:MD_Metadata",
		".//foo:bar",
		".//cit:title[1]",
		".//cit:title | .//mri:abstract",
		".//cit:title/@codeList/gco:CharacterString",
		".//cit:title/",
		".//cit:title//",
		".//@codeListValue",
		".//cit:title/@*",
		".//:title",
		"cit:title//.",
	} {
		_, err := Compile(expr, ns)
		assert.ErrorIs(t, err, ErrInvalidPath, expr)
	}
}

func TestNamespaceTableExtendDoesNotMutate(t *testing.T) {
	t.Parallel()

	base := DefaultNamespaces()
	ext := base.Extend(map[string]string{"grdc": "urn:grdc"})

	_, ok := base.Lookup("grdc")
	assert.False(t, ok)
	uri, ok := ext.Lookup("grdc")
	assert.True(t, ok)
	assert.Equal(t, "urn:grdc", uri)
	assert.Equal(t, base.Len()+1, ext.Len())
	assert.Equal(t, 29, base.Len())
}
