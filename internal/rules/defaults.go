// internal/rules/defaults.go
//
// Compiled-in GRDC rule set.
//
// Notes
// -----
//   - Paths use the prefixes of xmldoc.DefaultNamespaces.
//   - Order here is the order failures are reported in.
package rules

// DefaultDefinitions returns the GRDC Metashare rule set used when no rules
// file is configured.
func DefaultDefinitions() []Definition {
	const ident = ".//mdb:identificationInfo/mri:MD_DataIdentification"
	const extent = ident + "/mri:extent/gex:EX_Extent/gex:temporalElement/gex:EX_TemporalExtent/gex:extent/gml:TimePeriod"

	return []Definition{
		{Kind: FieldExists, Path: ident + "/mri:citation/cit:CI_Citation/cit:title/gco:CharacterString", Field: "title"},
		{
			Kind:          ValueInList,
			Path:          ".//mdb:metadataScope/mdb:MD_MetadataScope/mdb:resourceScope/mcc:MD_ScopeCode/@codeListValue",
			Field:         "resource type",
			AllowedValues: []string{"dataset", "product"},
		},
		{Kind: FieldExists, Path: ident + "/mri:abstract/gco:CharacterString", Field: "abstract"},
		{Kind: ValidPurpose, Path: ident + "/mri:purpose/gco:CharacterString", Field: "purpose"},
		{Kind: Date, Path: extent + "/gml:beginPosition", Field: "begin date"},
		{Kind: Date, Path: extent + "/gml:endPosition", Field: "end date"},
		{
			Kind:  ValueInList,
			Path:  ".//mdb:referenceSystemInfo/mrs:MD_ReferenceSystem/mrs:referenceSystemIdentifier/mcc:MD_Identifier/mcc:code/gco:CharacterString",
			Field: "spatial reference system",
			AllowedValues: []string{
				"WGS 84 (EPSG:4326)",
				"Google mercator (EPSG:3857)",
			},
		},
		{Kind: Float, Path: ".//gex:westBoundLongitude/gco:Decimal", Field: "west bound longitude"},
		{Kind: Float, Path: ".//gex:eastBoundLongitude/gco:Decimal", Field: "east bound longitude"},
		{Kind: Float, Path: ".//gex:southBoundLatitude/gco:Decimal", Field: "south bound latitude"},
		{Kind: Float, Path: ".//gex:northBoundLatitude/gco:Decimal", Field: "north bound latitude"},
		{Kind: PrincipalInvestigator, Path: ".//cit:citedResponsibleParty", Field: "principal investigator"},
		{
			Kind:  Identifier,
			Path:  ".//mdb:distributionInfo/mrd:MD_Distribution/mrd:transferOptions/mrd:MD_DigitalTransferOptions/mrd:onLine/cit:CI_OnlineResource/cit:linkage/gco:CharacterString",
			Field: "identifier",
		},
		{
			Kind:  ValueInList,
			Path:  ident + "/mri:resourceConstraints/mco:MD_SecurityConstraints/mco:classification/mco:MD_ClassificationCode/@codeListValue",
			Field: "classification",
			AllowedValues: []string{
				"unclassified",
				"sensitive but unclassified",
				"for office use only",
				"limited distribution",
				"restricted",
				"confidential",
				"protected",
				"secret",
				"top secret",
			},
		},
		{
			Kind:  ValueInList,
			Path:  ident + "/mri:resourceConstraints/mco:MD_LegalConstraints/mco:reference/cit:CI_Citation/cit:title/gco:CharacterString",
			Field: "licence",
			AllowedValues: []string{
				"AVR transfer agreement",
				"Data access license agreement",
				"Creative commons attribution 4.0 (CC-BY)",
			},
		},
	}
}
