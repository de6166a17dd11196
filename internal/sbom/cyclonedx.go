package sbom

import (
	"github.com/CycloneDX/cyclonedx-go"

	"github.com/yorozuya-cybersecurity/bome/internal/schema"
)

// Document is the CycloneDX-shaped SBOM written to the output file
type Document struct {
	BOMFormat       string             `json:"bomFormat"`
	SpecVersion     string             `json:"specVersion"`
	Version         int                `json:"version"`
	Metadata        Metadata           `json:"metadata"`
	Components      []schema.Component `json:"components"`
	Vulnerabilities []Vulnerability    `json:"vulnerabilities"`
}

// Metadata fields are omitted when the BOM metadata has no date or authors
type Metadata struct {
	Timestamp *schema.Value `json:"timestamp,omitempty"`
	Authors   *schema.Value `json:"authors,omitempty"`
}

// Vulnerability fields missing from the BOM entry encode as null
type Vulnerability struct {
	ID          schema.Value `json:"id"`
	Rating      []Rating     `json:"rating"`
	Description schema.Value `json:"description"`
	Source      Source       `json:"source"`
	Created     schema.Value `json:"created"`
}

type Rating struct {
	Score    schema.Value `json:"score"`
	Severity schema.Value `json:"severity"`
}

type Source struct {
	URL schema.Value `json:"url"`
}

// Project renders bom in the requested format
func Project(bom schema.BOM, format Format) (Document, error) {
	switch format {
	case FormatCycloneDX:
		return CycloneDX(bom), nil
	case FormatSPDX:
		return Document{}, SPDX(bom)
	default:
		return Document{}, ErrUnsupportedFormat
	}
}

// SPDX is a placeholder for a second output format
func SPDX(schema.BOM) error {
	return ErrSPDXNotImplemented
}

// CycloneDX projects a merged BOM. Components are app, then OS, then container
// dependencies with no further deduplication. The result shares no storage
// with bom.
func CycloneDX(bom schema.BOM) Document {
	components := make([]schema.Component, 0, len(bom.AppDependencies)+len(bom.OSDependencies)+len(bom.ContainerDependencies))
	for _, group := range [][]schema.Component{bom.AppDependencies, bom.OSDependencies, bom.ContainerDependencies} {
		for _, c := range group {
			components = append(components, c.Clone())
		}
	}

	vulns := make([]Vulnerability, 0, len(bom.Vulnerabilities))
	for _, v := range bom.Vulnerabilities {
		vulns = append(vulns, projectVulnerability(v))
	}

	return Document{
		BOMFormat:   cyclonedx.BOMFormat,
		SpecVersion: cyclonedx.SpecVersion1_6.String(),
		Version:     bom.Version,
		Metadata: Metadata{
			Timestamp: optional(bom.Metadata, "date"),
			Authors:   optional(bom.Metadata, "authors"),
		},
		Components:      components,
		Vulnerabilities: vulns,
	}
}

func projectVulnerability(v schema.Vulnerability) Vulnerability {
	field := func(key string) schema.Value {
		val, _ := v.Get(key)
		return val.Clone()
	}

	return Vulnerability{
		ID: field("id"),
		Rating: []Rating{{
			Score:    field("score"),
			Severity: field("severity"),
		}},
		Description: field("description"),
		Source:      Source{URL: field("url")},
		Created:     field("created"),
	}
}

func optional(o schema.Object, key string) *schema.Value {
	v, ok := o.Get(key)
	if !ok {
		return nil
	}
	v = v.Clone()
	return &v
}
