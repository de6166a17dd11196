// Package merge folds BOM fragments into an accumulated BOM.
package merge

import (
	"fmt"
	"strings"

	"github.com/CycloneDX/cyclonedx-go"

	"github.com/yorozuya-cybersecurity/bome/internal/schema"
)

// Type tags stamped onto OS and container dependencies
var (
	OSComponentType        = string(cyclonedx.ComponentTypeOS)
	ContainerComponentType = string(cyclonedx.ComponentTypeContainer)
)

const typeKey = "type"

// Precedence decides which side wins when metadata keys collide
type Precedence string

const (
	// PreferExisting keeps the accumulated value; fragment keys that are new
	// are appended.
	PreferExisting Precedence = "existing"
	// PreferFragment overwrites accumulated values with the fragment's.
	PreferFragment Precedence = "fragment"
)

func Precedences() []string {
	return []string{string(PreferExisting), string(PreferFragment)}
}

func ParsePrecedence(text string) (Precedence, error) {
	switch p := Precedence(strings.ToLower(strings.TrimSpace(text))); p {
	case PreferExisting, PreferFragment:
		return p, nil
	case "":
		return PreferExisting, nil
	default:
		return "", fmt.Errorf("invalid metadata precedence %q - must be one of: %s", text, strings.Join(Precedences(), ", "))
	}
}

// Merger merges fragments under a declared metadata precedence.
// The zero value prefers existing metadata.
type Merger struct {
	Precedence Precedence
}

// Merge merges fragments with the default Merger
func Merge(existing schema.BOM, fragments ...schema.BOM) schema.BOM {
	return Merger{}.Merge(existing, fragments...)
}

// Merge returns a new BOM holding existing with every fragment folded in, left
// to right. Neither existing nor any fragment is modified. The result keeps
// existing's Version; fragment versions are ignored.
//
// Each collection behaves as an insertion-ordered set keyed by full
// structural equality. OS and container dependencies are copied and tagged
// with their component type before the membership check, which also applies
// to the entries already present in existing.
func (m Merger) Merge(existing schema.BOM, fragments ...schema.BOM) schema.BOM {
	acc := schema.BOM{
		Version:               existing.Version,
		Metadata:              existing.Metadata.Clone(),
		AppDependencies:       []schema.Component{},
		OSDependencies:        []schema.Component{},
		ContainerDependencies: []schema.Component{},
		Vulnerabilities:       []schema.Vulnerability{},
	}

	m.fold(&acc, existing, false)
	for _, f := range fragments {
		m.fold(&acc, f, true)
	}

	return acc
}

func (m Merger) fold(acc *schema.BOM, f schema.BOM, withMetadata bool) {
	if withMetadata {
		acc.Metadata = MergeMetadata(acc.Metadata, f.Metadata, m.Precedence)
	}
	acc.AppDependencies = appendAbsent(acc.AppDependencies, f.AppDependencies, "")
	acc.OSDependencies = appendAbsent(acc.OSDependencies, f.OSDependencies, OSComponentType)
	acc.ContainerDependencies = appendAbsent(acc.ContainerDependencies, f.ContainerDependencies, ContainerComponentType)
	acc.Vulnerabilities = appendAbsent(acc.Vulnerabilities, f.Vulnerabilities, "")
}

// MergeMetadata combines two metadata mappings into a new one. Keys of acc
// keep their position; keys only present in fragment follow in fragment order.
func MergeMetadata(acc, fragment schema.Object, p Precedence) schema.Object {
	out := acc.Clone()
	for _, member := range fragment.Members() {
		if out.Has(member.Key) && p != PreferFragment {
			continue
		}
		out.Set(member.Key, member.Value.Clone())
	}
	return out
}

// appendAbsent appends a copy of every entry of src not already in dst.
// A non-empty componentType is stamped on the copy before the check.
func appendAbsent(dst, src []schema.Object, componentType string) []schema.Object {
	for _, entry := range src {
		entry = entry.Clone()
		if componentType != "" {
			entry.Set(typeKey, schema.String(componentType))
		}
		if schema.ContainsEqual(dst, entry) {
			continue
		}
		dst = append(dst, entry)
	}
	return dst
}
