package schema

import (
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Keys of the persisted BOM document
const (
	KeyVersion               = "version"
	KeyMetadata              = "metadata"
	KeyAppDependencies       = "app_dependencies"
	KeyOSDependencies        = "os_dependencies"
	KeyContainerDependencies = "container_dependencies"
	KeyVulnerabilities       = "vulnerabilities"
)

// Component is a single dependency, package or image entry. It is an open
// mapping; identity is full structural equality.
type Component = Object

// Vulnerability is an open mapping; the projector reads id, score, severity,
// description, url and created.
type Vulnerability = Object

// BOM is the accumulated record of dependencies, metadata and vulnerabilities
// carried between runs. A fragment has the same shape with Version ignored.
type BOM struct {
	Version               int
	Metadata              Object
	AppDependencies       []Component
	OSDependencies        []Component
	ContainerDependencies []Component
	Vulnerabilities       []Vulnerability
}

// New returns a fresh BOM at version 1 with empty collections
func New() BOM {
	return BOM{
		Version:               1,
		AppDependencies:       []Component{},
		OSDependencies:        []Component{},
		ContainerDependencies: []Component{},
		Vulnerabilities:       []Vulnerability{},
	}
}

// Clone returns a deep copy of b
func (b BOM) Clone() BOM {
	return BOM{
		Version:               b.Version,
		Metadata:              b.Metadata.Clone(),
		AppDependencies:       cloneList(b.AppDependencies),
		OSDependencies:        cloneList(b.OSDependencies),
		ContainerDependencies: cloneList(b.ContainerDependencies),
		Vulnerabilities:       cloneList(b.Vulnerabilities),
	}
}

func cloneList(in []Object) []Object {
	out := make([]Object, len(in))
	for i, o := range in {
		out[i] = o.Clone()
	}
	return out
}

// BOMFromValue reads a BOM-shaped mapping. Absent or null keys are empty;
// collection entries that are not mappings are rejected with ErrNotObject.
func BOMFromValue(v Value) (BOM, error) {
	root, ok := v.AsObject()
	if !ok {
		return BOM{}, fmt.Errorf("bome: %w: got %s", ErrNotObject, v.Kind())
	}

	b := BOM{}
	if raw, ok := root.Get(KeyVersion); ok && !raw.IsNull() {
		version, err := versionFromValue(raw)
		if err != nil {
			return BOM{}, err
		}
		b.Version = version
	}

	if raw, ok := root.Get(KeyMetadata); ok && !raw.IsNull() {
		md, ok := raw.AsObject()
		if !ok {
			return BOM{}, fmt.Errorf("%s: %w: got %s", KeyMetadata, ErrNotObject, raw.Kind())
		}
		b.Metadata = md
	}

	var err error
	if b.AppDependencies, err = listFromObject(root, KeyAppDependencies); err != nil {
		return BOM{}, err
	}
	if b.OSDependencies, err = listFromObject(root, KeyOSDependencies); err != nil {
		return BOM{}, err
	}
	if b.ContainerDependencies, err = listFromObject(root, KeyContainerDependencies); err != nil {
		return BOM{}, err
	}
	if b.Vulnerabilities, err = listFromObject(root, KeyVulnerabilities); err != nil {
		return BOM{}, err
	}
	return b, nil
}

func versionFromValue(v Value) (int, error) {
	n, ok := v.AsNumber()
	if !ok {
		return 0, fmt.Errorf("%s: expected an integer, got %s", KeyVersion, v.Kind())
	}
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		if i >= math.MaxInt32 || i <= math.MinInt32 {
			return 0, fmt.Errorf("%s: %d is out of range", KeyVersion, i)
		}
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= math.MaxInt32 {
		return 0, fmt.Errorf("%s: expected an integer, got %s", KeyVersion, n)
	}
	return int(f), nil
}

func listFromObject(root Object, key string) ([]Object, error) {
	raw, ok := root.Get(key)
	if !ok || raw.IsNull() {
		return []Object{}, nil
	}
	items, ok := raw.AsArray()
	if !ok {
		return nil, fmt.Errorf("%s: expected an array, got %s", key, raw.Kind())
	}
	out := make([]Object, 0, len(items))
	for i, item := range items {
		o, ok := item.AsObject()
		if !ok {
			return nil, fmt.Errorf("%s[%d]: %w: got %s", key, i, ErrNotObject, item.Kind())
		}
		out = append(out, o)
	}
	return out, nil
}

// Value renders the BOM as its persisted mapping, always emitting every key
func (b BOM) Value() Value {
	return ObjectValue(NewObject(
		Member{KeyVersion, Int(int64(b.Version))},
		Member{KeyMetadata, ObjectValue(b.Metadata)},
		Member{KeyAppDependencies, listValue(b.AppDependencies)},
		Member{KeyOSDependencies, listValue(b.OSDependencies)},
		Member{KeyContainerDependencies, listValue(b.ContainerDependencies)},
		Member{KeyVulnerabilities, listValue(b.Vulnerabilities)},
	))
}

func listValue(list []Object) Value {
	items := make([]Value, len(list))
	for i, o := range list {
		items[i] = ObjectValue(o)
	}
	return Array(items...)
}

func (b BOM) MarshalJSON() ([]byte, error) {
	return b.Value().MarshalJSON()
}

func (b *BOM) UnmarshalJSON(data []byte) error {
	v, err := ParseValue(data)
	if err != nil {
		return err
	}
	parsed, err := BOMFromValue(v)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

func (b BOM) MarshalYAML() (interface{}, error) {
	return b.Value().toNode(), nil
}

func (b *BOM) UnmarshalYAML(node *yaml.Node) error {
	v, err := fromNode(node)
	if err != nil {
		return err
	}
	parsed, err := BOMFromValue(v)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
