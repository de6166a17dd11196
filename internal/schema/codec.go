package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

var errInvalidJSON = errors.New("invalid JSON")

// ParseValue decodes a JSON document, keeping object keys in document order
func ParseValue(data []byte) (Value, error) {
	if !gjson.ValidBytes(data) {
		return Value{}, errInvalidJSON
	}
	return fromResult(gjson.ParseBytes(data))
}

// ParseObject decodes a JSON document whose top level must be an object
func ParseObject(data []byte) (Object, error) {
	v, err := ParseValue(data)
	if err != nil {
		return Object{}, err
	}
	o, ok := v.AsObject()
	if !ok {
		return Object{}, fmt.Errorf("%w: got %s", ErrNotObject, v.Kind())
	}
	return o, nil
}

// FromResult converts an already parsed gjson result
func FromResult(r gjson.Result) (Value, error) {
	return fromResult(r)
}

func fromResult(r gjson.Result) (Value, error) {
	switch r.Type {
	case gjson.Null:
		return Null(), nil
	case gjson.False:
		return Bool(false), nil
	case gjson.True:
		return Bool(true), nil
	case gjson.Number:
		return Number(strings.TrimSpace(r.Raw))
	case gjson.String:
		return String(r.Str), nil
	}

	var err error
	switch {
	case r.IsObject():
		var o Object
		r.ForEach(func(key, value gjson.Result) bool {
			var v Value
			v, err = fromResult(value)
			if err != nil {
				err = fmt.Errorf("%s: %w", key.Str, err)
				return false
			}
			o.Set(key.Str, v)
			return true
		})
		if err != nil {
			return Value{}, err
		}
		return ObjectValue(o), nil
	case r.IsArray():
		items := []Value{}
		idx := 0
		r.ForEach(func(_, value gjson.Result) bool {
			var v Value
			v, err = fromResult(value)
			if err != nil {
				err = fmt.Errorf("[%d]: %w", idx, err)
				return false
			}
			items = append(items, v)
			idx++
			return true
		})
		if err != nil {
			return Value{}, err
		}
		return Array(items...), nil
	}
	return Value{}, fmt.Errorf("%w: unexpected token %q", errInvalidJSON, r.Raw)
}

func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.appendJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseValue(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := o.appendJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *Object) UnmarshalJSON(data []byte) error {
	parsed, err := ParseObject(data)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

func (v Value) appendJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		buf.WriteString(string(v.n))
	case KindString:
		s, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(s)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.appendJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		return v.obj.appendJSON(buf)
	default:
		return fmt.Errorf("cannot encode value of %s", v.kind)
	}
	return nil
}

func (o Object) appendJSON(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for i, m := range o.members {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(m.Key)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		if err := m.Value.appendJSON(buf); err != nil {
			return fmt.Errorf("%s: %w", m.Key, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// ---------- YAML ----------

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := fromNode(node)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) MarshalYAML() (interface{}, error) {
	return v.toNode(), nil
}

func (o *Object) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := fromNode(node)
	if err != nil {
		return err
	}
	obj, ok := parsed.AsObject()
	if !ok {
		return fmt.Errorf("%w: got %s", ErrNotObject, parsed.Kind())
	}
	*o = obj
	return nil
}

func (o Object) MarshalYAML() (interface{}, error) {
	return ObjectValue(o).toNode(), nil
}

func fromNode(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null(), nil
		}
		return fromNode(n.Content[0])
	case yaml.AliasNode:
		return fromNode(n.Alias)
	case yaml.SequenceNode:
		items := make([]Value, 0, len(n.Content))
		for i, c := range n.Content {
			v, err := fromNode(c)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items = append(items, v)
		}
		return Array(items...), nil
	case yaml.MappingNode:
		var o Object
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode {
				return Value{}, fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
			}
			v, err := fromNode(n.Content[i+1])
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", key.Value, err)
			}
			o.Set(key.Value, v)
		}
		return ObjectValue(o), nil
	case yaml.ScalarNode:
		return fromScalar(n)
	}
	return Value{}, fmt.Errorf("line %d: unsupported YAML node", n.Line)
}

func fromScalar(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return Number(n.Value)
		}
		return Int(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, err
		}
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return Value{}, fmt.Errorf("%w: %q", ErrInvalidNumber, n.Value)
		}
		if isJSONNumber(n.Value) {
			return Number(n.Value)
		}
		return Float(f), nil
	default:
		return String(n.Value), nil
	}
}

func (v Value) toNode() *yaml.Node {
	switch v.kind {
	case KindBool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v.b)}
	case KindNumber:
		tag := "!!float"
		if _, err := strconv.ParseInt(string(v.n), 10, 64); err == nil {
			tag = "!!int"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: string(v.n)}
	case KindString:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.s}
	case KindArray:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v.arr {
			n.Content = append(n.Content, item.toNode())
		}
		return n
	case KindObject:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, m := range v.obj.members {
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: m.Key},
				m.Value.toNode(),
			)
		}
		return n
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}
