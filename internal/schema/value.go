package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
)

// Kind identifies which member of the Value union is set
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

var (
	ErrNotObject     = errors.New("value is not an object")
	ErrInvalidNumber = errors.New("invalid number")
)

// Value is a JSON-shaped value: null, bool, number, string, array or object.
// The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    json.Number
	s    string
	arr  []Value
	obj  Object
}

func Null() Value { return Value{} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func String(s string) Value { return Value{kind: KindString, s: s} }

func Int(i int64) Value { return Value{kind: KindNumber, n: json.Number(strconv.FormatInt(i, 10))} }

func Float(f float64) Value {
	return Value{kind: KindNumber, n: json.Number(strconv.FormatFloat(f, 'g', -1, 64))}
}

// Number keeps the literal text of a JSON number so it round-trips unchanged.
func Number(text string) (Value, error) {
	if !isJSONNumber(text) {
		return Value{}, fmt.Errorf("%w: %q", ErrInvalidNumber, text)
	}
	return Value{kind: KindNumber, n: json.Number(text)}, nil
}

func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, arr: items}
}

func ObjectValue(o Object) Value { return Value{kind: KindObject, obj: o} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

func (v Value) AsNumber() (json.Number, bool) { return v.n, v.kind == KindNumber }

func (v Value) AsArray() ([]Value, bool) { return v.arr, v.kind == KindArray }

func (v Value) AsObject() (Object, bool) { return v.obj, v.kind == KindObject }

// Clone returns a deep copy that shares no arrays or objects with v
func (v Value) Clone() Value {
	switch v.kind {
	case KindArray:
		items := make([]Value, len(v.arr))
		for i, item := range v.arr {
			items[i] = item.Clone()
		}
		return Value{kind: KindArray, arr: items}
	case KindObject:
		return Value{kind: KindObject, obj: v.obj.Clone()}
	default:
		return v
	}
}

// Equal reports structural equality. Object key order is ignored, array order
// is not, and numbers compare by numeric value (1 equals 1.0).
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindString:
		return v.s == other.s
	case KindNumber:
		return numbersEqual(v.n, other.n)
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		return v.obj.Equal(other.obj)
	}
	return false
}

func numbersEqual(a, b json.Number) bool {
	if a == b {
		return true
	}
	ra, okA := new(big.Rat).SetString(string(a))
	rb, okB := new(big.Rat).SetString(string(b))
	if !okA || !okB {
		return false
	}
	return ra.Cmp(rb) == 0
}

// isJSONNumber follows the JSON grammar: -?int frac? exp?
func isJSONNumber(s string) bool {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	if i >= len(s) {
		return false
	}
	switch {
	case s[i] == '0':
		i++
	case s[i] >= '1' && s[i] <= '9':
		for i < len(s) && isDigit(s[i]) {
			i++
		}
	default:
		return false
	}
	if i < len(s) && s[i] == '.' {
		i++
		start := i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		if i == start {
			return false
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		start := i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		if i == start {
			return false
		}
	}
	return i == len(s)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
