package schema

// Member is one key/value pair of an Object
type Member struct {
	Key   string
	Value Value
}

// Object is an insertion-ordered mapping from string keys to Values.
// Keys are unique; Set on an existing key replaces the value in place.
type Object struct {
	members []Member
}

// NewObject builds an Object from members, later duplicates replacing earlier ones
func NewObject(members ...Member) Object {
	var o Object
	for _, m := range members {
		o.Set(m.Key, m.Value)
	}
	return o
}

func (o Object) Len() int { return len(o.members) }

func (o Object) Keys() []string {
	keys := make([]string, len(o.members))
	for i, m := range o.members {
		keys[i] = m.Key
	}
	return keys
}

// Members returns a copy of the members in insertion order
func (o Object) Members() []Member {
	out := make([]Member, len(o.members))
	copy(out, o.members)
	return out
}

func (o Object) index(key string) int {
	for i, m := range o.members {
		if m.Key == key {
			return i
		}
	}
	return -1
}

// Get returns the value for key; a missing key yields a null Value and false
func (o Object) Get(key string) (Value, bool) {
	if i := o.index(key); i >= 0 {
		return o.members[i].Value, true
	}
	return Value{}, false
}

func (o Object) Has(key string) bool { return o.index(key) >= 0 }

// Set replaces the value for key or appends it when absent.
// Objects share storage after assignment, so Clone before setting on a value
// you do not own.
func (o *Object) Set(key string, v Value) {
	if i := o.index(key); i >= 0 {
		o.members[i].Value = v
		return
	}
	o.members = append(o.members, Member{Key: key, Value: v})
}

func (o Object) Clone() Object {
	if o.members == nil {
		return Object{}
	}
	members := make([]Member, len(o.members))
	for i, m := range o.members {
		members[i] = Member{Key: m.Key, Value: m.Value.Clone()}
	}
	return Object{members: members}
}

// Equal compares key sets and values, ignoring insertion order
func (o Object) Equal(other Object) bool {
	if len(o.members) != len(other.members) {
		return false
	}
	for _, m := range o.members {
		ov, ok := other.Get(m.Key)
		if !ok || !m.Value.Equal(ov) {
			return false
		}
	}
	return true
}

// ContainsEqual reports whether list holds an entry structurally equal to o
func ContainsEqual(list []Object, o Object) bool {
	for _, item := range list {
		if item.Equal(o) {
			return true
		}
	}
	return false
}
