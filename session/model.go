package session

// Record is a session record as stored in Redis: field name to text value.
//
// A nil Record means the session does not exist (never signed, destroyed or expired).
type Record map[string]string

// Field is one hash field/value pair produced by [Encode].
type Field struct {
	Name  string
	Value string
}

// Fields is an ordered list of hash fields, sorted by name.
type Fields []Field

// Args flattens the fields into the name/value argument list HSET expects.
func (f Fields) Args() []interface{} {
	args := make([]interface{}, 0, len(f)*2)
	for _, field := range f {
		args = append(args, field.Name, field.Value)
	}
	return args
}

// Record converts the encoded fields into the [Record] a read would return.
func (f Fields) Record() Record {
	if len(f) == 0 {
		return nil
	}
	out := make(Record, len(f))
	for _, field := range f {
		out[field.Name] = field.Value
	}
	return out
}
