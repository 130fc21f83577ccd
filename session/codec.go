package session

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
)

var (
	// ErrNilRecord is returned by [Encode] for a nil record.
	ErrNilRecord = errors.New("record must be a non-nil map")
	// ErrNotFlat is returned by [Encode] when a field holds a nested value.
	ErrNotFlat = errors.New("record must be a flat map of scalar values")
	// ErrMalformedReply is returned by [DecodePairs] for an odd-length reply.
	ErrMalformedReply = errors.New("malformed hash reply")
)

// Encode converts a flat record into ordered hash fields.
//
// Falsy values are skipped, so decoding the result yields the input minus
// those fields. Nested maps, slices (other than []byte) and structs are rejected.
func Encode(record map[string]interface{}) (Fields, error) {
	if record == nil {
		return nil, ErrNilRecord
	}

	fields := make(Fields, 0, len(record))
	for name, value := range record {
		text, keep, err := textValue(value)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q holds %T", err, name, value)
		}
		if !keep {
			continue
		}
		fields = append(fields, Field{Name: name, Value: text})
	}

	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return fields, nil
}

// Decode builds a [Record] from an HGETALL reply. An empty reply means the key
// does not exist and decodes to nil.
func Decode(reply map[string]string) Record {
	if len(reply) == 0 {
		return nil
	}
	out := make(Record, len(reply))
	for k, v := range reply {
		out[k] = v
	}
	return out
}

// DecodePairs builds a [Record] from a flat field/value list as sent on the wire.
func DecodePairs(pairs []string) (Record, error) {
	if len(pairs)%2 != 0 {
		return nil, ErrMalformedReply
	}
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(Record, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out[pairs[i]] = pairs[i+1]
	}
	return out, nil
}

// textValue returns the text form of v and whether it is truthy.
func textValue(v interface{}) (string, bool, error) {
	switch x := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return x, x != "", nil
	case []byte:
		return string(x), len(x) > 0, nil
	case bool:
		return strconv.FormatBool(x), x, nil
	case error:
		s := x.Error()
		return s, s != "", nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if s, ok := v.(fmt.Stringer); ok {
			return stringerValue(s, rv.Int() != 0)
		}
		n := rv.Int()
		return strconv.FormatInt(n, 10), n != 0, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if s, ok := v.(fmt.Stringer); ok {
			return stringerValue(s, rv.Uint() != 0)
		}
		n := rv.Uint()
		return strconv.FormatUint(n, 10), n != 0, nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f == 0 || math.IsNaN(f) {
			return "", false, nil
		}
		if s, ok := v.(fmt.Stringer); ok {
			return stringerValue(s, true)
		}
		return strconv.FormatFloat(f, 'f', -1, rv.Type().Bits()), true, nil
	case reflect.String:
		if s, ok := v.(fmt.Stringer); ok {
			return stringerValue(s, rv.Len() > 0)
		}
		s := rv.String()
		return s, s != "", nil
	case reflect.Bool:
		b := rv.Bool()
		if s, ok := v.(fmt.Stringer); ok {
			return stringerValue(s, b)
		}
		return strconv.FormatBool(b), b, nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return "", false, nil
		}
		return textValue(rv.Elem().Interface())
	case reflect.Struct:
		if s, ok := v.(fmt.Stringer); ok {
			return stringerValue(s, !rv.IsZero())
		}
	}

	return "", false, ErrNotFlat
}

func stringerValue(s fmt.Stringer, truthy bool) (string, bool, error) {
	if !truthy {
		return "", false, nil
	}
	text := s.String()
	return text, text != "", nil
}
