package log

// Field is a single piece of structured context attached to a log line.
type Field struct {
	Key   string
	Value interface{}
}

// Str creates a string Field.
func Str(key, value string) Field { return Field{Key: key, Value: value} }

// Int creates an int Field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 creates an int64 Field.
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Float64 creates a float64 Field.
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }

// Bool creates a bool Field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Any creates a Field carrying an arbitrary value.
func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// Err creates a Field named "error" from err. A nil err is carried as nil so
// callers can log it unconditionally.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Component creates a Field tagging the log line with a component name,
// keyed the same as ComponentKey so it lines up with context-derived fields.
func Component(name string) Field { return Field{Key: ComponentKey, Value: name} }

// fieldsToMap merges a Field slice onto base, returning a new Fields map.
func fieldsToMap(base Fields, fields []Field) Fields {
	out := make(Fields, len(base)+len(fields))
	for k, v := range base {
		out[k] = v
	}
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}
