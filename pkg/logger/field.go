package logger

import (
	"time"

	"github.com/rs/zerolog"
)

type fieldKind uint8

const (
	kindAny fieldKind = iota
	kindString
	kindInt
	kindInt64
	kindFloat
)

// Field is one key/value pair of a structured event. Value is what the
// collector records; kind selects the typed zerolog encoder.
type Field struct {
	Key   string
	Value interface{}
	kind  fieldKind
}

func (f Field) addTo(e *zerolog.Event) {
	switch f.kind {
	case kindString:
		e.Str(f.Key, f.Value.(string))
	case kindInt:
		e.Int(f.Key, f.Value.(int))
	case kindInt64:
		e.Int64(f.Key, f.Value.(int64))
	case kindFloat:
		e.Float64(f.Key, f.Value.(float64))
	default:
		e.Interface(f.Key, f.Value)
	}
}

func String(key, value string) Field { return Field{Key: key, Value: value, kind: kindString} }

func Int(key string, value int) Field { return Field{Key: key, Value: value, kind: kindInt} }

func Int64(key string, value int64) Field { return Field{Key: key, Value: value, kind: kindInt64} }

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value, kind: kindFloat}
}

func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// Duration is logged in whole milliseconds.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.Milliseconds(), kind: kindInt64}
}

// Error is keyed "error"; a nil error logs as an empty string.
func Error(err error) Field {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Field{Key: zerolog.ErrorFieldName, Value: msg, kind: kindString}
}
