package billing

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Object gives read access to a provider payload or a stored document,
// regardless of whether it arrived as decoded JSON or as a typed SDK value.
// Each SDK binding implements it once; the rest of the engine only reads
// through the Get* helpers below.
type Object interface {
	// Get returns the raw value stored under key and whether it is present.
	Get(key string) (interface{}, bool)
}

// Fields is an Object backed by a decoded JSON map.
type Fields map[string]interface{}

// Get implements Object.
func (f Fields) Get(key string) (interface{}, bool) {
	if f == nil {
		return nil, false
	}
	v, ok := f[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// GetString returns the value under key as a string, or "" when absent or
// not a scalar.
func GetString(o Object, key string) string {
	if o == nil {
		return ""
	}
	v, ok := o.Get(key)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(s, 10)
	case int:
		return strconv.Itoa(s)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

// GetInt64 coerces the value under key to an int64. Unparseable values are
// reported as absent.
func GetInt64(o Object, key string) (int64, bool) {
	if o == nil {
		return 0, false
	}
	v, ok := o.Get(key)
	if !ok {
		return 0, false
	}
	return toInt64(v)
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
		return 0, false
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int64(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// GetBool coerces the value under key to a bool. Strings accept
// 1/true/yes/on; anything else that is not a bool is reported as absent.
func GetBool(o Object, key string) (bool, bool) {
	if o == nil {
		return false, false
	}
	v, ok := o.Get(key)
	if !ok {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "1", "true", "yes", "on":
			return true, true
		case "0", "false", "no", "off", "":
			return false, true
		}
		return false, false
	default:
		if n, ok := toInt64(v); ok {
			return n != 0, true
		}
		return false, false
	}
}

// GetID returns an identifier that may be stored either as a plain string or
// as an expanded object carrying an "id" field.
func GetID(o Object, key string) string {
	if o == nil {
		return ""
	}
	v, ok := o.Get(key)
	if !ok {
		return ""
	}
	switch id := v.(type) {
	case string:
		return id
	case Object:
		return GetString(id, "id")
	case map[string]interface{}:
		return GetString(Fields(id), "id")
	default:
		return ""
	}
}

// GetObject returns the nested object under key, or nil.
func GetObject(o Object, key string) Object {
	if o == nil {
		return nil
	}
	v, ok := o.Get(key)
	if !ok {
		return nil
	}
	return asObject(v)
}

// GetList returns the nested objects of a list under key. Stripe list
// envelopes ({"object":"list","data":[...]}) are unwrapped.
func GetList(o Object, key string) []Object {
	if o == nil {
		return nil
	}
	v, ok := o.Get(key)
	if !ok {
		return nil
	}
	var raw []interface{}
	switch l := v.(type) {
	case []interface{}:
		raw = l
	case []Object:
		return l
	default:
		env := asObject(v)
		if env == nil {
			return nil
		}
		return GetList(env, "data")
	}
	out := make([]Object, 0, len(raw))
	for _, item := range raw {
		if obj := asObject(item); obj != nil {
			out = append(out, obj)
		}
	}
	return out
}

// GetMetadata returns the string map under key.
func GetMetadata(o Object, key string) map[string]string {
	if o == nil {
		return nil
	}
	v, ok := o.Get(key)
	if !ok {
		return nil
	}
	switch m := v.(type) {
	case map[string]string:
		return m
	case map[string]interface{}:
		out := make(map[string]string, len(m))
		for k := range m {
			if s := GetString(Fields(m), k); s != "" {
				out[k] = s
			}
		}
		return out
	default:
		return nil
	}
}

func asObject(v interface{}) Object {
	switch o := v.(type) {
	case Object:
		return o
	case map[string]interface{}:
		return Fields(o)
	default:
		return nil
	}
}
