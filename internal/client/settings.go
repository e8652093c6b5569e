package client

import "time"

// Settings is the opaque key→value configuration a client instance is built
// from. Values are read through typed accessors with defaults; a client
// resolves its fields from Settings during Init and must not read them again
// afterwards.
type Settings map[string]any

// GetString returns the string at key, or def when absent or not a string.
func (s Settings) GetString(key, def string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return def
}

// GetBool returns the bool at key, or def when absent or not a bool.
func (s Settings) GetBool(key string, def bool) bool {
	if v, ok := s[key].(bool); ok {
		return v
	}
	return def
}

// GetInt returns the integer at key, or def when absent.
// Numeric YAML/JSON values arrive as int, int64 or float64; all are accepted.
func (s Settings) GetInt(key string, def int) int {
	switch v := s[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// GetStringSlice returns the string slice at key, or def when absent.
// A []any holding only strings is accepted.
func (s Settings) GetStringSlice(key string, def []string) []string {
	switch v := s[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return def
			}
			out = append(out, str)
		}
		return out
	default:
		return def
	}
}

// GetDuration returns the duration at key, or def when absent.
//
// Accepted forms: time.Duration, a duration string ("30s"), or a bare number
// interpreted as milliseconds (matching how broker timeouts are configured).
func (s Settings) GetDuration(key string, def time.Duration) time.Duration {
	switch v := s[key].(type) {
	case time.Duration:
		return v
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		return def
	case int:
		return time.Duration(v) * time.Millisecond
	case int64:
		return time.Duration(v) * time.Millisecond
	case float64:
		return time.Duration(v) * time.Millisecond
	default:
		return def
	}
}
