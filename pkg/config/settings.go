package config

import (
	"fmt"
	"strings"

	"dario.cat/mergo"
	"github.com/mitchellh/mapstructure"
)

// Settings is a nested settings tree as decoded from TOML. Paths use dots to
// address nested tables, e.g. "search.query.allow_empty_query".
type Settings map[string]any

// Get returns the value stored at path.
func (s Settings) Get(path string) (any, bool) {
	if s == nil || path == "" {
		return nil, false
	}
	var current any = map[string]any(s)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Has reports whether path is set, even to an empty table.
func (s Settings) Has(path string) bool {
	_, ok := s.Get(path)
	return ok
}

// Bool returns the boolean at path. Strings "1", "true" and "yes" and
// non-zero integers count as true, mirroring how flags arrive from request
// parameters and TOML alike.
func (s Settings) Bool(path string) bool {
	v, ok := s.Get(path)
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case int:
		return b != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "1", "true", "yes", "on":
			return true
		}
	}
	return false
}

// String returns the value at path formatted as a string, or "".
func (s Settings) String(path string) string {
	v, ok := s.Get(path)
	if !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	if _, isMap := asMap(v); isMap {
		return ""
	}
	return fmt.Sprint(v)
}

// Int returns the integer at path or def when unset or not numeric.
func (s Settings) Int(path string, def int) int {
	v, ok := s.Get(path)
	if !ok {
		return def
	}
	var out int
	if err := mapstructure.WeakDecode(v, &out); err != nil {
		return def
	}
	return out
}

// Sub returns the table at path, or nil when path is not a table.
func (s Settings) Sub(path string) Settings {
	v, ok := s.Get(path)
	if !ok {
		return nil
	}
	m, ok := asMap(v)
	if !ok {
		return nil
	}
	return Settings(m)
}

// Clone returns a deep copy of the tree. Tables and arrays are copied,
// scalar values are shared.
func (s Settings) Clone() Settings {
	if s == nil {
		return Settings{}
	}
	return Settings(cloneMap(s))
}

// Overrule returns a copy of s with override merged on top recursively.
// Values in override win; tables are merged key by key. s is not modified.
func (s Settings) Overrule(override map[string]any) (Settings, error) {
	merged := map[string]any(s.Clone())
	if len(override) == 0 {
		return Settings(merged), nil
	}
	if err := mergo.Merge(&merged, cloneMap(override), mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merging settings: %w", err)
	}
	return Settings(merged), nil
}

// Decode decodes the tree (or the table at path when path is not empty)
// into out. Input is weakly typed: "10" decodes into an int field, "5s" into
// a time.Duration.
func (s Settings) Decode(path string, out any) error {
	var input any = map[string]any(s)
	if path != "" {
		v, ok := s.Get(path)
		if !ok {
			return nil
		}
		input = v
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "mapstructure",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("creating settings decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("decoding settings: %w", err)
	}
	return nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Settings:
		return map[string]any(m), true
	}
	return nil, false
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Settings:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	}
	return v
}
