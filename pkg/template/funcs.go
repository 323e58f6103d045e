package template

import (
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LabelToken returns the marker a label key resolves from after rendering.
func LabelToken(key string) string {
	return "###LLL:" + key + "###"
}

// FormatTime renders t relative to now for recent times and as a date
// otherwise.
func FormatTime(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		m := int(diff.Minutes())
		if m == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", m)
	case diff < 24*time.Hour:
		h := int(diff.Hours())
		if h == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", h)
	case diff < 7*24*time.Hour:
		d := int(diff.Hours() / 24)
		if d == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", d)
	default:
		return t.Format("Jan 2, 2006")
	}
}

// Truncate shortens s to at most length runes, ending in "..." when cut.
func Truncate(s string, length int) string {
	if utf8.RuneCountInString(s) <= length {
		return s
	}
	runes := []rune(s)
	if length <= 3 {
		return string(runes[:length])
	}
	return string(runes[:length-3]) + "..."
}

// Funcs returns the helpers available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"LLL":        LabelToken,
		"formatTime": FormatTime,
		"truncate":   Truncate,
		"htmlEscape": template.HTMLEscapeString,
		"safeHTML":   func(s string) template.HTML { return template.HTML(s) },

		"default": func(def, val any) any {
			if val == nil {
				return def
			}
			if v, ok := val.(string); ok && v == "" {
				return def
			}
			return val
		},
		"gt": func(a, b any) bool { return compareNumbers(a, b) > 0 },
		"lt": func(a, b any) bool { return compareNumbers(a, b) < 0 },

		"upper":    strings.ToUpper,
		"lower":    strings.ToLower,
		"title":    cases.Title(language.Und).String,
		"contains": strings.Contains,
		"replace":  strings.ReplaceAll,
		"trim":     strings.TrimSpace,
		"join":     joinAny,
		"json": func(v any) string {
			b, err := json.Marshal(v)
			if err != nil {
				return ""
			}
			return string(b)
		},
	}
}

// joinAny joins the string form of a slice's items. Document fields arrive
// as []any from the backend.
func joinAny(sep string, v any) string {
	switch items := v.(type) {
	case []string:
		return strings.Join(items, sep)
	case []any:
		parts := make([]string, 0, len(items))
		for _, item := range items {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, sep)
	case nil:
		return ""
	default:
		return fmt.Sprint(items)
	}
}

func compareNumbers(a, b any) int {
	av := numericValue(a)
	bv := numericValue(b)
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	default:
		return 0
	}
}

func numericValue(v any) float64 {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	case float64:
		return t
	case string:
		f, _ := jsoniter.Number(strings.TrimSpace(t)).Float64()
		return f
	default:
		return 0
	}
}
