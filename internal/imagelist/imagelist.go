// Package imagelist turns the stored image reference of a record into an
// ordered list of URLs.
//
// Records written by different versions of the data-entry forms keep their
// images as a native list, as a JSON-encoded list inside a string column, or
// as a comma-separated string. Normalize accepts all of them.
package imagelist

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kozaktomas/photo-report/internal/database"
)

// Normalize returns the image URLs held by raw, in stored order.
// It never fails: unparseable input degrades to a comma split and anything
// unknown yields an empty, non-nil slice.
func Normalize(raw any) []string {
	switch v := raw.(type) {
	case nil:
		return []string{}
	case []string:
		if v == nil {
			return []string{}
		}
		return v
	case []any:
		return fromList(v)
	case string:
		return fromString(v)
	case []byte:
		return fromString(string(v))
	case json.RawMessage:
		return fromString(string(v))
	case *string:
		if v == nil {
			return []string{}
		}
		return fromString(*v)
	default:
		return []string{}
	}
}

// NormalizeRecord is Normalize applied to a record's image field.
func NormalizeRecord(r database.Record) []string {
	return Normalize(r.ImageField)
}

// Count returns how many images a record holds.
func Count(r database.Record) int {
	return len(NormalizeRecord(r))
}

func fromString(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err == nil {
		if list, ok := parsed.([]any); ok {
			return fromList(list)
		}
	}
	return splitCSV(s)
}

// fromList converts decoded JSON list elements to strings, keeping order.
// nil elements are skipped; other scalars are printed as-is.
func fromList(list []any) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		switch x := item.(type) {
		case nil:
			continue
		case string:
			out = append(out, x)
		default:
			out = append(out, fmt.Sprint(x))
		}
	}
	return out
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
