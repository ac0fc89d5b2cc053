// Package mapper translates the backend's loosely-typed row objects into the
// strongly-typed domain records and back. Sheet headers drifted over the
// project's lifetime, so every logical field matches a list of synonymous
// keys; numbers arrive as strings with thousands separators; image lists
// arrive in three different encodings. All functions here are pure and total:
// malformed input degrades to zero values, never to an error.
package mapper

import (
	"encoding/json"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Row is one loosely-typed record as decoded from the backend response.
type Row = map[string]any

// pick returns the first non-empty value among the synonymous keys.
func pick(row Row, keys ...string) any {
	for _, k := range keys {
		v, ok := row[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

// str coerces a cell to a trimmed string.
func str(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return ""
		}
		return strings.Trim(string(b), `"`)
	}
}

// Number coerces a numeric-looking cell to float64. Thousands separators are
// stripped ("1,250.50" -> 1250.5); absent or non-numeric values coerce to 0.
func Number(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Integer is Number truncated to int, for stock counts.
func Integer(v any) int { return int(Number(v)) }

// ImageURLs normalizes the image field into an ordered list of URL strings.
// The sheet stores either a JSON-encoded array string, a comma-separated
// string, or (via newer script versions) an actual array. At most five
// images are kept, matching the capture limit in the scanner UI.
func ImageURLs(v any) []string {
	const maxImages = 5
	var out []string
	switch val := v.(type) {
	case nil:
		return []string{}
	case []any:
		for _, item := range val {
			if s := str(item); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, s := range val {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case string:
		s := strings.TrimSpace(val)
		if s == "" || s == "-" {
			return []string{}
		}
		if strings.HasPrefix(s, "[") {
			var arr []any
			if err := json.Unmarshal([]byte(s), &arr); err == nil {
				return ImageURLs(arr)
			}
			// fall through: treat a broken JSON array as comma-separated
		}
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	default:
		return []string{}
	}
	if out == nil {
		out = []string{}
	}
	if len(out) > maxImages {
		out = out[:maxImages]
	}
	return out
}

// typeCaser normalizes product type labels typed free-form into the sheet
// ("electronics", "ELECTRONICS" -> "Electronics").
var typeCaser = cases.Title(language.English)

// NormalizeType title-cases a product type label; blank and "-" collapse to "".
func NormalizeType(v any) string {
	s := str(v)
	if s == "" || s == "-" {
		return ""
	}
	return typeCaser.String(strings.ToLower(s))
}
