package machine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ParseError reports completion output that could not be turned into the expected shape.
// Raw always carries the unmodified model text so a human can recover it.
type ParseError struct {
	Kind string
	Raw  string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("machine: parse %s output: %v", e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RawOutput returns the model text carried by a ParseError in err's chain.
func RawOutput(err error) (string, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Raw, true
	}
	return "", false
}

// stripFence removes a Markdown code fence wrapping the whole response. Fences
// inside string values are left alone.
func stripFence(s string) string {
	t := strings.TrimSpace(s)
	if strings.HasPrefix(t, "```") {
		if nl := strings.IndexByte(t, '\n'); nl >= 0 {
			t = t[nl+1:]
		} else {
			t = strings.TrimLeft(t, "`")
		}
	}
	t = strings.TrimSpace(t)
	return strings.TrimSpace(strings.TrimSuffix(t, "```"))
}

// extractJSON returns the span from the first '{' to the last '}'.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return content[start : end+1]
}

// decodeJSON decodes a model response into v, tolerating code fences and chatter
// around the JSON object. A field of the wrong type is left at its zero value.
func decodeJSON(kind, raw string, v any) error {
	cleaned := stripFence(raw)
	err := unmarshalLenient([]byte(cleaned), v)
	if err == nil {
		return nil
	}
	if candidate := extractJSON(cleaned); candidate != "" && candidate != cleaned {
		if err2 := unmarshalLenient([]byte(candidate), v); err2 == nil {
			return nil
		}
	}
	return &ParseError{Kind: kind, Raw: raw, Err: err}
}

// unmarshalLenient ignores type mismatches below the top level; encoding/json still
// fills every other field in that case.
func unmarshalLenient(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return nil
	}
	return err
}

// flexInt accepts 7, 7.6, "7", "7/10" or null.
type flexInt int

var leadingNumber = regexp.MustCompile(`-?\d+(\.\d+)?`)

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		*f = 0
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	m := leadingNumber.FindString(s)
	if m == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return fmt.Errorf("flexInt: %w", err)
	}
	*f = flexInt(math.Round(n))
	return nil
}

// flexString accepts text, a number, a boolean, a list (joined line by line) or null.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		*f = ""
		return nil
	}
	*f = flexString(strings.TrimSpace(flatten(v)))
	return nil
}

func flatten(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := strings.TrimSpace(flatten(item)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	default:
		data, _ := json.Marshal(t)
		return string(data)
	}
}

// flexStrings accepts a list of values, a single value, or null.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		*f = nil
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		items = []any{v}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(flatten(item)); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 && !ok {
		out = nil
	}
	*f = out
	return nil
}

func (f flexStrings) list() []string {
	if f == nil {
		return []string{}
	}
	return []string(f)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// parseTimestamp converts "m:ss" or "h:mm:ss" into seconds.
func parseTimestamp(ts string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(ts), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}
