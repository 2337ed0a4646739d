package prompts

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

const fence = "```"

// Normalize turns a loosely typed upstream value into an ordered list of
// prompt strings. It never fails: values that are not recognisably a list
// come back as a single element.
func Normalize(raw any) []string {
	switch v := raw.(type) {
	case nil:
		return []string{fmt.Sprint(v)}
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case string:
		return normalizeText(v)
	case []byte:
		return normalizeText(string(v))
	case json.RawMessage:
		return normalizeText(string(v))
	}

	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, fmt.Sprint(rv.Index(i).Interface()))
		}
		return out
	}

	return []string{fmt.Sprint(raw)}
}

func normalizeText(text string) []string {
	body := stripFence(text)
	if list, ok := parseList(body); ok {
		return list
	}
	return []string{text}
}

// stripFence removes a markdown code fence (```lang ... ```) around text.
func stripFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, fence) {
		return t
	}

	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	} else {
		t = t[len(fence):]
	}

	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, fence)
	return strings.TrimSpace(t)
}

func parseList(body string) ([]string, bool) {
	if !strings.HasPrefix(body, "[") || !strings.HasSuffix(body, "]") {
		return nil, false
	}

	var decoded []any
	if err := json.Unmarshal([]byte(body), &decoded); err == nil {
		out := make([]string, 0, len(decoded))
		for _, item := range decoded {
			out = append(out, coerceJSON(item))
		}
		return out, true
	}

	return parseLiteral(body)
}

func coerceJSON(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// Lines splits plain text into one prompt per non-blank line. It is the
// fallback for prompt files that are not list literals.
func Lines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// FromText normalizes text and falls back to Lines when the text was not a
// list literal but spans several lines.
func FromText(text string) []string {
	list := Normalize(text)
	if len(list) == 1 && strings.Contains(strings.TrimSpace(list[0]), "\n") {
		return Lines(stripFence(text))
	}
	return list
}
