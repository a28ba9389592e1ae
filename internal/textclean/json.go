package textclean

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ExtractJSONArray returns the first balanced JSON array in text that parses.
// Brackets inside string literals are ignored, so prose around the payload and
// brackets inside article text do not confuse the scan.
func ExtractJSONArray(text string) (string, bool) {
	return extractBalanced(text, '[', ']')
}

// ExtractJSONObject returns the first balanced JSON object in text that parses.
func ExtractJSONObject(text string) (string, bool) {
	return extractBalanced(text, '{', '}')
}

func extractBalanced(text string, open, close byte) (string, bool) {
	for start := strings.IndexByte(text, open); start >= 0; {
		if end := matchClosing(text, start); end > start {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		next := strings.IndexByte(text[start+1:], open)
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchClosing walks from an opening bracket and returns the index of the
// bracket that closes it, or -1.
func matchClosing(text string, start int) int {
	var (
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			stack = append(stack, c)
		case ']', '}':
			if len(stack) == 0 {
				return -1
			}
			top := stack[len(stack)-1]
			if (c == ']' && top != '[') || (c == '}' && top != '{') {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}

// StripCodeFence removes a surrounding markdown code fence, with or without a
// json language tag.
func StripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

// DecodeLLMJSON decodes model output into target, tolerating code fences and
// prose around the JSON value.
func DecodeLLMJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	unfenced := StripCodeFence(trimmed)
	if unfenced != trimmed {
		if err := json.Unmarshal([]byte(unfenced), target); err == nil {
			return nil
		}
	}
	if obj, ok := ExtractJSONObject(unfenced); ok {
		if err := json.Unmarshal([]byte(obj), target); err == nil {
			return nil
		}
	}
	if arr, ok := ExtractJSONArray(unfenced); ok {
		if err := json.Unmarshal([]byte(arr), target); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w (payload snippet: %s)", directErr, Snippet(trimmed, 160))
}

// Snippet flattens text to one line and caps it for log output.
func Snippet(content string, limit int) string {
	clean := SingleLine(content)
	if clean == "" {
		return "<empty>"
	}
	runes := []rune(clean)
	if len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}
