// Package parser recovers the JSON object from a free-form model reply.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrEmptyReply    = errors.New("model reply is empty")
	ErrNoJSONFound   = errors.New("no JSON object found in model reply")
	ErrMalformedJSON = errors.New("model reply contains malformed JSON")
)

// Parse returns the first balanced {...} fragment of reply that decodes as
// a JSON object. Prose and markdown fences around it are ignored, and a
// balanced fragment that fails to decode is skipped as a whole. When no
// balanced fragment decodes, the span from the first '{' to the last '}'
// is tried before giving up.
//
// Numbers are decoded as json.Number.
func Parse(reply string) (map[string]any, error) {
	if strings.TrimSpace(reply) == "" {
		return nil, ErrEmptyReply
	}

	first := strings.IndexByte(reply, '{')
	last := strings.LastIndexByte(reply, '}')
	if first < 0 || last < first {
		return nil, ErrNoJSONFound
	}

	var lastErr error
	for start := first; start >= 0 && start < last; {
		resume := start + 1
		if end, ok := matchBrace(reply, start); ok {
			obj, err := decodeObject(reply[start : end+1])
			if err == nil {
				return obj, nil
			}
			// A broken object is rejected whole, never mined for nested objects.
			lastErr = err
			resume = end + 1
		}
		next := strings.IndexByte(reply[resume:], '{')
		if next < 0 {
			break
		}
		start = resume + next
	}

	obj, err := decodeObject(reply[first : last+1])
	if err == nil {
		return obj, nil
	}
	if lastErr == nil {
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, lastErr)
}

// matchBrace returns the index of the '}' closing the '{' at start,
// skipping braces inside JSON strings.
func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func decodeObject(fragment string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(fragment)))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON object")
	}
	if obj == nil {
		return nil, errors.New("reply is not a JSON object")
	}
	return obj, nil
}
