// Package decode extracts structured data from free-form model output.
//
// Models are asked for bare JSON but routinely wrap it in markdown fences or
// surround it with prose. Decoding tries a strict parse of the fence-stripped
// text first and then falls back to the first balanced {...} or [...] value
// that parses. Any failure is reported as an error; callers never receive a
// partially filled value.
package decode

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	ErrNoStructure = errors.New("no JSON structure found in response")
	ErrMalformed   = errors.New("malformed JSON in response")
)

// Object decodes the first JSON object in text into v.
func Object(text string, v any) error {
	return decode(text, '{', v)
}

// Array decodes the first JSON array in text into v.
func Array(text string, v any) error {
	return decode(text, '[', v)
}

func decode(text string, open byte, v any) error {
	body := StripFences(text)
	if body == "" {
		return ErrNoStructure
	}
	if body[0] == open && unmarshal(body, v) == nil {
		return nil
	}

	found := false
	var lastErr error
	for i := 0; i < len(body); i++ {
		if body[i] != open {
			continue
		}
		end := balancedEnd(body[i:])
		if end <= 0 {
			continue
		}
		found = true
		candidate := body[i : i+end]
		if err := unmarshal(candidate, v); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if !found {
		return ErrNoStructure
	}
	return fmt.Errorf("%w: %v", ErrMalformed, lastErr)
}

// unmarshal decodes data into a zero value of v's element type and stores it
// in v only on success, so a rejected candidate leaves v untouched.
func unmarshal(data string, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &json.InvalidUnmarshalError{Type: reflect.TypeOf(v)}
	}
	fresh := reflect.New(rv.Type().Elem())
	if err := json.Unmarshal([]byte(data), fresh.Interface()); err != nil {
		return err
	}
	rv.Elem().Set(fresh.Elem())
	return nil
}

// StripFences removes a surrounding ```json ... ``` block, or returns the
// content of the first fenced block when prose surrounds it.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "```")
	if start < 0 {
		return text
	}
	rest := text[start+3:]
	newline := strings.Index(rest, "\n")
	if newline < 0 {
		return text
	}
	lang := strings.TrimSpace(rest[:newline])
	if lang != "" && !strings.EqualFold(lang, "json") {
		return text
	}
	content := rest[newline+1:]
	end := strings.Index(content, "```")
	if end < 0 {
		return strings.TrimSpace(content)
	}
	return strings.TrimSpace(content[:end])
}

// balancedEnd returns the length of the bracketed value at the start of
// input, or -1 when the brackets never balance. Brackets inside JSON strings
// are ignored.
func balancedEnd(input string) int {
	if len(input) == 0 || (input[0] != '{' && input[0] != '[') {
		return -1
	}
	stack := []byte{input[0]}
	inString := false
	escaped := false
	for i := 1; i < len(input); i++ {
		c := input[i]
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
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			top := stack[len(stack)-1]
			if (c == '}' && top != '{') || (c == ']' && top != '[') {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i + 1
			}
		}
	}
	return -1
}
