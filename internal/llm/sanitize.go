package llm

import (
	"encoding/json"
	"strings"

	"github.com/spherical-ai/part-extractor/internal/domain"
)

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
	jsonFence  = "```json"
	fenceClose = "```"
)

// SanitizeResponse extracts a single JSON object from a raw completion. It
// never fails: output without a parseable object becomes {key: "NOT FOUND"}.
func SanitizeResponse(raw, key string) string {
	cleaned := raw

	start := strings.Index(cleaned, thinkOpen)
	end := strings.Index(cleaned, thinkClose)
	if start != -1 && end != -1 && end > start {
		cleaned = strings.TrimSpace(cleaned[end+len(thinkClose):])
	}

	if trimmed := strings.TrimSpace(cleaned); strings.HasPrefix(trimmed, jsonFence) {
		cleaned = strings.TrimPrefix(trimmed, jsonFence)
		cleaned = strings.TrimSuffix(cleaned, fenceClose)
		cleaned = strings.TrimSpace(cleaned)
	}

	first := strings.Index(cleaned, "{")
	last := strings.LastIndex(cleaned, "}")
	if first == -1 || last == -1 || last <= first {
		return notFoundJSON(key)
	}

	candidate := cleaned[first : last+1]
	if !json.Valid([]byte(candidate)) {
		return notFoundJSON(key)
	}
	return candidate
}

// DecodeValue reads key from a sanitized JSON object. Non-string values are
// returned as their JSON text. ok is false when the key is absent, null or
// blank, or the input is not an object.
func DecodeValue(sanitized, key string) (value string, ok bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(sanitized), &obj); err != nil {
		return "", false
	}
	raw, present := obj[key]
	if !present {
		return "", false
	}

	text := strings.TrimSpace(string(raw))
	if text == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		text = s
		if strings.TrimSpace(s) == "" {
			return "", false
		}
	}
	return text, true
}

func notFoundJSON(key string) string {
	out, err := json.Marshal(map[string]string{key: domain.NotFound})
	if err != nil {
		return `{"error":"NOT FOUND"}`
	}
	return string(out)
}
