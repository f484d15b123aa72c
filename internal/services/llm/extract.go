package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"versescope/internal/services"
	"versescope/internal/textutil"
)

// Extractor pulls a single JSON object out of free-form model output. It
// only locates the candidate text; callers decide how to decode it.
type Extractor interface {
	Extract(raw string) (string, error)
}

// Extractor names accepted by ExtractorByName and the analysis.extractor
// config key.
const (
	ExtractorLenient  = "lenient"
	ExtractorSpan     = "span"
	ExtractorBalanced = "balanced"
)

// maxBalancedCandidates bounds how many opening braces the lenient
// extractor tries before falling back to the span heuristic.
const maxBalancedCandidates = 32

// SpanExtractor slices from the first '{' to the last '}' inclusive. It
// assumes no stray braces appear in the surrounding prose.
type SpanExtractor struct{}

// Extract implements Extractor.
func (SpanExtractor) Extract(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", noObjectError(raw)
	}
	return raw[start : end+1], nil
}

// BalancedExtractor returns the first brace-balanced object starting at the
// first '{', ignoring braces inside JSON strings.
type BalancedExtractor struct{}

// Extract implements Extractor.
func (BalancedExtractor) Extract(raw string) (string, error) {
	start := strings.Index(raw, "{")
	if start < 0 {
		return "", noObjectError(raw)
	}
	end, ok := balancedEnd(raw, start)
	if !ok {
		return "", services.Wrap(services.ErrParse, stage, "extract json",
			"unbalanced object: "+textutil.Snippet(raw[start:], 0), nil)
	}
	return raw[start : end+1], nil
}

// LenientExtractor strips a surrounding code fence, then returns the first
// brace-balanced object that is valid JSON. When none is valid it falls back
// to the first-'{' to last-'}' slice so decoding fails with the decoder's
// own message.
type LenientExtractor struct{}

// Extract implements Extractor.
func (LenientExtractor) Extract(raw string) (string, error) {
	text := stripCodeFenceBlock(raw)
	offset := 0
	for tries := 0; tries < maxBalancedCandidates; tries++ {
		idx := strings.Index(text[offset:], "{")
		if idx < 0 {
			break
		}
		start := offset + idx
		if end, ok := balancedEnd(text, start); ok {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
		offset = start + 1
	}
	return SpanExtractor{}.Extract(text)
}

// ExtractorByName resolves a configured extractor name. Empty selects the
// lenient extractor.
func ExtractorByName(name string) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ExtractorLenient:
		return LenientExtractor{}, nil
	case ExtractorSpan:
		return SpanExtractor{}, nil
	case ExtractorBalanced:
		return BalancedExtractor{}, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, stage, "select extractor",
			fmt.Sprintf("unknown extractor %q (want lenient, span, or balanced)", name), nil)
	}
}

// DecodeObject extracts a JSON object from raw with extractor and decodes it
// into a generic value. Failures are services.ErrParse and carry a bounded
// snippet of the offending text.
func DecodeObject(raw string, extractor Extractor) (any, error) {
	if extractor == nil {
		extractor = LenientExtractor{}
	}
	if strings.TrimSpace(raw) == "" {
		return nil, services.Wrap(services.ErrParse, stage, "extract json", "empty payload", nil)
	}
	candidate, err := extractor.Extract(raw)
	if err != nil {
		return nil, err
	}
	var parsed any
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil, services.Wrap(services.ErrParse, stage, "decode json",
			"payload snippet: "+textutil.Snippet(candidate, 0), err)
	}
	return parsed, nil
}

// DecodeLLMJSON decodes JSON from an LLM response into target, handling
// code fences and surrounding prose.
func DecodeLLMJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return services.Wrap(services.ErrParse, stage, "decode json", "empty payload", nil)
	}
	if directErr := json.Unmarshal([]byte(trimmed), target); directErr == nil {
		return nil
	}
	candidate, err := LenientExtractor{}.Extract(trimmed)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(candidate), target); err != nil {
		return services.Wrap(services.ErrParse, stage, "decode json",
			"sanitized payload snippet: "+textutil.Snippet(candidate, 0), err)
	}
	return nil
}

// balancedEnd returns the index of the '}' closing the object that opens at
// start. Braces inside string literals are ignored.
func balancedEnd(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
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

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
		body = strings.TrimLeft(body, " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func noObjectError(raw string) error {
	return services.Wrap(services.ErrParse, stage, "extract json",
		"no JSON object in model output: "+textutil.Snippet(raw, 0), nil)
}
