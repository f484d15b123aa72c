package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"versescope/internal/services"
)

var (
	historicalKeys = []string{"historicalContext", "historical_context"}
	linguisticKeys = []string{"linguisticLens", "linguistic_lens"}
	crossRefKeys   = []string{"crossReferences", "cross_references"}
	citationKeys   = []string{"reference", "verse", "ref"}
	proseKeys      = []string{"explanation", "description", "text"}
)

// Normalize converts a decoded model payload into a Record. The payload must
// be a JSON object; individual fields degrade instead of failing.
func Normalize(parsed any) (Record, error) {
	obj, ok := parsed.(map[string]any)
	if !ok {
		return Record{}, services.Wrap(services.ErrParse, "analysis", "normalize",
			fmt.Sprintf("expected a JSON object, got %s", describe(parsed)), nil)
	}
	return Record{
		HistoricalContext: prose(lookup(obj, historicalKeys)),
		LinguisticLens:    prose(lookup(obj, linguisticKeys)),
		CrossReferences:   crossReferences(lookup(obj, crossRefKeys)),
	}, nil
}

func crossReferences(value any) []CrossReference {
	refs := make([]CrossReference, 0, 2)
	switch v := value.(type) {
	case nil:
	case []any:
		for _, item := range v {
			if ref, ok := crossReference(item); ok {
				refs = append(refs, ref)
			}
		}
	default:
		if ref, ok := crossReference(v); ok {
			refs = append(refs, ref)
		}
	}
	return refs
}

func crossReference(item any) (CrossReference, bool) {
	var ref CrossReference
	if obj, ok := item.(map[string]any); ok {
		ref.Verse = prose(lookup(obj, citationKeys))
		ref.Explanation = prose(lookup(obj, proseKeys))
	} else {
		ref.Explanation = prose(item)
	}
	return ref, ref.Verse != "" || ref.Explanation != ""
}

// lookup returns the first non-null value stored under any of keys.
func lookup(obj map[string]any, keys []string) any {
	for _, key := range keys {
		if value, ok := obj[key]; ok && value != nil {
			if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
				continue
			}
			return value
		}
	}
	return nil
}

// prose renders a field as display text. Non-string values become compact JSON.
func prose(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}

func describe(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case []any:
		return "an array"
	case string:
		return "a string"
	case float64, json.Number:
		return "a number"
	case bool:
		return "a boolean"
	default:
		return fmt.Sprintf("%T", value)
	}
}
