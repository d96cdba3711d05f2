package analysis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/azure/controversy-analyzer/internal/models"
)

const codeFence = "```"

// StripCodeFence removes a markdown code fence (```json ... ``` or ``` ... ```)
// wrapped around a model reply. Unfenced content is only trimmed
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, codeFence+"json") {
		content = content[len(codeFence+"json"):]
	} else if strings.HasPrefix(content, codeFence) {
		content = content[len(codeFence):]
	}
	content = strings.TrimSuffix(content, codeFence)

	return strings.TrimSpace(content)
}

// ParseVerdict decodes a model reply into a Verdict. Only invalid JSON or a
// top level that is not an object fails; field values of an unexpected type
// are converted where possible and defaulted otherwise
func ParseVerdict(content string) (models.Verdict, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		return models.Verdict{}, fmt.Errorf("invalid verdict JSON: %w", err)
	}
	// "null" unmarshals into a nil map without error
	if fields == nil {
		return models.Verdict{}, fmt.Errorf("invalid verdict JSON: top level is not an object")
	}

	return models.Verdict{
		IsControversial:  decodeFlag(fields["is_controversial"]),
		ControversyScore: decodeScore(fields["controversy_score"]),
		Reasons:          decodeList(fields["reasons"]),
		Topics:           decodeList(fields["topics"]),
	}, nil
}

// decodeFlag follows JSON truthiness: false, null, 0, "" and empty
// collections are false, everything else is true
func decodeFlag(raw json.RawMessage) bool {
	var value interface{}
	if len(raw) == 0 || json.Unmarshal(raw, &value) != nil {
		return false
	}

	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	case []interface{}:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	default:
		return false
	}
}

// decodeScore accepts a number or a numeric string, truncated toward zero
func decodeScore(raw json.RawMessage) int {
	var value interface{}
	if len(raw) == 0 || json.Unmarshal(raw, &value) != nil {
		return 0
	}

	switch v := value.(type) {
	case float64:
		return int(v)
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return int(parsed)
		}
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

// decodeList accepts a list or a single string; non-string list items keep
// their JSON text
func decodeList(raw json.RawMessage) []string {
	items := []string{}

	var value interface{}
	if len(raw) == 0 || json.Unmarshal(raw, &value) != nil {
		return items
	}

	switch v := value.(type) {
	case string:
		items = append(items, v)
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				items = append(items, s)
				continue
			}
			if item == nil {
				continue
			}
			text, err := json.Marshal(item)
			if err == nil {
				items = append(items, string(text))
			}
		}
	}

	return items
}
