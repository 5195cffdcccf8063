package gazetteer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"sglocations.io/ner/logger"
	"sglocations.io/ner/utils"
)

// Pattern is one surface form of a location with the label it is tagged with.
type Pattern struct {
	Label   string `json:"label"`
	Pattern string `json:"pattern"`
}

func (p Pattern) hash() uint64 {
	return utils.HashBytes([]byte(p.Label), []byte{0}, []byte(p.Pattern))
}

// LoadPatterns reads a JSON list of location names. Elements are either plain
// strings, tagged with defaultLabel, or entity ruler objects
// {"label": ..., "pattern": ...}. Token-level patterns are not supported and
// are skipped.
func LoadPatterns(filePath string, defaultLabel string) ([]Pattern, error) {
	buf, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	patterns, err := ParsePatterns(buf, defaultLabel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse patterns from %s: %w", filePath, err)
	}
	return patterns, nil
}

func ParsePatterns(buf []byte, defaultLabel string) ([]Pattern, error) {
	sglocLogger := logger.NewLogger("ParsePatterns")

	var elements []json.RawMessage
	if err := json.Unmarshal(buf, &elements); err != nil {
		return nil, err
	}

	seen := make(map[uint64]bool, len(elements))
	patterns := make([]Pattern, 0, len(elements))
	skipped := 0
	for _, element := range elements {
		pattern, ok := parsePattern(element, defaultLabel)
		if !ok {
			skipped++
			continue
		}
		hash := pattern.hash()
		if seen[hash] {
			continue
		}
		seen[hash] = true
		patterns = append(patterns, pattern)
	}

	if skipped > 0 {
		sglocLogger.Warn().Int("skipped", skipped).Msg("Skipped unsupported or empty patterns")
	}
	return patterns, nil
}

func parsePattern(element json.RawMessage, defaultLabel string) (Pattern, bool) {
	trimmed := bytes.TrimSpace(element)
	if len(trimmed) == 0 {
		return Pattern{}, false
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return Pattern{}, false
		}
		text = strings.TrimSpace(text)
		return Pattern{Label: defaultLabel, Pattern: text}, len(text) > 0
	case '{':
		var raw struct {
			Label   string          `json:"label"`
			Pattern json.RawMessage `json:"pattern"`
		}
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return Pattern{}, false
		}
		var text string
		// token patterns are lists and fail here
		if err := json.Unmarshal(raw.Pattern, &text); err != nil {
			return Pattern{}, false
		}
		text = strings.TrimSpace(text)
		label := raw.Label
		if len(label) == 0 {
			label = defaultLabel
		}
		return Pattern{Label: label, Pattern: text}, len(text) > 0
	}

	return Pattern{}, false
}
