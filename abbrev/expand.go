package abbrev

import "strings"

// Expand replaces every token of text that equals one of the first three
// columns of a row with that row's expansion. Rows are scanned in table order
// and the first match wins.
func Expand(text string, table Table) string {
	tokens := Split(text)
	for i, token := range tokens {
		if token == "" {
			continue
		}
		for _, row := range table {
			if row.Matches(token) {
				tokens[i] = row.Expansion()
				break
			}
		}
	}
	return strings.Join(tokens, "")
}

// Expander is Expand over a precomputed lookup. It is read-only after
// NewExpander returns and may be shared between goroutines.
type Expander struct {
	expansions map[string]string
}

func NewExpander(table Table) *Expander {
	expansions := make(map[string]string, len(table)*expansionColumn)
	for _, row := range table {
		for col := 0; col < expansionColumn; col++ {
			key := row[col]
			if key == "" {
				continue
			}
			// earlier rows win
			if _, ok := expansions[key]; ok {
				continue
			}
			expansions[key] = row.Expansion()
		}
	}
	return &Expander{expansions: expansions}
}

func (e *Expander) Expand(text string) string {
	tokens := Split(text)

	var sb strings.Builder
	sb.Grow(len(text))
	for _, token := range tokens {
		if expansion, ok := e.expansions[token]; ok {
			sb.WriteString(expansion)
			continue
		}
		sb.WriteString(token)
	}
	return sb.String()
}

// Len is the number of distinct abbreviation spellings known to the expander.
func (e *Expander) Len() int {
	return len(e.expansions)
}
