package pipeline

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"sglocations.io/ner/types"
)

const (
	entitiesOpen  = `<div class="entities" style="line-height: 2.5; direction: ltr">`
	entitiesClose = `</div>`
	markOpen      = `<mark class="entity" style="background: %s; padding: 0.45em 0.6em; margin: 0 0.25em; line-height: 1; border-radius: 0.35em;">`
	labelOpen     = `<span style="font-size: 0.8em; font-weight: bold; line-height: 1; border-radius: 0.35em; vertical-align: middle; margin-left: 0.5rem">`
	defaultColour = "#ddd"
)

var labelColours = map[string]string{
	"LOC":  "#ff9561",
	"GPE":  "#feca74",
	"FAC":  "#9cc9cc",
	"ORG":  "#7aecec",
	"ADDR": "#bfe1d9",
}

// Render marks entities in text the way displaCy's "ent" style does. Entities
// that overlap an earlier one or fall outside the text are not marked.
func Render(text string, entities []types.Entity) string {
	sorted := make(types.Entities, len(entities))
	copy(sorted, entities)
	sort.Sort(sorted)

	runes := []rune(text)

	var sb strings.Builder
	sb.WriteString(entitiesOpen)

	var offset int32
	for _, entity := range sorted {
		if entity.Begin < offset || entity.End <= entity.Begin || int(entity.End) > len(runes) {
			continue
		}
		writeText(&sb, string(runes[offset:entity.Begin]))
		writeEntity(&sb, string(runes[entity.Begin:entity.End]), entity.Label)
		offset = entity.End
	}
	writeText(&sb, string(runes[offset:]))

	sb.WriteString(entitiesClose)
	return sb.String()
}

func writeText(sb *strings.Builder, text string) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if i > 0 {
			sb.WriteString("<br>")
		}
		sb.WriteString(html.EscapeString(line))
	}
}

func writeEntity(sb *strings.Builder, text string, label string) {
	colour, ok := labelColours[label]
	if !ok {
		colour = defaultColour
	}
	fmt.Fprintf(sb, markOpen, colour)
	writeText(sb, text)
	sb.WriteString(labelOpen)
	sb.WriteString(html.EscapeString(label))
	sb.WriteString("</span></mark>")
}
