package types

// Entity is a labelled span of the text a recogniser was given. Begin and End
// count runes, End is exclusive.
type Entity struct {
	Text  string `json:"entity"`
	Label string `json:"label"`
	Begin int32  `json:"start"`
	End   int32  `json:"end"`
}

func Overlaps(a Entity, b Entity) bool {
	return a.Begin < b.End && b.Begin < a.End
}

type Entities []Entity

func (entities Entities) Len() int {
	return len(entities)
}

func (entities Entities) Less(i int, j int) bool {
	if entities[i].Begin == entities[j].Begin {
		return entities[i].End < entities[j].End
	}
	return entities[i].Begin < entities[j].Begin
}

func (entities Entities) Swap(i int, j int) {
	entities[i], entities[j] = entities[j], entities[i]
}

// OverlapsAny reports whether entity shares at least one rune with any of entities.
func (entities Entities) OverlapsAny(entity Entity) bool {
	for _, other := range entities {
		if Overlaps(entity, other) {
			return true
		}
	}
	return false
}
