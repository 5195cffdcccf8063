package pipeline

import (
	"context"
	"sort"

	"sglocations.io/ner/types"
)

// Recognizer finds location entities in text. Implementations must be safe
// for concurrent use.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, text string) ([]types.Entity, error)
}

// Composite runs its components in order. Entities found by an earlier
// component are fixed; a later component only contributes entities that
// overlap none of them. A ruler placed before a statistical model therefore
// takes precedence over it.
type Composite struct {
	name       string
	components []Recognizer
}

func NewComposite(name string, components ...Recognizer) *Composite {
	return &Composite{name: name, components: components}
}

func (composite *Composite) Name() string {
	return composite.name
}

func (composite *Composite) Components() []string {
	names := make([]string, len(composite.components))
	for i, component := range composite.components {
		names[i] = component.Name()
	}
	return names
}

func (composite *Composite) Recognize(ctx context.Context, text string) ([]types.Entity, error) {
	var kept types.Entities
	for _, component := range composite.components {
		entities, err := component.Recognize(ctx, text)
		if err != nil {
			return nil, err
		}
		fixed := len(kept)
		for _, entity := range entities {
			if kept[:fixed].OverlapsAny(entity) {
				continue
			}
			kept = append(kept, entity)
		}
	}
	if kept == nil {
		kept = types.Entities{}
	}
	sort.Sort(kept)
	return kept, nil
}
