package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"sglocations.io/ner/abbrev"
	"sglocations.io/ner/logger"
	"sglocations.io/ner/types"
)

var ErrNoModels = errors.New("no models selected")

type CompareRequest struct {
	Text                  string   `json:"text"`
	Models                []string `json:"models"`
	AllModels             bool     `json:"all_models"`
	LengthenAbbreviations bool     `json:"lengthen_abbreviations"`
}

type ModelResult struct {
	Name     string         `json:"name"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Entities []types.Entity `json:"entities"`
	HTML     string         `json:"html"`
	Error    string         `json:"error,omitempty"`
}

type CompareResponse struct {
	Text    string        `json:"text"`
	Results []ModelResult `json:"results"`
}

// Comparer runs the same text through several models side by side.
type Comparer struct {
	registry *Registry
	expander *abbrev.Expander
	sglocLog zerolog.Logger
}

func NewComparer(registry *Registry, expander *abbrev.Expander) *Comparer {
	return &Comparer{
		registry: registry,
		expander: expander,
		sglocLog: logger.NewLogger("Comparer"),
	}
}

func (comparer *Comparer) Registry() *Registry {
	return comparer.registry
}

// Prepare returns the text recognisers see for the request.
func (comparer *Comparer) Prepare(text string, lengthen bool) string {
	if !lengthen || comparer.expander == nil {
		return text
	}
	return comparer.expander.Expand(text)
}

func (comparer *Comparer) selectModels(request CompareRequest) ([]*Model, error) {
	if request.AllModels {
		if len(comparer.registry.Models()) == 0 {
			return nil, ErrNoModels
		}
		return comparer.registry.Models(), nil
	}
	if len(request.Models) == 0 {
		return nil, ErrNoModels
	}
	models := make([]*Model, len(request.Models))
	for i, name := range request.Models {
		model, err := comparer.registry.Get(name)
		if err != nil {
			return nil, err
		}
		models[i] = model
	}
	return models, nil
}

// Compare fails only on an invalid selection. A model that fails to
// recognise reports the error in its own result.
func (comparer *Comparer) Compare(ctx context.Context, request CompareRequest) (CompareResponse, error) {
	models, err := comparer.selectModels(request)
	if err != nil {
		return CompareResponse{}, err
	}

	text := comparer.Prepare(request.Text, request.LengthenAbbreviations)
	results := make([]ModelResult, len(models))

	var wg sync.WaitGroup
	for i, model := range models {
		wg.Add(1)
		go func(i int, model *Model) {
			defer wg.Done()
			results[i] = comparer.run(ctx, model, text)
		}(i, model)
	}
	wg.Wait()

	return CompareResponse{Text: request.Text, Results: results}, nil
}

func (comparer *Comparer) run(ctx context.Context, model *Model, text string) ModelResult {
	result := ModelResult{
		Name:     model.Config.Name,
		Title:    model.Config.DisplayTitle(),
		Text:     text,
		Entities: []types.Entity{},
	}

	entities, err := model.Recognizer.Recognize(ctx, text)
	if err != nil {
		comparer.sglocLog.Err(err).Str("model", result.Name).Msg("Model failed to recognise text")
		result.Error = err.Error()
		result.HTML = Render(text, nil)
		return result
	}

	result.Entities = entities
	result.HTML = Render(text, entities)
	return result
}
