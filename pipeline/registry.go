package pipeline

import (
	"fmt"
	"path"

	"sglocations.io/ner/gazetteer"
	"sglocations.io/ner/logger"
	"sglocations.io/ner/remote"
	"sglocations.io/ner/types"
)

type UnknownModelError struct {
	Name string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model %q", e.Name)
}

type Model struct {
	Config     types.ModelConfig
	Recognizer Recognizer
}

type ModelInfo struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Kind  string `json:"kind"`
	// Components lists a composite's recognizers in the order they run.
	Components []string `json:"components,omitempty"`
}

func (model *Model) Info() ModelInfo {
	info := ModelInfo{
		Name:  model.Config.Name,
		Title: model.Config.DisplayTitle(),
		Kind:  model.Config.Kind,
	}
	if composite, ok := model.Recognizer.(*Composite); ok {
		info.Components = composite.Components()
	}
	return info
}

// Registry holds every loaded model. It is immutable once built.
type Registry struct {
	models  map[string]*Model
	ordered []*Model
}

// NewRegistry builds a recogniser for every config. Relative pattern files
// are resolved against dataDir. Composite models may reference any other
// model, including composites, as long as references do not form a cycle.
func NewRegistry(configs []types.ModelConfig, dataDir string) (*Registry, error) {
	sglocLogger := logger.NewLogger("Model registry")

	byName := make(map[string]types.ModelConfig, len(configs))
	for _, cfg := range configs {
		if _, ok := byName[cfg.Name]; ok {
			return nil, fmt.Errorf("duplicate model name %q", cfg.Name)
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		byName[cfg.Name] = cfg
	}

	registry := &Registry{models: make(map[string]*Model, len(configs))}
	resolving := make(map[string]bool)

	var build func(name string) (*Model, error)
	build = func(name string) (*Model, error) {
		if model, ok := registry.models[name]; ok {
			return model, nil
		}
		cfg, ok := byName[name]
		if !ok {
			return nil, &UnknownModelError{Name: name}
		}
		if resolving[name] {
			return nil, fmt.Errorf("model %q is part of a component cycle", name)
		}
		resolving[name] = true
		defer delete(resolving, name)

		var recognizer Recognizer
		switch cfg.Kind {
		case types.DictionaryModel:
			ruler, err := newRuler(cfg, dataDir)
			if err != nil {
				return nil, err
			}
			sglocLogger.Info().Str("model", name).Int("patterns", ruler.Len()).Msg("Loaded dictionary model")
			recognizer = ruler
		case types.RemoteModel:
			recognizer = remote.New(name, *cfg.Remote)
			sglocLogger.Info().Str("model", name).Str("url", cfg.Remote.URL).Msg("Registered remote model")
		case types.CompositeModel:
			components := make([]Recognizer, len(cfg.Components))
			for i, componentName := range cfg.Components {
				component, err := build(componentName)
				if err != nil {
					return nil, fmt.Errorf("model %q: %w", name, err)
				}
				components[i] = component.Recognizer
			}
			recognizer = NewComposite(name, components...)
			sglocLogger.Info().Str("model", name).Strs("components", cfg.Components).Msg("Composed model")
		}

		model := &Model{Config: cfg, Recognizer: recognizer}
		registry.models[name] = model
		return model, nil
	}

	ordered := make([]types.ModelConfig, len(configs))
	copy(ordered, configs)
	types.SortModelConfigs(ordered)
	for _, cfg := range ordered {
		model, err := build(cfg.Name)
		if err != nil {
			return nil, err
		}
		registry.ordered = append(registry.ordered, model)
	}

	return registry, nil
}

func newRuler(cfg types.ModelConfig, dataDir string) (*gazetteer.Ruler, error) {
	patternsPath := cfg.Dictionary.Patterns
	if !path.IsAbs(patternsPath) {
		patternsPath = path.Join(dataDir, patternsPath)
	}
	label := cfg.Dictionary.Label
	if len(label) == 0 {
		label = types.DefaultEntityLabel
	}
	patterns, err := gazetteer.LoadPatterns(patternsPath, label)
	if err != nil {
		return nil, fmt.Errorf("model %q: %w", cfg.Name, err)
	}
	return gazetteer.NewRuler(cfg.Name, patterns, gazetteer.Options{
		CaseInsensitive: cfg.Dictionary.CaseInsensitive,
	}), nil
}

func (registry *Registry) Get(name string) (*Model, error) {
	model, ok := registry.models[name]
	if !ok {
		return nil, &UnknownModelError{Name: name}
	}
	return model, nil
}

// Models lists models by their configured order.
func (registry *Registry) Models() []*Model {
	return registry.ordered
}

// Default returns the named model, or the last model in order when name is empty.
func (registry *Registry) Default(name string) (*Model, error) {
	if len(name) > 0 {
		return registry.Get(name)
	}
	if len(registry.ordered) == 0 {
		return nil, ErrNoModels
	}
	return registry.ordered[len(registry.ordered)-1], nil
}
