package compose

import (
	"encoding/json"
	"errors"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"
	"sglocations.io/ner/logger"
	"sglocations.io/ner/types"
)

var ErrNotADictionary = errors.New("ruler must be a dictionary model")

type patch struct {
	Kind       string    `json:"kind"`
	Title      string    `json:"title"`
	Order      int       `json:"order"`
	Components []string  `json:"components"`
	Dictionary *struct{} `json:"dictionary"`
	Remote     *struct{} `json:"remote"`
}

// Compose returns a composite model that runs ruler before base. Everything
// else is inherited from base, and the result sorts right after it.
func Compose(base types.ModelConfig, ruler types.ModelConfig, name string, title string) (types.ModelConfig, error) {
	if ruler.Kind != types.DictionaryModel {
		return types.ModelConfig{}, fmt.Errorf("%q: %w", ruler.Name, ErrNotADictionary)
	}
	if len(name) == 0 {
		return types.ModelConfig{}, errors.New("composed model needs a name")
	}
	if name == base.Name || name == ruler.Name {
		return types.ModelConfig{}, fmt.Errorf("composed model %q would replace one of its components", name)
	}
	if base.Name == ruler.Name {
		return types.ModelConfig{}, fmt.Errorf("model %q cannot be composed with itself", base.Name)
	}
	if len(title) == 0 {
		title = fmt.Sprintf("%s with %s", base.DisplayTitle(), ruler.DisplayTitle())
	}

	doc, err := json.Marshal(base)
	if err != nil {
		return types.ModelConfig{}, err
	}
	patchDoc, err := json.Marshal(patch{
		Kind:       types.CompositeModel,
		Title:      title,
		Order:      base.Order + 1,
		Components: []string{ruler.Name, base.Name},
	})
	if err != nil {
		return types.ModelConfig{}, err
	}
	composedDoc, err := jsonpatch.MergePatch(doc, patchDoc)
	if err != nil {
		return types.ModelConfig{}, err
	}

	composed := types.ModelConfig{Name: name}
	if err = json.Unmarshal(composedDoc, &composed); err != nil {
		return types.ModelConfig{}, err
	}
	return composed, composed.Validate()
}

// ComposeDir composes two models configured in modelsDir and writes the
// result next to them.
func ComposeDir(modelsDir string, baseName string, rulerName string, name string, title string) (string, error) {
	sglocLogger := logger.NewLogger("Model composer")

	configs, err := types.LoadModelConfigs(modelsDir)
	if err != nil {
		return "", err
	}
	byName := make(map[string]types.ModelConfig, len(configs))
	for _, cfg := range configs {
		byName[cfg.Name] = cfg
	}
	base, ok := byName[baseName]
	if !ok {
		return "", fmt.Errorf("no model %q in %s", baseName, modelsDir)
	}
	ruler, ok := byName[rulerName]
	if !ok {
		return "", fmt.Errorf("no model %q in %s", rulerName, modelsDir)
	}

	composed, err := Compose(base, ruler, name, title)
	if err != nil {
		return "", err
	}
	filePath, err := types.WriteModelConfig(modelsDir, composed)
	if err != nil {
		return "", err
	}
	sglocLogger.Info().
		Str("model", name).
		Strs("components", composed.Components).
		Str("file_path", filePath).
		Msg("Wrote composed model")
	return filePath, nil
}
