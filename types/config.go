package types

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
	"sglocations.io/ner/logger"
)

const (
	// model kinds
	DictionaryModel = "dictionary"
	RemoteModel     = "remote"
	CompositeModel  = "composite"

	DefaultEntityLabel = "LOC"

	configExtension = ".yaml"
)

type DictionaryParams struct {
	Patterns        string `yaml:"patterns" json:"patterns"`
	Label           string `yaml:"label,omitempty" json:"label,omitempty"`
	CaseInsensitive bool   `yaml:"case_insensitive,omitempty" json:"case_insensitive,omitempty"`
}

type RemoteParams struct {
	URL                  string  `yaml:"url" json:"url"`
	TimeoutSeconds       int     `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
	MaxRequestsPerSecond float64 `yaml:"max_requests_per_second,omitempty" json:"max_requests_per_second,omitempty"`
}

type ModelConfig struct {
	Name       string            `yaml:"-" json:"-"`
	FilePath   string            `yaml:"-" json:"-"`
	Title      string            `yaml:"title" json:"title"`
	Kind       string            `yaml:"kind" json:"kind"`
	Order      int               `yaml:"order" json:"order"`
	Dictionary *DictionaryParams `yaml:"dictionary,omitempty" json:"dictionary,omitempty"`
	Remote     *RemoteParams     `yaml:"remote,omitempty" json:"remote,omitempty"`
	Components []string          `yaml:"components,omitempty" json:"components,omitempty"`
}

type InvalidModelConfigError struct {
	Name   string
	Reason string
}

func (e *InvalidModelConfigError) Error() string {
	return fmt.Sprintf("invalid model config %q: %s", e.Name, e.Reason)
}

func (cfg ModelConfig) Validate() error {
	invalid := func(reason string) error {
		return &InvalidModelConfigError{Name: cfg.Name, Reason: reason}
	}

	switch cfg.Kind {
	case DictionaryModel:
		if cfg.Dictionary == nil || len(cfg.Dictionary.Patterns) == 0 {
			return invalid("dictionary model needs dictionary.patterns")
		}
	case RemoteModel:
		if cfg.Remote == nil || len(cfg.Remote.URL) == 0 {
			return invalid("remote model needs remote.url")
		}
	case CompositeModel:
		if len(cfg.Components) == 0 {
			return invalid("composite model needs components")
		}
		for _, component := range cfg.Components {
			if component == cfg.Name {
				return invalid("composite model lists itself as a component")
			}
		}
	default:
		return invalid(fmt.Sprintf("unknown kind %q", cfg.Kind))
	}

	return nil
}

// DisplayTitle falls back to the model name when no title is configured.
func (cfg ModelConfig) DisplayTitle() string {
	if len(cfg.Title) == 0 {
		return cfg.Name
	}
	return cfg.Title
}

func ParseModelConfig(name string, buf []byte) (ModelConfig, error) {
	cfg := ModelConfig{Name: name}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse model config %q: %w", name, err)
	}
	return cfg, cfg.Validate()
}

func LoadModelConfigs(dirPath string) ([]ModelConfig, error) {
	sglocLogger := logger.NewLogger("LoadModelConfigs")

	files, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	configChan := make(chan ModelConfig, len(files))
	for _, f := range files {
		// Skip dirs and non-yaml files
		if f.IsDir() || !strings.HasSuffix(f.Name(), configExtension) {
			continue
		}

		wg.Add(1)
		go func(fileName string) {
			defer wg.Done()
			filePath := path.Join(dirPath, fileName)
			name := strings.TrimSuffix(fileName, configExtension)
			buf, err := os.ReadFile(filePath)
			if err != nil {
				sglocLogger.Err(err).Str("file_path", filePath).Msg("Could not read model config")
				return
			}
			cfg, err := ParseModelConfig(name, buf)
			if err != nil {
				sglocLogger.Err(err).Str("file_path", filePath).Msg("Skipping model config")
				return
			}
			cfg.FilePath = filePath
			configChan <- cfg
		}(f.Name())
	}

	go func() {
		wg.Wait()
		close(configChan)
	}()

	configs := make([]ModelConfig, 0, len(files))
	for cfg := range configChan {
		configs = append(configs, cfg)
	}
	SortModelConfigs(configs)
	return configs, nil
}

func SortModelConfigs(configs []ModelConfig) {
	sort.SliceStable(configs, func(i, j int) bool {
		if configs[i].Order == configs[j].Order {
			return configs[i].Name < configs[j].Name
		}
		return configs[i].Order < configs[j].Order
	})
}

// WriteModelConfig stores cfg as <dir>/<cfg.Name>.yaml and returns the path.
func WriteModelConfig(dirPath string, cfg ModelConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	buf, err := yaml.Marshal(&cfg)
	if err != nil {
		return "", err
	}
	filePath := path.Join(dirPath, cfg.Name+configExtension)
	if err := os.WriteFile(filePath, buf, 0o644); err != nil {
		return "", err
	}
	return filePath, nil
}
