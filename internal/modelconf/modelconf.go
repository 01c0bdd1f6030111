// Package modelconf loads models.yaml: the model catalogue, per-model
// default request parameters, and named model groups.
package modelconf

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"quizbench/internal/adapter"
)

type Model struct {
	ID     string         `yaml:"id"`
	Name   string         `yaml:"name,omitempty"`
	Params map[string]any `yaml:"params,omitempty"`
}

type Config struct {
	Models []Model             `yaml:"models"`
	Groups map[string][]string `yaml:"groups,omitempty"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse model config: %w", err)
	}
	for _, model := range cfg.Models {
		if model.ID == "" {
			return nil, fmt.Errorf("parse model config: model entry without id")
		}
	}
	for name, ids := range cfg.Groups {
		for _, id := range ids {
			if _, ok := cfg.model(id); !ok {
				return nil, fmt.Errorf("parse model config: group %q references unknown model %q", name, id)
			}
		}
	}
	return &cfg, nil
}

func (c *Config) model(id string) (Model, bool) {
	for _, model := range c.Models {
		if model.ID == id {
			return model, true
		}
	}
	return Model{}, false
}

// GroupModels resolves a named group to its model ids.
func (c *Config) GroupModels(name string) ([]string, error) {
	ids, ok := c.Groups[name]
	if !ok {
		return nil, fmt.Errorf("unknown model group: %s", name)
	}
	return ids, nil
}

// Adapters builds one adapter per model id, in order. Unknown ids still get
// an adapter with baseline parameters; the provider decides whether the
// model exists. With useMocks every adapter is the deterministic mock.
func (c *Config) Adapters(ids []string, useMocks bool, apiKey string) []adapter.Adapter {
	adapters := make([]adapter.Adapter, 0, len(ids))
	for _, id := range ids {
		if useMocks {
			adapters = append(adapters, adapter.NewMock(id))
			continue
		}
		var params map[string]any
		if model, ok := c.model(id); ok {
			params = model.Params
		}
		adapters = append(adapters, adapter.NewOpenRouter(id, apiKey, params))
	}
	return adapters
}
