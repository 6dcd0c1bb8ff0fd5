package audio

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads a JSON or YAML file on top of DefaultConfig and validates it.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	bytes, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "failed to read config %s", path)
	}
	if err := cfg.Unmarshal(filepath.Ext(path), bytes); err != nil {
		return cfg, errors.Wrapf(err, "failed to parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

// Unmarshal overlays data onto c. ext selects the format (".json", ".yaml" or ".yml").
func (c *Config) Unmarshal(ext string, data []byte) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, c)
	case ".json", "":
		return json.Unmarshal(data, c)
	}
	return errors.Errorf("unsupported config format %q", ext)
}

// Marshal encodes c in the format selected by ext.
func (c *Config) Marshal(ext string) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.Marshal(c)
	case ".json", "":
		return json.MarshalIndent(c, "", "  ")
	}
	return nil, errors.Errorf("unsupported config format %q", ext)
}
