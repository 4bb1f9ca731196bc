package plugin

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManagerConfig declares what a plugin manager may load.
type ManagerConfig struct {
	// Name labels the manager in logs and diagnostics.
	Name string `yaml:"name"`
	// Plugins lists module identifiers in load order.
	Plugins []string `yaml:"plugins"`
	// Dirs are scanned for shared objects; each file.so declares module "file".
	Dirs []string `yaml:"dirs"`
	// Parent is the full path of the plugin the manager's plugins are
	// advertised under. Empty for top-level managers.
	Parent []string `yaml:"parent"`
}

// FileConfig is the on-disk layout of a manager declaration file.
type FileConfig struct {
	Managers []ManagerConfig `yaml:"managers"`
}

// LoadManagerConfigs reads a YAML file declaring one or more managers.
func LoadManagerConfigs(path string) ([]ManagerConfig, error) {
	if path == "" {
		return nil, errors.New("config path cannot be empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manager config: %w", err)
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal manager config: %w", err)
	}
	for i := range cfg.Managers {
		if err := cfg.Managers[i].Validate(); err != nil {
			return nil, fmt.Errorf("manager %d: %w", i, err)
		}
	}
	return cfg.Managers, nil
}

// Validate ensures the manager configuration is internally consistent.
func (c ManagerConfig) Validate() error {
	names := make(map[string]string, len(c.Plugins))
	for _, moduleID := range c.Plugins {
		if strings.TrimSpace(moduleID) == "" {
			return errors.New("module identifier cannot be empty")
		}
		name := ShortName(moduleID)
		if name == "" {
			return fmt.Errorf("module identifier %q yields an empty plugin name", moduleID)
		}
		if prev, ok := names[name]; ok && prev != moduleID {
			return fmt.Errorf("modules %s and %s share plugin name %s", prev, moduleID, name)
		}
		names[name] = moduleID
	}
	for _, dir := range c.Dirs {
		if strings.TrimSpace(dir) == "" {
			return errors.New("plugin dir cannot be empty")
		}
	}
	for _, segment := range c.Parent {
		if segment == "" || strings.Contains(segment, ":") {
			return fmt.Errorf("invalid parent path segment %q", segment)
		}
	}
	return nil
}
