package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a complete configuration from a YAML file. CodeBuild
// configures the driver through the environment; the file form serves local
// runs.
func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{
		LogGroupName:          "unavailable",
		S3BucketName:          "unavailable",
		AssetsDir:             DefaultAssetsDir,
		ValidatorCommand:      DefaultValidatorCommand,
		DuplicationBarPercent: 100,
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.Platform = strings.ToLower(cfg.Platform)
	cfg.OutputPlugin = strings.ToLower(cfg.OutputPlugin)
	return cfg, nil
}
