package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "HOMEE_"
	// EnvConfigPath names the settings file when no path is given.
	EnvConfigPath = EnvPrefix + "CONFIG"

	envSectionDelimiter = "__"
)

// Load builds the settings by layering, lowest precedence first:
//  1. defaults (Default),
//  2. the YAML file at path, or HOMEE_CONFIG, or DefaultConfigFilename if present,
//  3. HOMEE_ environment variables.
//
// An explicitly named file must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	path, required := resolvePath(path)
	if path != "" {
		if err := k.Load(file.Provider(filepath.Clean(path)), yaml.Parser()); err != nil {
			if required || !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read settings: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func resolvePath(path string) (string, bool) {
	if path != "" {
		return path, true
	}

	if path = os.Getenv(EnvConfigPath); path != "" {
		return path, true
	}

	return DefaultConfigFilename, false
}

// envKey maps HOMEE_MOTION__THRESHOLD_CM to motion.threshold_cm.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)

	return strings.ReplaceAll(s, envSectionDelimiter, ".")
}
