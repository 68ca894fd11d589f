package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"celestial/internal/config"
)

// writeConfigFromEnv materialises a configuration passed through the
// environment at cfgPath. It reports whether a file was written.
func writeConfigFromEnv(cfgPath string) (bool, error) {
	jsonPayload := os.Getenv("SURFACE_CONFIG_JSON")
	yamlPayload := os.Getenv("SURFACE_CONFIG_YAML_B64")

	if jsonPayload == "" && yamlPayload == "" {
		return false, nil
	}
	if cfgPath == "" {
		return false, errors.New("configuration provided in the environment but no --config path supplied")
	}

	cfg := config.Default()
	if jsonPayload != "" {
		if err := config.Decode([]byte(jsonPayload), config.FormatJSON, cfg); err != nil {
			return false, fmt.Errorf("decode env config json: %w", err)
		}
	} else {
		data, err := base64.StdEncoding.DecodeString(yamlPayload)
		if err != nil {
			return false, fmt.Errorf("decode env config yaml: %w", err)
		}
		if err := config.Decode(data, config.FormatYAML, cfg); err != nil {
			return false, fmt.Errorf("parse env config yaml: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return false, fmt.Errorf("validate env config: %w", err)
	}
	if err := config.Write(cfgPath, cfg); err != nil {
		return false, err
	}
	return true, nil
}
