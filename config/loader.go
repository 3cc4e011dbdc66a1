// Copyright (C) 2025 quiet-mesh project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// LoaderOptions configures the configuration loader.
type LoaderOptions struct {
	ConfigDir        string
	Environment      string
	SkipEnvOverrides bool
	SkipValidation   bool
	DotEnvPath       string
}

// DefaultLoaderOptions returns the loader's default options.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		ConfigDir:  "config",
		DotEnvPath: ".env",
	}
}

// Load loads configuration following the fallback chain
// "<env>.yaml" -> "default.yaml" -> "config.yaml" -> built-in defaults,
// then layers environment-variable overrides on top (highest priority),
// and finally validates the result unless SkipValidation is set.
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	_ = LoadDotEnv(options.DotEnvPath)

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	cfg, err := loadConfigFile(filepath.Join(options.ConfigDir, env+".yaml"))
	if err != nil {
		cfg, err = loadConfigFile(filepath.Join(options.ConfigDir, "default.yaml"))
	}
	if err != nil {
		cfg, err = loadConfigFile(filepath.Join(options.ConfigDir, "config.yaml"))
	}
	if err != nil {
		cfg = Default()
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}

	if !options.SkipEnvOverrides {
		applyEnvironmentOverrides(cfg)
	}

	if !options.SkipValidation {
		if problems := Validate(cfg); len(problems) > 0 {
			return nil, fmt.Errorf("configuration validation failed: %s", problems[0])
		}
	}

	return cfg, nil
}

func loadConfigFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	return LoadFromFile(path)
}

// MustLoad loads configuration or panics. Intended for cmd/ entry points
// where a bad config is unrecoverable at startup.
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
