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

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package config loads and validates quietcore's process configuration:
// crypto mode, store backend, transport listener, scheduler jobs, logging,
// and metrics.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Environment string          `yaml:"environment" json:"environment"`
	CryptoMode  string          `yaml:"crypto_mode" json:"crypto_mode"` // real | dummy
	Store       StoreConfig     `yaml:"store" json:"store"`
	Transport   TransportConfig `yaml:"transport" json:"transport"`
	Scheduler   SchedulerConfig `yaml:"scheduler" json:"scheduler"`
	Logging     LoggingConfig   `yaml:"logging" json:"logging"`
	Metrics     MetricsConfig   `yaml:"metrics" json:"metrics"`
}

// StoreConfig selects and configures the event-store backend.
type StoreConfig struct {
	Driver string `yaml:"driver" json:"driver"` // sqlite | postgres | memory
	DSN    string `yaml:"dsn" json:"dsn"`
}

// TransportConfig configures the datagram transport listener.
type TransportConfig struct {
	ListenAddr       string `yaml:"listen_addr" json:"listen_addr"`
	MaxDatagramBytes int    `yaml:"max_datagram_bytes" json:"max_datagram_bytes"`
}

// SchedulerConfig is the ordered list of recurring jobs.
type SchedulerConfig struct {
	Jobs []JobConfig `yaml:"jobs" json:"jobs"`
}

// JobConfig names one scheduler job and its tick interval.
type JobConfig struct {
	Name       string        `yaml:"name" json:"name"`
	IntervalMs time.Duration `yaml:"interval_ms" json:"interval_ms"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // json | text
}

// MetricsConfig controls the Prometheus metrics listener.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
}

// Default returns a Config with the protocol's defaults applied:
// real crypto, in-memory SQLite store, a single sync_request job.
func Default() *Config {
	cfg := &Config{
		Environment: "development",
		CryptoMode:  "real",
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    ":memory:",
		},
		Transport: TransportConfig{
			ListenAddr:       "0.0.0.0:7777",
			MaxDatagramBytes: 600,
		},
		Scheduler: SchedulerConfig{
			Jobs: []JobConfig{
				{Name: "sync_request", IntervalMs: 30 * time.Second},
			},
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Enabled: true, ListenAddr: "127.0.0.1:9090"},
	}
	return cfg
}

// LoadFromFile reads a YAML (or JSON) config file and layers it over the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("parse config file (tried YAML and JSON): %w", err)
		}
	}
	return cfg, nil
}

// SaveToFile writes cfg back out, choosing JSON or YAML by extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error
	if len(path) > 5 && path[len(path)-5:] == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
