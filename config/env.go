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
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a .env file into the process environment if present. A
// missing file is not an error — it's the common case outside development.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// GetEnvironment returns the current environment from QUIETCORE_ENV or
// defaults to development.
func GetEnvironment() string {
	env := os.Getenv("QUIETCORE_ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = "development"
	}
	return strings.ToLower(env)
}

// IsProduction reports whether the process environment is production.
func IsProduction() bool {
	return GetEnvironment() == "production"
}

// applyEnvironmentOverrides overrides cfg fields with environment variables,
// the highest-priority layer per §6's CRYPTO_MODE / store-path knobs.
func applyEnvironmentOverrides(cfg *Config) {
	if mode := os.Getenv("CRYPTO_MODE"); mode != "" {
		cfg.CryptoMode = mode
	}
	if dsn := os.Getenv("QUIETCORE_STORE_DSN"); dsn != "" {
		cfg.Store.DSN = dsn
	}
	if driver := os.Getenv("QUIETCORE_STORE_DRIVER"); driver != "" {
		cfg.Store.Driver = driver
	}
	if addr := os.Getenv("QUIETCORE_LISTEN_ADDR"); addr != "" {
		cfg.Transport.ListenAddr = addr
	}
	if level := os.Getenv("QUIETCORE_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
