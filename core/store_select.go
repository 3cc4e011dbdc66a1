// SPDX-License-Identifier: LGPL-3.0-or-later

package core

import (
	"context"
	"fmt"

	"github.com/quiet-mesh/quietcore/config"
	"github.com/quiet-mesh/quietcore/store"
	"github.com/quiet-mesh/quietcore/store/memory"
	"github.com/quiet-mesh/quietcore/store/postgres"
	"github.com/quiet-mesh/quietcore/store/sqlite"
)

// OpenStore builds the store.Store backend named by cfg.Store.Driver.
// The postgres driver expects cfg.Store.DSN in "host=... port=...
// user=... password=... dbname=... sslmode=..." form, parsed into
// postgres.Config's fields; any other driver string is an error.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "", "memory":
		return memory.New(), nil
	case "sqlite":
		return sqlite.Open(cfg.Store.DSN)
	case "postgres":
		pgCfg, err := parsePostgresDSN(cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		return postgres.NewStore(ctx, pgCfg)
	default:
		return nil, fmt.Errorf("core: unknown store driver %q", cfg.Store.Driver)
	}
}

// parsePostgresDSN reads libpq-style "key=value ..." pairs into a
// postgres.Config, the format config.StoreConfig.DSN carries for the
// postgres driver.
func parsePostgresDSN(dsn string) (*postgres.Config, error) {
	fields := splitDSNFields(dsn)
	cfg := &postgres.Config{SSLMode: "disable"}
	for k, v := range fields {
		switch k {
		case "host":
			cfg.Host = v
		case "port":
			fmt.Sscanf(v, "%d", &cfg.Port)
		case "user":
			cfg.User = v
		case "password":
			cfg.Password = v
		case "dbname":
			cfg.Database = v
		case "sslmode":
			cfg.SSLMode = v
		}
	}
	if cfg.Host == "" || cfg.Database == "" {
		return nil, fmt.Errorf("core: postgres dsn must set host and dbname, got %q", dsn)
	}
	return cfg, nil
}

func splitDSNFields(dsn string) map[string]string {
	out := map[string]string{}
	key := ""
	val := ""
	inKey := true
	flush := func() {
		if key != "" {
			out[key] = val
		}
		key, val, inKey = "", "", true
	}
	for _, r := range dsn {
		switch {
		case r == '=' && inKey:
			inKey = false
		case r == ' ' && !inKey:
			flush()
		case inKey:
			key += string(r)
		default:
			val += string(r)
		}
	}
	flush()
	return out
}
