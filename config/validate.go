package config

import "fmt"

// Validate returns a list of human-readable problems with cfg. An empty
// slice means cfg is usable.
func Validate(cfg *Config) []string {
	var problems []string

	switch cfg.CryptoMode {
	case "real", "dummy":
	default:
		problems = append(problems, fmt.Sprintf("crypto_mode must be 'real' or 'dummy', got %q", cfg.CryptoMode))
	}

	switch cfg.Store.Driver {
	case "sqlite", "postgres", "memory":
	default:
		problems = append(problems, fmt.Sprintf("store.driver must be one of sqlite|postgres|memory, got %q", cfg.Store.Driver))
	}

	if cfg.Transport.MaxDatagramBytes <= 0 {
		problems = append(problems, "transport.max_datagram_bytes must be positive")
	}
	if cfg.Transport.MaxDatagramBytes > 600 {
		problems = append(problems, "transport.max_datagram_bytes must not exceed the 600-byte protocol ceiling")
	}

	for _, job := range cfg.Scheduler.Jobs {
		if job.Name == "" {
			problems = append(problems, "scheduler job with empty name")
		}
		if job.IntervalMs <= 0 {
			problems = append(problems, fmt.Sprintf("scheduler job %q must have a positive interval", job.Name))
		}
	}

	return problems
}
