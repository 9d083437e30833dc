package config

import (
	"fmt"
	"os"
	"strconv"

	"mlid/domain/core"
)

// Config holds the runtime settings shared by the CLI and the HTTP server.
// Everything has a sensible default and an MLID_* environment override.
type Config struct {
	ListenAddr  string  // MLID_LISTEN_ADDR
	Simulations int     // MLID_SIMULATIONS, expected-ID trial count
	CIFactor    float64 // MLID_CI_FACTOR, comparative interval width factor
	MaxIter     int     // MLID_MAX_ITER, optimizer iteration bound
	Tol         float64 // MLID_TOL, optimizer convergence tolerance
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		ListenAddr:  ":8080",
		Simulations: 1000,
		CIFactor:    1.39,
		MaxIter:     1000,
		Tol:         1e-8,
	}
}

// Load builds the configuration from defaults plus environment overrides.
func Load() (*Config, error) {
	cfg := Default()

	if v := os.Getenv("MLID_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("MLID_SIMULATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, core.NewConfigurationError("MLID_SIMULATIONS", fmt.Sprintf("must be a positive integer, got %q", v))
		}
		cfg.Simulations = n
	}
	if v := os.Getenv("MLID_CI_FACTOR"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, core.NewConfigurationError("MLID_CI_FACTOR", fmt.Sprintf("must be a positive number, got %q", v))
		}
		cfg.CIFactor = f
	}
	if v := os.Getenv("MLID_MAX_ITER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, core.NewConfigurationError("MLID_MAX_ITER", fmt.Sprintf("must be a positive integer, got %q", v))
		}
		cfg.MaxIter = n
	}
	if v := os.Getenv("MLID_TOL"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, core.NewConfigurationError("MLID_TOL", fmt.Sprintf("must be a positive number, got %q", v))
		}
		cfg.Tol = f
	}

	return cfg, nil
}
