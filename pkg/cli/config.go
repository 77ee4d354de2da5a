package cli

import "os"

// Config holds the process-wide settings resolved across flags, environment
// variables, and defaults (§6 "Environment variables"), layered the way the
// teacher's cliconfig package layers CLI > env > file > default.
type Config struct {
	ServicesDir string
	DBPath      string
	AuthDBPath  string
	PortLow     int
	PortHigh    int
}

// DefaultConfig returns the built-in defaults before flags or environment
// variables are applied.
func DefaultConfig() Config {
	return Config{
		ServicesDir: "./services",
		DBPath:      "./apicentric.db",
		AuthDBPath:  "./apicentric-auth.db",
		PortLow:     20000,
		PortHigh:    21000,
	}
}

// applyEnv overlays environment variable overrides onto cfg, overwriting
// each covered field whose variable is set. Callers apply it to
// DefaultConfig() and then apply explicitly set flags on top.
func applyEnv(cfg Config) Config {
	if v := os.Getenv("APICENTRIC_CONFIG_PATH"); v != "" {
		cfg.ServicesDir = v
	}
	if v := os.Getenv("APICENTRIC_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("APICENTRIC_AUTH_DB"); v != "" {
		cfg.AuthDBPath = v
	}
	return cfg
}
