package config

import "flag"

var (
	flagConfig       = flag.String("config", "", "Path to config file")
	flagDebug        = flag.Bool("debug", false, "Enable debug logging")
	flagLoadRadius   = flag.Int("load-radius", -1, "Chunk load radius")
	flagUnloadRadius = flag.Int("unload-radius", -1, "Chunk unload radius")
	flagBudget       = flag.Int("budget", 0, "New chunk loads per update")
	flagProvider     = flag.String("provider", "", "Chunk data provider (procedural, directory, remote)")
	flagCache        = flag.String("cache", "", "Mesh cache kind (memory, sqlite, none)")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagLoadRadius >= 0 {
		cfg.Streaming.LoadRadius = *flagLoadRadius
	}
	if *flagUnloadRadius >= 0 {
		cfg.Streaming.UnloadRadius = *flagUnloadRadius
	}
	if *flagBudget > 0 {
		cfg.Streaming.LoadBudget = *flagBudget
	}
	if *flagProvider != "" {
		cfg.Data.Provider = *flagProvider
	}
	if *flagCache != "" {
		cfg.Cache.Kind = *flagCache
	}
}
