package appdexcli

import (
	"fmt"

	"appdex/internal/config"
)

// Options carries the persistent flags shared by all subcommands.
type Options struct {
	ConfigPath string
	Catalogs   []string
}

// Resolve loads the config file and applies flag overrides.
func (o *Options) Resolve() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if len(o.Catalogs) > 0 {
		cfg.Catalogs = o.Catalogs
	}
	if len(cfg.Catalogs) == 0 {
		return nil, fmt.Errorf("no catalog documents configured (use --catalog or the config file)")
	}
	return cfg, nil
}
