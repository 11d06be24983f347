package appdexcli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"appdex/internal/config"
	"appdex/internal/stats"
)

func newRefreshCommand(opts *Options) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the download statistics cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			src := statsSource(cfg)
			if src == nil {
				return fmt.Errorf("no stats artifact URL configured")
			}

			store, err := stats.NewStore(stats.Options{
				Path:   cfg.StatsPath(),
				Source: src,
				MaxAge: cfg.StatsMaxAge(),
			})
			if err != nil {
				return err
			}

			// A load failure just means the cache is absent; refresh
			// proceeds from nothing.
			_ = store.Load()
			if !force && store.Fresh(time.Now()) {
				fmt.Fprintln(cmd.OutOrStdout(), "stats cache is fresh")
				return nil
			}

			m, err := store.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stats cache updated: %d apps, generated %s\n",
				len(m.Entries), time.Unix(m.GeneratedAt, 0).UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "refresh even when the cache is fresh")
	return cmd
}

// statsSource returns nil when no artifact URL is configured; the store
// then serves whatever cache exists on disk.
func statsSource(cfg *config.Config) stats.Source {
	if cfg.Stats.ArtifactURL == "" {
		return nil
	}
	return &stats.HTTPSource{
		ArtifactURL: cfg.Stats.ArtifactURL,
		MetadataURL: cfg.Stats.MetadataURL,
	}
}
