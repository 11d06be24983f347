package appdexcli

import (
	"fmt"

	"github.com/spf13/cobra"

	"appdex/internal/index"
	"appdex/internal/model"
	"appdex/internal/orch"
	"appdex/internal/stats"
)

func newSearchCommand(opts *Options) *cobra.Command {
	var (
		categories []string
		minDL      uint64
		maxRisk    string
		limit      int
		jsonl      bool
		refresh    bool
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the application catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.Resolve()
			if err != nil {
				return err
			}

			store, err := stats.NewStore(stats.Options{
				Path:   cfg.StatsPath(),
				Source: statsSource(cfg),
				MaxAge: cfg.StatsMaxAge(),
			})
			if err != nil {
				return err
			}

			o := orch.New(orch.Options{
				Stats:        store,
				RefreshStats: refresh,
			})
			res, err := o.Load(cmd.Context(), cfg.Catalogs, nil)
			if err != nil {
				return err
			}

			f := index.Filters{
				Categories:   categories,
				MinDownloads: minDL,
			}
			if maxRisk != "" {
				r, ok := model.ParseRiskLevel(maxRisk)
				if !ok {
					return fmt.Errorf("unknown risk level %q", maxRisk)
				}
				f.MaxRisk = &r
			}

			text := ""
			if len(args) == 1 {
				text = args[0]
			}

			idx := o.Index().Current()
			ids := idx.Query(text, f)
			if limit > 0 && len(ids) > limit {
				ids = ids[:limit]
			}

			var rows []resultRow
			for _, id := range ids {
				if rec, ok := idx.Record(id); ok {
					rows = append(rows, rowFromRecord(rec))
				}
			}

			var out string
			if jsonl {
				out = renderJSONL(rows)
			} else {
				out = renderDefault(rows)
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), out)

			if res.StatsAbsent {
				fmt.Fprintln(cmd.ErrOrStderr(), "note: download statistics unavailable, ranking by relevance only")
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&categories, "category", nil, "restrict to category (repeatable, any-of)")
	cmd.Flags().Uint64Var(&minDL, "min-downloads", 0, "minimum download count")
	cmd.Flags().StringVar(&maxRisk, "max-risk", "", "maximum risk level (low, medium, high, critical)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum results (0 for all)")
	cmd.Flags().BoolVar(&jsonl, "jsonl", false, "one JSON object per result line")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "refresh stale download statistics in the background")
	return cmd
}
