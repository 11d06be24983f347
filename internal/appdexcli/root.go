package appdexcli

import (
	"github.com/spf13/cobra"

	"appdex/internal/version"
)

// NewRootCommand builds the appdex command tree. The CLI is a thin
// driver over the library; the real product surface lives elsewhere.
func NewRootCommand() *cobra.Command {
	opts := &Options{}
	cmd := &cobra.Command{
		Use:           "appdex",
		Short:         "Application catalog client",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.Version = version.String()
	cmd.InitDefaultVersionFlag()

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file path")
	cmd.PersistentFlags().StringSliceVar(&opts.Catalogs, "catalog", nil, "catalog document (repeatable, overrides config)")

	cmd.AddCommand(newSearchCommand(opts))
	cmd.AddCommand(newRefreshCommand(opts))
	cmd.AddCommand(newStatusCommand())
	return cmd
}
