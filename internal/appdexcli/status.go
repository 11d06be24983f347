package appdexcli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"appdex/internal/appdexd"
)

func newStatusCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report the state of a running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := appdexd.Dial(addr)
			if err != nil {
				return fmt.Errorf("daemon unreachable at %s: %w", addr, err)
			}
			defer c.Close()

			st, err := c.Status()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "version:    %s\n", st.Version)
			fmt.Fprintf(out, "instance:   %s\n", st.InstanceID)
			fmt.Fprintf(out, "generation: %d\n", st.Generation)
			fmt.Fprintf(out, "apps:       %d\n", st.Apps)
			switch {
			case !st.StatsPresent:
				fmt.Fprintln(out, "stats:      absent")
			case st.StatsFresh:
				fmt.Fprintf(out, "stats:      fresh (generated %s)\n",
					time.Unix(st.StatsGeneratedAt, 0).UTC().Format(time.RFC3339))
			default:
				fmt.Fprintf(out, "stats:      stale (generated %s)\n",
					time.Unix(st.StatsGeneratedAt, 0).UTC().Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7411", "daemon address")
	return cmd
}
