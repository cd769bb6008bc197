package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/monorkin/home-network-monitor/internal/dashboard/status"
	"github.com/monorkin/home-network-monitor/internal/version"
)

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the appliance's system status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSession(cmd)
			if err != nil {
				return err
			}

			systemStatus, err := s.dashboard.Status.Load(cmd.Context(), true)
			if err != nil {
				return err
			}
			return opts.print(cmd, "System status", status.Render(systemStatus), systemStatus)
		},
	}
}

func newVersionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.json {
				return opts.print(cmd, "", nil, map[string]string{"version": version.GetVersion()})
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.GetVersion())
			return err
		},
	}
}
