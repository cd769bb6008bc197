package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/monorkin/home-network-monitor/internal/dashboard/discovery"
)

func newScanCmd(opts *options) *cobra.Command {
	var category, search string

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the local network",
		Long: `Ask the appliance to scan the local network and print the hosts it found,
grouped by category. The scan blocks until the appliance answers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := discovery.Filter{Search: search}
			if category != "" {
				parsed, ok := discovery.ParseCategory(category)
				if !ok {
					return fmt.Errorf("unknown category %q, expected one of %s", category, categoryList())
				}
				filter.Category = parsed
			}

			s, err := opts.newSession(cmd)
			if err != nil {
				return err
			}

			controller := s.dashboard.Discovery
			controller.SetFilter(filter)
			result, err := controller.Scan(cmd.Context())
			if err != nil {
				return err
			}
			return opts.print(cmd, "Network scan", controller.Render(), result)
		},
	}
	scanCmd.Flags().StringVar(&category, "category", "", "Only show one category ("+categoryList()+")")
	scanCmd.Flags().StringVar(&search, "search", "", "Only show hosts whose hostname or IP contains this text")

	scanCmd.AddCommand(&cobra.Command{
		Use:   "promote <ip>",
		Short: "Register a host of the last scan as a monitored device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSession(cmd)
			if err != nil {
				return err
			}

			created, err := s.dashboard.Discovery.Promote(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return opts.print(cmd, created.Name, deviceDetails(*created), created)
		},
	})

	return scanCmd
}

func categoryList() string {
	names := make([]string, 0, len(discovery.Categories))
	for _, category := range discovery.Categories {
		names = append(names, string(category))
	}
	return strings.Join(names, ", ")
}
