package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/view"
)

func newApplianceCmd(opts *options) *cobra.Command {
	applianceCmd := &cobra.Command{
		Use:   "appliance",
		Short: "Find and select the appliance",
	}

	var (
		timeout time.Duration
		save    bool
	)
	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "Search the local network for appliances",
		Long: `Browse mDNS for HTTP services whose host name starts with the configured prefix.
With --save the first appliance found becomes the default in the settings file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := opts.settings.HostnamePrefix()
			appliances, err := api.DiscoverAppliances(cmd.Context(), prefix, timeout, opts.logger)
			if err != nil {
				return err
			}

			if save && len(appliances) > 0 {
				opts.settings.ApplianceURL = appliances[0].URL()
				if err := opts.settings.Save(); err != nil {
					return fmt.Errorf("failed to save settings: %w", err)
				}
				opts.logger.Info("Saved appliance URL", "url", opts.settings.ApplianceURL)
			}

			return opts.print(cmd, "Appliances", renderAppliances(appliances, prefix), appliances)
		},
	}
	discoverCmd.Flags().DurationVar(&timeout, "timeout", api.DISCOVERY_TIMEOUT, "How long to listen for answers")
	discoverCmd.Flags().BoolVar(&save, "save", false, "Save the first appliance found as the default")

	applianceCmd.AddCommand(discoverCmd)
	return applianceCmd
}

func renderAppliances(appliances []api.Appliance, prefix string) *view.Node {
	section := view.Section("Appliances").WithID("appliances")
	if len(appliances) == 0 {
		return section.Append(view.Empty("🔎", "No appliance found", fmt.Sprintf("No host starting with %q answered on the local network", prefix)))
	}

	rows := make([][]string, 0, len(appliances))
	for _, appliance := range appliances {
		rows = append(rows, []string{appliance.Hostname, appliance.IP, fmt.Sprint(appliance.Port), appliance.URL()})
	}
	return section.Append(view.Table([]string{"Hostname", "IP", "Port", "URL"}, rows...))
}
