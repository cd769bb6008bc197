package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/dashboard/vpn"
	"github.com/monorkin/home-network-monitor/internal/view"
)

func newVPNCmd(opts *options) *cobra.Command {
	vpnCmd := &cobra.Command{
		Use:     "vpn",
		Aliases: []string{"tailscale"},
		Short:   "Manage the Tailscale VPN overlay",
		Long:    `Commands for the Tailscale network the appliance proxies.`,
	}

	vpnCmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show the VPN configuration and device summary",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := opts.newSession(cmd)
				if err != nil {
					return err
				}

				controller := s.dashboard.VPN
				// Load reports a missing or expired key in the panel, which is what
				// this command shows.
				loadErr := controller.Load(cmd.Context())
				if loadErr != nil && !isRemediable(loadErr) {
					return loadErr
				}
				return opts.print(cmd, "VPN", controller.Render(), map[string]any{
					"config":  controller.Config(),
					"summary": controller.Summary(),
				})
			},
		},
		newVPNConfigureCmd(opts),
		&cobra.Command{
			Use:   "devices",
			Short: "List the devices of the tailnet",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := opts.newSession(cmd)
				if err != nil {
					return err
				}

				devices, err := s.dashboard.VPN.ListDevices(cmd.Context())
				if err != nil {
					return err
				}
				return opts.print(cmd, "VPN devices", s.dashboard.VPN.Render(), devices)
			},
		},
		&cobra.Command{
			Use:   "rename <id> <name>",
			Short: "Rename a tailnet device",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := opts.newSession(cmd)
				if err != nil {
					return err
				}

				if err := s.dashboard.VPN.Rename(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				return opts.printMessage(cmd, fmt.Sprintf("Renamed %s to %s", args[0], args[1]))
			},
		},
		&cobra.Command{
			Use:   "authorize <id>",
			Short: "Authorize a tailnet device",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := opts.newSession(cmd)
				if err != nil {
					return err
				}

				if err := s.dashboard.VPN.Authorize(cmd.Context(), args[0]); err != nil {
					return err
				}
				return opts.printMessage(cmd, fmt.Sprintf("Authorized %s", args[0]))
			},
		},
		&cobra.Command{
			Use:     "remove <id>",
			Aliases: []string{"rm"},
			Short:   "Remove a device from the tailnet",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := opts.newSession(cmd)
				if err != nil {
					return err
				}

				controller := s.dashboard.VPN
				if _, err := controller.ListDevices(cmd.Context()); err != nil {
					return err
				}
				removed, err := controller.Remove(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !removed {
					return opts.printMessage(cmd, "Cancelled, nothing was removed")
				}
				return opts.printMessage(cmd, fmt.Sprintf("Removed %s from the tailnet", args[0]))
			},
		},
		&cobra.Command{
			Use:   "routes",
			Short: "Show the subnet routes of the tailnet",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := opts.newSession(cmd)
				if err != nil {
					return err
				}

				routes, err := s.dashboard.VPN.Routes(cmd.Context())
				if err != nil {
					return err
				}
				return opts.print(cmd, "VPN routes", vpn.RenderRoutes(routes), routes)
			},
		},
		&cobra.Command{
			Use:   "acl",
			Short: "Show the tailnet access policy",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := opts.newSession(cmd)
				if err != nil {
					return err
				}

				acl, err := s.dashboard.VPN.ACL(cmd.Context())
				if err != nil {
					return err
				}
				if opts.json {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), acl)
					return err
				}
				return opts.print(cmd, "VPN access policy", view.Section("Access policy", view.Code(acl)), nil)
			},
		},
	)

	return vpnCmd
}

func newVPNConfigureCmd(opts *options) *cobra.Command {
	var credentials api.VPNCredentials

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Save the Tailscale API key and tailnet",
		Long: `Save the Tailscale API key and tailnet on the appliance. Without --api-key the key
is read from standard input. Keys are generated at ` + api.TailscaleKeysURL + `.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if credentials.APIKey == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Tailscale API key: ")
				key, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && key == "" {
					return fmt.Errorf("failed to read the API key: %w", err)
				}
				credentials.APIKey = strings.TrimSpace(key)
			}

			s, err := opts.newSession(cmd)
			if err != nil {
				return err
			}

			if err := s.dashboard.VPN.SaveCredentials(cmd.Context(), credentials); err != nil {
				return err
			}
			return opts.printMessage(cmd, "Tailscale configuration saved")
		},
	}
	cmd.Flags().StringVar(&credentials.APIKey, "api-key", "", "Tailscale API key")
	cmd.Flags().StringVar(&credentials.Tailnet, "tailnet", "", "Tailnet name, e.g. example.com")
	return cmd
}

func isRemediable(err error) bool {
	var remediable *api.RemediableConfigError
	return errors.As(err, &remediable)
}
