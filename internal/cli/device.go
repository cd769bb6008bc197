package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/dashboard"
	"github.com/monorkin/home-network-monitor/internal/dashboard/catalog"
	"github.com/monorkin/home-network-monitor/internal/view"
)

// deviceFlags are the editable fields of a catalog entry.
type deviceFlags struct {
	name        string
	ip          string
	vpnIP       string
	mac         string
	vendor      string
	deviceType  string
	wakeOnLAN   bool
	vpn         bool
	description string
}

func (flags *deviceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flags.name, "name", "", "Device name")
	cmd.Flags().StringVar(&flags.ip, "ip", "", "IP address on the LAN")
	cmd.Flags().StringVar(&flags.vpnIP, "vpn-ip", "", "IP address on the VPN overlay")
	cmd.Flags().StringVar(&flags.mac, "mac", "", "MAC address")
	cmd.Flags().StringVar(&flags.vendor, "vendor", "", "Vendor")
	cmd.Flags().StringVar(&flags.deviceType, "type", "", "Device type ("+deviceTypeList()+")")
	cmd.Flags().BoolVar(&flags.wakeOnLAN, "wol", false, "Enable Wake-on-LAN")
	cmd.Flags().BoolVar(&flags.vpn, "vpn", false, "Device is reachable through the VPN")
	cmd.Flags().StringVar(&flags.description, "description", "", "Free-form description")
}

// apply copies the flags the user set onto device.
func (flags *deviceFlags) apply(cmd *cobra.Command, device *api.Device) error {
	changed := cmd.Flags().Changed
	if changed("name") {
		device.Name = flags.name
	}
	if changed("ip") {
		device.IP = flags.ip
	}
	if changed("vpn-ip") {
		device.VPNIP = flags.vpnIP
	}
	if changed("mac") {
		device.MAC = flags.mac
	}
	if changed("vendor") {
		device.Vendor = flags.vendor
	}
	if changed("type") {
		deviceType, ok := api.ParseDeviceType(flags.deviceType)
		if !ok {
			return &api.ValidationError{Field: "type", Message: fmt.Sprintf("unknown device type %q, expected one of %s", flags.deviceType, deviceTypeList())}
		}
		device.Type = deviceType
	}
	if changed("wol") {
		device.WakeOnLAN = flags.wakeOnLAN
	}
	if changed("vpn") {
		device.VPN = flags.vpn
	}
	if changed("description") {
		device.Description = flags.description
	}
	return nil
}

func deviceTypeList() string {
	names := make([]string, 0, len(api.DeviceTypes))
	for _, deviceType := range api.DeviceTypes {
		names = append(names, string(deviceType))
	}
	return strings.Join(names, ", ")
}

func newDeviceCmd(opts *options) *cobra.Command {
	deviceCmd := &cobra.Command{
		Use:     "device",
		Aliases: []string{"d", "devices"},
		Short:   "Manage monitored devices",
		Long:    `Commands for listing and managing the devices registered on the appliance.`,
	}

	deviceCmd.AddCommand(
		newDeviceListCmd(opts),
		newDeviceAddCmd(opts),
		newDeviceUpdateCmd(opts),
		newDeviceRemoveCmd(opts),
		newDeviceWakeCmd(opts),
	)
	return deviceCmd
}

func newDeviceListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List monitored devices",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSession(cmd)
			if err != nil {
				return err
			}

			devices, err := s.dashboard.Catalog.List(cmd.Context(), true)
			if err != nil {
				return err
			}
			opts.logger.Debug("Device list completed", "count", len(devices))
			return opts.print(cmd, "Monitored devices", s.dashboard.Catalog.Render(), devices)
		},
	}
}

func newDeviceAddCmd(opts *options) *cobra.Command {
	flags := &deviceFlags{}
	cmd := &cobra.Command{
		Use:   "add --name <name> --ip <ip>",
		Short: "Register a device",
		Long: `Register a device on the appliance.

Examples:
  home-network-monitor device add --name NAS --ip 192.168.1.10 --type server
  home-network-monitor device add --name Workstation --ip 192.168.1.21 --mac 3c:7c:3f:00:00:21 --wol`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var draft api.Device
			if err := flags.apply(cmd, &draft); err != nil {
				return err
			}

			s, err := opts.newSession(cmd)
			if err != nil {
				return err
			}

			created, err := s.dashboard.Catalog.Add(cmd.Context(), draft)
			if err != nil {
				return err
			}
			return opts.print(cmd, created.Name, deviceDetails(*created), created)
		},
	}
	flags.register(cmd)
	return cmd
}

func newDeviceUpdateCmd(opts *options) *cobra.Command {
	flags := &deviceFlags{}
	cmd := &cobra.Command{
		Use:   "update <id_or_ip>",
		Short: "Edit a registered device",
		Long: `Edit a registered device. Only the fields given as flags change.

Examples:
  home-network-monitor device update 192.168.1.10 --description "Backups"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSession(cmd)
			if err != nil {
				return err
			}

			device, err := findDevice(cmd, s, args[0])
			if err != nil {
				return err
			}
			identity := device.Identity()
			if err := flags.apply(cmd, &device); err != nil {
				return err
			}

			updated, err := s.dashboard.Catalog.Update(cmd.Context(), identity, device)
			if err != nil {
				return err
			}
			return opts.print(cmd, updated.Name, deviceDetails(*updated), updated)
		},
	}
	flags.register(cmd)
	return cmd
}

func newDeviceRemoveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id_or_ip>",
		Aliases: []string{"rm"},
		Short:   "Remove a registered device",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSession(cmd)
			if err != nil {
				return err
			}

			device, err := findDevice(cmd, s, args[0])
			if err != nil {
				return err
			}

			removed, err := s.dashboard.Catalog.Remove(cmd.Context(), device.Identity())
			if err != nil {
				return err
			}
			if !removed {
				return opts.printMessage(cmd, "Cancelled, nothing was removed")
			}
			return opts.printMessage(cmd, fmt.Sprintf("Removed %s", device.Name))
		},
	}
}

func newDeviceWakeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "wake <id_or_ip_or_mac>",
		Short: "Send a Wake-on-LAN packet",
		Long: `Ask the appliance to send a Wake-on-LAN packet. The argument is a registered
device or a MAC address. Success only means the packet was sent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSession(cmd)
			if err != nil {
				return err
			}

			mac := args[0]
			if _, err := s.dashboard.Catalog.List(cmd.Context(), false); err == nil {
				if device, ok := lookupDevice(s.dashboard.Catalog, args[0]); ok {
					if device.MAC == "" {
						return &api.ValidationError{Field: "mac", Message: fmt.Sprintf("%s has no MAC address", device.Name)}
					}
					mac = device.MAC
				}
			}

			result, err := s.dashboard.Catalog.Wake(cmd.Context(), mac)
			if err != nil {
				return err
			}
			return opts.print(cmd, "Wake-on-LAN", view.Text(result.Message), result)
		},
	}
}

// findDevice loads the catalog and resolves identity against it.
func findDevice(cmd *cobra.Command, s *session, identity string) (api.Device, error) {
	if _, err := s.dashboard.Catalog.List(cmd.Context(), true); err != nil {
		return api.Device{}, err
	}
	device, ok := lookupDevice(s.dashboard.Catalog, identity)
	if !ok {
		return api.Device{}, fmt.Errorf("device %s not found", identity)
	}
	return device, nil
}

// lookupDevice matches an id, IP or MAC address.
func lookupDevice(devices *catalog.View, identity string) (api.Device, bool) {
	if device, ok := devices.Get(identity); ok {
		return device, true
	}
	for _, device := range devices.Devices() {
		if device.IP == identity || (device.MAC != "" && strings.EqualFold(device.MAC, identity)) {
			return device, true
		}
	}
	return api.Device{}, false
}

func deviceDetails(device api.Device) *view.Node {
	status := device.DisplayStatus()
	return view.Section(catalog.TypeIcon(device.Type)+" "+device.Name,
		view.Field("ID", dashboard.OrDash(device.ID)),
		view.Field("IP address", device.IP),
		view.Field("VPN IP", dashboard.OrDash(device.VPNIP)),
		view.Field("MAC address", dashboard.OrDash(device.MAC)),
		view.Field("Vendor", dashboard.OrDash(device.Vendor)),
		view.Field("Type", string(device.Type)),
		view.Field("Wake-on-LAN", fmt.Sprint(device.WakeOnLAN)),
		view.Field("Description", dashboard.OrDash(device.Description)),
		view.Group(view.Badge(status, catalog.StatusClass(status))),
	).WithID("device:" + device.Identity())
}
