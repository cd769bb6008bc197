package vpn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/dashboard"
	"github.com/monorkin/home-network-monitor/internal/notify"
	"github.com/monorkin/home-network-monitor/internal/view"
)

// Summary aggregates a device list. It is always recomputed from the list.
type Summary struct {
	Total    int
	Online   int
	Offline  int
	LastSync time.Time
}

func Summarize(devices []api.VPNDevice, now time.Time, lastSync time.Time) Summary {
	summary := Summary{Total: len(devices), LastSync: lastSync}
	for _, device := range devices {
		if device.IsOnline(now) {
			summary.Online++
		} else {
			summary.Offline++
		}
	}
	return summary
}

// Controller manages the Tailscale overlay through the appliance.
type Controller struct {
	ctx *dashboard.Context

	Slot       *view.Slot
	RoutesSlot *view.Slot
	ACLSlot    *view.Slot

	mutex        sync.Mutex
	config       *api.VPNConfig
	devices      []api.VPNDevice
	lastSync     time.Time
	settingsOpen bool
	err          error
	autoSynced   bool
}

func New(ctx *dashboard.Context) *Controller {
	return &Controller{
		ctx:        ctx,
		Slot:       view.NewSlot("vpn"),
		RoutesSlot: view.NewSlot("vpn-routes"),
		ACLSlot:    view.NewSlot("vpn-acl"),
	}
}

func (c *Controller) Config() *api.VPNConfig {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.config
}

func (c *Controller) Devices() []api.VPNDevice {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]api.VPNDevice(nil), c.devices...)
}

func (c *Controller) SettingsOpen() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.settingsOpen
}

// Load fetches the configuration and, when a credential is on file, the device list.
func (c *Controller) Load(ctx context.Context) error {
	config, err := c.LoadConfig(ctx)
	if err != nil {
		return err
	}
	if !config.Configured {
		return nil
	}
	_, err = c.ListDevices(ctx)
	return err
}

func (c *Controller) LoadConfig(ctx context.Context) (*api.VPNConfig, error) {
	config, err := c.ctx.API.VPNConfig(ctx)
	if err != nil {
		c.ctx.Logger.Error("Failed to load VPN configuration", "error", err)
		c.setError(err)
		return nil, err
	}

	c.mutex.Lock()
	c.config = config
	c.err = nil
	c.mutex.Unlock()

	c.render()
	return config, nil
}

// OpenSettings shows the credential form. It is never shown unless asked for.
func (c *Controller) OpenSettings() {
	c.mutex.Lock()
	c.settingsOpen = true
	c.mutex.Unlock()
	c.render()
}

func (c *Controller) CloseSettings() {
	c.mutex.Lock()
	c.settingsOpen = false
	c.mutex.Unlock()
	c.render()
}

// SaveCredentials stores an API key and tailnet on the appliance, then reloads.
func (c *Controller) SaveCredentials(ctx context.Context, credentials api.VPNCredentials) error {
	credentials.APIKey = strings.TrimSpace(credentials.APIKey)
	credentials.Tailnet = strings.TrimSpace(credentials.Tailnet)
	if credentials.APIKey == "" {
		err := &api.ValidationError{Field: "api_key", Message: "A Tailscale API key is required"}
		c.ctx.NotifyError(ctx, err)
		return err
	}
	if credentials.Tailnet == "" {
		err := &api.ValidationError{Field: "tailnet", Message: "A tailnet name is required"}
		c.ctx.NotifyError(ctx, err)
		return err
	}

	if err := c.ctx.API.SaveVPNConfig(ctx, credentials); err != nil {
		c.ctx.Logger.Error("Failed to save VPN configuration", "error", err)
		c.ctx.NotifyError(ctx, err)
		return err
	}

	c.mutex.Lock()
	c.settingsOpen = false
	c.mutex.Unlock()

	c.ctx.Notify(ctx, notify.LevelSuccess, "Tailscale configuration saved")
	return c.Load(ctx)
}

// ListDevices reloads the overlay's devices. Key problems produce a remediation panel
// instead of a plain error.
func (c *Controller) ListDevices(ctx context.Context) ([]api.VPNDevice, error) {
	devices, err := c.ctx.API.VPNDevices(ctx)
	if err != nil {
		c.ctx.Logger.Error("Failed to load VPN devices", "error", err)
		c.setError(err)
		return nil, err
	}

	c.mutex.Lock()
	c.devices = devices
	c.lastSync = c.ctx.CurrentTime()
	c.err = nil
	c.mutex.Unlock()

	c.ctx.Logger.Debug("VPN devices loaded", "count", len(devices))
	c.render()
	return devices, nil
}

func (c *Controller) Summary() Summary {
	c.mutex.Lock()
	devices := c.devices
	lastSync := c.lastSync
	c.mutex.Unlock()
	return Summarize(devices, c.ctx.CurrentTime(), lastSync)
}

func (c *Controller) Rename(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		err := &api.ValidationError{Field: "name", Message: "A device name is required"}
		c.ctx.NotifyError(ctx, err)
		return err
	}
	return c.mutate(ctx, "rename", id, func() error {
		return c.ctx.API.RenameVPNDevice(ctx, id, name)
	})
}

func (c *Controller) Authorize(ctx context.Context, id string) error {
	return c.mutate(ctx, "authorize", id, func() error {
		return c.ctx.API.AuthorizeVPNDevice(ctx, id)
	})
}

// Remove deletes a device from the tailnet after the user confirms.
func (c *Controller) Remove(ctx context.Context, id string) (bool, error) {
	name := id
	for _, device := range c.Devices() {
		if device.ID == id {
			name = device.DisplayName()
		}
	}

	confirmed := c.ctx.Confirm(ctx, dashboard.Confirmation{
		Title:        "Remove VPN device",
		Message:      fmt.Sprintf("Remove %s from the tailnet? It will need to be re-authenticated to join again.", name),
		ConfirmLabel: "Remove",
	})
	if !confirmed {
		return false, nil
	}

	err := c.mutate(ctx, "remove", id, func() error {
		return c.ctx.API.DeleteVPNDevice(ctx, id)
	})
	return err == nil, err
}

// mutate runs a lifecycle action and reloads the whole list when it succeeds.
func (c *Controller) mutate(ctx context.Context, action, id string, run func() error) error {
	if err := run(); err != nil {
		c.ctx.Logger.Error("VPN device action failed", "action", action, "id", id, "error", err)
		c.ctx.NotifyError(ctx, err)
		return err
	}

	c.ctx.Logger.Debug("VPN device action done", "action", action, "id", id)
	_, err := c.ListDevices(ctx)
	return err
}

// AutoSync asks the appliance to keep the roster in sync. It runs at most once per
// controller, only with a credential on file, and never reports failures to the user.
func (c *Controller) AutoSync(ctx context.Context) {
	c.mutex.Lock()
	if c.autoSynced {
		c.mutex.Unlock()
		return
	}
	c.autoSynced = true
	c.mutex.Unlock()

	config, err := c.ctx.API.VPNConfig(ctx)
	if err != nil {
		c.ctx.Logger.Warn("VPN auto-sync skipped", "error", err)
		return
	}
	if !config.Configured {
		c.ctx.Logger.Debug("VPN auto-sync skipped, no credential on file")
		return
	}

	if err := c.ctx.API.EnableVPNAutoSync(ctx); err != nil {
		c.ctx.Logger.Warn("VPN auto-sync failed", "error", err)
		return
	}
	c.ctx.Logger.Debug("VPN auto-sync enabled")
}

func (c *Controller) Routes(ctx context.Context) ([]api.VPNRoute, error) {
	routes, err := c.ctx.API.VPNRoutes(ctx)
	if err != nil {
		c.ctx.Logger.Error("Failed to load VPN routes", "error", err)
		c.RoutesSlot.Replace(errorPanel("Unable to load routes", err))
		return nil, err
	}
	c.RoutesSlot.Replace(RenderRoutes(routes))
	return routes, nil
}

func (c *Controller) ACL(ctx context.Context) (string, error) {
	policy, err := c.ctx.API.VPNACL(ctx)
	if err != nil {
		c.ctx.Logger.Error("Failed to load VPN access policy", "error", err)
		c.ACLSlot.Replace(errorPanel("Unable to load the access policy", err))
		return "", err
	}
	c.ACLSlot.Replace(view.Section("Access policy", view.Code(policy)).WithID("vpn:acl"))
	return policy, nil
}

func (c *Controller) setError(err error) {
	c.mutex.Lock()
	c.err = err
	c.mutex.Unlock()
	c.render()
}

func (c *Controller) render() {
	c.Slot.Replace(c.Render())
}

// Render builds the VPN tab from the controller's state.
func (c *Controller) Render() *view.Node {
	c.mutex.Lock()
	config := c.config
	devices := append([]api.VPNDevice(nil), c.devices...)
	lastSync := c.lastSync
	settingsOpen := c.settingsOpen
	err := c.err
	c.mutex.Unlock()

	section := view.Section("Tailscale VPN").WithID("vpn")

	if settingsOpen {
		section.Append(c.settingsPanel(config))
	}

	if err != nil {
		return section.Append(errorPanel("Unable to reach Tailscale", err, c.configureAction()))
	}

	if config == nil {
		return section.Append(view.Muted("Loading…"))
	}

	if !config.Configured {
		if settingsOpen {
			return section
		}
		return section.Append(view.Empty("🔐", "Tailscale is not configured", "Add an API key to manage the devices of your tailnet", c.configureAction()))
	}

	summary := Summarize(devices, c.ctx.CurrentTime(), lastSync)
	synced := "never synced"
	if !summary.LastSync.IsZero() {
		synced = "synced " + summary.LastSync.Local().Format(dashboard.TIME_FORMAT)
	}
	section.Append(
		view.Group(
			view.Badge(fmt.Sprintf("%d devices", summary.Total), view.ClassAccent),
			view.Badge(fmt.Sprintf("%d online", summary.Online), view.ClassOnline),
			view.Badge(fmt.Sprintf("%d offline", summary.Offline), view.ClassOffline),
			view.Muted(synced),
		).WithID("vpn:summary"),
	)

	if config.Tailnet != "" {
		section.Append(view.Field("Tailnet", config.Tailnet))
	}
	if !settingsOpen {
		section.Append(view.Group(view.Button(c.configureAction())))
	}

	if len(devices) == 0 {
		return section.Append(view.Empty("🛰️", "No devices in the tailnet", "Devices appear here once they join the tailnet"))
	}

	now := c.ctx.CurrentTime()
	rows := make([]*view.Node, 0, len(devices))
	for _, device := range devices {
		rows = append(rows, c.row(device, now))
	}
	return section.Append(view.List(rows...))
}

func (c *Controller) row(device api.VPNDevice, now time.Time) *view.Node {
	suffix := []*view.Node{}
	if device.IsOnline(now) {
		suffix = append(suffix, view.Badge("online", view.ClassOnline))
	} else {
		suffix = append(suffix, view.Badge("offline", view.ClassOffline))
	}
	if device.ExitNode {
		suffix = append(suffix, view.Badge("exit node", view.ClassAccent))
	}

	id := device.ID
	if !device.Authorized {
		suffix = append(suffix, view.Badge("not authorized", view.ClassWarning), view.Button(&view.Action{
			ID:    "vpn:authorize:" + id,
			Label: "Authorize",
			Icon:  "emblem-ok-symbolic",
			Run: func(ctx context.Context) error {
				return c.Authorize(ctx, id)
			},
		}))
	}
	suffix = append(suffix, view.Button(&view.Action{
		ID:          "vpn:remove:" + id,
		Label:       "Remove",
		Icon:        "user-trash-symbolic",
		Destructive: true,
		Run: func(ctx context.Context) error {
			_, err := c.Remove(ctx, id)
			return err
		},
	}))

	subtitle := []string{}
	if addresses := dashboard.SortIPs(device.Addresses); len(addresses) > 0 {
		subtitle = append(subtitle, strings.Join(addresses, ", "))
	}
	if device.OS != "" {
		subtitle = append(subtitle, device.OS)
	}
	if device.User != "" {
		subtitle = append(subtitle, device.User)
	}
	subtitle = append(subtitle, "seen "+dashboard.FormatAgo(now, device.LastSeen))

	row := view.Row(osIcon(device.OS), device.DisplayName(), strings.Join(subtitle, " · "), suffix...)
	row.ID = "vpn:device:" + id
	return row
}

func (c *Controller) settingsPanel(config *api.VPNConfig) *view.Node {
	current := "-"
	if config != nil && config.Tailnet != "" {
		current = config.Tailnet
	}
	return view.Section("Tailscale settings",
		view.Field("Current tailnet", current),
		view.Muted("Create an API key with device read/write access in the Tailscale admin console."),
		view.Link("Generate an API key", api.TailscaleKeysURL),
		view.Group(view.Button(&view.Action{
			ID:    "vpn:settings:close",
			Label: "Close",
			Run: func(context.Context) error {
				c.CloseSettings()
				return nil
			},
		})),
	).WithID("vpn:settings")
}

func (c *Controller) configureAction() *view.Action {
	return &view.Action{
		ID:    "vpn:configure",
		Label: "Configure",
		Icon:  "preferences-system-symbolic",
		Run: func(context.Context) error {
			c.OpenSettings()
			return nil
		},
	}
}

// errorPanel renders err, with remediation guidance for key problems.
func errorPanel(title string, err error, actions ...*view.Action) *view.Node {
	var remediable *api.RemediableConfigError
	if errors.As(err, &remediable) {
		panel := view.Error("Tailscale API key problem", remediable.HelpText, actions...)
		panel.Append(view.Text(api.UserMessage(err)), view.Link("Generate a new API key", remediable.HelpURL))
		return panel.WithID("vpn:remediation")
	}
	return view.Error(title, api.UserMessage(err), actions...)
}

func RenderRoutes(routes []api.VPNRoute) *view.Node {
	section := view.Section("Subnet routes").WithID("vpn:routes")
	if len(routes) == 0 {
		return section.Append(view.Muted("No subnet routes are advertised"))
	}

	rows := make([][]string, 0, len(routes))
	for _, route := range routes {
		device := route.DeviceName
		if device == "" {
			device = route.DeviceID
		}
		rows = append(rows, []string{
			dashboard.OrDash(device),
			dashboard.OrDash(strings.Join(route.Advertised, ", ")),
			dashboard.OrDash(strings.Join(route.Enabled, ", ")),
		})
	}
	return section.Append(view.Table([]string{"Device", "Advertised", "Enabled"}, rows...))
}

func osIcon(os string) string {
	switch strings.ToLower(os) {
	case "linux":
		return "🐧"
	case "windows":
		return "🪟"
	case "macos", "darwin":
		return "💻"
	case "ios", "android":
		return "📱"
	default:
		return "🖥️"
	}
}
