package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/dashboard"
	"github.com/monorkin/home-network-monitor/internal/notify"
	"github.com/monorkin/home-network-monitor/internal/view"
)

// View is the device catalog: the devices registered on the appliance.
type View struct {
	ctx  *dashboard.Context
	Slot *view.Slot

	mutex   sync.Mutex
	devices []api.Device
}

func New(ctx *dashboard.Context) *View {
	return &View{ctx: ctx, Slot: view.NewSlot("devices")}
}

// Devices returns the devices of the last successful load.
func (v *View) Devices() []api.Device {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return append([]api.Device(nil), v.devices...)
}

// Get looks a device up by identity in the last loaded list.
func (v *View) Get(identity string) (api.Device, bool) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	for _, device := range v.devices {
		if device.Identity() == identity {
			return device, true
		}
	}
	return api.Device{}, false
}

// List loads the catalog. Unless forceRefresh is set a cached answer may be used.
func (v *View) List(ctx context.Context, forceRefresh bool) ([]api.Device, error) {
	devices, err := v.ctx.API.ListDevices(ctx, !forceRefresh)
	if err != nil {
		v.ctx.Logger.Error("Failed to load devices", "error", err)
		v.Slot.Replace(view.Error("Unable to load devices", api.UserMessage(err), &view.Action{
			ID:    "catalog:retry",
			Label: "Retry",
			Run: func(ctx context.Context) error {
				_, err := v.List(ctx, true)
				return err
			},
		}))
		return nil, err
	}

	v.mutex.Lock()
	v.devices = devices
	v.mutex.Unlock()

	v.ctx.Logger.Debug("Devices loaded", "count", len(devices))
	v.render()
	return devices, nil
}

// Add registers a device. Name and IP must be present; nothing else is checked before
// the request.
func (v *View) Add(ctx context.Context, draft api.Device) (*api.Device, error) {
	draft.Name = strings.TrimSpace(draft.Name)
	draft.IP = strings.TrimSpace(draft.IP)
	if err := validateDraft(draft); err != nil {
		v.ctx.NotifyError(ctx, err)
		return nil, err
	}
	if draft.Type == "" {
		draft.Type = api.DeviceTypeOther
	}

	created, err := v.ctx.API.AddDevice(ctx, draft)
	if err != nil {
		v.ctx.Logger.Error("Failed to add device", "ip", draft.IP, "error", err)
		v.ctx.NotifyError(ctx, err)
		return nil, err
	}

	v.ctx.Notify(ctx, notify.LevelSuccess, fmt.Sprintf("%s added to monitored devices", created.Name))
	v.List(ctx, false)
	return created, nil
}

// Update replaces the record identified by identity with device.
func (v *View) Update(ctx context.Context, identity string, device api.Device) (*api.Device, error) {
	device.Name = strings.TrimSpace(device.Name)
	device.IP = strings.TrimSpace(device.IP)
	if err := validateDraft(device); err != nil {
		v.ctx.NotifyError(ctx, err)
		return nil, err
	}

	updated, err := v.ctx.API.UpdateDevice(ctx, identity, device)
	if err != nil {
		v.ctx.Logger.Error("Failed to update device", "identity", identity, "error", err)
		v.ctx.NotifyError(ctx, err)
		return nil, err
	}

	v.ctx.Notify(ctx, notify.LevelSuccess, fmt.Sprintf("%s updated", updated.Name))
	v.List(ctx, false)
	return updated, nil
}

// Remove deletes a device after the user confirms. It reports whether the device
// was removed. The in-memory list is updated without reloading.
func (v *View) Remove(ctx context.Context, identity string) (bool, error) {
	name := identity
	if device, ok := v.Get(identity); ok && device.Name != "" {
		name = device.Name
	}

	confirmed := v.ctx.Confirm(ctx, dashboard.Confirmation{
		Title:        "Remove device",
		Message:      fmt.Sprintf("Remove %s from monitored devices? This cannot be undone.", name),
		ConfirmLabel: "Remove",
	})
	if !confirmed {
		v.ctx.Logger.Debug("Device removal cancelled", "identity", identity)
		return false, nil
	}

	if err := v.ctx.API.DeleteDevice(ctx, identity); err != nil {
		v.ctx.Logger.Error("Failed to remove device", "identity", identity, "error", err)
		v.ctx.NotifyError(ctx, err)
		return false, err
	}

	v.mutex.Lock()
	kept := v.devices[:0:0]
	for _, device := range v.devices {
		if device.Identity() != identity {
			kept = append(kept, device)
		}
	}
	v.devices = kept
	v.mutex.Unlock()

	v.ctx.Notify(ctx, notify.LevelSuccess, fmt.Sprintf("%s removed", name))
	v.render()
	return true, nil
}

// Wake sends a Wake-on-LAN request. Success only means the signal was sent.
func (v *View) Wake(ctx context.Context, mac string) (*api.WakeResult, error) {
	result, err := v.ctx.API.WakeDevice(ctx, mac)
	if err != nil {
		v.ctx.Logger.Error("Failed to wake device", "mac", mac, "error", err)
		v.ctx.NotifyError(ctx, err)
		return nil, err
	}

	message := result.Message
	if message == "" {
		message = fmt.Sprintf("Wake-on-LAN signal sent to %s", mac)
	}
	v.ctx.Notify(ctx, notify.LevelSuccess, message)
	return result, nil
}

func (v *View) render() {
	v.Slot.Replace(v.Render())
}

// Render builds the catalog from the last loaded list.
func (v *View) Render() *view.Node {
	devices := v.Devices()
	if len(devices) == 0 {
		return view.Empty("📡", "No devices registered", "Scan the network to find devices to monitor", &view.Action{
			ID:    "catalog:scan",
			Label: "Scan the network",
			Icon:  "system-search-symbolic",
			Run: func(ctx context.Context) error {
				return v.ctx.SwitchTab(ctx, dashboard.TabNetwork)
			},
		}).WithID("devices")
	}

	online, offline := 0, 0
	rows := make([]*view.Node, 0, len(devices))
	for _, device := range devices {
		switch device.DisplayStatus() {
		case api.StatusOnline:
			online++
		case api.StatusOffline:
			offline++
		}
		rows = append(rows, v.row(device))
	}

	summary := fmt.Sprintf("%d devices, %d online, %d offline", len(devices), online, offline)
	return view.Section("Monitored devices", view.Muted(summary), view.List(rows...)).WithID("devices")
}

func (v *View) row(device api.Device) *view.Node {
	identity := device.Identity()
	status := device.DisplayStatus()

	subtitle := []string{device.IP}
	if device.MAC != "" {
		subtitle = append(subtitle, device.MAC)
	}
	if device.Vendor != "" {
		subtitle = append(subtitle, device.Vendor)
	}

	suffix := []*view.Node{view.Badge(status, StatusClass(status))}
	if device.VPN || device.VPNIP != "" {
		suffix = append(suffix, view.Badge("VPN "+device.VPNIP, view.ClassAccent))
	}
	if device.MAC != "" {
		mac := device.MAC
		suffix = append(suffix, view.Button(&view.Action{
			ID:    "wake:" + identity,
			Label: "Wake",
			Icon:  "system-shutdown-symbolic",
			Run: func(ctx context.Context) error {
				_, err := v.Wake(ctx, mac)
				return err
			},
		}))
	}
	suffix = append(suffix, view.Button(&view.Action{
		ID:          "remove:" + identity,
		Label:       "Remove",
		Icon:        "user-trash-symbolic",
		Destructive: true,
		Run: func(ctx context.Context) error {
			_, err := v.Remove(ctx, identity)
			return err
		},
	}))

	name := device.Name
	if name == "" {
		name = device.IP
	}
	row := view.Row(TypeIcon(device.Type), name, strings.Join(subtitle, " · "), suffix...)
	row.ID = "device:" + identity
	return row
}

func validateDraft(draft api.Device) error {
	if draft.Name == "" {
		return &api.ValidationError{Field: "name", Message: "A device name is required"}
	}
	if draft.IP == "" {
		return &api.ValidationError{Field: "ip", Message: "An IP address is required"}
	}
	return nil
}

var typeIcons = map[api.DeviceType]string{
	api.DeviceTypeComputer: "💻",
	api.DeviceTypeServer:   "🖥️",
	api.DeviceTypePhone:    "📱",
	api.DeviceTypeTablet:   "📲",
	api.DeviceTypeIoT:      "💡",
	api.DeviceTypeNetwork:  "📡",
	api.DeviceTypePrinter:  "🖨️",
	api.DeviceTypeTV:       "📺",
	api.DeviceTypeConsole:  "🎮",
	api.DeviceTypeOther:    "❓",
}

func TypeIcon(deviceType api.DeviceType) string {
	if icon, ok := typeIcons[deviceType]; ok {
		return icon
	}
	return typeIcons[api.DeviceTypeOther]
}

func StatusClass(status string) string {
	switch status {
	case api.StatusOnline:
		return view.ClassOnline
	case api.StatusOffline:
		return view.ClassOffline
	default:
		return view.ClassUnknown
	}
}
