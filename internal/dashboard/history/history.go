package history

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/dashboard"
	"github.com/monorkin/home-network-monitor/internal/dashboard/catalog"
	"github.com/monorkin/home-network-monitor/internal/dashboard/discovery"
	"github.com/monorkin/home-network-monitor/internal/view"
)

const (
	// CONNECTED_WINDOW is how recently a device must have been seen to count as
	// connected.
	CONNECTED_WINDOW     = 5 * time.Minute
	DEFAULT_EVENTS_LIMIT = 50
)

// Entry is one row of the history table.
type Entry struct {
	Key         string
	Record      api.HistoryRecord
	Placeholder bool
}

// MAC returns the entry's MAC address, or "" for devices that never reported one.
func (entry Entry) MAC() string {
	if entry.Placeholder {
		return ""
	}
	return entry.Key
}

// IP returns the last known IP address.
func (entry Entry) IP() string {
	if entry.Record.Current.IP != "" {
		return entry.Record.Current.IP
	}
	if entry.Placeholder {
		return api.PlaceholderIP(entry.Key)
	}
	if n := len(entry.Record.IPHistory); n > 0 {
		return entry.Record.IPHistory[n-1]
	}
	return ""
}

func (entry Entry) Title() string {
	current := entry.Record.Current
	return discovery.DisplayTitle(api.DiscoveredHost{IP: entry.IP(), Hostname: current.Hostname, Vendor: current.Vendor})
}

func (entry Entry) Connected(now time.Time) bool {
	return IsConnected(now, entry.Record.LastSeen)
}

func IsConnected(now time.Time, lastSeen api.Timestamp) bool {
	if lastSeen.IsZero() {
		return false
	}
	return now.Sub(lastSeen.Time) <= CONNECTED_WINDOW
}

// SortEntries orders records by last-seen time, most recent first. Records without a
// last-seen time come last.
func SortEntries(records map[string]api.HistoryRecord) []Entry {
	entries := make([]Entry, 0, len(records))
	for key, record := range records {
		entries = append(entries, Entry{Key: key, Record: record, Placeholder: api.IsPlaceholderMAC(key)})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Record.LastSeen, entries[j].Record.LastSeen
		switch {
		case a.IsZero() && b.IsZero():
			return entries[i].Key < entries[j].Key
		case a.IsZero():
			return false
		case b.IsZero():
			return true
		case a.Equal(b.Time):
			return entries[i].Key < entries[j].Key
		default:
			return a.After(b.Time)
		}
	})
	return entries
}

// Controller renders the appliance's MAC-indexed device history and event log.
type Controller struct {
	ctx     *dashboard.Context
	catalog *catalog.View

	Slot             *view.Slot
	EventsSlot       *view.Slot
	DisconnectedSlot *view.Slot

	mutex   sync.Mutex
	entries []Entry
	stats   *api.ScanStats
}

func New(ctx *dashboard.Context, devices *catalog.View) *Controller {
	return &Controller{
		ctx:              ctx,
		catalog:          devices,
		Slot:             view.NewSlot("history"),
		EventsSlot:       view.NewSlot("events"),
		DisconnectedSlot: view.NewSlot("disconnected"),
	}
}

func (c *Controller) Entries() []Entry {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]Entry(nil), c.entries...)
}

func (c *Controller) Entry(key string) (Entry, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, entry := range c.entries {
		if entry.Key == key {
			return entry, true
		}
	}
	return Entry{}, false
}

// Load fetches the history and the scan statistics. Statistics are optional: a
// failure to load them is only logged.
func (c *Controller) Load(ctx context.Context) ([]Entry, error) {
	records, err := c.ctx.API.DevicesByMAC(ctx)
	if err != nil {
		c.ctx.Logger.Error("Failed to load device history", "error", err)
		c.Slot.Replace(view.Error("Unable to load the device history", api.UserMessage(err), &view.Action{
			ID:    "history:retry",
			Label: "Retry",
			Run: func(ctx context.Context) error {
				_, err := c.Load(ctx)
				return err
			},
		}))
		return nil, err
	}

	stats, err := c.ctx.API.ScanStats(ctx)
	if err != nil {
		c.ctx.Logger.Warn("Failed to load scan statistics", "error", err)
		stats = nil
	}

	entries := SortEntries(records)
	c.mutex.Lock()
	c.entries = entries
	c.stats = stats
	c.mutex.Unlock()

	c.ctx.Logger.Debug("Device history loaded", "devices", len(entries))
	c.Slot.Replace(c.Render())
	return entries, nil
}

// Render builds the history table from the last load.
func (c *Controller) Render() *view.Node {
	c.mutex.Lock()
	entries := append([]Entry(nil), c.entries...)
	stats := c.stats
	c.mutex.Unlock()

	section := view.Section("Device history").WithID("history")
	if stats != nil && stats.HasData {
		section.Append(view.Muted(fmt.Sprintf("%d scans, %d unique devices, last scan %s (%d devices)",
			stats.TotalScans, stats.UniqueDevices, dashboard.FormatTime(stats.LastScanAt), stats.LastScanCount)))
	}

	if len(entries) == 0 {
		return section.Append(view.Empty("🕰️", "No history yet", "History builds up as network scans are run"))
	}

	now := c.ctx.CurrentTime()
	connected := 0
	rows := make([]*view.Node, 0, len(entries))
	for _, entry := range entries {
		if entry.Connected(now) {
			connected++
		}
		rows = append(rows, c.row(entry, now))
	}

	section.Append(
		view.Text(fmt.Sprintf("%d devices known, %d connected", len(entries), connected)),
		view.List(rows...),
	)
	return section
}

func (c *Controller) row(entry Entry, now time.Time) *view.Node {
	status := view.Badge("disconnected", view.ClassOffline)
	icon := "⚪"
	if entry.Connected(now) {
		status = view.Badge("connected", view.ClassOnline)
		icon = "🟢"
	}

	subtitle := []string{entry.IP()}
	if mac := entry.MAC(); mac != "" {
		subtitle = append(subtitle, mac)
	} else {
		subtitle = append(subtitle, "no MAC")
	}
	subtitle = append(subtitle, "seen "+dashboard.FormatAgo(now, entry.Record.LastSeen))

	suffix := []*view.Node{status}
	suffix = append(suffix, ChangeBadges(entry.Record)...)

	key := entry.Key
	suffix = append(suffix, view.Button(&view.Action{
		ID:    "history:show:" + key,
		Label: "Details",
		Icon:  "dialog-information-symbolic",
		Run: func(context.Context) error {
			c.Show(key)
			return nil
		},
	}))

	row := view.Row(icon, entry.Title(), strings.Join(subtitle, " · "), suffix...)
	row.ID = "entry:" + key
	return row
}

// ChangeBadges flags each non-empty change log of record.
func ChangeBadges(record api.HistoryRecord) []*view.Node {
	var badges []*view.Node
	if n := len(record.IPChanges); n > 0 {
		badges = append(badges, view.Badge(fmt.Sprintf("IP changed ×%d", n), view.ClassWarning))
	}
	if n := len(record.HostnameChanges); n > 0 {
		badges = append(badges, view.Badge(fmt.Sprintf("hostname changed ×%d", n), view.ClassWarning))
	}
	if n := len(record.VendorChanges); n > 0 {
		badges = append(badges, view.Badge(fmt.Sprintf("vendor changed ×%d", n), view.ClassWarning))
	}
	return badges
}

// Show opens the detail modal of the entry keyed by a MAC address or a no-MAC id.
func (c *Controller) Show(key string) (*view.Modal, bool) {
	entry, ok := c.Entry(key)
	if !ok {
		return nil, false
	}

	body := Details(entry, c.ctx.CurrentTime())
	body.Append(view.Group(view.Button(&view.Action{
		ID:    "history:promote:" + key,
		Label: "Monitor again",
		Icon:  "list-add-symbolic",
		Run: func(ctx context.Context) error {
			_, err := c.Promote(ctx, key)
			if err == nil {
				c.ctx.Modals.CloseAll()
			}
			return err
		},
	})))

	return c.ctx.Modals.Open(entry.Title(), body), true
}

// Details describes an entry with every before/after pair of its change logs.
func Details(entry Entry, now time.Time) *view.Node {
	record := entry.Record
	connection := "disconnected"
	if entry.Connected(now) {
		connection = "connected"
	}

	body := view.Section("",
		view.Field("MAC address", dashboard.OrDash(entry.MAC())),
		view.Field("IP address", dashboard.OrDash(entry.IP())),
		view.Field("Hostname", dashboard.OrDash(record.Current.Hostname)),
		view.Field("Vendor", dashboard.OrDash(record.Current.Vendor)),
		view.Field("Device type", dashboard.OrDash(record.Current.DeviceType)),
		view.Field("State", connection),
		view.Field("First seen", dashboard.FormatTime(record.FirstSeen)),
		view.Field("Last seen", dashboard.FormatTime(record.LastSeen)),
		view.Field("Scans", fmt.Sprint(record.ScanCount)),
	)

	if len(record.IPHistory) > 0 {
		body.Append(view.Section("IP history", view.Text(strings.Join(record.IPHistory, ", "))))
	}
	body.Append(
		changeSection("IP changes", record.IPChanges),
		changeSection("Hostname changes", record.HostnameChanges),
		changeSection("Vendor changes", record.VendorChanges),
	)
	return body
}

func changeSection(title string, changes []api.Change) *view.Node {
	if len(changes) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(changes))
	for _, change := range changes {
		rows = append(rows, []string{dashboard.FormatTime(change.Timestamp), dashboard.OrDash(change.Old), dashboard.OrDash(change.New)})
	}
	return view.Section(title, view.Table([]string{"When", "Before", "After"}, rows...))
}

// Promote registers the entry's device in the catalog again, using its last known IP.
func (c *Controller) Promote(ctx context.Context, key string) (*api.Device, error) {
	entry, ok := c.Entry(key)
	if !ok {
		err := fmt.Errorf("no history for %s", key)
		c.ctx.NotifyError(ctx, err)
		return nil, err
	}

	current := entry.Record.Current
	draft := discovery.DraftFromHost(api.DiscoveredHost{
		IP:         entry.IP(),
		Hostname:   current.Hostname,
		Vendor:     current.Vendor,
		DeviceType: current.DeviceType,
		MAC:        entry.MAC(),
	})
	return c.catalog.Add(ctx, draft)
}

// Events fetches the event log and returns its three lists merged, newest first.
func (c *Controller) Events(ctx context.Context, limit int) ([]api.NetworkEvent, error) {
	if limit <= 0 {
		limit = DEFAULT_EVENTS_LIMIT
	}

	recent, err := c.ctx.API.RecentEvents(ctx, limit)
	if err != nil {
		c.ctx.Logger.Error("Failed to load network events", "error", err)
		c.EventsSlot.Replace(view.Error("Unable to load network events", api.UserMessage(err)))
		return nil, err
	}

	events := MergeEvents(recent)
	c.EventsSlot.Replace(RenderEvents(events))
	return events, nil
}

// MergeEvents tags every event with its category and sorts the union by timestamp,
// newest first.
func MergeEvents(recent *api.RecentEvents) []api.NetworkEvent {
	events := recent.Tagged()
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp.Time)
	})
	return events
}

func RenderEvents(events []api.NetworkEvent) *view.Node {
	section := view.Section("Network events").WithID("events")
	if len(events) == 0 {
		return section.Append(view.Empty("📭", "No events", "Connections and address changes will be listed here"))
	}

	rows := make([]*view.Node, 0, len(events))
	for _, event := range events {
		rows = append(rows, view.Row(eventIcon(event), DescribeEvent(event), dashboard.FormatTime(event.Timestamp)))
	}
	return section.Append(view.List(rows...))
}

// DescribeEvent writes a one-line description of event.
func DescribeEvent(event api.NetworkEvent) string {
	label := eventLabel(event)

	switch event.Category {
	case api.EventCategoryIPChange:
		return fmt.Sprintf("%s changed IP from %s to %s", label, dashboard.OrDash(event.OldIP), dashboard.OrDash(event.NewIP))
	case api.EventCategoryMACChange:
		return fmt.Sprintf("%s changed MAC from %s to %s", label, dashboard.OrDash(event.OldMAC), dashboard.OrDash(event.NewMAC))
	}

	switch event.Type {
	case api.ConnectionNewDevice:
		return fmt.Sprintf("New device %s joined the network", label)
	case api.ConnectionReconnection:
		return fmt.Sprintf("%s reconnected after %d h offline", label, dashboard.OfflineHours(event.TimeOffline))
	case api.ConnectionDisconnection:
		return fmt.Sprintf("%s disconnected", label)
	}
	return fmt.Sprintf("%s: %s", label, event.Type)
}

func eventLabel(event api.NetworkEvent) string {
	ip := event.IP
	if ip == "" {
		ip = event.NewIP
	}

	name := event.Hostname
	if name == "" {
		name = event.Vendor
	}
	switch {
	case name != "" && ip != "":
		return fmt.Sprintf("%s (%s)", name, ip)
	case name != "":
		return name
	case ip != "":
		return ip
	case event.MAC != "":
		return event.MAC
	default:
		return "Unknown device"
	}
}

func eventIcon(event api.NetworkEvent) string {
	switch event.Category {
	case api.EventCategoryIPChange:
		return "🔀"
	case api.EventCategoryMACChange:
		return "🆔"
	}
	switch event.Type {
	case api.ConnectionNewDevice:
		return "🆕"
	case api.ConnectionReconnection:
		return "🔌"
	case api.ConnectionDisconnection:
		return "📴"
	}
	return "•"
}

// Disconnected fetches the devices the appliance saw recently but not in the last
// scan.
func (c *Controller) Disconnected(ctx context.Context) ([]api.DisconnectedDevice, error) {
	devices, err := c.ctx.API.DisconnectedDevices(ctx)
	if err != nil {
		c.ctx.Logger.Error("Failed to load disconnected devices", "error", err)
		c.DisconnectedSlot.Replace(view.Error("Unable to load disconnected devices", api.UserMessage(err)))
		return nil, err
	}

	c.DisconnectedSlot.Replace(RenderDisconnected(devices))
	return devices, nil
}

func RenderDisconnected(devices []api.DisconnectedDevice) *view.Node {
	section := view.Section("Recently disconnected").WithID("disconnected")
	if len(devices) == 0 {
		return section.Append(view.Muted("Every known device was present in the last scan"))
	}

	rows := make([][]string, 0, len(devices))
	for _, device := range devices {
		name := device.Hostname
		if name == "" {
			name = device.Vendor
		}
		rows = append(rows, []string{
			dashboard.OrDash(name),
			dashboard.OrDash(device.IP),
			dashboard.OrDash(device.MAC),
			dashboard.FormatTime(device.LastSeen),
			fmt.Sprintf("%d h", dashboard.OfflineHours(device.TimeOffline)),
		})
	}
	return section.Append(view.Table([]string{"Device", "IP", "MAC", "Last seen", "Offline"}, rows...))
}
