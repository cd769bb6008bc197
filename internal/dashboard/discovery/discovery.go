package discovery

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/dashboard"
	"github.com/monorkin/home-network-monitor/internal/dashboard/catalog"
	"github.com/monorkin/home-network-monitor/internal/view"
)

type State string

const (
	StateIdle      State = "idle"
	StateScanning  State = "scanning"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

const (
	PROGRESS_TICK     = 500 * time.Millisecond
	PROGRESS_HIDE     = 2 * time.Second
	PROGRESS_CEILING  = 90
	PROGRESS_MIN_STEP = 2
	PROGRESS_SPREAD   = 5
)

var (
	ErrScanInProgress = errors.New("a scan is already running")
	ErrScanCancelled  = errors.New("scan interrupted")
	ErrNoRecentScan   = errors.New("no recent scan is available, run a scan first")
)

// HostNotInScanError is returned when promoting an IP the last scan did not see.
type HostNotInScanError struct {
	IP string
}

func (e *HostNotInScanError) Error() string {
	return fmt.Sprintf("%s was not found in the last scan", e.IP)
}

// Filter narrows the rendered results. An empty Category shows every category.
type Filter struct {
	Category Category
	Search   string
}

func (filter Filter) matches(host api.DiscoveredHost, category Category) bool {
	if filter.Category != "" && filter.Category != category {
		return false
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(host.Hostname), search) || strings.Contains(host.IP, search)
}

type Option func(*Controller)

func WithTickInterval(interval time.Duration) Option {
	return func(controller *Controller) {
		controller.tickInterval = interval
	}
}

func WithHideDelay(delay time.Duration) Option {
	return func(controller *Controller) {
		controller.hideDelay = delay
	}
}

// WithRandom replaces the source of progress jitter. fn must return values in [0, 1).
func WithRandom(fn func() float64) Option {
	return func(controller *Controller) {
		controller.random = fn
	}
}

// Controller runs network scans, shows their progress and renders categorized
// results.
type Controller struct {
	ctx     *dashboard.Context
	catalog *catalog.View
	Slot    *view.Slot

	tickInterval time.Duration
	hideDelay    time.Duration
	random       func() float64

	mutex           sync.Mutex
	state           State
	interrupted     bool
	generation      int
	progress        float64
	progressVisible bool
	stopTicker      chan struct{}
	result          *api.ScanResult
	err             error
	filter          Filter
}

func New(ctx *dashboard.Context, devices *catalog.View, opts ...Option) *Controller {
	controller := &Controller{
		ctx:          ctx,
		catalog:      devices,
		Slot:         view.NewSlot("network"),
		tickInterval: PROGRESS_TICK,
		hideDelay:    PROGRESS_HIDE,
		random:       rand.Float64,
		state:        StateIdle,
	}
	for _, opt := range opts {
		opt(controller)
	}
	return controller
}

func (c *Controller) State() State {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state
}

// Progress returns the indicator's value and whether it is shown.
func (c *Controller) Progress() (float64, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.progress, c.progressVisible
}

func (c *Controller) Result() *api.ScanResult {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.result
}

// Start launches a scan in the background.
func (c *Controller) Start(ctx context.Context) {
	go c.Scan(ctx)
}

// Scan runs a scan and blocks until the appliance answers. When the scan is cancelled
// meanwhile, the answer is discarded and ErrScanCancelled is returned.
func (c *Controller) Scan(ctx context.Context) (*api.ScanResult, error) {
	c.mutex.Lock()
	if c.state == StateScanning {
		c.mutex.Unlock()
		return nil, ErrScanInProgress
	}
	c.generation++
	generation := c.generation
	c.state = StateScanning
	c.interrupted = false
	c.progress = 0
	c.progressVisible = true
	c.result = nil
	c.err = nil
	c.stopTicker = make(chan struct{})
	go c.tick(generation, c.stopTicker)
	c.mutex.Unlock()

	c.ctx.Logger.Debug("Network scan started")
	c.render()

	result, err := c.ctx.API.Scan(ctx)

	c.mutex.Lock()
	if c.generation != generation || c.state != StateScanning {
		c.mutex.Unlock()
		c.ctx.Logger.Debug("Discarding the result of an interrupted scan")
		return nil, ErrScanCancelled
	}
	c.haltTicker()

	if err != nil {
		c.state = StateFailed
		c.err = err
		c.progressVisible = false
		c.mutex.Unlock()

		c.ctx.Logger.Error("Network scan failed", "error", err)
		c.render()
		return nil, err
	}

	c.state = StateSucceeded
	c.result = result
	c.progress = 100
	c.mutex.Unlock()

	c.ctx.Logger.Debug("Network scan finished", "hosts", len(result.Devices))
	c.render()

	time.AfterFunc(c.hideDelay, func() {
		c.mutex.Lock()
		current := c.generation == generation
		if current {
			c.progressVisible = false
		}
		c.mutex.Unlock()
		if current {
			c.render()
		}
	})

	return result, nil
}

// Cancel interrupts a running scan. The request to the appliance keeps running; its
// answer is ignored.
func (c *Controller) Cancel() {
	c.mutex.Lock()
	if c.state != StateScanning {
		c.mutex.Unlock()
		return
	}
	c.haltTicker()
	c.generation++
	c.state = StateCancelled
	c.interrupted = true
	c.progressVisible = false
	c.mutex.Unlock()

	c.ctx.Logger.Debug("Network scan interrupted")
	c.render()

	c.mutex.Lock()
	if c.state == StateCancelled {
		c.state = StateIdle
	}
	c.mutex.Unlock()
}

// haltTicker must be called with the mutex held.
func (c *Controller) haltTicker() {
	if c.stopTicker != nil {
		close(c.stopTicker)
		c.stopTicker = nil
	}
}

func (c *Controller) tick(generation int, stop <-chan struct{}) {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !c.advance(generation) {
				return
			}
			c.render()
		}
	}
}

func (c *Controller) advance(generation int) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.generation != generation || c.state != StateScanning {
		return false
	}
	c.progress += PROGRESS_MIN_STEP + c.random()*PROGRESS_SPREAD
	if c.progress > PROGRESS_CEILING {
		c.progress = PROGRESS_CEILING
	}
	return true
}

func (c *Controller) SetFilter(filter Filter) {
	c.mutex.Lock()
	c.filter = filter
	c.mutex.Unlock()
	c.render()
}

// Group buckets hosts by category, each bucket ordered by IP address. Empty
// categories are omitted.
func Group(hosts []api.DiscoveredHost, filter Filter) map[Category][]api.DiscoveredHost {
	groups := make(map[Category][]api.DiscoveredHost)
	for _, host := range hosts {
		category := Categorize(host)
		if !filter.matches(host, category) {
			continue
		}
		groups[category] = append(groups[category], host)
	}
	for _, members := range groups {
		sort.SliceStable(members, func(i, j int) bool {
			return dashboard.CompareIP(members[i].IP, members[j].IP) < 0
		})
	}
	return groups
}

// Promote adds a host of the last recorded scan to the device catalog.
func (c *Controller) Promote(ctx context.Context, ip string) (*api.Device, error) {
	lastScan, err := c.ctx.API.LastScan(ctx)
	if err != nil {
		c.ctx.Logger.Error("Failed to load the last scan", "error", err)
		c.ctx.NotifyError(ctx, err)
		return nil, err
	}
	if lastScan == nil {
		c.ctx.NotifyError(ctx, ErrNoRecentScan)
		return nil, ErrNoRecentScan
	}

	host, ok := lastScan.FindHost(ip)
	if !ok {
		err := &HostNotInScanError{IP: ip}
		c.ctx.NotifyError(ctx, err)
		return nil, err
	}

	return c.catalog.Add(ctx, DraftFromHost(host))
}

// DraftFromHost turns a discovered host into a catalog entry.
func DraftFromHost(host api.DiscoveredHost) api.Device {
	return api.Device{
		Name:        DisplayTitle(host),
		IP:          host.IP,
		MAC:         host.MAC,
		Vendor:      host.Vendor,
		Type:        MapDeviceType(host.DeviceType),
		WakeOnLAN:   host.MAC != "",
		Description: host.OSDetected,
	}
}

// ShowDetails opens a modal describing the host with the given IP.
func (c *Controller) ShowDetails(ip string) (*view.Modal, bool) {
	host, ok := c.Result().FindHost(ip)
	if !ok {
		return nil, false
	}

	body := HostDetails(host)
	body.Append(view.Group(view.Button(&view.Action{
		ID:    "details:promote:" + host.IP,
		Label: "Monitor this device",
		Icon:  "list-add-symbolic",
		Run: func(ctx context.Context) error {
			_, err := c.Promote(ctx, host.IP)
			if err == nil {
				c.ctx.Modals.CloseAll()
			}
			return err
		},
	})))

	return c.ctx.Modals.Open(DisplayTitle(host), body), true
}

func HostDetails(host api.DiscoveredHost) *view.Node {
	ports := make([]string, 0, len(host.OpenPorts))
	for _, port := range host.OpenPorts {
		ports = append(ports, fmt.Sprint(port))
	}

	ping := "-"
	if host.PingMS > 0 {
		ping = fmt.Sprintf("%.1f ms", host.PingMS)
	}

	return view.Section("",
		view.Field("IP address", host.IP),
		view.Field("Hostname", dashboard.OrDash(host.Hostname)),
		view.Field("MAC address", dashboard.OrDash(host.MAC)),
		view.Field("Vendor", dashboard.OrDash(host.Vendor)),
		view.Field("Operating system", dashboard.OrDash(host.OSDetected)),
		view.Field("OS confidence", dashboard.OrDash(host.OSConfidence)),
		view.Field("Device type", dashboard.OrDash(host.DeviceType)),
		view.Field("Category", Categorize(host).Title()),
		view.Field("Open ports", dashboard.OrDash(strings.Join(ports, ", "))),
		view.Field("Ping", ping),
		view.Field("Detection method", dashboard.OrDash(host.DetectionMethod)),
	)
}

func (c *Controller) render() {
	c.Slot.Replace(c.Render())
}

// Render builds the scan panel from the controller's current state.
func (c *Controller) Render() *view.Node {
	c.mutex.Lock()
	state := c.state
	interrupted := c.interrupted
	progress := c.progress
	progressVisible := c.progressVisible
	result := c.result
	err := c.err
	filter := c.filter
	c.mutex.Unlock()

	scanning := state == StateScanning
	controls := view.Group(
		view.Button(&view.Action{
			ID:       "scan:start",
			Label:    "Start scan",
			Icon:     "system-search-symbolic",
			Disabled: scanning,
			Run: func(ctx context.Context) error {
				c.Start(ctx)
				return nil
			},
		}),
		view.Button(&view.Action{
			ID:       "scan:stop",
			Label:    "Stop",
			Icon:     "media-playback-stop-symbolic",
			Disabled: !scanning,
			Run: func(context.Context) error {
				c.Cancel()
				return nil
			},
		}),
	).WithID("scan:controls")

	indicator := view.Progress(progress, "Scanning the network").WithID("scan:progress")
	indicator.Hidden = !progressVisible

	panel := view.Section("Network discovery", controls, indicator).WithID("network")

	switch {
	case scanning:
		panel.Append(view.Muted("Scanning the local network, this can take a minute…"))
	case state == StateFailed:
		panel.Append(view.Error("Scan failed", api.UserMessage(err), &view.Action{
			ID:    "scan:retry",
			Label: "Retry",
			Run: func(ctx context.Context) error {
				c.Start(ctx)
				return nil
			},
		}))
	case interrupted:
		panel.Append(view.Empty("⏹️", "Scan interrupted", "The scan was stopped before it finished", &view.Action{
			ID:    "scan:relaunch",
			Label: "Scan again",
			Run: func(ctx context.Context) error {
				c.Start(ctx)
				return nil
			},
		}))
	case state == StateSucceeded && result != nil:
		panel.Append(c.renderResult(result, filter))
	default:
		panel.Append(view.Empty("🔍", "Ready to scan", "Start a scan to discover the hosts on your network"))
	}

	return panel
}

func (c *Controller) renderResult(result *api.ScanResult, filter Filter) *view.Node {
	if len(result.Devices) == 0 {
		return view.Empty("📭", "No devices found", "The scan finished without finding any host")
	}

	summary := fmt.Sprintf("%d devices detected", len(result.Devices))
	if result.Statistics.Duration > 0 {
		summary += fmt.Sprintf(" in %.1fs", result.Statistics.Duration)
	}
	if result.Statistics.Network != "" {
		summary += " on " + result.Statistics.Network
	}

	results := view.Section("", view.Text(summary)).WithID("scan:results")

	groups := Group(result.Devices, filter)
	if len(groups) == 0 {
		results.Append(view.Muted("No host matches the current filter"))
		return results
	}

	for _, category := range Categories {
		hosts, ok := groups[category]
		if !ok {
			continue
		}
		rows := make([]*view.Node, 0, len(hosts))
		for _, host := range hosts {
			rows = append(rows, c.hostRow(host, category))
		}
		title := fmt.Sprintf("%s %s (%d)", category.Icon(), category.Title(), len(hosts))
		results.Append(view.Section(title, view.List(rows...)).WithID("category:" + string(category)))
	}
	return results
}

func (c *Controller) hostRow(host api.DiscoveredHost, category Category) *view.Node {
	subtitle := []string{host.IP}
	if host.MAC != "" {
		subtitle = append(subtitle, host.MAC)
	}
	if host.OSDetected != "" {
		subtitle = append(subtitle, host.OSDetected)
	}

	ip := host.IP
	row := view.Row(category.Icon(), DisplayTitle(host), strings.Join(subtitle, " · "),
		view.Button(&view.Action{
			ID:    "details:" + ip,
			Label: "Details",
			Icon:  "dialog-information-symbolic",
			Run: func(context.Context) error {
				c.ShowDetails(ip)
				return nil
			},
		}),
		view.Button(&view.Action{
			ID:    "promote:" + ip,
			Label: "Monitor",
			Icon:  "list-add-symbolic",
			Run: func(ctx context.Context) error {
				_, err := c.Promote(ctx, ip)
				return err
			},
		}),
	)
	row.ID = "host:" + ip
	return row
}
