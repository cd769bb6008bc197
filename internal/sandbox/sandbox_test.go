package sandbox

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/monorkin/home-network-monitor/appliance/api"
	config "github.com/monorkin/home-network-monitor/internal/config"
	"github.com/monorkin/home-network-monitor/internal/database"
	"github.com/monorkin/home-network-monitor/internal/models"
)

type testClock struct {
	mutex sync.Mutex
	now   time.Time
}

func (clock *testClock) Now() time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return clock.now
}

func (clock *testClock) Advance(d time.Duration) {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	clock.now = clock.now.Add(d)
}

// switchableRoster lets a test change what the next scan finds.
type switchableRoster struct {
	mutex sync.Mutex
	hosts Roster
}

func (roster *switchableRoster) Set(hosts ...api.DiscoveredHost) {
	roster.mutex.Lock()
	defer roster.mutex.Unlock()
	roster.hosts = hosts
}

func (roster *switchableRoster) Scan(ctx context.Context) ([]api.DiscoveredHost, error) {
	roster.mutex.Lock()
	defer roster.mutex.Unlock()
	return roster.hosts.Scan(ctx)
}

type fixture struct {
	server *Server
	client *api.Client
	clock  *testClock
	roster *switchableRoster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.Open(config.MEMORY_DB_PATH)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	roster := &switchableRoster{hosts: DefaultRoster()}
	server := New(db, WithClock(clock.Now), WithScanner(roster))

	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)

	return &fixture{
		server: server,
		client: api.NewClient(httpServer.URL),
		clock:  clock,
		roster: roster,
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t)

	status, err := f.client.SystemStatus(context.Background(), false)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.AppName != APP_NAME || status.Storage != "sqlite" {
		t.Fatalf("status=%+v", status)
	}
}

func TestAddAndListDevices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.client.AddDevice(ctx, api.Device{Name: " NAS ", IP: "192.168.1.10", MAC: "00-11-32-00-00-10", Type: "Server"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if created.ID == "" || created.Name != "NAS" {
		t.Fatalf("created=%+v", created)
	}
	if created.MAC != "00:11:32:00:00:10" {
		t.Fatalf("mac=%q want normalized", created.MAC)
	}
	if created.Type != api.DeviceTypeServer {
		t.Fatalf("type=%q want %q", created.Type, api.DeviceTypeServer)
	}

	devices, err := f.client.ListDevices(ctx, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("devices=%d want 1", len(devices))
	}
	if got := devices[0].DisplayStatus(); got != api.StatusUnknown {
		t.Fatalf("status before any scan=%q want %q", got, api.StatusUnknown)
	}
}

func TestAddDeviceValidation(t *testing.T) {
	f := newFixture(t)

	tests := map[string]api.Device{
		"missing name":    {IP: "192.168.1.10"},
		"invalid ip":      {Name: "NAS", IP: "192.168.1.300"},
		"invalid vpn ip":  {Name: "NAS", IP: "192.168.1.10", VPNIP: "vpn"},
		"invalid mac":     {Name: "NAS", IP: "192.168.1.10", MAC: "zz:zz"},
		"missing address": {Name: "NAS"},
	}

	for name, device := range tests {
		_, err := f.client.AddDevice(context.Background(), device)
		var appErr *api.ApplicationError
		if !errors.As(err, &appErr) {
			t.Fatalf("%s: err=%v want ApplicationError", name, err)
		}
		if appErr.Kind != "invalid_device" {
			t.Fatalf("%s: kind=%q want invalid_device", name, appErr.Kind)
		}
	}
}

func TestUpdateAndDeleteDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.client.AddDevice(ctx, api.Device{Name: "Printer", IP: "192.168.1.50"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	created.Description = "Upstairs"
	updated, err := f.client.UpdateDevice(ctx, created.Identity(), *created)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Description != "Upstairs" {
		t.Fatalf("description=%q want Upstairs", updated.Description)
	}

	// Addressing by IP works as well as by id.
	if err := f.client.DeleteDevice(ctx, "192.168.1.50"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	devices, err := f.client.ListDevices(ctx, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(devices) != 0 {
		t.Fatalf("devices after delete=%d want 0", len(devices))
	}

	err = f.client.DeleteDevice(ctx, "192.168.1.50")
	var appErr *api.ApplicationError
	if !errors.As(err, &appErr) || appErr.Kind != "not_found" {
		t.Fatalf("second delete err=%v want not_found", err)
	}
}

func TestWake(t *testing.T) {
	f := newFixture(t)

	result, err := f.client.WakeDevice(context.Background(), "00-11-32-00-00-10")
	if err != nil {
		t.Fatalf("wake: %v", err)
	}
	if !result.Accepted || !strings.Contains(result.Message, "00:11:32:00:00:10") {
		t.Fatalf("result=%+v", result)
	}

	_, err = f.client.WakeDevice(context.Background(), "not-a-mac")
	var appErr *api.ApplicationError
	if !errors.As(err, &appErr) || appErr.Kind != "invalid_mac" {
		t.Fatalf("err=%v want invalid_mac", err)
	}
}

func TestScanUpdatesCatalogAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.client.AddDevice(ctx, api.Device{Name: "NAS", IP: "192.168.1.10"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.client.AddDevice(ctx, api.Device{Name: "Old laptop", IP: "192.168.1.99"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	last, err := f.client.LastScan(ctx)
	if err != nil || last != nil {
		t.Fatalf("last scan before any scan=%v, %v want nil, nil", last, err)
	}

	result, err := f.client.Scan(ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(result.Devices) != len(DefaultRoster()) {
		t.Fatalf("scanned hosts=%d want %d", len(result.Devices), len(DefaultRoster()))
	}
	if result.Statistics.Network != DEFAULT_NETWORK {
		t.Fatalf("network=%q want %q", result.Statistics.Network, DEFAULT_NETWORK)
	}

	devices, err := f.client.ListDevices(ctx, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	statuses := map[string]string{}
	for _, device := range devices {
		statuses[device.Name] = device.DisplayStatus()
	}
	if statuses["NAS"] != api.StatusOnline || statuses["Old laptop"] != api.StatusOffline {
		t.Fatalf("statuses=%v", statuses)
	}

	history, err := f.client.DevicesByMAC(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != len(DefaultRoster()) {
		t.Fatalf("history entries=%d want %d", len(history), len(DefaultRoster()))
	}
	if _, ok := history[api.NoMACPrefix+"192.168.1.77"]; !ok {
		t.Fatalf("history=%v missing the no-MAC host", history)
	}

	stats, err := f.client.ScanStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalScans != 1 || stats.LastScanCount != len(DefaultRoster()) || !stats.HasData {
		t.Fatalf("stats=%+v", stats)
	}

	events, err := f.client.RecentEvents(ctx, 100)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events.Connection) != len(DefaultRoster()) {
		t.Fatalf("connection events=%d want one new_device per host", len(events.Connection))
	}
	for _, event := range events.Connection {
		if event.Type != api.ConnectionNewDevice {
			t.Fatalf("event type=%q want %q", event.Type, api.ConnectionNewDevice)
		}
	}
}

func TestScanDropsHostsOutsideNetwork(t *testing.T) {
	f := newFixture(t)
	f.roster.Set(
		api.DiscoveredHost{IP: "192.168.1.10", MAC: "00:11:32:00:00:10"},
		api.DiscoveredHost{IP: "10.0.0.5", MAC: "00:11:32:00:00:11"},
	)

	result, err := f.client.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(result.Devices) != 1 || result.Devices[0].IP != "192.168.1.10" {
		t.Fatalf("devices=%+v", result.Devices)
	}
}

func TestDisconnectionAndReconnection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	phone := api.DiscoveredHost{IP: "192.168.1.32", MAC: "a4:83:e7:00:00:32", Hostname: "iphone.lan"}
	nas := api.DiscoveredHost{IP: "192.168.1.10", MAC: "00:11:32:00:00:10"}

	f.roster.Set(phone, nas)
	if _, err := f.client.Scan(ctx); err != nil {
		t.Fatalf("scan 1: %v", err)
	}

	f.clock.Advance(30 * time.Minute)
	f.roster.Set(nas)
	if _, err := f.client.Scan(ctx); err != nil {
		t.Fatalf("scan 2: %v", err)
	}

	disconnected, err := f.client.DisconnectedDevices(ctx)
	if err != nil {
		t.Fatalf("disconnected: %v", err)
	}
	if len(disconnected) != 1 || disconnected[0].MAC != phone.MAC {
		t.Fatalf("disconnected=%+v", disconnected)
	}

	f.clock.Advance(3 * time.Hour)
	f.roster.Set(phone, nas)
	if _, err := f.client.Scan(ctx); err != nil {
		t.Fatalf("scan 3: %v", err)
	}

	events, err := f.client.RecentEvents(ctx, 10)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events.Connection) < 2 {
		t.Fatalf("connection events=%+v", events.Connection)
	}

	latest := events.Connection[0]
	if latest.Type != api.ConnectionReconnection || latest.MAC != phone.MAC {
		t.Fatalf("latest event=%+v want reconnection of the phone", latest)
	}
	wantOffline := (3*time.Hour + 30*time.Minute).Seconds()
	if latest.TimeOffline != wantOffline {
		t.Fatalf("time offline=%v want %v", latest.TimeOffline, wantOffline)
	}

	previous := events.Connection[1]
	if previous.Type != api.ConnectionDisconnection || previous.TimeOffline != (30*time.Minute).Seconds() {
		t.Fatalf("previous event=%+v want disconnection after 30m", previous)
	}

	disconnected, err = f.client.DisconnectedDevices(ctx)
	if err != nil {
		t.Fatalf("disconnected: %v", err)
	}
	if len(disconnected) != 0 {
		t.Fatalf("disconnected after return=%+v want none", disconnected)
	}
}

func TestReturnWithinAnHourIsSilent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	phone := api.DiscoveredHost{IP: "192.168.1.32", MAC: "a4:83:e7:00:00:32"}
	f.roster.Set(phone)
	f.client.Scan(ctx)

	f.clock.Advance(10 * time.Minute)
	f.roster.Set()
	f.client.Scan(ctx)

	f.clock.Advance(10 * time.Minute)
	f.roster.Set(phone)
	f.client.Scan(ctx)

	events, err := f.client.RecentEvents(ctx, 10)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	for _, event := range events.Connection {
		if event.Type == api.ConnectionReconnection {
			t.Fatalf("unexpected reconnection event %+v", event)
		}
	}
}

func TestIPAndMACChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.roster.Set(api.DiscoveredHost{IP: "192.168.1.21", MAC: "3c:7c:3f:00:00:21", Hostname: "workstation.lan"})
	f.client.Scan(ctx)

	f.clock.Advance(time.Minute)
	// The replacement card is listed first so it is seen at the old address.
	f.roster.Set(
		api.DiscoveredHost{IP: "192.168.1.21", MAC: "3c:7c:3f:00:00:99"},
		api.DiscoveredHost{IP: "192.168.1.22", MAC: "3c:7c:3f:00:00:21", Hostname: "workstation.lan"},
	)
	f.client.Scan(ctx)

	events, err := f.client.RecentEvents(ctx, 10)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events.IPChanges) != 1 || events.IPChanges[0].OldIP != "192.168.1.21" || events.IPChanges[0].NewIP != "192.168.1.22" {
		t.Fatalf("ip changes=%+v", events.IPChanges)
	}
	if len(events.MACChanges) != 1 || events.MACChanges[0].OldMAC != "3c:7c:3f:00:00:21" {
		t.Fatalf("mac changes=%+v", events.MACChanges)
	}

	history, err := f.client.DevicesByMAC(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	record := history["3c:7c:3f:00:00:21"]
	if len(record.IPHistory) != 2 || len(record.IPChanges) != 1 || record.ScanCount != 2 {
		t.Fatalf("record=%+v", record)
	}
}

func TestEventsLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.client.Scan(ctx)

	events, err := f.client.RecentEvents(ctx, 3)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events.Connection) != 3 {
		t.Fatalf("connection events=%d want 3", len(events.Connection))
	}
}

func TestVPNRequiresKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	vpnConfig, err := f.client.VPNConfig(ctx)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if vpnConfig.Configured {
		t.Fatalf("config=%+v want unconfigured", vpnConfig)
	}

	_, err = f.client.VPNDevices(ctx)
	var remediable *api.RemediableConfigError
	if !errors.As(err, &remediable) || remediable.Kind != api.ErrorKindMissingKey {
		t.Fatalf("err=%v want missing_key", err)
	}
}

func TestVPNExpiredKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.client.SaveVPNConfig(ctx, api.VPNCredentials{APIKey: "tskey-expired-1", Tailnet: "example.com"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	_, err := f.client.VPNRoutes(ctx)
	var remediable *api.RemediableConfigError
	if !errors.As(err, &remediable) || remediable.Kind != api.ErrorKindExpiredKey {
		t.Fatalf("err=%v want expired_key", err)
	}
	if remediable.HelpURL != api.TailscaleKeysURL {
		t.Fatalf("help url=%q", remediable.HelpURL)
	}
}

func TestVPNLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := Seed(f.server.db, f.clock.Now()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := f.client.SaveVPNConfig(ctx, api.VPNCredentials{APIKey: " tskey-api-1 ", Tailnet: "example.com"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	vpnConfig, err := f.client.VPNConfig(ctx)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if !vpnConfig.Configured || vpnConfig.Tailnet != "example.com" || vpnConfig.AutoSync {
		t.Fatalf("config=%+v", vpnConfig)
	}

	devices, err := f.client.VPNDevices(ctx)
	if err != nil {
		t.Fatalf("devices: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("devices=%d want 3", len(devices))
	}

	var pending api.VPNDevice
	online := 0
	for _, device := range devices {
		if !device.Authorized {
			pending = device
		}
		if device.IsOnline(f.clock.Now()) {
			online++
		}
	}
	if pending.Hostname != "old-phone" {
		t.Fatalf("pending=%+v want old-phone", pending)
	}
	if online != 2 {
		t.Fatalf("online=%d want 2", online)
	}

	if err := f.client.AuthorizeVPNDevice(ctx, pending.ID); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if err := f.client.RenameVPNDevice(ctx, pending.ID, "spare-phone"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	var node models.VPNNode
	if err := f.server.db.Where("public_id = ?", pending.ID).First(&node).Error; err != nil {
		t.Fatalf("load node: %v", err)
	}
	if !node.Authorized || node.Hostname != "spare-phone" {
		t.Fatalf("node=%+v", node)
	}

	routes, err := f.client.VPNRoutes(ctx)
	if err != nil {
		t.Fatalf("routes: %v", err)
	}
	if len(routes) != 1 || routes[0].DeviceName != "nas" {
		t.Fatalf("routes=%+v", routes)
	}

	acl, err := f.client.VPNACL(ctx)
	if err != nil {
		t.Fatalf("acl: %v", err)
	}
	if !strings.Contains(acl, "autogroup:member") {
		t.Fatalf("acl=%s", acl)
	}

	if err := f.client.EnableVPNAutoSync(ctx); err != nil {
		t.Fatalf("auto-sync: %v", err)
	}
	vpnConfig, err = f.client.VPNConfig(ctx)
	if err != nil || !vpnConfig.AutoSync {
		t.Fatalf("config after auto-sync=%+v, %v", vpnConfig, err)
	}

	if err := f.client.DeleteVPNDevice(ctx, pending.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	devices, err = f.client.VPNDevices(ctx)
	if err != nil || len(devices) != 2 {
		t.Fatalf("devices after delete=%d, %v want 2", len(devices), err)
	}
}

func TestSeedOnlyFillsEmptyDatabase(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 2; i++ {
		if err := Seed(f.server.db, f.clock.Now()); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	devices, err := f.client.ListDevices(context.Background(), false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("devices=%d want 3", len(devices))
	}
}
