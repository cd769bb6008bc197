package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/monorkin/home-network-monitor/internal/dashboard"
	"github.com/monorkin/home-network-monitor/internal/dashboard/dashboardtest"
	"github.com/monorkin/home-network-monitor/internal/view"
)

func newDashboard(t *testing.T) (*dashboardtest.Context, *Dashboard) {
	tc := dashboardtest.NewContext(t)
	tc.Appliance.Handle(http.MethodGet, "/api/status", `{"success":true,"data":{"app_name":"333home","version":"2.1.0"}}`)
	tc.Appliance.Handle(http.MethodGet, "/api/devices", `{"success":true,"data":[{"id":"d1","name":"nas","ip":"192.168.1.10"}]}`)
	tc.Appliance.Handle(http.MethodGet, "/api/tailscale/config", `{"success":true,"data":{"configured":true}}`)
	tc.Appliance.Handle(http.MethodGet, "/api/tailscale/devices", `{"success":true,"data":[]}`)
	tc.Appliance.Handle(http.MethodPost, "/api/tailscale/auto-sync", `{"success":true}`)
	return tc, New(tc.Context)
}

func TestStartShowsStatusAndSyncsOnce(t *testing.T) {
	tc, d := newDashboard(t)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	d.Start(context.Background())

	if d.Current() != dashboard.TabStatus {
		t.Fatalf("current tab=%q want status", d.Current())
	}
	if d.Status.Slot.Current() == nil {
		t.Fatalf("status not loaded")
	}
	if got := tc.Appliance.Count(http.MethodPost, "/api/tailscale/auto-sync"); got != 1 {
		t.Fatalf("auto-sync posted %d times want 1", got)
	}
}

func TestSwitchTabLoadsOnce(t *testing.T) {
	tc, d := newDashboard(t)
	d.Start(context.Background())

	var changes []dashboard.Tab
	release := d.OnTabChange(func(tab dashboard.Tab) { changes = append(changes, tab) })
	defer release()

	if err := d.SwitchTab(context.Background(), dashboard.TabDevices); err != nil {
		t.Fatalf("SwitchTab: %v", err)
	}
	if err := d.SwitchTab(context.Background(), dashboard.TabDevices); err != nil {
		t.Fatalf("SwitchTab again: %v", err)
	}

	if got := tc.Appliance.Count(http.MethodGet, "/api/devices"); got != 1 {
		t.Fatalf("devices fetched %d times want 1", got)
	}
	if len(changes) != 1 || changes[0] != dashboard.TabDevices {
		t.Fatalf("unexpected tab changes %v", changes)
	}
	if view.Find(d.Catalog.Slot.Current(), "device:d1") == nil {
		t.Fatalf("device row not rendered")
	}
}

func TestSwitchTabRejectsUnknown(t *testing.T) {
	_, d := newDashboard(t)
	if err := d.SwitchTab(context.Background(), dashboard.Tab("settings")); err == nil {
		t.Fatalf("unknown tab accepted")
	}
	if d.Current() != "" {
		t.Fatalf("current tab changed to %q", d.Current())
	}
}

func TestNetworkTabDoesNotScan(t *testing.T) {
	tc, d := newDashboard(t)
	d.Start(context.Background())

	if err := d.SwitchTab(context.Background(), dashboard.TabNetwork); err != nil {
		t.Fatalf("SwitchTab: %v", err)
	}
	if got := tc.Appliance.Count(http.MethodGet, "/api/network/scan"); got != 0 {
		t.Fatalf("scan started by a tab switch")
	}
	if view.FindAction(d.Discovery.Slot.Current(), "scan:start") == nil {
		t.Fatalf("network tab has no scan control")
	}
}

func TestControllersNavigateThroughDashboard(t *testing.T) {
	tc, d := newDashboard(t)
	tc.Appliance.Handle(http.MethodGet, "/api/devices", `{"success":true,"data":[]}`)
	d.Start(context.Background())
	d.SwitchTab(context.Background(), dashboard.TabDevices)

	scan := view.FindAction(d.Catalog.Slot.Current(), "catalog:scan")
	if scan == nil {
		t.Fatalf("empty catalog has no scan action")
	}
	if err := scan.Run(context.Background()); err != nil {
		t.Fatalf("scan action: %v", err)
	}
	if d.Current() != dashboard.TabNetwork {
		t.Fatalf("current tab=%q want network", d.Current())
	}
}

func TestSlotsPerTab(t *testing.T) {
	_, d := newDashboard(t)
	for _, tab := range dashboard.Tabs {
		slots := d.Slots(tab)
		if len(slots) == 0 || slots[0] != d.Slot(tab) {
			t.Fatalf("tab %s: main slot missing", tab)
		}
	}
}
