package history

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/dashboard/catalog"
	"github.com/monorkin/home-network-monitor/internal/dashboard/dashboardtest"
	"github.com/monorkin/home-network-monitor/internal/view"
)

func TestSortEntriesByLastSeen(t *testing.T) {
	records := map[string]api.HistoryRecord{
		"aa:00:00:00:00:01": {LastSeen: api.EpochTimestamp(100)},
		"aa:00:00:00:00:03": {LastSeen: api.EpochTimestamp(300)},
		"no_mac_10.0.0.9":   {},
		"aa:00:00:00:00:02": {LastSeen: api.EpochTimestamp(200)},
	}

	entries := SortEntries(records)
	want := []string{"aa:00:00:00:00:03", "aa:00:00:00:00:02", "aa:00:00:00:00:01", "no_mac_10.0.0.9"}
	for i, entry := range entries {
		if entry.Key != want[i] {
			t.Fatalf("position %d is %s want %s", i, entry.Key, want[i])
		}
	}
	if !entries[3].Placeholder || entries[3].IP() != "10.0.0.9" || entries[3].MAC() != "" {
		t.Fatalf("placeholder entry not recognised: %+v", entries[3])
	}
}

func TestIsConnected(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cases := map[string]struct {
		lastSeen api.Timestamp
		want     bool
	}{
		"four minutes ago": {api.NewTimestamp(now.Add(-4 * time.Minute)), true},
		"six minutes ago":  {api.NewTimestamp(now.Add(-6 * time.Minute)), false},
		"never":            {api.Timestamp{}, false},
	}
	for name, tc := range cases {
		if got := IsConnected(now, tc.lastSeen); got != tc.want {
			t.Fatalf("%s: IsConnected=%v want %v", name, got, tc.want)
		}
	}
}

const historyBody = `{"success":true,"data":{"devices_by_mac":{
	"aa:bb:cc:dd:ee:01":{"current_data":{"ip":"192.168.1.10","hostname":"nas","device_type":"Serveur"},"last_seen":1699999900,"first_seen":1690000000,"scan_count":42,
		"ip_history":["192.168.1.5","192.168.1.10"],"ip_changes":[{"old":"192.168.1.5","new":"192.168.1.10","timestamp":1695000000}]},
	"no_mac_192.168.1.50":{"current_data":{"ip":"","vendor":"Unknown"},"last_seen":1690000000,"scan_count":1}
}}}`

func TestLoadRendersTable(t *testing.T) {
	tc := dashboardtest.NewContext(t)
	tc.Appliance.Handle(http.MethodGet, "/api/network/history", historyBody)

	controller := New(tc.Context, catalog.New(tc.Context))
	entries, err := controller.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 2 || entries[0].Key != "aa:bb:cc:dd:ee:01" {
		t.Fatalf("unexpected entries %+v", entries)
	}

	node := controller.Slot.Current()
	row := view.Find(node, "entry:aa:bb:cc:dd:ee:01")
	if row == nil {
		t.Fatalf("no row for the nas")
	}
	if row.Children[0].Text != "connected" {
		t.Fatalf("nas seen 100s ago rendered %q", row.Children[0].Text)
	}
	if row.Children[1].Text != "IP changed ×1" {
		t.Fatalf("unexpected change badge %q", row.Children[1].Text)
	}

	placeholder := view.Find(node, "entry:no_mac_192.168.1.50")
	if placeholder == nil || placeholder.Text != "192.168.1.50" || placeholder.Children[0].Text != "disconnected" {
		t.Fatalf("unexpected placeholder row %+v", placeholder)
	}
}

func TestShowDetailsListsChanges(t *testing.T) {
	tc := dashboardtest.NewContext(t)
	tc.Appliance.Handle(http.MethodGet, "/api/network/history", historyBody)
	controller := New(tc.Context, catalog.New(tc.Context))
	controller.Load(context.Background())

	modal, ok := controller.Show("aa:bb:cc:dd:ee:01")
	if !ok {
		t.Fatalf("no modal for a known MAC")
	}

	var changes *view.Node
	view.Walk(modal.Body(), func(n *view.Node) bool {
		if n.Kind == view.KindTable {
			changes = n
			return false
		}
		return true
	})
	if changes == nil || len(changes.Children) != 1 {
		t.Fatalf("expected one IP change row")
	}
	if cells := changes.Children[0].Cells; cells[1] != "192.168.1.5" || cells[2] != "192.168.1.10" {
		t.Fatalf("unexpected change cells %v", cells)
	}
	if view.FindAction(modal.Body(), "history:promote:aa:bb:cc:dd:ee:01") == nil {
		t.Fatalf("no monitor-again action")
	}
}

func TestPromotePlaceholderUsesIP(t *testing.T) {
	tc := dashboardtest.NewContext(t)
	tc.Appliance.Handle(http.MethodGet, "/api/network/history", historyBody)
	tc.Appliance.Handle(http.MethodPost, "/api/devices", `{"success":true}`)
	tc.Appliance.Handle(http.MethodGet, "/api/devices", `{"success":true,"data":[]}`)
	controller := New(tc.Context, catalog.New(tc.Context))
	controller.Load(context.Background())

	device, err := controller.Promote(context.Background(), "no_mac_192.168.1.50")
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if device.IP != "192.168.1.50" || device.MAC != "" || device.Name != "192.168.1.50" {
		t.Fatalf("unexpected device %+v", device)
	}
}

func TestMergeEventsNewestFirst(t *testing.T) {
	recent := &api.RecentEvents{
		Connection: []api.NetworkEvent{
			{Type: api.ConnectionNewDevice, IP: "10.0.0.2", Timestamp: api.EpochTimestamp(100)},
			{Type: api.ConnectionReconnection, IP: "10.0.0.3", Timestamp: api.EpochTimestamp(400), TimeOffline: 5400},
		},
		IPChanges:  []api.NetworkEvent{{OldIP: "10.0.0.4", NewIP: "10.0.0.5", Hostname: "tv", Timestamp: api.EpochTimestamp(300)}},
		MACChanges: []api.NetworkEvent{{IP: "10.0.0.6", OldMAC: "aa", NewMAC: "bb", Timestamp: api.EpochTimestamp(200)}},
	}

	events := MergeEvents(recent)
	want := []api.EventCategory{api.EventCategoryConnection, api.EventCategoryIPChange, api.EventCategoryMACChange, api.EventCategoryConnection}
	if len(events) != len(want) {
		t.Fatalf("got %d events want %d", len(events), len(want))
	}
	for i, event := range events {
		if event.Category != want[i] {
			t.Fatalf("position %d is %s want %s", i, event.Category, want[i])
		}
	}
}

func TestDescribeEvent(t *testing.T) {
	cases := map[string]api.NetworkEvent{
		"New device nas (10.0.0.2) joined the network":       {Category: api.EventCategoryConnection, Type: api.ConnectionNewDevice, IP: "10.0.0.2", Hostname: "nas"},
		"10.0.0.3 reconnected after 2 h offline":             {Category: api.EventCategoryConnection, Type: api.ConnectionReconnection, IP: "10.0.0.3", TimeOffline: 5400},
		"10.0.0.3 reconnected after 3 h offline":             {Category: api.EventCategoryConnection, Type: api.ConnectionReconnection, IP: "10.0.0.3", TimeOffline: 9000},
		"Dyson (10.0.0.7) disconnected":                      {Category: api.EventCategoryConnection, Type: api.ConnectionDisconnection, IP: "10.0.0.7", Vendor: "Dyson"},
		"tv (10.0.0.5) changed IP from 10.0.0.4 to 10.0.0.5": {Category: api.EventCategoryIPChange, OldIP: "10.0.0.4", NewIP: "10.0.0.5", Hostname: "tv"},
		"10.0.0.6 changed MAC from aa to bb":                 {Category: api.EventCategoryMACChange, IP: "10.0.0.6", OldMAC: "aa", NewMAC: "bb"},
	}
	for want, event := range cases {
		if got := DescribeEvent(event); got != want {
			t.Fatalf("DescribeEvent(%+v)=%q want %q", event, got, want)
		}
	}
}

func TestEventsRequestsLimit(t *testing.T) {
	tc := dashboardtest.NewContext(t)
	tc.Appliance.Handle(http.MethodGet, "/api/network/events", `{"success":true,"data":{"connection_events":[],"ip_changes":[],"mac_changes":[]}}`)
	controller := New(tc.Context, catalog.New(tc.Context))

	if _, err := controller.Events(context.Background(), 20); err != nil {
		t.Fatalf("Events: %v", err)
	}
	calls := tc.Appliance.Calls()
	if len(calls) != 1 || calls[0].Query != "limit=20" {
		t.Fatalf("unexpected calls %+v", calls)
	}
	if view.Count(controller.EventsSlot.Current(), view.KindEmpty) != 1 {
		t.Fatalf("no empty state for an empty log")
	}
}

func TestDisconnectedRendersTable(t *testing.T) {
	tc := dashboardtest.NewContext(t)
	tc.Appliance.Handle(http.MethodGet, "/api/network/disconnected", `{"success":true,"data":[{"mac":"aa","ip":"10.0.0.8","hostname":"phone","time_offline":7200}]}`)
	controller := New(tc.Context, catalog.New(tc.Context))

	devices, err := controller.Disconnected(context.Background())
	if err != nil || len(devices) != 1 {
		t.Fatalf("Disconnected=%v, %v", devices, err)
	}

	var out strings.Builder
	view.RenderText(&out, controller.DisconnectedSlot.Current())
	if !strings.Contains(out.String(), "2 h") {
		t.Fatalf("offline time missing from:\n%s", out.String())
	}
}
