package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/dashboard"
	"github.com/monorkin/home-network-monitor/internal/dashboard/dashboardtest"
	"github.com/monorkin/home-network-monitor/internal/notify"
	"github.com/monorkin/home-network-monitor/internal/view"
)

// registry is a minimal in-memory /api/devices backend.
type registry struct {
	mutex   sync.Mutex
	devices []map[string]any
}

func (r *registry) install(appliance *dashboardtest.Appliance) {
	appliance.HandleFunc(http.MethodGet, "/api/devices", func(w http.ResponseWriter, req *http.Request) {
		r.mutex.Lock()
		defer r.mutex.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": r.devices})
	})
	appliance.HandleFunc(http.MethodPost, "/api/devices", func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		var device map[string]any
		json.Unmarshal(body, &device)

		r.mutex.Lock()
		defer r.mutex.Unlock()
		for _, existing := range r.devices {
			if existing["ip"] == device["ip"] {
				io.WriteString(w, `{"success":false,"message":"Un appareil avec cette IP existe déjà"}`)
				return
			}
		}
		device["id"] = "dev-1"
		delete(device, "status")
		r.devices = append(r.devices, device)
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": device})
	})
}

func TestAddThenListRoundTrip(t *testing.T) {
	tc := dashboardtest.NewContext(t)
	backend := &registry{}
	backend.install(tc.Appliance)

	v := New(tc.Context)
	if _, err := v.List(context.Background(), false); err != nil {
		t.Fatalf("List: %v", err)
	}

	created, err := v.Add(context.Background(), api.Device{Name: "NAS", IP: "10.0.0.2", MAC: "aa:bb:cc:dd:ee:ff", Type: api.DeviceTypeServer})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if created.ID != "dev-1" {
		t.Fatalf("created id=%q", created.ID)
	}

	devices := v.Devices()
	if len(devices) != 1 {
		t.Fatalf("got %d devices after add want 1", len(devices))
	}
	device := devices[0]
	if device.Name != "NAS" || device.IP != "10.0.0.2" || device.Type != api.DeviceTypeServer {
		t.Fatalf("unexpected device %+v", device)
	}
	if device.DisplayStatus() != api.StatusUnknown {
		t.Fatalf("status=%q want unknown", device.DisplayStatus())
	}
	if got := tc.Appliance.Count(http.MethodGet, "/api/devices"); got != 2 {
		t.Fatalf("list requests=%d want 2, the add must invalidate the cache", got)
	}

	row := view.Find(v.Slot.Current(), "device:dev-1")
	if row == nil {
		t.Fatalf("no row rendered for the new device")
	}
	if row.Children[0].Text != api.StatusUnknown || row.Children[0].Class != view.ClassUnknown {
		t.Fatalf("unexpected status badge %+v", row.Children[0])
	}
	if view.FindAction(row, "wake:dev-1") == nil {
		t.Fatalf("device with a MAC has no wake action")
	}
}

func TestAddNotifiesApplicationMessageVerbatim(t *testing.T) {
	tc := dashboardtest.NewContext(t)
	backend := &registry{devices: []map[string]any{{"id": "dev-0", "name": "NAS", "ip": "10.0.0.2"}}}
	backend.install(tc.Appliance)

	v := New(tc.Context)
	_, err := v.Add(context.Background(), api.Device{Name: "Other", IP: "10.0.0.2"})

	var appErr *api.ApplicationError
	if !errors.As(err, &appErr) {
		t.Fatalf("err=%v want ApplicationError", err)
	}
	last, _ := tc.Notifier.Last()
	if last.Level != notify.LevelError || last.Message != "Un appareil avec cette IP existe déjà" {
		t.Fatalf("unexpected notification %+v", last)
	}
}

func TestAddRequiresNameAndIP(t *testing.T) {
	tc := dashboardtest.NewContext(t)
	v := New(tc.Context)

	drafts := map[string]api.Device{
		"name": {IP: "10.0.0.9"},
		"ip":   {Name: "Printer", IP: "  "},
	}
	for field, draft := range drafts {
		_, err := v.Add(context.Background(), draft)
		var validation *api.ValidationError
		if !errors.As(err, &validation) || validation.Field != field {
			t.Fatalf("Add(%+v) err=%v want validation of %s", draft, err, field)
		}
	}
	if calls := tc.Appliance.Calls(); len(calls) != 0 {
		t.Fatalf("requests sent for invalid drafts: %v", calls)
	}
}

func TestRemoveWithoutConfirmationSendsNothing(t *testing.T) {
	tc := dashboardtest.NewContext(t)
	tc.Appliance.Handle(http.MethodGet, "/api/devices", `{"success":true,"data":[{"id":"dev-1","name":"NAS","ip":"10.0.0.2"}]}`)
	tc.Appliance.Handle(http.MethodDelete, "/api/devices/dev-1", `{"success":true}`)
	tc.Confirmer.Answer = false

	v := New(tc.Context)
	v.List(context.Background(), false)

	removed, err := v.Remove(context.Background(), "dev-1")
	if err != nil || removed {
		t.Fatalf("Remove=%v, %v want false, nil", removed, err)
	}
	if len(tc.Confirmer.Asked) != 1 {
		t.Fatalf("confirmations asked=%d want 1", len(tc.Confirmer.Asked))
	}
	if got := tc.Appliance.Count(http.MethodDelete, "/api/devices/dev-1"); got != 0 {
		t.Fatalf("DELETE requests=%d want 0", got)
	}
	if len(v.Devices()) != 1 {
		t.Fatalf("device dropped without confirmation")
	}
}

func TestRemoveConfirmedDropsLocally(t *testing.T) {
	tc := dashboardtest.NewContext(t)
	tc.Appliance.Handle(http.MethodGet, "/api/devices", `{"success":true,"data":[{"id":"dev-1","name":"NAS","ip":"10.0.0.2"},{"name":"TV","ip":"10.0.0.3"}]}`)
	tc.Appliance.Handle(http.MethodDelete, "/api/devices/dev-1", `{"success":true}`)
	tc.Confirmer.Answer = true

	v := New(tc.Context)
	v.List(context.Background(), false)

	removed, err := v.Remove(context.Background(), "dev-1")
	if err != nil || !removed {
		t.Fatalf("Remove=%v, %v want true, nil", removed, err)
	}
	if got := tc.Appliance.Count(http.MethodGet, "/api/devices"); got != 1 {
		t.Fatalf("list requests=%d want 1, removal must not reload", got)
	}
	devices := v.Devices()
	if len(devices) != 1 || devices[0].Identity() != "10.0.0.3" {
		t.Fatalf("unexpected devices after removal %+v", devices)
	}
	if view.Find(v.Slot.Current(), "device:dev-1") != nil {
		t.Fatalf("removed device still rendered")
	}
}

func TestWakeWithoutMAC(t *testing.T) {
	tc := dashboardtest.NewContext(t)
	v := New(tc.Context)

	_, err := v.Wake(context.Background(), "")
	var validation *api.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("err=%v want ValidationError", err)
	}
	if calls := tc.Appliance.Calls(); len(calls) != 0 {
		t.Fatalf("requests sent: %v", calls)
	}
}

func TestWakeReportsSignalSent(t *testing.T) {
	tc := dashboardtest.NewContext(t)
	tc.Appliance.Handle(http.MethodPost, "/api/devices/wol/aa:bb:cc:dd:ee:ff", `{"success":true}`)
	v := New(tc.Context)

	result, err := v.Wake(context.Background(), "aa:bb:cc:dd:ee:ff")
	if err != nil || !result.Accepted {
		t.Fatalf("Wake=%+v, %v", result, err)
	}
	last, _ := tc.Notifier.Last()
	if last.Level != notify.LevelSuccess || last.Message != "Wake-on-LAN signal sent to aa:bb:cc:dd:ee:ff" {
		t.Fatalf("unexpected notification %+v", last)
	}
}

type recordingNavigator struct {
	tabs []dashboard.Tab
}

func (n *recordingNavigator) SwitchTab(ctx context.Context, tab dashboard.Tab) error {
	n.tabs = append(n.tabs, tab)
	return nil
}

func TestEmptyCatalogOffersScan(t *testing.T) {
	tc := dashboardtest.NewContext(t)
	tc.Appliance.Handle(http.MethodGet, "/api/devices", `{"success":true,"data":[]}`)
	navigator := &recordingNavigator{}
	tc.SetNavigator(navigator)

	v := New(tc.Context)
	v.List(context.Background(), false)

	node := v.Slot.Current()
	if node.Kind != view.KindEmpty {
		t.Fatalf("kind=%q want empty state", node.Kind)
	}
	action := view.FindAction(node, "catalog:scan")
	if action == nil {
		t.Fatalf("empty state has no scan action")
	}
	action.Run(context.Background())
	if len(navigator.tabs) != 1 || navigator.tabs[0] != dashboard.TabNetwork {
		t.Fatalf("navigated to %v want [network]", navigator.tabs)
	}
}
