package metrics

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/dashboard/vpn"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveDevicesCountsByStatus(t *testing.T) {
	recorder := NewRecorder()
	recorder.ObserveDevices([]api.Device{
		{Name: "nas", IP: "10.0.0.2", Status: "online"},
		{Name: "tv", IP: "10.0.0.3", Status: "OFFLINE"},
		{Name: "plug", IP: "10.0.0.4"},
	})

	cases := map[string]float64{
		api.StatusOnline:  1,
		api.StatusOffline: 1,
		api.StatusUnknown: 1,
	}
	for status, want := range cases {
		if got := testutil.ToFloat64(recorder.devices.WithLabelValues(status)); got != want {
			t.Fatalf("devices{status=%q}=%v want %v", status, got, want)
		}
	}
	if got := testutil.ToFloat64(recorder.deviceUp.WithLabelValues("nas", "10.0.0.2")); got != 1 {
		t.Fatalf("nas up=%v want 1", got)
	}

	// A device that left the catalog disappears from the per-device gauge.
	recorder.ObserveDevices([]api.Device{{Name: "nas", IP: "10.0.0.2", Status: "online"}})
	if got := testutil.CollectAndCount(recorder.deviceUp); got != 1 {
		t.Fatalf("device_up series=%d want 1", got)
	}
}

func TestObserveVPN(t *testing.T) {
	recorder := NewRecorder()
	recorder.ObserveVPN(vpn.Summary{Total: 3, Online: 2, Offline: 1})

	if got := testutil.ToFloat64(recorder.vpnDevices.WithLabelValues("online")); got != 2 {
		t.Fatalf("online=%v want 2", got)
	}
	if got := testutil.ToFloat64(recorder.vpnDevices.WithLabelValues("offline")); got != 1 {
		t.Fatalf("offline=%v want 1", got)
	}
}

func TestPollCountsFailingSources(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/devices":
			io.WriteString(w, `{"success":true,"data":[{"name":"nas","ip":"10.0.0.2","status":"online"}]}`)
		case "/api/network/scan-stats":
			io.WriteString(w, `{"success":true,"data":{"total_scans":7,"unique_devices":12,"last_scan_device_count":9,"last_scan_timestamp":1700000000}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	recorder := NewRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := recorder.Poll(context.Background(), api.NewClient(server.URL), logger)
	if err == nil {
		t.Fatalf("expected the VPN failure to be returned")
	}

	if got := testutil.ToFloat64(recorder.scans); got != 7 {
		t.Fatalf("scans=%v want 7", got)
	}
	if got := testutil.ToFloat64(recorder.lastScanTime); got != 1700000000 {
		t.Fatalf("last scan=%v want 1700000000", got)
	}
	if got := testutil.ToFloat64(recorder.pollErrors.WithLabelValues("vpn")); got != 1 {
		t.Fatalf("vpn errors=%v want 1", got)
	}
	if got := testutil.ToFloat64(recorder.polls); got != 1 {
		t.Fatalf("polls=%v want 1", got)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	recorder := NewRecorder()
	recorder.ObservePoll()

	response := httptest.NewRecorder()
	recorder.Handler().ServeHTTP(response, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !strings.Contains(response.Body.String(), "home_network_polls_total 1") {
		t.Fatalf("metrics output lacks the poll counter:\n%s", response.Body.String())
	}
}
