package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/config"
	"github.com/monorkin/home-network-monitor/internal/database"
	"github.com/monorkin/home-network-monitor/internal/sandbox"
)

// newSandbox serves a seeded in-memory sandbox and isolates the settings file.
func newSandbox(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv(config.URL_ENV, "")

	db, err := database.Open(config.MEMORY_DB_PATH)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := sandbox.Seed(db, time.Now()); err != nil {
		t.Fatalf("failed to seed: %v", err)
	}

	server := httptest.NewServer(sandbox.New(db).Handler())
	t.Cleanup(server.Close)
	return server.URL
}

// run executes the command tree against url and returns stdout and stderr.
func run(t *testing.T, url, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	cmd := NewRootCommand()
	cmd.SetArgs(append([]string{"--url", url}, args...))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestDeviceList(t *testing.T) {
	url := newSandbox(t)

	out, _, err := run(t, url, "", "device", "list")
	if err != nil {
		t.Fatalf("device list failed: %v", err)
	}
	for _, name := range []string{"Freebox", "NAS", "Workstation"} {
		if !strings.Contains(out, name) {
			t.Errorf("output is missing %s:\n%s", name, out)
		}
	}
}

func TestDeviceAddThenListAsJSON(t *testing.T) {
	url := newSandbox(t)

	if _, _, err := run(t, url, "", "device", "add", "--name", "Printer", "--ip", "192.168.1.50", "--type", "printer"); err != nil {
		t.Fatalf("device add failed: %v", err)
	}

	out, _, err := run(t, url, "", "--json", "device", "list")
	if err != nil {
		t.Fatalf("device list failed: %v", err)
	}

	var devices []api.Device
	if err := json.Unmarshal([]byte(out), &devices); err != nil {
		t.Fatalf("output is not a device list: %v\n%s", err, out)
	}
	if len(devices) != 4 {
		t.Fatalf("got %d devices, want 4", len(devices))
	}

	found := false
	for _, device := range devices {
		if device.Name == "Printer" {
			found = true
			if device.Type != api.DeviceTypePrinter {
				t.Errorf("type=%q want %q", device.Type, api.DeviceTypePrinter)
			}
		}
	}
	if !found {
		t.Errorf("Printer is not listed")
	}
}

func TestDeviceAddRejectsUnknownType(t *testing.T) {
	url := newSandbox(t)

	_, _, err := run(t, url, "", "device", "add", "--name", "Toaster", "--ip", "192.168.1.60", "--type", "toaster")
	if err == nil {
		t.Fatal("expected an error for an unknown device type")
	}
	if !strings.Contains(err.Error(), "toaster") {
		t.Errorf("error does not name the type: %v", err)
	}
}

func TestDeviceRemoveAsksForConfirmation(t *testing.T) {
	url := newSandbox(t)

	out, stderr, err := run(t, url, "n\n", "device", "remove", "192.168.1.21")
	if err != nil {
		t.Fatalf("device remove failed: %v", err)
	}
	if !strings.Contains(out, "Cancelled") {
		t.Errorf("expected a cancellation, got:\n%s", out)
	}
	if !strings.Contains(stderr, "[y/N]") {
		t.Errorf("no prompt was shown:\n%s", stderr)
	}

	out, _, err = run(t, url, "", "--yes", "device", "remove", "192.168.1.21")
	if err != nil {
		t.Fatalf("device remove --yes failed: %v", err)
	}
	if !strings.Contains(out, "Removed Workstation") {
		t.Errorf("unexpected output:\n%s", out)
	}

	out, _, err = run(t, url, "", "--json", "device", "list")
	if err != nil {
		t.Fatalf("device list failed: %v", err)
	}
	if strings.Contains(out, "Workstation") {
		t.Errorf("Workstation is still listed:\n%s", out)
	}
}

func TestDeviceUpdateOnlyChangesGivenFlags(t *testing.T) {
	url := newSandbox(t)

	out, _, err := run(t, url, "", "--json", "device", "update", "192.168.1.10", "--description", "Media only")
	if err != nil {
		t.Fatalf("device update failed: %v", err)
	}

	var device api.Device
	if err := json.Unmarshal([]byte(out), &device); err != nil {
		t.Fatalf("output is not a device: %v\n%s", err, out)
	}
	if device.Description != "Media only" {
		t.Errorf("description=%q", device.Description)
	}
	if device.Name != "NAS" || !device.WakeOnLAN {
		t.Errorf("unchanged fields were modified: %+v", device)
	}
}

func TestHistoryEventsRejectsNonPositiveLimit(t *testing.T) {
	url := newSandbox(t)

	if _, _, err := run(t, url, "", "history", "events", "--limit", "0"); err == nil {
		t.Fatal("expected an error for --limit 0")
	}
}

func TestVPNStatusWithoutKey(t *testing.T) {
	url := newSandbox(t)

	out, _, err := run(t, url, "", "vpn", "status")
	if err != nil {
		t.Fatalf("vpn status should report a missing key in its output, got %v", err)
	}
	if out == "" {
		t.Fatal("vpn status printed nothing")
	}
}

func TestVPNConfigureReadsKeyFromStdin(t *testing.T) {
	url := newSandbox(t)

	if _, _, err := run(t, url, "tskey-api-test\n", "vpn", "configure", "--tailnet", "example.com"); err != nil {
		t.Fatalf("vpn configure failed: %v", err)
	}

	out, _, err := run(t, url, "", "--json", "vpn", "devices")
	if err != nil {
		t.Fatalf("vpn devices failed: %v", err)
	}
	for _, hostname := range []string{"nas", "laptop", "old-phone"} {
		if !strings.Contains(out, hostname) {
			t.Errorf("output is missing %s:\n%s", hostname, out)
		}
	}
}

func TestJSONAndHTMLAreExclusive(t *testing.T) {
	url := newSandbox(t)

	if _, _, err := run(t, url, "", "--json", "--html", "device", "list"); err == nil {
		t.Fatal("expected --json and --html to be rejected together")
	}
}

func TestStatusTracker(t *testing.T) {
	tracker := newStatusTracker()
	nas := api.Device{ID: "nas", Name: "NAS", IP: "192.168.1.10", Status: api.StatusOnline}
	printer := api.Device{ID: "printer", Name: "Printer", IP: "192.168.1.50", Status: api.StatusUnknown}

	if transitions := tracker.Update([]api.Device{nas, printer}); len(transitions) != 0 {
		t.Fatalf("first sighting produced transitions: %v", transitions)
	}

	nas.Status = api.StatusOffline
	printer.Status = api.StatusOnline
	transitions := tracker.Update([]api.Device{nas, printer})
	if len(transitions) != 1 {
		t.Fatalf("got %d transitions, want 1: %v", len(transitions), transitions)
	}
	if got, want := transitions[0].String(), "NAS (192.168.1.10) is now offline"; got != want {
		t.Errorf("transition=%q want %q", got, want)
	}

	// A device that disappears and comes back is seen for the first time again.
	tracker.Update([]api.Device{printer})
	nas.Status = api.StatusOnline
	if transitions := tracker.Update([]api.Device{nas, printer}); len(transitions) != 0 {
		t.Errorf("returning device produced transitions: %v", transitions)
	}
}

func TestStatusTrackerOrdersByIP(t *testing.T) {
	tracker := newStatusTracker()
	devices := []api.Device{
		{ID: "b", Name: "B", IP: "192.168.1.100", Status: api.StatusOnline},
		{ID: "a", Name: "A", IP: "192.168.1.9", Status: api.StatusOnline},
	}
	tracker.Update(devices)

	devices[0].Status = api.StatusOffline
	devices[1].Status = api.StatusOffline
	transitions := tracker.Update(devices)
	if len(transitions) != 2 {
		t.Fatalf("got %d transitions, want 2", len(transitions))
	}
	if transitions[0].IP != "192.168.1.9" {
		t.Errorf("transitions are not in IP order: %v", transitions)
	}
}

func TestSummarizeDevices(t *testing.T) {
	devices := []api.Device{
		{Status: api.StatusOnline},
		{Status: api.StatusOffline},
		{Status: api.StatusOnline},
		{},
	}
	if got, want := summarizeDevices(devices), "4 devices, 2 online, 1 offline"; got != want {
		t.Errorf("summary=%q want %q", got, want)
	}
}
