package api

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestListDevicesResponseShapes(t *testing.T) {
	cases := map[string]int{
		`{"success":true,"data":[{"name":"NAS","ip":"10.0.0.2"}]}`:                              1,
		`{"success":true,"devices":[{"name":"NAS","ip":"10.0.0.2"},{"name":"TV","ip":"10.0.0.3"}]}`: 2,
		`{"success":true,"computers":[{"name":"PC","ip":"10.0.0.4"}]}`:                          1,
		`{"success":true,"data":{"devices":[{"name":"NAS","ip":"10.0.0.2"}]}}`:                  1,
		`{"success":true,"data":[]}`:                                                            0,
		`{"success":true}`:                                                                      0,
	}

	for body, want := range cases {
		server, _ := countingServer(t, body)
		devices, err := NewClient(server.URL).ListDevices(context.Background(), false)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", body, err)
		}
		if len(devices) != want {
			t.Fatalf("%s: got %d devices want %d", body, len(devices), want)
		}
	}
}

func TestScanResponseShapes(t *testing.T) {
	cases := map[string]int{
		`{"success":true,"scan_results":{"devices":[{"ip":"10.0.0.2"}],"statistics":{"total_devices":1}}}`: 1,
		`{"success":true,"data":{"devices":[{"ip":"10.0.0.2"},{"ip":"10.0.0.3"}]}}`:                         2,
		`{"success":true,"devices":[{"ip":"10.0.0.2"}]}`:                                                    1,
	}

	for body, want := range cases {
		server, _ := countingServer(t, body)
		result, err := NewClient(server.URL).Scan(context.Background())
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", body, err)
		}
		if len(result.Devices) != want {
			t.Fatalf("%s: got %d hosts want %d", body, len(result.Devices), want)
		}
	}
}

func TestLastScanAbsent(t *testing.T) {
	server, _ := countingServer(t, `{"success":true,"data":{"devices":[]}}`)
	result, err := NewClient(server.URL).LastScan(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Fatalf("expected no scan, got %+v", result)
	}
}

func TestTimestampUnmarshal(t *testing.T) {
	cases := map[string]int64{
		`1700000000`:             1700000000,
		`1700000000.75`:          1700000000,
		`"1700000000"`:           1700000000,
		`"2023-11-14T22:13:20Z"`: 1700000000,
		`null`:                   0,
		`""`:                     0,
		`0`:                      0,
	}

	for raw, want := range cases {
		var ts Timestamp
		if err := json.Unmarshal([]byte(raw), &ts); err != nil {
			t.Fatalf("Unmarshal(%s): %v", raw, err)
		}
		var got int64
		if !ts.IsZero() {
			got = ts.Unix()
		}
		if got != want {
			t.Fatalf("Unmarshal(%s)=%d want %d", raw, got, want)
		}
	}
}

func TestTimestampZoneless(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`"2024-03-01T10:30:00.123456"`), &ts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 3, 1, 10, 30, 0, 123456000, time.Local)
	if !ts.Equal(want) {
		t.Fatalf("got %v want %v", ts.Time, want)
	}
}

func TestDeviceDisplayStatus(t *testing.T) {
	cases := map[string]string{
		"online":  StatusOnline,
		"OFFLINE": StatusOffline,
		"":        StatusUnknown,
		"pending": StatusUnknown,
	}
	for status, want := range cases {
		if got := (Device{Status: status}).DisplayStatus(); got != want {
			t.Fatalf("DisplayStatus(%q)=%q want %q", status, got, want)
		}
	}
}

func TestVPNDeviceIsOnline(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	yes, no := true, false

	cases := map[string]struct {
		device VPNDevice
		want   bool
	}{
		"seen two minutes ago":  {VPNDevice{LastSeen: NewTimestamp(now.Add(-2 * time.Minute))}, true},
		"seen ten minutes ago":  {VPNDevice{LastSeen: NewTimestamp(now.Add(-10 * time.Minute))}, false},
		"explicit online":       {VPNDevice{Online: &yes}, true},
		"connected to control":  {VPNDevice{Connected: &yes}, true},
		"status active":         {VPNDevice{Status: "Active"}, true},
		"status online":         {VPNDevice{Status: "online"}, true},
		"explicit offline, old": {VPNDevice{Online: &no, LastSeen: NewTimestamp(now.Add(-time.Hour))}, false},
		"nothing known":         {VPNDevice{}, false},
	}

	for name, tc := range cases {
		if got := tc.device.IsOnline(now); got != tc.want {
			t.Fatalf("%s: IsOnline=%v want %v", name, got, tc.want)
		}
	}
}
