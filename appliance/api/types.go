package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Timestamp is a point in time as reported by the appliance. The backend is not
// consistent: some endpoints send epoch seconds (int or float), others ISO 8601
// strings with or without a zone. The zero value means "absent".
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// EpochTimestamp converts fractional epoch seconds.
func EpochTimestamp(seconds float64) Timestamp {
	whole, frac := math.Modf(seconds)
	return Timestamp{Time: time.Unix(int64(whole), int64(frac*1e9))}
}

func (ts Timestamp) IsZero() bool {
	return ts.Time.IsZero()
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		ts.Time = time.Time{}
		return nil
	}

	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		return ts.parseString(raw)
	}

	seconds, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", string(data), err)
	}
	*ts = epochOrZero(seconds)
	return nil
}

func (ts *Timestamp) parseString(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		ts.Time = time.Time{}
		return nil
	}

	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		*ts = epochOrZero(seconds)
		return nil
	}

	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			ts.Time = t
			return nil
		}
	}

	return fmt.Errorf("invalid timestamp %q", raw)
}

func epochOrZero(seconds float64) Timestamp {
	if seconds <= 0 {
		return Timestamp{}
	}
	return EpochTimestamp(seconds)
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(ts.UnixNano()) / 1e9)
}

// DeviceType is the closed vocabulary of the device catalog.
type DeviceType string

const (
	DeviceTypeComputer DeviceType = "computer"
	DeviceTypeServer   DeviceType = "server"
	DeviceTypePhone    DeviceType = "phone"
	DeviceTypeTablet   DeviceType = "tablet"
	DeviceTypeIoT      DeviceType = "iot"
	DeviceTypeNetwork  DeviceType = "network"
	DeviceTypePrinter  DeviceType = "printer"
	DeviceTypeTV       DeviceType = "tv"
	DeviceTypeConsole  DeviceType = "console"
	DeviceTypeOther    DeviceType = "other"
)

var DeviceTypes = []DeviceType{
	DeviceTypeComputer,
	DeviceTypeServer,
	DeviceTypePhone,
	DeviceTypeTablet,
	DeviceTypeIoT,
	DeviceTypeNetwork,
	DeviceTypePrinter,
	DeviceTypeTV,
	DeviceTypeConsole,
	DeviceTypeOther,
}

func ParseDeviceType(value string) (DeviceType, bool) {
	for _, t := range DeviceTypes {
		if strings.EqualFold(string(t), value) {
			return t, true
		}
	}
	return DeviceTypeOther, false
}

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusUnknown = "unknown"
)

// Device is a registered entry of the appliance's device catalog.
type Device struct {
	ID          string     `json:"id,omitempty"`
	Name        string     `json:"name"`
	IP          string     `json:"ip"`
	VPNIP       string     `json:"vpn_ip,omitempty"`
	MAC         string     `json:"mac,omitempty"`
	Vendor      string     `json:"vendor,omitempty"`
	Type        DeviceType `json:"type,omitempty"`
	Status      string     `json:"status,omitempty"`
	LastSeen    Timestamp  `json:"last_seen"`
	WakeOnLAN   bool       `json:"wol_enabled"`
	VPN         bool       `json:"vpn"`
	Description string     `json:"description,omitempty"`
}

// Identity is the value used in /api/devices/{identity} paths.
func (d Device) Identity() string {
	if d.ID != "" {
		return d.ID
	}
	return d.IP
}

// DisplayStatus never guesses: a missing status is "unknown".
func (d Device) DisplayStatus() string {
	switch strings.ToLower(d.Status) {
	case StatusOnline:
		return StatusOnline
	case StatusOffline:
		return StatusOffline
	default:
		return StatusUnknown
	}
}

// DiscoveredHost is one host of a network scan response.
type DiscoveredHost struct {
	IP              string  `json:"ip"`
	Hostname        string  `json:"hostname,omitempty"`
	MAC             string  `json:"mac_address,omitempty"`
	Vendor          string  `json:"vendor,omitempty"`
	OSDetected      string  `json:"os_detected,omitempty"`
	OSConfidence    string  `json:"os_confidence,omitempty"`
	DeviceType      string  `json:"device_type,omitempty"`
	OpenPorts       []int   `json:"open_ports,omitempty"`
	PingMS          float64 `json:"ping_ms,omitempty"`
	DetectionMethod string  `json:"detection_method,omitempty"`
}

type ScanStatistics struct {
	TotalDevices int       `json:"total_devices"`
	Duration     float64   `json:"scan_duration"`
	Network      string    `json:"network,omitempty"`
	Timestamp    Timestamp `json:"timestamp"`
}

type ScanResult struct {
	Devices    []DiscoveredHost `json:"devices"`
	Statistics ScanStatistics   `json:"statistics"`
}

// FindHost looks a host up by IP.
func (r *ScanResult) FindHost(ip string) (DiscoveredHost, bool) {
	if r == nil {
		return DiscoveredHost{}, false
	}
	for _, host := range r.Devices {
		if host.IP == ip {
			return host, true
		}
	}
	return DiscoveredHost{}, false
}
