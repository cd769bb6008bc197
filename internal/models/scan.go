package models

import (
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/monorkin/home-network-monitor/appliance/api"
)

type Scan struct {
	gorm.Model
	Network   string
	Duration  float64
	ScannedAt time.Time `gorm:"index"`
	Hosts     []ScanHost
}

// ScanHost is one host as a single scan saw it.
type ScanHost struct {
	gorm.Model
	ScanID          uint   `gorm:"index"`
	IPAddress       string `gorm:"column:ip_address"`
	Hostname        string
	MACAddress      string `gorm:"column:mac_address"`
	Vendor          string
	OS              string `gorm:"column:os"`
	OSConfidence    string `gorm:"column:os_confidence"`
	DeviceType      string
	OpenPorts       string
	PingMS          float64 `gorm:"column:ping_ms"`
	DetectionMethod string
}

func ScanHostFromAPI(host api.DiscoveredHost) ScanHost {
	ports := make([]string, 0, len(host.OpenPorts))
	for _, port := range host.OpenPorts {
		ports = append(ports, strconv.Itoa(port))
	}
	return ScanHost{
		IPAddress:       host.IP,
		Hostname:        host.Hostname,
		MACAddress:      host.MAC,
		Vendor:          host.Vendor,
		OS:              host.OSDetected,
		OSConfidence:    host.OSConfidence,
		DeviceType:      host.DeviceType,
		OpenPorts:       strings.Join(ports, ","),
		PingMS:          host.PingMS,
		DetectionMethod: host.DetectionMethod,
	}
}

func (host ScanHost) ToAPI() api.DiscoveredHost {
	var ports []int
	for _, field := range strings.Split(host.OpenPorts, ",") {
		if port, err := strconv.Atoi(field); err == nil {
			ports = append(ports, port)
		}
	}
	return api.DiscoveredHost{
		IP:              host.IPAddress,
		Hostname:        host.Hostname,
		MAC:             host.MACAddress,
		Vendor:          host.Vendor,
		OSDetected:      host.OS,
		OSConfidence:    host.OSConfidence,
		DeviceType:      host.DeviceType,
		OpenPorts:       ports,
		PingMS:          host.PingMS,
		DetectionMethod: host.DetectionMethod,
	}
}

func (scan Scan) ToAPI() api.ScanResult {
	result := api.ScanResult{
		Devices: make([]api.DiscoveredHost, 0, len(scan.Hosts)),
		Statistics: api.ScanStatistics{
			TotalDevices: len(scan.Hosts),
			Duration:     scan.Duration,
			Network:      scan.Network,
			Timestamp:    api.NewTimestamp(scan.ScannedAt),
		},
	}
	for _, host := range scan.Hosts {
		result.Devices = append(result.Devices, host.ToAPI())
	}
	return result
}
