package sandbox

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/models"
)

// Scanner produces the hosts one scan finds.
type Scanner interface {
	Scan(ctx context.Context) ([]api.DiscoveredHost, error)
}

type ScannerFunc func(ctx context.Context) ([]api.DiscoveredHost, error)

func (fn ScannerFunc) Scan(ctx context.Context) ([]api.DiscoveredHost, error) {
	return fn(ctx)
}

// Roster is a fixed set of hosts that every scan finds.
type Roster []api.DiscoveredHost

func (roster Roster) Scan(ctx context.Context) ([]api.DiscoveredHost, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]api.DiscoveredHost(nil), roster...), nil
}

// DefaultRoster is a plausible home network with one host of each category.
func DefaultRoster() Roster {
	return Roster{
		{IP: "192.168.1.1", Hostname: "freebox.lan", MAC: "f4:ca:e5:00:00:01", Vendor: "Freebox SAS", DeviceType: "Routeur", OpenPorts: []int{53, 80, 443}, PingMS: 0.8, DetectionMethod: "arp"},
		{IP: "192.168.1.10", Hostname: "nas.lan", MAC: "00:11:32:00:00:10", Vendor: "Synology", OSDetected: "Linux 5.10", OSConfidence: "high", DeviceType: "Serveur NAS", OpenPorts: []int{22, 80, 443, 5000}, PingMS: 1.2, DetectionMethod: "nmap"},
		{IP: "192.168.1.21", Hostname: "workstation.lan", MAC: "3c:7c:3f:00:00:21", Vendor: "ASUSTek", OSDetected: "Windows 11", OSConfidence: "medium", DeviceType: "PC Windows", OpenPorts: []int{135, 445, 3389}, PingMS: 0.9, DetectionMethod: "nmap"},
		{IP: "192.168.1.32", Hostname: "iphone.lan", MAC: "a4:83:e7:00:00:32", Vendor: "Apple", OSDetected: "iOS", DeviceType: "iPhone", PingMS: 24.5, DetectionMethod: "mdns"},
		{IP: "192.168.1.40", Hostname: "N/A", MAC: "24:0a:c4:00:00:40", Vendor: "Espressif Inc.", DeviceType: "smart plug", OpenPorts: []int{80}, PingMS: 8.1, DetectionMethod: "arp"},
		{IP: "192.168.1.41", Hostname: "dyson.lan", MAC: "c8:ff:77:00:00:41", Vendor: "Dyson", DeviceType: "IoT", PingMS: 12.3, DetectionMethod: "arp"},
		{IP: "192.168.1.50", Hostname: "printer.lan", MAC: "3c:2a:f4:00:00:50", Vendor: "Brother", DeviceType: "Imprimante", OpenPorts: []int{631, 9100}, PingMS: 3.4, DetectionMethod: "nmap"},
		{IP: "192.168.1.77", Vendor: "Unknown", PingMS: 40.2, DetectionMethod: "ping"},
	}
}

// Seed fills an empty sandbox with a small catalog and tailnet.
func Seed(db *gorm.DB, now time.Time) error {
	var count int64
	if err := db.Model(&models.Device{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	devices := []models.Device{
		{Name: "Freebox", IPAddress: "192.168.1.1", MACAddress: "f4:ca:e5:00:00:01", Vendor: "Freebox SAS", DeviceType: string(api.DeviceTypeNetwork)},
		{Name: "NAS", IPAddress: "192.168.1.10", VPNIP: "100.64.0.10", MACAddress: "00:11:32:00:00:10", Vendor: "Synology", DeviceType: string(api.DeviceTypeServer), WakeOnLAN: true, VPN: true, Description: "Backups and media"},
		{Name: "Workstation", IPAddress: "192.168.1.21", MACAddress: "3c:7c:3f:00:00:21", Vendor: "ASUSTek", DeviceType: string(api.DeviceTypeComputer), WakeOnLAN: true},
	}
	nodes := []models.VPNNode{
		{Hostname: "nas", Addresses: "100.64.0.10,fd7a:115c:a1e0::a", OS: "linux", User: "admin@example.com", LastSeen: now, Authorized: true, AdvertisedRoutes: "192.168.1.0/24", EnabledRoutes: "192.168.1.0/24"},
		{Hostname: "laptop", Addresses: "100.64.0.11,fd7a:115c:a1e0::b", OS: "macOS", User: "admin@example.com", LastSeen: now.Add(-2 * time.Minute), Authorized: true},
		{Hostname: "old-phone", Addresses: "100.64.0.12", OS: "android", User: "guest@example.com", LastSeen: now.Add(-72 * time.Hour), Authorized: false},
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for i := range devices {
			devices[i].PublicID = uuid.New().String()
			if err := tx.Create(&devices[i]).Error; err != nil {
				return err
			}
		}
		for i := range nodes {
			nodes[i].PublicID = newNodeID()
			if err := tx.Create(&nodes[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// newNodeID mimics the short numeric-looking ids of the Tailscale API.
func newNodeID() string {
	return "n" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}
