package models

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/monorkin/home-network-monitor/appliance/api"
)

const (
	ChangeFieldIP       = "ip"
	ChangeFieldHostname = "hostname"
	ChangeFieldVendor   = "vendor"
)

// Host is the longitudinal record of one MAC address, or of one IP for hosts that
// never reported a MAC.
type Host struct {
	gorm.Model
	Key        string `gorm:"column:history_key;uniqueIndex"`
	MACAddress string `gorm:"column:mac_address"`
	IPAddress  string `gorm:"column:ip_address;index"`
	Hostname   string
	Vendor     string
	DeviceType string
	OS         string `gorm:"column:os"`
	FirstSeen  time.Time
	LastSeen   time.Time
	ScanCount  int
	IPHistory  string `gorm:"column:ip_history"`
	Present    bool
	Changes    []HostChange
}

type HostChange struct {
	gorm.Model
	HostID    uint `gorm:"index"`
	Field     string
	OldValue  string
	NewValue  string
	ChangedAt time.Time
}

func (host Host) IPs() []string {
	if host.IPHistory == "" {
		return []string{}
	}
	return strings.Split(host.IPHistory, ",")
}

// AddIP appends ip to the IP history once.
func (host *Host) AddIP(ip string) {
	for _, known := range host.IPs() {
		if known == ip {
			return
		}
	}
	if host.IPHistory == "" {
		host.IPHistory = ip
		return
	}
	host.IPHistory += "," + ip
}

func (host Host) Snapshot() api.HostSnapshot {
	return api.HostSnapshot{
		IP:         host.IPAddress,
		Hostname:   host.Hostname,
		Vendor:     host.Vendor,
		DeviceType: host.DeviceType,
		MAC:        host.MACAddress,
	}
}

func (host Host) ToAPI() api.HistoryRecord {
	record := api.HistoryRecord{
		Current:         host.Snapshot(),
		LastSeen:        api.NewTimestamp(host.LastSeen),
		FirstSeen:       api.NewTimestamp(host.FirstSeen),
		ScanCount:       host.ScanCount,
		IPHistory:       host.IPs(),
		IPChanges:       []api.Change{},
		HostnameChanges: []api.Change{},
		VendorChanges:   []api.Change{},
	}

	for _, change := range host.Changes {
		converted := api.Change{Old: change.OldValue, New: change.NewValue, Timestamp: api.NewTimestamp(change.ChangedAt)}
		switch change.Field {
		case ChangeFieldIP:
			record.IPChanges = append(record.IPChanges, converted)
		case ChangeFieldHostname:
			record.HostnameChanges = append(record.HostnameChanges, converted)
		case ChangeFieldVendor:
			record.VendorChanges = append(record.VendorChanges, converted)
		}
	}

	return record
}
