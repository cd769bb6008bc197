package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/monorkin/home-network-monitor/appliance/api"
)

type NetworkEvent struct {
	gorm.Model
	Category    string `gorm:"index"`
	Type        string
	IPAddress   string `gorm:"column:ip_address"`
	OldIP       string `gorm:"column:old_ip"`
	NewIP       string `gorm:"column:new_ip"`
	MACAddress  string `gorm:"column:mac_address"`
	OldMAC      string `gorm:"column:old_mac"`
	NewMAC      string `gorm:"column:new_mac"`
	Hostname    string
	Vendor      string
	TimeOffline float64
	OccurredAt  time.Time `gorm:"index"`
}

func (event NetworkEvent) ToAPI() api.NetworkEvent {
	return api.NetworkEvent{
		Category:    api.EventCategory(event.Category),
		Type:        api.ConnectionEventType(event.Type),
		IP:          event.IPAddress,
		OldIP:       event.OldIP,
		NewIP:       event.NewIP,
		MAC:         event.MACAddress,
		OldMAC:      event.OldMAC,
		NewMAC:      event.NewMAC,
		Hostname:    event.Hostname,
		Vendor:      event.Vendor,
		Timestamp:   api.NewTimestamp(event.OccurredAt),
		TimeOffline: event.TimeOffline,
	}
}
