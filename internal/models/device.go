package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/monorkin/home-network-monitor/appliance/api"
)

// Device is an entry of the sandbox appliance's device catalog.
type Device struct {
	gorm.Model
	PublicID    string `gorm:"uniqueIndex"`
	Name        string
	IPAddress   string `gorm:"column:ip_address;index"`
	VPNIP       string `gorm:"column:vpn_ip"`
	MACAddress  string `gorm:"column:mac_address"`
	Vendor      string
	DeviceType  string
	Status      string
	LastSeen    *time.Time
	WakeOnLAN   bool `gorm:"column:wake_on_lan"`
	VPN         bool `gorm:"column:vpn"`
	Description string
}

func (device Device) ToAPI() api.Device {
	converted := api.Device{
		ID:          device.PublicID,
		Name:        device.Name,
		IP:          device.IPAddress,
		VPNIP:       device.VPNIP,
		MAC:         device.MACAddress,
		Vendor:      device.Vendor,
		Type:        api.DeviceType(device.DeviceType),
		Status:      device.Status,
		WakeOnLAN:   device.WakeOnLAN,
		VPN:         device.VPN,
		Description: device.Description,
	}
	if device.LastSeen != nil {
		converted.LastSeen = api.NewTimestamp(*device.LastSeen)
	}
	return converted
}

// Assign copies the editable fields of submitted onto the device.
func (device *Device) Assign(submitted api.Device) {
	device.Name = submitted.Name
	device.IPAddress = submitted.IP
	device.VPNIP = submitted.VPNIP
	device.MACAddress = submitted.MAC
	device.Vendor = submitted.Vendor
	device.DeviceType = string(submitted.Type)
	device.WakeOnLAN = submitted.WakeOnLAN
	device.VPN = submitted.VPN
	device.Description = submitted.Description
}
