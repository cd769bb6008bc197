package models

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/monorkin/home-network-monitor/appliance/api"
)

// VPNNode is a tailnet device as the sandbox's simulated Tailscale API reports it.
type VPNNode struct {
	gorm.Model
	PublicID         string `gorm:"uniqueIndex"`
	Hostname         string
	Name             string
	Addresses        string
	OS               string `gorm:"column:os"`
	User             string
	LastSeen         time.Time
	Authorized       bool
	ExitNode         bool
	AdvertisedRoutes string
	EnabledRoutes    string
}

func (VPNNode) TableName() string {
	return "vpn_nodes"
}

func (node VPNNode) ToAPI() api.VPNDevice {
	return api.VPNDevice{
		ID:         node.PublicID,
		Name:       node.Name,
		Hostname:   node.Hostname,
		Addresses:  splitList(node.Addresses),
		OS:         node.OS,
		User:       node.User,
		LastSeen:   api.NewTimestamp(node.LastSeen),
		Authorized: node.Authorized,
		ExitNode:   node.ExitNode,
	}
}

func (node VPNNode) Route() api.VPNRoute {
	return api.VPNRoute{
		ID:         node.PublicID,
		DeviceID:   node.PublicID,
		DeviceName: node.Hostname,
		Advertised: splitList(node.AdvertisedRoutes),
		Enabled:    splitList(node.EnabledRoutes),
	}
}

// Setting is a key/value pair of sandbox state, such as the Tailscale credential.
type Setting struct {
	Name      string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

func splitList(value string) []string {
	if value == "" {
		return []string{}
	}
	return strings.Split(value, ",")
}
