package api

import (
	"context"
	"fmt"
	"strings"
)

const (
	HistoryEndpoint = "/api/network/history"
	EventsEndpoint  = "/api/network/events"

	// NoMACPrefix marks history keys of hosts that never reported a MAC address.
	NoMACPrefix = "no_mac_"
)

func IsPlaceholderMAC(key string) bool {
	return strings.HasPrefix(key, NoMACPrefix)
}

// PlaceholderIP returns the IP a no-MAC history key was derived from.
func PlaceholderIP(key string) string {
	return strings.TrimPrefix(key, NoMACPrefix)
}

type HostSnapshot struct {
	IP         string `json:"ip"`
	Hostname   string `json:"hostname,omitempty"`
	Vendor     string `json:"vendor,omitempty"`
	DeviceType string `json:"device_type,omitempty"`
	MAC        string `json:"mac_address,omitempty"`
}

type Change struct {
	Old       string    `json:"old"`
	New       string    `json:"new"`
	Timestamp Timestamp `json:"timestamp"`
}

// HistoryRecord is the appliance's longitudinal record of one MAC address.
type HistoryRecord struct {
	Current         HostSnapshot `json:"current_data"`
	LastSeen        Timestamp    `json:"last_seen"`
	FirstSeen       Timestamp    `json:"first_seen"`
	ScanCount       int          `json:"scan_count"`
	IPHistory       []string     `json:"ip_history"`
	IPChanges       []Change     `json:"ip_changes"`
	HostnameChanges []Change     `json:"hostname_changes"`
	VendorChanges   []Change     `json:"vendor_changes"`
}

func (client *Client) DevicesByMAC(ctx context.Context) (map[string]HistoryRecord, error) {
	var payload struct {
		DevicesByMAC map[string]HistoryRecord `json:"devices_by_mac"`
	}
	if err := client.call(ctx, HistoryEndpoint, RequestOptions{}, &payload); err != nil {
		return nil, err
	}
	if payload.DevicesByMAC == nil {
		payload.DevicesByMAC = map[string]HistoryRecord{}
	}
	return payload.DevicesByMAC, nil
}

type EventCategory string

const (
	EventCategoryConnection EventCategory = "connection"
	EventCategoryIPChange   EventCategory = "ip_change"
	EventCategoryMACChange  EventCategory = "mac_change"
)

type ConnectionEventType string

const (
	ConnectionNewDevice     ConnectionEventType = "new_device"
	ConnectionReconnection  ConnectionEventType = "reconnection"
	ConnectionDisconnection ConnectionEventType = "disconnection"
)

// NetworkEvent is one entry of the appliance's event log. Category decides which of
// the fields are meaningful: Type and TimeOffline for connection events, OldIP/NewIP
// for IP changes, OldMAC/NewMAC for MAC changes.
type NetworkEvent struct {
	Category    EventCategory       `json:"-"`
	Type        ConnectionEventType `json:"type,omitempty"`
	IP          string              `json:"ip,omitempty"`
	OldIP       string              `json:"old_ip,omitempty"`
	NewIP       string              `json:"new_ip,omitempty"`
	MAC         string              `json:"mac,omitempty"`
	OldMAC      string              `json:"old_mac,omitempty"`
	NewMAC      string              `json:"new_mac,omitempty"`
	Hostname    string              `json:"hostname,omitempty"`
	Vendor      string              `json:"vendor,omitempty"`
	Timestamp   Timestamp           `json:"timestamp"`
	TimeOffline float64             `json:"time_offline,omitempty"`
}

// RecentEvents holds the three event lists exactly as the appliance returns them.
type RecentEvents struct {
	Connection []NetworkEvent `json:"connection_events"`
	IPChanges  []NetworkEvent `json:"ip_changes"`
	MACChanges []NetworkEvent `json:"mac_changes"`
}

// Tagged returns every event with its Category set.
func (events *RecentEvents) Tagged() []NetworkEvent {
	tagged := make([]NetworkEvent, 0, len(events.Connection)+len(events.IPChanges)+len(events.MACChanges))
	for _, event := range events.Connection {
		event.Category = EventCategoryConnection
		tagged = append(tagged, event)
	}
	for _, event := range events.IPChanges {
		event.Category = EventCategoryIPChange
		tagged = append(tagged, event)
	}
	for _, event := range events.MACChanges {
		event.Category = EventCategoryMACChange
		tagged = append(tagged, event)
	}
	return tagged
}

func (client *Client) RecentEvents(ctx context.Context, limit int) (*RecentEvents, error) {
	endpoint := EventsEndpoint
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", EventsEndpoint, limit)
	}

	events := &RecentEvents{}
	if err := client.call(ctx, endpoint, RequestOptions{}, events); err != nil {
		return nil, err
	}
	return events, nil
}
