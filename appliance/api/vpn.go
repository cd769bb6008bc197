package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	VPNConfigEndpoint   = "/api/tailscale/config"
	VPNDevicesEndpoint  = "/api/tailscale/devices"
	VPNRoutesEndpoint   = "/api/tailscale/routes"
	VPNACLEndpoint      = "/api/tailscale/acl"
	VPNAutoSyncEndpoint = "/api/tailscale/auto-sync"

	// VPNOnlineWindow is how recent a last-seen timestamp must be for a device that
	// reports no explicit state to count as online.
	VPNOnlineWindow = 5 * time.Minute
)

// VPNDevice is a device enrolled in the Tailscale network, as proxied by the
// appliance. Online, Connected and Status are each optional depending on the
// upstream API version.
type VPNDevice struct {
	ID         string    `json:"id"`
	Name       string    `json:"name,omitempty"`
	Hostname   string    `json:"hostname"`
	Addresses  []string  `json:"addresses"`
	OS         string    `json:"os,omitempty"`
	User       string    `json:"user,omitempty"`
	LastSeen   Timestamp `json:"lastSeen"`
	Authorized bool      `json:"authorized"`
	ExitNode   bool      `json:"isExitNode"`
	Online     *bool     `json:"online,omitempty"`
	Connected  *bool     `json:"connectedToControl,omitempty"`
	Status     string    `json:"status,omitempty"`
}

// IsOnline infers connectivity from whichever signal the upstream API provided.
func (device VPNDevice) IsOnline(now time.Time) bool {
	if device.Online != nil && *device.Online {
		return true
	}
	if device.Connected != nil && *device.Connected {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(device.Status)) {
	case "online", "active":
		return true
	}
	if !device.LastSeen.IsZero() && now.Sub(device.LastSeen.Time) <= VPNOnlineWindow {
		return true
	}
	return false
}

func (device VPNDevice) DisplayName() string {
	if device.Hostname != "" {
		return device.Hostname
	}
	if device.Name != "" {
		return device.Name
	}
	return device.ID
}

type VPNConfig struct {
	Configured bool   `json:"configured"`
	Tailnet    string `json:"tailnet,omitempty"`
	AutoSync   bool   `json:"auto_sync,omitempty"`
}

type VPNCredentials struct {
	APIKey  string `json:"api_key"`
	Tailnet string `json:"tailnet"`
}

type VPNRoute struct {
	ID         string   `json:"id,omitempty"`
	DeviceID   string   `json:"device_id,omitempty"`
	DeviceName string   `json:"device_name,omitempty"`
	Advertised []string `json:"advertised"`
	Enabled    []string `json:"enabled"`
}

func (client *Client) VPNConfig(ctx context.Context) (*VPNConfig, error) {
	config := &VPNConfig{}
	if err := client.call(ctx, VPNConfigEndpoint, RequestOptions{}, config); err != nil {
		return nil, err
	}
	return config, nil
}

func (client *Client) SaveVPNConfig(ctx context.Context, credentials VPNCredentials) error {
	return client.call(ctx, VPNConfigEndpoint, RequestOptions{Method: http.MethodPost, Body: credentials}, nil)
}

func (client *Client) VPNDevices(ctx context.Context) ([]VPNDevice, error) {
	var payload struct {
		Devices []VPNDevice `json:"devices"`
	}
	var raw json.RawMessage
	if err := client.call(ctx, VPNDevicesEndpoint, RequestOptions{}, &raw); err != nil {
		return nil, err
	}

	if err := unmarshalList(raw, &payload.Devices, &payload); err != nil {
		return nil, &TransportError{Endpoint: VPNDevicesEndpoint, Err: err}
	}
	if payload.Devices == nil {
		payload.Devices = []VPNDevice{}
	}
	return payload.Devices, nil
}

func (client *Client) VPNRoutes(ctx context.Context) ([]VPNRoute, error) {
	var payload struct {
		Routes []VPNRoute `json:"routes"`
	}
	var raw json.RawMessage
	if err := client.call(ctx, VPNRoutesEndpoint, RequestOptions{}, &raw); err != nil {
		return nil, err
	}

	if err := unmarshalList(raw, &payload.Routes, &payload); err != nil {
		return nil, &TransportError{Endpoint: VPNRoutesEndpoint, Err: err}
	}
	return payload.Routes, nil
}

// VPNACL returns the tailnet policy document as pretty-printed JSON.
func (client *Client) VPNACL(ctx context.Context) (string, error) {
	var raw json.RawMessage
	if err := client.call(ctx, VPNACLEndpoint, RequestOptions{}, &raw); err != nil {
		return "", err
	}

	var policy struct {
		ACL json.RawMessage `json:"acl"`
	}
	if err := json.Unmarshal(raw, &policy); err == nil && len(policy.ACL) > 0 {
		raw = policy.ACL
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &TransportError{Endpoint: VPNACLEndpoint, Err: err}
	}
	pretty, err := json.MarshalIndent(decoded, "", "  ")
	if err != nil {
		return "", err
	}
	return string(pretty), nil
}

func (client *Client) RenameVPNDevice(ctx context.Context, id, name string) error {
	return client.call(ctx, vpnDevicePath(id)+"/rename", RequestOptions{Method: http.MethodPost, Body: map[string]string{"name": name}}, nil)
}

func (client *Client) AuthorizeVPNDevice(ctx context.Context, id string) error {
	return client.call(ctx, vpnDevicePath(id)+"/authorize", RequestOptions{Method: http.MethodPost, Body: map[string]bool{"authorized": true}}, nil)
}

func (client *Client) DeleteVPNDevice(ctx context.Context, id string) error {
	return client.call(ctx, vpnDevicePath(id), RequestOptions{Method: http.MethodDelete}, nil)
}

// EnableVPNAutoSync asks the appliance to keep the VPN roster in sync on its own.
func (client *Client) EnableVPNAutoSync(ctx context.Context) error {
	return client.call(ctx, VPNAutoSyncEndpoint, RequestOptions{Method: http.MethodPost, Body: map[string]bool{"enabled": true}}, nil)
}

func vpnDevicePath(id string) string {
	return VPNDevicesEndpoint + "/" + url.PathEscape(id)
}

// unmarshalList decodes raw into list when it is a JSON array and into wrapper
// otherwise.
func unmarshalList(raw json.RawMessage, list any, wrapper any) error {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal(raw, list)
	}
	return json.Unmarshal(raw, wrapper)
}
