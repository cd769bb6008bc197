package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	DevicesEndpoint = "/api/devices"
	wakeEndpoint    = "/api/devices/wol/"
)

type WakeResult struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

// ListDevices fetches the device catalog. With useCache the response may be up to one
// cache TTL old.
func (client *Client) ListDevices(ctx context.Context, useCache bool) ([]Device, error) {
	var raw json.RawMessage
	if err := client.call(ctx, DevicesEndpoint, RequestOptions{UseCache: useCache}, &raw); err != nil {
		return nil, err
	}

	devices, err := normalizeDeviceList(raw)
	if err != nil {
		return nil, &TransportError{Endpoint: DevicesEndpoint, Err: fmt.Errorf("failed to parse device list: %w", err)}
	}
	return devices, nil
}

func (client *Client) AddDevice(ctx context.Context, draft Device) (*Device, error) {
	var created Device
	err := client.call(ctx, DevicesEndpoint, RequestOptions{Method: http.MethodPost, Body: draft}, &created)
	if err != nil {
		return nil, err
	}
	client.Invalidate(DevicesEndpoint)
	return client.fillDevice(&created, draft), nil
}

// UpdateDevice sends the complete edited record.
func (client *Client) UpdateDevice(ctx context.Context, identity string, device Device) (*Device, error) {
	var updated Device
	err := client.call(ctx, devicePath(identity), RequestOptions{Method: http.MethodPut, Body: device}, &updated)
	if err != nil {
		return nil, err
	}
	client.Invalidate(DevicesEndpoint)
	return client.fillDevice(&updated, device), nil
}

func (client *Client) DeleteDevice(ctx context.Context, identity string) error {
	if err := client.call(ctx, devicePath(identity), RequestOptions{Method: http.MethodDelete}, nil); err != nil {
		return err
	}
	client.Invalidate(DevicesEndpoint)
	return nil
}

// WakeDevice asks the appliance to send a Wake-on-LAN packet. Acceptance only means
// the packet was dispatched.
func (client *Client) WakeDevice(ctx context.Context, mac string) (*WakeResult, error) {
	mac = strings.TrimSpace(mac)
	if mac == "" {
		return nil, &ValidationError{Field: "mac", Message: "a MAC address is required to wake a device"}
	}

	result := &WakeResult{}
	if err := client.call(ctx, wakeEndpoint+url.PathEscape(mac), RequestOptions{Method: http.MethodPost}, result); err != nil {
		return nil, err
	}
	result.Accepted = true
	return result, nil
}

// fillDevice falls back to the submitted record when the appliance only echoes an
// acknowledgement.
func (client *Client) fillDevice(returned *Device, submitted Device) *Device {
	if returned.IP == "" && returned.Name == "" {
		submitted.ID = returned.ID
		return &submitted
	}
	return returned
}

func devicePath(identity string) string {
	return DevicesEndpoint + "/" + url.PathEscape(identity)
}
