package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

const (
	ScanEndpoint         = "/api/network/scan"
	LastScanEndpoint     = "/api/network/last-scan"
	ScanStatsEndpoint    = "/api/network/scan-stats"
	DisconnectedEndpoint = "/api/network/disconnected"
)

type ScanStats struct {
	TotalScans    int       `json:"total_scans"`
	UniqueDevices int       `json:"unique_devices"`
	LastScanAt    Timestamp `json:"last_scan_timestamp"`
	LastScanCount int       `json:"last_scan_device_count"`
	HasData       bool      `json:"has_data"`
}

type DisconnectedDevice struct {
	MAC         string    `json:"mac"`
	IP          string    `json:"ip"`
	Hostname    string    `json:"hostname,omitempty"`
	Vendor      string    `json:"vendor,omitempty"`
	LastSeen    Timestamp `json:"last_seen"`
	TimeOffline float64   `json:"time_offline"`
}

// Scan runs a synchronous network scan on the appliance. It blocks until the
// appliance answers; there is no client-side deadline.
func (client *Client) Scan(ctx context.Context) (*ScanResult, error) {
	return client.scanResult(ctx, ScanEndpoint)
}

// LastScan fetches the most recent scan snapshot the appliance kept. A nil result with
// a nil error means no scan has been recorded yet.
func (client *Client) LastScan(ctx context.Context) (*ScanResult, error) {
	result, err := client.scanResult(ctx, LastScanEndpoint)
	if err != nil {
		return nil, err
	}
	if len(result.Devices) == 0 && result.Statistics.Timestamp.IsZero() {
		return nil, nil
	}
	return result, nil
}

func (client *Client) scanResult(ctx context.Context, endpoint string) (*ScanResult, error) {
	var raw json.RawMessage
	if err := client.call(ctx, endpoint, RequestOptions{}, &raw); err != nil {
		return nil, err
	}

	result, err := normalizeScanResult(raw)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("failed to parse scan result: %w", err)}
	}
	return result, nil
}

func (client *Client) ScanStats(ctx context.Context) (*ScanStats, error) {
	stats := &ScanStats{}
	if err := client.call(ctx, ScanStatsEndpoint, RequestOptions{UseCache: true}, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (client *Client) DisconnectedDevices(ctx context.Context) ([]DisconnectedDevice, error) {
	var payload struct {
		Devices []DisconnectedDevice `json:"devices"`
	}
	var raw json.RawMessage
	if err := client.call(ctx, DisconnectedEndpoint, RequestOptions{}, &raw); err != nil {
		return nil, err
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &payload.Devices); err != nil {
			return nil, &TransportError{Endpoint: DisconnectedEndpoint, Err: err}
		}
	} else if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &TransportError{Endpoint: DisconnectedEndpoint, Err: err}
	}

	if payload.Devices == nil {
		payload.Devices = []DisconnectedDevice{}
	}
	return payload.Devices, nil
}
