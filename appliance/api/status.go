package api

import "context"

const StatusEndpoint = "/api/status"

// SystemStatus describes the appliance software.
type SystemStatus struct {
	AppName string `json:"app_name"`
	Version string `json:"version"`
	Server  string `json:"server"`
	Debug   bool   `json:"debug"`
	Storage string `json:"storage,omitempty"`
}

func (client *Client) SystemStatus(ctx context.Context, useCache bool) (*SystemStatus, error) {
	status := &SystemStatus{}
	if err := client.call(ctx, StatusEndpoint, RequestOptions{UseCache: useCache}, status); err != nil {
		return nil, err
	}
	return status, nil
}
