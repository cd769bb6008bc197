package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// envelope is the canonical response shape:
//
//	{"success": true, "message": "...", "error": "<kind>", "data": ...}
//
// Older appliance builds put the payload under other keys; legacyPayloadKeys lists
// them in lookup order.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`

	fields map[string]json.RawMessage
}

var legacyPayloadKeys = []string{"devices", "computers", "scan_results"}

func decodeEnvelope(data []byte) (*envelope, error) {
	env := &envelope{}
	if err := json.Unmarshal(data, &env.fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if err := json.Unmarshal(data, env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	if len(env.Data) == 0 || isNull(env.Data) {
		for _, key := range legacyPayloadKeys {
			if raw, ok := env.fields[key]; ok {
				env.Data = raw
				break
			}
		}
	}

	return env, nil
}

// ok treats a missing success flag as success when there is no error tag.
func (env *envelope) ok() bool {
	if env.Success != nil {
		return *env.Success
	}
	return env.Error == ""
}

// decode unmarshals the payload into out. When the envelope carries no payload key
// the whole object is the payload.
func (env *envelope) decode(out any) error {
	if len(env.Data) == 0 || isNull(env.Data) {
		whole, err := json.Marshal(env.fields)
		if err != nil {
			return err
		}
		return json.Unmarshal(whole, out)
	}
	return json.Unmarshal(env.Data, out)
}

func (env *envelope) field(key string) (json.RawMessage, bool) {
	raw, ok := env.fields[key]
	return raw, ok
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// normalizeDeviceList accepts the canonical array payload as well as an object that
// nests the array under "devices" or "computers".
func normalizeDeviceList(raw json.RawMessage) ([]Device, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return []Device{}, nil
	}

	if raw[0] == '[' {
		var devices []Device
		if err := json.Unmarshal(raw, &devices); err != nil {
			return nil, err
		}
		return devices, nil
	}

	var nested map[string]json.RawMessage
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, err
	}
	for _, key := range []string{"devices", "computers", "data"} {
		if inner, ok := nested[key]; ok {
			return normalizeDeviceList(inner)
		}
	}

	return []Device{}, nil
}

// normalizeScanResult accepts {"devices": [...], "statistics": {...}} directly or
// nested under "scan_results".
func normalizeScanResult(raw json.RawMessage) (*ScanResult, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		result := &ScanResult{}
		if err := json.Unmarshal(raw, &result.Devices); err != nil {
			return nil, err
		}
		result.Statistics.TotalDevices = len(result.Devices)
		return result, nil
	}

	var nested struct {
		ScanResults *ScanResult `json:"scan_results"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil && nested.ScanResults != nil {
		return nested.ScanResults, nil
	}

	var result ScanResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	if result.Devices == nil {
		result.Devices = []DiscoveredHost{}
	}
	return &result, nil
}
