package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/monorkin/home-network-monitor/appliance/api"
)

const (
	URL_ENV = "HOME_NETWORK_MONITOR_URL"

	DEFAULT_SANDBOX_LISTEN = "127.0.0.1:8333"
)

type Settings struct {
	ApplianceURL            string `json:"appliance_url"`
	CacheTTLSeconds         int    `json:"cache_ttl_seconds"`
	DesktopNotifications    bool   `json:"desktop_notifications"`
	DiscoveryHostnamePrefix string `json:"discovery_hostname_prefix"`
	SandboxListen           string `json:"sandbox_listen"`
}

func DefaultSettings() *Settings {
	return &Settings{
		CacheTTLSeconds:         int(api.DefaultCacheTTL / time.Second),
		DesktopNotifications:    true,
		DiscoveryHostnamePrefix: api.APPLIANCE_HOSTNAME_PREFIX,
		SandboxListen:           DEFAULT_SANDBOX_LISTEN,
	}
}

func DefaultSettingsPath() string {
	return filepath.Join(ConfigDir(), "settings.json")
}

func LoadOrInitializeSettingsFromDefaultLocation() (bool, *Settings) {
	return LoadOrInitializeSettings(DefaultSettingsPath())
}

// LoadOrInitializeSettings reports true when no readable settings file existed and
// defaults were returned instead.
func LoadOrInitializeSettings(path string) (bool, *Settings) {
	if settings, err := LoadSettings(path); err == nil {
		return false, settings
	}

	return true, DefaultSettings()
}

// LoadSettings reads path over the defaults, so keys missing from the file keep
// their default values.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, err
	}

	return settings, nil
}

func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

func (s *Settings) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ResolvedApplianceURL is the appliance base URL with the environment taking
// precedence over the file. Empty means "discover it".
func (s *Settings) ResolvedApplianceURL() string {
	if url := strings.TrimSpace(os.Getenv(URL_ENV)); url != "" {
		return url
	}
	return strings.TrimSpace(s.ApplianceURL)
}

func (s *Settings) CacheTTL() time.Duration {
	if s.CacheTTLSeconds <= 0 {
		return api.DefaultCacheTTL
	}
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

func (s *Settings) HostnamePrefix() string {
	if s.DiscoveryHostnamePrefix == "" {
		return api.APPLIANCE_HOSTNAME_PREFIX
	}
	return s.DiscoveryHostnamePrefix
}

func (s *Settings) SandboxAddress() string {
	if s.SandboxListen == "" {
		return DEFAULT_SANDBOX_LISTEN
	}
	return s.SandboxListen
}
