package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	APPLIANCE_HOSTNAME_PREFIX = "333home"
	DISCOVERY_TIMEOUT         = 5 * time.Second
	DISCOVERY_SERVICE         = "_http._tcp"
	DISCOVERY_DOMAIN          = "local."
)

// Appliance is an appliance found on the local network through mDNS.
type Appliance struct {
	Hostname string
	IP       string
	Port     int
}

func (appliance Appliance) URL() string {
	return fmt.Sprintf("http://%s:%d", appliance.IP, appliance.Port)
}

// DiscoverAppliances browses mDNS for HTTP services whose host name starts with
// hostnamePrefix. It returns what was found when the timeout elapses or ctx ends.
func DiscoverAppliances(ctx context.Context, hostnamePrefix string, timeout time.Duration, logger *slog.Logger) ([]Appliance, error) {
	if hostnamePrefix == "" {
		hostnamePrefix = APPLIANCE_HOSTNAME_PREFIX
	}
	if timeout <= 0 {
		timeout = DISCOVERY_TIMEOUT
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize resolver: %w", err)
	}

	browseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		if err := resolver.Browse(browseCtx, DISCOVERY_SERVICE, DISCOVERY_DOMAIN, entries); err != nil && logger != nil {
			logger.Error("Failed to browse for appliances", "error", err)
		}
	}()

	var appliances []Appliance
	seen := make(map[string]bool)

loop:
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				break loop
			}
			appliance, match := applianceFromEntry(entry, hostnamePrefix)
			if !match || seen[appliance.URL()] {
				continue
			}
			seen[appliance.URL()] = true
			if logger != nil {
				logger.Debug("Appliance discovered", "hostname", appliance.Hostname, "ip", appliance.IP, "port", appliance.Port)
			}
			appliances = append(appliances, appliance)
		case <-browseCtx.Done():
			break loop
		}
	}

	return appliances, nil
}

func applianceFromEntry(entry *zeroconf.ServiceEntry, hostnamePrefix string) (Appliance, bool) {
	if entry == nil || len(entry.AddrIPv4) == 0 {
		return Appliance{}, false
	}
	if !hasPrefixFold(entry.HostName, hostnamePrefix) {
		return Appliance{}, false
	}

	port := entry.Port
	if port == 0 {
		port = 80
	}

	return Appliance{
		Hostname: strings.TrimSuffix(entry.HostName, "."),
		IP:       entry.AddrIPv4[0].String(),
		Port:     port,
	}, true
}

func hasPrefixFold(value, prefix string) bool {
	return len(value) >= len(prefix) && strings.EqualFold(value[:len(prefix)], prefix)
}
