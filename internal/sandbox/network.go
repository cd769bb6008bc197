package sandbox

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/seancfoley/ipaddress-go/ipaddr"
	"gorm.io/gorm"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/models"
)

const (
	// RECONNECTION_AFTER is the absence after which a returning host is reported as
	// reconnected rather than silently seen again.
	RECONNECTION_AFTER = time.Hour
	// DISCONNECTION_WINDOW bounds how stale a host may be and still count as having
	// just disconnected.
	DISCONNECTION_WINDOW = 24 * time.Hour

	DEFAULT_EVENTS_LIMIT = 50
	MAX_EVENTS_LIMIT     = 500
)

func (server *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	server.scanMutex.Lock()
	defer server.scanMutex.Unlock()

	started := server.now()
	hosts, err := server.scanner.Scan(r.Context())
	if err != nil {
		server.logger.Error("Scan failed", "error", err)
		writeFailure(w, "Scan failed: "+err.Error(), "scan_failed")
		return
	}
	hosts = server.inNetwork(hosts)

	scan, err := server.recordScan(hosts, started, server.now().Sub(started))
	if err != nil {
		server.writeInternal(w, "Failed to record scan", err)
		return
	}

	server.logger.Info("Scan recorded", "hosts", len(scan.Hosts), "network", scan.Network)
	writeData(w, scan.ToAPI())
}

// inNetwork drops hosts outside the configured block. An unparsable block keeps all.
func (server *Server) inNetwork(hosts []api.DiscoveredHost) []api.DiscoveredHost {
	block := ipaddr.NewIPAddressString(server.network).GetAddress()
	if block == nil {
		return hosts
	}
	block = block.ToPrefixBlock()

	kept := make([]api.DiscoveredHost, 0, len(hosts))
	for _, host := range hosts {
		address := ipaddr.NewIPAddressString(host.IP).GetAddress()
		if address == nil || !block.Contains(address) {
			server.logger.Warn("Dropping host outside the network", "ip", host.IP, "network", server.network)
			continue
		}
		kept = append(kept, host)
	}
	return kept
}

// recordScan stores the scan and folds it into the host history, emitting connection
// and change events.
func (server *Server) recordScan(hosts []api.DiscoveredHost, scannedAt time.Time, duration time.Duration) (*models.Scan, error) {
	scan := &models.Scan{
		Network:   server.network,
		Duration:  duration.Seconds(),
		ScannedAt: scannedAt,
	}
	for _, host := range hosts {
		scan.Hosts = append(scan.Hosts, models.ScanHostFromAPI(host))
	}

	err := server.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(scan).Error; err != nil {
			return err
		}

		seen := make(map[string]bool, len(hosts))
		for _, host := range hosts {
			key := historyKey(host)
			seen[key] = true
			if err := observeHost(tx, host, key, scannedAt); err != nil {
				return err
			}
		}

		if err := markAbsent(tx, seen, scannedAt); err != nil {
			return err
		}
		return updateCatalogStatus(tx, hosts, scannedAt)
	})
	if err != nil {
		return nil, err
	}
	return scan, nil
}

func historyKey(host api.DiscoveredHost) string {
	if host.MAC == "" {
		return api.NoMACPrefix + host.IP
	}
	return host.MAC
}

func observeHost(tx *gorm.DB, observed api.DiscoveredHost, key string, now time.Time) error {
	var host models.Host
	err := tx.Where("history_key = ?", key).First(&host).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return createHost(tx, observed, key, now)
	}
	if err != nil {
		return err
	}

	event := models.NetworkEvent{
		Category:   string(api.EventCategoryConnection),
		IPAddress:  observed.IP,
		MACAddress: observed.MAC,
		Hostname:   firstNonEmpty(observed.Hostname, host.Hostname),
		Vendor:     firstNonEmpty(observed.Vendor, host.Vendor),
		OccurredAt: now,
	}

	offline := now.Sub(host.LastSeen)
	if !host.Present && offline > RECONNECTION_AFTER {
		event.Type = string(api.ConnectionReconnection)
		event.OldIP = host.IPAddress
		event.TimeOffline = offline.Seconds()
		if err := tx.Create(&event).Error; err != nil {
			return err
		}
	}

	var changes []models.HostChange
	if observed.IP != host.IPAddress && host.IPAddress != "" {
		changes = append(changes, models.HostChange{Field: models.ChangeFieldIP, OldValue: host.IPAddress, NewValue: observed.IP, ChangedAt: now})
		ipChange := models.NetworkEvent{
			Category:   string(api.EventCategoryIPChange),
			OldIP:      host.IPAddress,
			NewIP:      observed.IP,
			MACAddress: observed.MAC,
			Hostname:   event.Hostname,
			Vendor:     event.Vendor,
			OccurredAt: now,
		}
		if err := tx.Create(&ipChange).Error; err != nil {
			return err
		}
	}
	if observed.Hostname != "" && observed.Hostname != host.Hostname {
		changes = append(changes, models.HostChange{Field: models.ChangeFieldHostname, OldValue: host.Hostname, NewValue: observed.Hostname, ChangedAt: now})
		host.Hostname = observed.Hostname
	}
	if observed.Vendor != "" && observed.Vendor != host.Vendor {
		changes = append(changes, models.HostChange{Field: models.ChangeFieldVendor, OldValue: host.Vendor, NewValue: observed.Vendor, ChangedAt: now})
		host.Vendor = observed.Vendor
	}
	for i := range changes {
		changes[i].HostID = host.ID
		if err := tx.Create(&changes[i]).Error; err != nil {
			return err
		}
	}

	host.IPAddress = observed.IP
	host.AddIP(observed.IP)
	host.DeviceType = firstNonEmpty(observed.DeviceType, host.DeviceType)
	host.OS = firstNonEmpty(observed.OSDetected, host.OS)
	host.LastSeen = now
	host.ScanCount++
	host.Present = true
	return tx.Save(&host).Error
}

// createHost records a first sighting. A new MAC at the IP of a host present in the
// previous scan is reported as a MAC change instead of a new device.
func createHost(tx *gorm.DB, observed api.DiscoveredHost, key string, now time.Time) error {
	host := models.Host{
		Key:        key,
		MACAddress: observed.MAC,
		IPAddress:  observed.IP,
		Hostname:   observed.Hostname,
		Vendor:     observed.Vendor,
		DeviceType: observed.DeviceType,
		OS:         observed.OSDetected,
		FirstSeen:  now,
		LastSeen:   now,
		ScanCount:  1,
		Present:    true,
	}
	host.AddIP(observed.IP)
	if err := tx.Create(&host).Error; err != nil {
		return err
	}

	event := models.NetworkEvent{
		Category:   string(api.EventCategoryConnection),
		Type:       string(api.ConnectionNewDevice),
		IPAddress:  observed.IP,
		MACAddress: observed.MAC,
		Hostname:   observed.Hostname,
		Vendor:     observed.Vendor,
		OccurredAt: now,
	}

	if observed.MAC != "" {
		var previous models.Host
		err := tx.Where("ip_address = ? AND present = ? AND history_key <> ? AND mac_address <> ''", observed.IP, true, key).First(&previous).Error
		if err == nil {
			event.Category = string(api.EventCategoryMACChange)
			event.Type = ""
			event.OldMAC = previous.MACAddress
			event.NewMAC = observed.MAC
			event.MACAddress = ""
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	return tx.Create(&event).Error
}

// markAbsent flags hosts of the previous scan that this scan missed and reports the
// recently seen ones as disconnected.
func markAbsent(tx *gorm.DB, seen map[string]bool, now time.Time) error {
	var present []models.Host
	if err := tx.Where("present = ?", true).Find(&present).Error; err != nil {
		return err
	}

	for _, host := range present {
		if seen[host.Key] {
			continue
		}

		host.Present = false
		if err := tx.Save(&host).Error; err != nil {
			return err
		}

		offline := now.Sub(host.LastSeen)
		if offline >= DISCONNECTION_WINDOW {
			continue
		}
		event := models.NetworkEvent{
			Category:    string(api.EventCategoryConnection),
			Type:        string(api.ConnectionDisconnection),
			IPAddress:   host.IPAddress,
			MACAddress:  host.MACAddress,
			Hostname:    host.Hostname,
			Vendor:      host.Vendor,
			TimeOffline: offline.Seconds(),
			OccurredAt:  now,
		}
		if err := tx.Create(&event).Error; err != nil {
			return err
		}
	}
	return nil
}

// updateCatalogStatus marks catalog devices online when the scan saw their IP or MAC.
func updateCatalogStatus(tx *gorm.DB, hosts []api.DiscoveredHost, now time.Time) error {
	ips := make(map[string]bool, len(hosts))
	macs := make(map[string]bool, len(hosts))
	for _, host := range hosts {
		ips[host.IP] = true
		if host.MAC != "" {
			macs[host.MAC] = true
		}
	}

	var devices []models.Device
	if err := tx.Find(&devices).Error; err != nil {
		return err
	}
	for _, device := range devices {
		if ips[device.IPAddress] || (device.MACAddress != "" && macs[device.MACAddress]) {
			device.Status = api.StatusOnline
			seenAt := now
			device.LastSeen = &seenAt
		} else {
			device.Status = api.StatusOffline
		}
		if err := tx.Save(&device).Error; err != nil {
			return err
		}
	}
	return nil
}

func (server *Server) handleLastScan(w http.ResponseWriter, r *http.Request) {
	var scan models.Scan
	err := server.db.Preload("Hosts").Order("scanned_at desc").First(&scan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeData(w, api.ScanResult{Devices: []api.DiscoveredHost{}})
		return
	}
	if err != nil {
		server.writeInternal(w, "Failed to load the last scan", err)
		return
	}
	writeData(w, scan.ToAPI())
}

func (server *Server) handleScanStats(w http.ResponseWriter, r *http.Request) {
	stats := api.ScanStats{}

	var total, unique int64
	if err := server.db.Model(&models.Scan{}).Count(&total).Error; err != nil {
		server.writeInternal(w, "Failed to count scans", err)
		return
	}
	if err := server.db.Model(&models.Host{}).Count(&unique).Error; err != nil {
		server.writeInternal(w, "Failed to count hosts", err)
		return
	}
	stats.TotalScans = int(total)
	stats.UniqueDevices = int(unique)
	stats.HasData = total > 0

	var last models.Scan
	if err := server.db.Preload("Hosts").Order("scanned_at desc").First(&last).Error; err == nil {
		stats.LastScanAt = api.NewTimestamp(last.ScannedAt)
		stats.LastScanCount = len(last.Hosts)
	}

	writeData(w, stats)
}

func (server *Server) handleDisconnected(w http.ResponseWriter, r *http.Request) {
	now := server.now()

	var hosts []models.Host
	err := server.db.
		Where("present = ? AND last_seen > ?", false, now.Add(-DISCONNECTION_WINDOW)).
		Order("last_seen desc").
		Find(&hosts).Error
	if err != nil {
		server.writeInternal(w, "Failed to list disconnected hosts", err)
		return
	}

	devices := make([]api.DisconnectedDevice, 0, len(hosts))
	for _, host := range hosts {
		devices = append(devices, api.DisconnectedDevice{
			MAC:         host.MACAddress,
			IP:          host.IPAddress,
			Hostname:    host.Hostname,
			Vendor:      host.Vendor,
			LastSeen:    api.NewTimestamp(host.LastSeen),
			TimeOffline: now.Sub(host.LastSeen).Seconds(),
		})
	}
	writeData(w, devices)
}

func (server *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	var hosts []models.Host
	if err := server.db.Preload("Changes").Find(&hosts).Error; err != nil {
		server.writeInternal(w, "Failed to load history", err)
		return
	}

	byMAC := make(map[string]api.HistoryRecord, len(hosts))
	for _, host := range hosts {
		byMAC[host.Key] = host.ToAPI()
	}
	writeData(w, map[string]any{"devices_by_mac": byMAC})
}

func (server *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := DEFAULT_EVENTS_LIMIT
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeFailure(w, "limit must be a positive integer", "invalid_request")
			return
		}
		limit = min(parsed, MAX_EVENTS_LIMIT)
	}

	recent := api.RecentEvents{}
	lists := map[api.EventCategory]*[]api.NetworkEvent{
		api.EventCategoryConnection: &recent.Connection,
		api.EventCategoryIPChange:   &recent.IPChanges,
		api.EventCategoryMACChange:  &recent.MACChanges,
	}
	for category, list := range lists {
		var events []models.NetworkEvent
		err := server.db.
			Where("category = ?", string(category)).
			Order("occurred_at desc").
			Order("id desc").
			Limit(limit).
			Find(&events).Error
		if err != nil {
			server.writeInternal(w, "Failed to load events", err)
			return
		}

		*list = make([]api.NetworkEvent, 0, len(events))
		for _, event := range events {
			*list = append(*list, event.ToAPI())
		}
	}

	writeData(w, recent)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
