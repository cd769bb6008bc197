package sandbox

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/seancfoley/ipaddress-go/ipaddr"
	"gorm.io/gorm"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/models"
)

func (server *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	var devices []models.Device
	if err := server.db.Order("name").Find(&devices).Error; err != nil {
		server.writeInternal(w, "Failed to list devices", err)
		return
	}

	converted := make([]api.Device, 0, len(devices))
	for _, device := range devices {
		converted = append(converted, device.ToAPI())
	}
	writeData(w, converted)
}

func (server *Server) handleAddDevice(w http.ResponseWriter, r *http.Request) {
	var submitted api.Device
	if err := decodeBody(r, &submitted); err != nil {
		writeFailure(w, "Invalid request body", "invalid_request")
		return
	}
	if message, ok := validateDevice(&submitted); !ok {
		writeFailure(w, message, "invalid_device")
		return
	}

	device := models.Device{PublicID: uuid.New().String()}
	device.Assign(submitted)
	if err := server.db.Create(&device).Error; err != nil {
		server.writeInternal(w, "Failed to add device", err)
		return
	}

	server.logger.Info("Device added", "id", device.PublicID, "name", device.Name, "ip", device.IPAddress)
	writeMessage(w, fmt.Sprintf("%s added", device.Name), device.ToAPI())
}

func (server *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	device, ok := server.findDevice(w, r.PathValue("id"))
	if !ok {
		return
	}

	var submitted api.Device
	if err := decodeBody(r, &submitted); err != nil {
		writeFailure(w, "Invalid request body", "invalid_request")
		return
	}
	if message, ok := validateDevice(&submitted); !ok {
		writeFailure(w, message, "invalid_device")
		return
	}

	device.Assign(submitted)
	if err := server.db.Save(device).Error; err != nil {
		server.writeInternal(w, "Failed to update device", err)
		return
	}
	writeData(w, device.ToAPI())
}

func (server *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	device, ok := server.findDevice(w, r.PathValue("id"))
	if !ok {
		return
	}

	if err := server.db.Delete(device).Error; err != nil {
		server.writeInternal(w, "Failed to delete device", err)
		return
	}

	server.logger.Info("Device removed", "id", device.PublicID, "name", device.Name)
	writeMessage(w, fmt.Sprintf("%s removed", device.Name), nil)
}

// handleWake acknowledges a Wake-on-LAN request. The sandbox sends no packet.
func (server *Server) handleWake(w http.ResponseWriter, r *http.Request) {
	mac, ok := normalizeMAC(r.PathValue("mac"))
	if !ok {
		writeFailure(w, fmt.Sprintf("Invalid MAC address %q", r.PathValue("mac")), "invalid_mac")
		return
	}

	server.logger.Info("Wake-on-LAN requested", "mac", mac)
	writeData(w, api.WakeResult{Accepted: true, Message: fmt.Sprintf("Magic packet sent to %s", mac)})
}

// findDevice resolves identity as a public id first and as an IP address second.
func (server *Server) findDevice(w http.ResponseWriter, identity string) (*models.Device, bool) {
	var device models.Device
	err := server.db.Where("public_id = ?", identity).Or("ip_address = ?", identity).First(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeFailure(w, fmt.Sprintf("Device %s not found", identity), "not_found")
		return nil, false
	}
	if err != nil {
		server.writeInternal(w, "Failed to load device", err)
		return nil, false
	}
	return &device, true
}

// validateDevice checks and normalizes a submitted device in place.
func validateDevice(device *api.Device) (string, bool) {
	device.Name = strings.TrimSpace(device.Name)
	device.IP = strings.TrimSpace(device.IP)

	if device.Name == "" {
		return "A device name is required", false
	}
	if !isIP(device.IP) {
		return fmt.Sprintf("Invalid IP address %q", device.IP), false
	}
	if device.VPNIP != "" && !isIP(device.VPNIP) {
		return fmt.Sprintf("Invalid VPN IP address %q", device.VPNIP), false
	}
	if device.MAC != "" {
		mac, ok := normalizeMAC(device.MAC)
		if !ok {
			return fmt.Sprintf("Invalid MAC address %q", device.MAC), false
		}
		device.MAC = mac
	}
	device.Type, _ = api.ParseDeviceType(string(device.Type))
	return "", true
}

func isIP(value string) bool {
	return value != "" && ipaddr.NewIPAddressString(value).GetAddress() != nil
}

func normalizeMAC(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	address := ipaddr.NewMACAddressString(value).GetAddress()
	if address == nil {
		return "", false
	}
	return address.ToNormalizedString(), true
}
