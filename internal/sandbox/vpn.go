package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/models"
)

const (
	SETTING_TAILSCALE_KEY       = "tailscale_api_key"
	SETTING_TAILSCALE_TAILNET   = "tailscale_tailnet"
	SETTING_TAILSCALE_AUTO_SYNC = "tailscale_auto_sync"

	// EXPIRED_KEY_MARKER in a stored key makes the simulated Tailscale API reject it
	// as expired.
	EXPIRED_KEY_MARKER = "expired"
)

const defaultACL = `{
  "acls": [
    {"action": "accept", "src": ["autogroup:member"], "dst": ["autogroup:self:*"]},
    {"action": "accept", "src": ["group:admins"], "dst": ["*:*"]}
  ],
  "groups": {"group:admins": ["admin@example.com"]}
}`

func (server *Server) setting(name string) (string, error) {
	var setting models.Setting
	err := server.db.Where("name = ?", name).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return setting.Value, err
}

func (server *Server) setSetting(tx *gorm.DB, name, value string) error {
	setting := models.Setting{Name: name, Value: value, UpdatedAt: server.now()}
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&setting).Error
}

func (server *Server) handleVPNConfig(w http.ResponseWriter, r *http.Request) {
	key, err := server.setting(SETTING_TAILSCALE_KEY)
	if err != nil {
		server.writeInternal(w, "Failed to load the Tailscale configuration", err)
		return
	}
	tailnet, err := server.setting(SETTING_TAILSCALE_TAILNET)
	if err != nil {
		server.writeInternal(w, "Failed to load the Tailscale configuration", err)
		return
	}
	autoSync, err := server.setting(SETTING_TAILSCALE_AUTO_SYNC)
	if err != nil {
		server.writeInternal(w, "Failed to load the Tailscale configuration", err)
		return
	}

	writeData(w, api.VPNConfig{Configured: key != "", Tailnet: tailnet, AutoSync: autoSync == "true"})
}

func (server *Server) handleSaveVPNConfig(w http.ResponseWriter, r *http.Request) {
	var credentials api.VPNCredentials
	if err := decodeBody(r, &credentials); err != nil {
		writeFailure(w, "Invalid request body", "invalid_request")
		return
	}
	credentials.APIKey = strings.TrimSpace(credentials.APIKey)
	credentials.Tailnet = strings.TrimSpace(credentials.Tailnet)
	if credentials.APIKey == "" || credentials.Tailnet == "" {
		writeFailure(w, "Both an API key and a tailnet are required", "invalid_request")
		return
	}

	err := server.db.Transaction(func(tx *gorm.DB) error {
		if err := server.setSetting(tx, SETTING_TAILSCALE_KEY, credentials.APIKey); err != nil {
			return err
		}
		return server.setSetting(tx, SETTING_TAILSCALE_TAILNET, credentials.Tailnet)
	})
	if err != nil {
		server.writeInternal(w, "Failed to save the Tailscale configuration", err)
		return
	}

	server.logger.Info("Tailscale configuration saved", "tailnet", credentials.Tailnet)
	writeMessage(w, "Tailscale configuration saved", nil)
}

// requireKey answers with the key problem and returns false unless a usable key is on
// file.
func (server *Server) requireKey(w http.ResponseWriter) bool {
	key, err := server.setting(SETTING_TAILSCALE_KEY)
	if err != nil {
		server.writeInternal(w, "Failed to load the Tailscale configuration", err)
		return false
	}
	if key == "" {
		writeFailure(w, "No Tailscale API key configured", api.ErrorKindMissingKey)
		return false
	}
	if strings.Contains(key, EXPIRED_KEY_MARKER) {
		writeFailure(w, "The Tailscale API key has expired", api.ErrorKindExpiredKey)
		return false
	}
	return true
}

func (server *Server) handleVPNDevices(w http.ResponseWriter, r *http.Request) {
	if !server.requireKey(w) {
		return
	}

	var nodes []models.VPNNode
	if err := server.db.Order("hostname").Find(&nodes).Error; err != nil {
		server.writeInternal(w, "Failed to list tailnet devices", err)
		return
	}

	devices := make([]api.VPNDevice, 0, len(nodes))
	for _, node := range nodes {
		devices = append(devices, node.ToAPI())
	}
	writeData(w, map[string]any{"devices": devices})
}

func (server *Server) findNode(w http.ResponseWriter, id string) (*models.VPNNode, bool) {
	var node models.VPNNode
	err := server.db.Where("public_id = ?", id).First(&node).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeFailure(w, fmt.Sprintf("Tailnet device %s not found", id), "not_found")
		return nil, false
	}
	if err != nil {
		server.writeInternal(w, "Failed to load tailnet device", err)
		return nil, false
	}
	return &node, true
}

func (server *Server) handleRenameVPNDevice(w http.ResponseWriter, r *http.Request) {
	if !server.requireKey(w) {
		return
	}
	node, ok := server.findNode(w, r.PathValue("id"))
	if !ok {
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil || strings.TrimSpace(body.Name) == "" {
		writeFailure(w, "A device name is required", "invalid_request")
		return
	}

	node.Name = strings.TrimSpace(body.Name)
	node.Hostname = node.Name
	if err := server.db.Save(node).Error; err != nil {
		server.writeInternal(w, "Failed to rename tailnet device", err)
		return
	}
	writeData(w, node.ToAPI())
}

func (server *Server) handleAuthorizeVPNDevice(w http.ResponseWriter, r *http.Request) {
	if !server.requireKey(w) {
		return
	}
	node, ok := server.findNode(w, r.PathValue("id"))
	if !ok {
		return
	}

	var body struct {
		Authorized *bool `json:"authorized"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeFailure(w, "Invalid request body", "invalid_request")
		return
	}

	node.Authorized = body.Authorized == nil || *body.Authorized
	if err := server.db.Save(node).Error; err != nil {
		server.writeInternal(w, "Failed to authorize tailnet device", err)
		return
	}
	writeData(w, node.ToAPI())
}

func (server *Server) handleDeleteVPNDevice(w http.ResponseWriter, r *http.Request) {
	if !server.requireKey(w) {
		return
	}
	node, ok := server.findNode(w, r.PathValue("id"))
	if !ok {
		return
	}

	if err := server.db.Delete(node).Error; err != nil {
		server.writeInternal(w, "Failed to delete tailnet device", err)
		return
	}
	server.logger.Info("Tailnet device removed", "id", node.PublicID, "hostname", node.Hostname)
	writeMessage(w, fmt.Sprintf("%s removed from the tailnet", node.Hostname), nil)
}

func (server *Server) handleVPNRoutes(w http.ResponseWriter, r *http.Request) {
	if !server.requireKey(w) {
		return
	}

	var nodes []models.VPNNode
	if err := server.db.Where("advertised_routes <> ''").Order("hostname").Find(&nodes).Error; err != nil {
		server.writeInternal(w, "Failed to list routes", err)
		return
	}

	routes := make([]api.VPNRoute, 0, len(nodes))
	for _, node := range nodes {
		routes = append(routes, node.Route())
	}
	writeData(w, map[string]any{"routes": routes})
}

func (server *Server) handleVPNACL(w http.ResponseWriter, r *http.Request) {
	if !server.requireKey(w) {
		return
	}
	writeData(w, map[string]any{"acl": json.RawMessage(defaultACL)})
}

func (server *Server) handleVPNAutoSync(w http.ResponseWriter, r *http.Request) {
	if !server.requireKey(w) {
		return
	}
	if err := server.setSetting(server.db, SETTING_TAILSCALE_AUTO_SYNC, "true"); err != nil {
		server.writeInternal(w, "Failed to enable auto-sync", err)
		return
	}
	writeMessage(w, "Auto-sync enabled", nil)
}
