package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/dashboard"
)

const (
	dbusName      = "io.stanko.HomeNetworkMonitor"
	dbusPath      = "/io/stanko/HomeNetworkMonitor"
	dbusInterface = "io.stanko.HomeNetworkMonitor"

	DBUS_UPDATE_INTERVAL = 30 * time.Second
)

// DBusService lets a shell extension read the device summary and drive the window.
type DBusService struct {
	app  *App
	conn *dbus.Conn

	mutex   sync.Mutex
	summary deviceSummary
}

type deviceSummary struct {
	Total     int
	Online    int
	Offline   int
	Reachable bool
	UpdatedAt time.Time
}

func (summary deviceSummary) variant() map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"total":      dbus.MakeVariant(int32(summary.Total)),
		"online":     dbus.MakeVariant(int32(summary.Online)),
		"offline":    dbus.MakeVariant(int32(summary.Offline)),
		"reachable":  dbus.MakeVariant(summary.Reachable),
		"updated_at": dbus.MakeVariant(summary.UpdatedAt.Unix()),
	}
}

func summarize(devices []api.Device, now time.Time) deviceSummary {
	summary := deviceSummary{Total: len(devices), Reachable: true, UpdatedAt: now}
	for _, device := range devices {
		switch device.DisplayStatus() {
		case api.StatusOnline:
			summary.Online++
		case api.StatusOffline:
			summary.Offline++
		}
	}
	return summary
}

// NewDBusService creates a new DBUS service for the app
func NewDBusService(app *App) (*DBusService, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	service := &DBusService{
		app:  app,
		conn: conn,
	}

	err = conn.Export(service, dbus.ObjectPath(dbusPath), dbusInterface)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to export service: %w", err)
	}

	node := &introspect.Node{
		Name: dbusPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name: dbusInterface,
				Methods: []introspect.Method{
					{
						Name: "GetSummary",
						Args: []introspect.Arg{
							{Name: "summary", Direction: "out", Type: "a{sv}"},
						},
					},
					{
						Name: "OpenApp",
					},
					{
						Name: "ShowTab",
						Args: []introspect.Arg{
							{Name: "tab", Direction: "in", Type: "s"},
						},
					},
					{
						Name: "OpenSettings",
					},
					{
						Name: "Quit",
					},
				},
				Signals: []introspect.Signal{
					{
						Name: "DevicesUpdated",
						Args: []introspect.Arg{
							{Name: "summary", Type: "a{sv}"},
						},
					},
				},
			},
		},
	}

	err = conn.Export(introspect.NewIntrospectable(node), dbus.ObjectPath(dbusPath), "org.freedesktop.DBus.Introspectable")
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to export introspection: %w", err)
	}

	reply, err := conn.RequestName(dbusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to request bus name: %w", err)
	}

	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("name already taken")
	}

	return service, nil
}

// GetSummary returns the device counts of the last poll.
func (s *DBusService) GetSummary() (map[string]dbus.Variant, *dbus.Error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.summary.variant(), nil
}

// OpenApp shows the main application window
func (s *DBusService) OpenApp() *dbus.Error {
	onMainLoop(func() {
		if s.app.mainWindow != nil {
			s.app.present()
			s.app.showDashboardPage()
		}
	})
	return nil
}

// ShowTab shows the window on one of status, devices, network, history or vpn.
func (s *DBusService) ShowTab(name string) *dbus.Error {
	tab, ok := dashboard.ParseTab(name)
	if !ok {
		return dbus.MakeFailedError(fmt.Errorf("unknown tab %q", name))
	}
	onMainLoop(func() {
		if s.app.mainWindow != nil {
			s.app.showTab(tab)
		}
	})
	return nil
}

func (s *DBusService) OpenSettings() *dbus.Error {
	onMainLoop(func() {
		if s.app.mainWindow != nil {
			s.app.present()
			s.app.showSettingsPage()
		}
	})
	return nil
}

func (s *DBusService) Quit() *dbus.Error {
	onMainLoop(s.app.Quit)
	return nil
}

// poll refreshes the summary and emits DevicesUpdated. An unreachable appliance is
// reported with reachable set to false and the previous counts.
func (s *DBusService) poll(ctx context.Context) error {
	devices, err := s.app.client.ListDevices(ctx, false)

	s.mutex.Lock()
	if err != nil {
		s.summary.Reachable = false
	} else {
		s.summary = summarize(devices, s.app.context.CurrentTime())
	}
	summary := s.summary
	s.mutex.Unlock()

	if err != nil {
		s.app.logger.Debug("Failed to poll devices for DBus", "error", err)
	}
	return s.conn.Emit(dbus.ObjectPath(dbusPath), dbusInterface+".DevicesUpdated", summary.variant())
}

// StartPeriodicUpdates polls until ctx ends.
func (s *DBusService) StartPeriodicUpdates(ctx context.Context) {
	ticker := time.NewTicker(DBUS_UPDATE_INTERVAL)
	go func() {
		defer ticker.Stop()
		for {
			if err := s.poll(ctx); err != nil {
				s.app.logger.Warn("Failed to emit devices update", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Close closes the DBUS connection
func (s *DBusService) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
