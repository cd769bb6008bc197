package notify

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	notificationsName      = "org.freedesktop.Notifications"
	notificationsPath      = "/org/freedesktop/Notifications"
	notificationsInterface = "org.freedesktop.Notifications"

	DESKTOP_APP_NAME = "Home Network Monitor"
	DESKTOP_TIMEOUT  = 5000
)

// Desktop sends notifications to the session's notification daemon over DBus.
type Desktop struct {
	conn *dbus.Conn
}

func NewDesktop() (*Desktop, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Desktop{conn: conn}, nil
}

func (desktop *Desktop) Notify(ctx context.Context, notification Notification) error {
	summary := notification.Title
	if summary == "" {
		summary = DESKTOP_APP_NAME
	}

	object := desktop.conn.Object(notificationsName, dbus.ObjectPath(notificationsPath))
	call := object.CallWithContext(
		ctx,
		notificationsInterface+".Notify",
		0,
		DESKTOP_APP_NAME,
		uint32(0),
		desktopIcon(notification.Level),
		summary,
		notification.Message,
		[]string{},
		map[string]dbus.Variant{"urgency": dbus.MakeVariant(desktopUrgency(notification.Level))},
		int32(DESKTOP_TIMEOUT),
	)
	if call.Err != nil {
		return fmt.Errorf("failed to send desktop notification: %w", call.Err)
	}
	return nil
}

func (desktop *Desktop) Close() error {
	if desktop.conn != nil {
		return desktop.conn.Close()
	}
	return nil
}

func desktopIcon(level Level) string {
	switch level {
	case LevelSuccess:
		return "emblem-ok-symbolic"
	case LevelWarning:
		return "dialog-warning-symbolic"
	case LevelError:
		return "dialog-error-symbolic"
	default:
		return "network-workgroup-symbolic"
	}
}

// desktopUrgency maps a level to the freedesktop urgency hint (0 low, 1 normal, 2 critical).
func desktopUrgency(level Level) byte {
	if level == LevelError {
		return 2
	}
	return 1
}
