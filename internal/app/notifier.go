package app

import (
	"context"
	"sync"

	adw "github.com/diamondburned/gotk4-adwaita/pkg/adw"

	"github.com/monorkin/home-network-monitor/internal/notify"
)

const TOAST_TIMEOUT = 4

// notifier shows a toast while the window is visible. Otherwise it falls back to a
// desktop notification when those are enabled in the settings.
type notifier struct {
	app *App

	once    sync.Once
	desktop *notify.Desktop
}

func newNotifier(app *App) *notifier {
	return &notifier{app: app}
}

func (n *notifier) Notify(ctx context.Context, notification notify.Notification) error {
	onMainLoop(func() {
		if n.app.windowVisible() {
			n.toast(notification)
			return
		}
		if desktop := n.desktopNotifier(); desktop != nil {
			// The DBus call may block, keep it off the main loop.
			go func() {
				if err := desktop.Notify(ctx, notification); err != nil {
					n.app.logger.Warn("Failed to send desktop notification", "error", err)
				}
			}()
		}
	})
	return nil
}

func (n *notifier) toast(notification notify.Notification) {
	title := notification.Message
	if notification.Title != "" {
		title = notification.Title + ": " + notification.Message
	}

	toast := adw.NewToast(escapeMarkup(title))
	toast.SetTimeout(TOAST_TIMEOUT)
	if notification.Level == notify.LevelError {
		toast.SetPriority(adw.ToastPriorityHigh)
	}
	n.app.toasts.AddToast(toast)
}

// desktopNotifier connects to the session bus on first use.
func (n *notifier) desktopNotifier() *notify.Desktop {
	if !n.app.settings.DesktopNotifications {
		return nil
	}
	n.once.Do(func() {
		desktop, err := notify.NewDesktop()
		if err != nil {
			n.app.logger.Warn("Desktop notifications unavailable", "error", err)
			return
		}
		n.desktop = desktop
	})
	return n.desktop
}

func (n *notifier) Close() {
	if n.desktop != nil {
		n.desktop.Close()
	}
}
