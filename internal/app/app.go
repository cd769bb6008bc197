package app

import (
	"context"
	"log/slog"

	adw "github.com/diamondburned/gotk4-adwaita/pkg/adw"
	gio "github.com/diamondburned/gotk4/pkg/gio/v2"
	glib "github.com/diamondburned/gotk4/pkg/glib/v2"
	gtk "github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/config"
	"github.com/monorkin/home-network-monitor/internal/controllers"
	"github.com/monorkin/home-network-monitor/internal/dashboard"
	"github.com/monorkin/home-network-monitor/internal/notify"
)

const (
	APP_IDENTIFIER = "io.stanko.home-network-monitor"
	APP_TITLE      = "Home Network"

	PAGE_DASHBOARD = "dashboard"
	PAGE_SETTINGS  = "settings"
)

type App struct {
	*gtk.Application
	mainWindow     *adw.ApplicationWindow
	toasts         *adw.ToastOverlay
	pages          *gtk.Stack
	tabs           *gtk.Stack
	switcher       *gtk.StackSwitcher
	headerBar      *adw.HeaderBar
	backButton     *gtk.Button
	settingsButton *gtk.Button
	dialogs        *dialogs
	settingsPage   *settingsPage

	ctx    context.Context
	cancel context.CancelFunc

	client    *api.Client
	settings  *config.Settings
	logger    *slog.Logger
	context   *dashboard.Context
	dashboard *controllers.Dashboard

	notifier    *notifier
	dbusService *DBusService
	releases    []func()
}

// NewApp builds the desktop dashboard around client. Confirmations become dialogs and
// notifications become toasts, or desktop notifications while the window is hidden.
func NewApp(client *api.Client, settings *config.Settings, logger *slog.Logger) *App {
	application := gtk.NewApplication(
		APP_IDENTIFIER,
		gio.ApplicationFlagsNone,
	)

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Application: application,
		ctx:         ctx,
		cancel:      cancel,
		client:      client,
		settings:    settings,
		logger:      logger,
	}

	app.notifier = newNotifier(app)
	app.dialogs = newDialogs(app)
	app.context = dashboard.NewContext(client, logger, app.notifier, app.dialogs)
	app.dashboard = controllers.New(app.context)

	app.ConnectActivate(app.onActivate)

	// Hold the application so it doesn't quit when the window is closed
	app.Hold()

	return app
}

func (app *App) onActivate() {
	// A second launch activates the running instance.
	if app.mainWindow != nil {
		app.present()
		return
	}

	app.setupActions()

	var err error
	app.dbusService, err = NewDBusService(app)
	if err != nil {
		app.logger.Warn("Failed to initialize DBus service", "error", err)
	} else {
		app.logger.Debug("DBus service started")
		app.dbusService.StartPeriodicUpdates(app.ctx)
	}

	app.mainWindow = adw.NewApplicationWindow(app.Application)
	app.mainWindow.SetDefaultSize(960, 720)
	app.mainWindow.SetTitle(APP_TITLE)

	// Make window hide instead of quit when closed
	app.mainWindow.ConnectCloseRequest(func() bool {
		app.mainWindow.SetVisible(false)
		return true
	})

	mainBox := gtk.NewBox(gtk.OrientationVertical, 0)

	app.headerBar = adw.NewHeaderBar()

	app.backButton = gtk.NewButtonFromIconName("go-previous-symbolic")
	app.backButton.SetVisible(false)
	app.backButton.ConnectClicked(func() {
		app.showDashboardPage()
	})
	app.headerBar.PackStart(app.backButton)

	app.settingsButton = gtk.NewButtonFromIconName("preferences-system-symbolic")
	app.settingsButton.SetTooltipText("Settings")
	app.settingsButton.ConnectClicked(func() {
		app.showSettingsPage()
	})
	app.headerBar.PackEnd(app.settingsButton)

	refreshButton := gtk.NewButtonFromIconName("view-refresh-symbolic")
	refreshButton.SetTooltipText("Reload")
	refreshButton.ConnectClicked(func() {
		app.reloadCurrentTab()
	})
	app.headerBar.PackEnd(refreshButton)

	mainBox.Append(app.headerBar)

	app.pages = gtk.NewStack()
	app.pages.SetTransitionType(gtk.StackTransitionTypeSlideLeftRight)
	app.pages.SetVExpand(true)
	mainBox.Append(app.pages)

	app.setupDashboardPage()
	app.setupSettingsPage()

	app.toasts = adw.NewToastOverlay()
	app.toasts.SetChild(mainBox)
	app.mainWindow.SetContent(app.toasts)

	app.dialogs.watchModals()
	app.showDashboardPage()
	app.mainWindow.Present()

	go func() {
		if err := app.dashboard.Start(app.ctx); err != nil {
			app.logger.Debug("Initial load failed", "error", err)
		}
	}()
}

func (app *App) setupActions() {
	quit := gio.NewSimpleAction("quit", nil)
	quit.ConnectActivate(func(parameter *glib.Variant) {
		app.Quit()
	})
	app.AddAction(quit)
	app.SetAccelsForAction("app.quit", []string{"<Control>q"})

	reload := gio.NewSimpleAction("reload", nil)
	reload.ConnectActivate(func(parameter *glib.Variant) {
		app.reloadCurrentTab()
	})
	app.AddAction(reload)
	app.SetAccelsForAction("app.reload", []string{"F5", "<Control>r"})
}

// present shows the window, which may have been hidden by a close request.
func (app *App) present() {
	if app.mainWindow != nil {
		app.mainWindow.Present()
	}
}

// windowVisible reports whether the main window is shown. It must be called on the
// main loop.
func (app *App) windowVisible() bool {
	return app.mainWindow != nil && app.mainWindow.IsVisible()
}

func (app *App) reloadCurrentTab() {
	tab := app.dashboard.Current()
	go func() {
		if err := app.dashboard.Load(app.ctx, tab); err != nil {
			app.logger.Debug("Reload failed", "tab", tab, "error", err)
		}
	}()
}

// runAction runs a handler off the main loop. Controllers report failures
// themselves, so the error is only logged.
func (app *App) runAction(name string, run func(ctx context.Context) error) {
	go func() {
		if err := run(app.ctx); err != nil {
			app.logger.Debug("Action failed", "action", name, "error", err)
		}
	}()
}

// onMainLoop schedules fn on the GTK main loop.
func onMainLoop(fn func()) {
	glib.IdleAdd(func() bool {
		fn()
		return false
	})
}

func (app *App) Run() int {
	return app.Application.Run(nil)
}

func (app *App) Quit() {
	app.cancel()

	for _, release := range app.releases {
		release()
	}
	app.releases = nil

	if app.dbusService != nil {
		app.dbusService.Close()
	}
	app.notifier.Close()

	// Release the hold and quit
	app.Release()
	app.Application.Quit()
}

var _ notify.Notifier = (*notifier)(nil)
var _ dashboard.Confirmer = (*dialogs)(nil)
