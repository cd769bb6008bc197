package app

import (
	"context"
	"strings"

	adw "github.com/diamondburned/gotk4-adwaita/pkg/adw"
	gtk "github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/config"
	"github.com/monorkin/home-network-monitor/internal/notify"
)

const (
	MIN_CACHE_TTL_SECONDS = 0
	MAX_CACHE_TTL_SECONDS = 3600
)

// settingsPage edits settings.json. The address and cache lifetime take effect on the
// next start.
type settingsPage struct {
	urlEntry       *gtk.Entry
	prefixEntry    *gtk.Entry
	cacheTTLSpin   *gtk.SpinButton
	desktopSwitch  *gtk.Switch
	discoverButton *gtk.Button
}

func (app *App) setupSettingsPage() {
	page := &settingsPage{}
	app.settingsPage = page

	scrolled := gtk.NewScrolledWindow()
	scrolled.SetPolicy(gtk.PolicyNever, gtk.PolicyAutomatic)
	scrolled.SetVExpand(true)

	contentBox := gtk.NewBox(gtk.OrientationVertical, 24)
	contentBox.SetMarginTop(24)
	contentBox.SetMarginBottom(24)
	contentBox.SetMarginStart(24)
	contentBox.SetMarginEnd(24)

	titleLabel := gtk.NewLabel("Settings")
	titleLabel.AddCSSClass("title-1")
	titleLabel.SetHAlign(gtk.AlignStart)
	contentBox.Append(titleLabel)

	applianceGroup := adw.NewPreferencesGroup()
	applianceGroup.SetTitle("Appliance")

	urlRow := adw.NewActionRow()
	urlRow.SetTitle("Address")
	urlRow.SetSubtitle("Base URL of the appliance, e.g. http://192.168.1.2:5000")
	page.urlEntry = gtk.NewEntry()
	page.urlEntry.SetVAlign(gtk.AlignCenter)
	page.urlEntry.SetHExpand(true)
	page.urlEntry.SetPlaceholderText(app.client.BaseURL())
	urlRow.AddSuffix(page.urlEntry)

	page.discoverButton = gtk.NewButtonWithLabel("Discover")
	page.discoverButton.SetVAlign(gtk.AlignCenter)
	page.discoverButton.ConnectClicked(func() {
		app.discoverAppliance()
	})
	urlRow.AddSuffix(page.discoverButton)
	applianceGroup.Add(urlRow)

	prefixRow := adw.NewActionRow()
	prefixRow.SetTitle("Discovery prefix")
	prefixRow.SetSubtitle("Host name prefix searched for on the local network")
	page.prefixEntry = gtk.NewEntry()
	page.prefixEntry.SetVAlign(gtk.AlignCenter)
	page.prefixEntry.SetPlaceholderText(api.APPLIANCE_HOSTNAME_PREFIX)
	prefixRow.AddSuffix(page.prefixEntry)
	applianceGroup.Add(prefixRow)

	contentBox.Append(applianceGroup)

	dataGroup := adw.NewPreferencesGroup()
	dataGroup.SetTitle("Data")

	cacheRow := adw.NewActionRow()
	cacheRow.SetTitle("Cache lifetime")
	cacheRow.SetSubtitle("How long responses of the appliance are reused")

	page.cacheTTLSpin = gtk.NewSpinButtonWithRange(MIN_CACHE_TTL_SECONDS, MAX_CACHE_TTL_SECONDS, 5)
	page.cacheTTLSpin.SetVAlign(gtk.AlignCenter)

	suffixBox := gtk.NewBox(gtk.OrientationHorizontal, 8)
	suffixBox.Append(page.cacheTTLSpin)
	secondsLabel := gtk.NewLabel("seconds")
	secondsLabel.AddCSSClass("dim-label")
	secondsLabel.SetVAlign(gtk.AlignCenter)
	suffixBox.Append(secondsLabel)
	cacheRow.AddSuffix(suffixBox)
	dataGroup.Add(cacheRow)

	contentBox.Append(dataGroup)

	notificationsGroup := adw.NewPreferencesGroup()
	notificationsGroup.SetTitle("Notifications")

	desktopRow := adw.NewActionRow()
	desktopRow.SetTitle("Desktop notifications")
	desktopRow.SetSubtitle("Notify through the desktop while the window is hidden")
	page.desktopSwitch = gtk.NewSwitch()
	page.desktopSwitch.SetVAlign(gtk.AlignCenter)
	desktopRow.AddSuffix(page.desktopSwitch)
	desktopRow.SetActivatableWidget(page.desktopSwitch)
	notificationsGroup.Add(desktopRow)

	contentBox.Append(notificationsGroup)

	saveButton := gtk.NewButtonWithLabel("Save")
	saveButton.AddCSSClass("suggested-action")
	saveButton.SetHAlign(gtk.AlignEnd)
	saveButton.ConnectClicked(func() {
		app.saveSettings()
	})
	contentBox.Append(saveButton)

	scrolled.SetChild(contentBox)
	app.pages.AddNamed(scrolled, PAGE_SETTINGS)
}

// reset loads the saved settings into the form.
func (page *settingsPage) reset(app *App) {
	page.urlEntry.SetText(app.settings.ApplianceURL)
	page.prefixEntry.SetText(app.settings.DiscoveryHostnamePrefix)
	page.cacheTTLSpin.SetValue(float64(app.settings.CacheTTLSeconds))
	page.desktopSwitch.SetActive(app.settings.DesktopNotifications)
}

func (app *App) saveSettings() {
	page := app.settingsPage
	previous := *app.settings

	url := strings.TrimSpace(page.urlEntry.Text())
	if url != "" {
		url = api.SanitizeBaseURL(url)
	}
	app.settings.ApplianceURL = url
	app.settings.DiscoveryHostnamePrefix = strings.TrimSpace(page.prefixEntry.Text())
	app.settings.CacheTTLSeconds = page.cacheTTLSpin.ValueAsInt()
	app.settings.DesktopNotifications = page.desktopSwitch.Active()

	if err := app.settings.Save(); err != nil {
		app.logger.Error("Failed to save settings", "path", config.DefaultSettingsPath(), "error", err)
		app.notifier.toast(notify.Notification{Level: notify.LevelError, Message: "Failed to save settings: " + err.Error()})
		return
	}
	app.logger.Debug("Settings saved", "path", config.DefaultSettingsPath())

	message := "Settings saved"
	if previous.ApplianceURL != app.settings.ApplianceURL || previous.CacheTTLSeconds != app.settings.CacheTTLSeconds {
		message = "Settings saved, restart to apply them"
	}
	app.notifier.toast(notify.Notification{Level: notify.LevelSuccess, Message: message})
	app.showDashboardPage()
}

// discoverAppliance fills the address with the first appliance answering on mDNS.
func (app *App) discoverAppliance() {
	page := app.settingsPage
	page.discoverButton.SetSensitive(false)
	prefix := strings.TrimSpace(page.prefixEntry.Text())
	if prefix == "" {
		prefix = app.settings.HostnamePrefix()
	}

	go func() {
		ctx, cancel := context.WithTimeout(app.ctx, api.DISCOVERY_TIMEOUT*2)
		defer cancel()
		appliances, err := api.DiscoverAppliances(ctx, prefix, api.DISCOVERY_TIMEOUT, app.logger)

		onMainLoop(func() {
			page.discoverButton.SetSensitive(true)
			switch {
			case err != nil:
				app.logger.Warn("Appliance discovery failed", "error", err)
				app.notifier.toast(notify.Notification{Level: notify.LevelError, Message: "Discovery failed: " + err.Error()})
			case len(appliances) == 0:
				app.notifier.toast(notify.Notification{Level: notify.LevelWarning, Message: "No appliance found on the local network"})
			default:
				page.urlEntry.SetText(appliances[0].URL())
				app.notifier.toast(notify.Notification{Level: notify.LevelSuccess, Message: "Found " + appliances[0].Hostname})
			}
		})
	}()
}
