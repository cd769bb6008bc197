package app

import (
	gtk "github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/monorkin/home-network-monitor/internal/dashboard"
	"github.com/monorkin/home-network-monitor/internal/view"
)

// setupDashboardPage adds one tab per dashboard tab. Every slot of a tab gets its own
// container, re-rendered whenever the controller replaces the slot's content.
func (app *App) setupDashboardPage() {
	app.tabs = gtk.NewStack()
	app.tabs.SetTransitionType(gtk.StackTransitionTypeCrossfade)
	app.tabs.SetVExpand(true)

	for _, tab := range dashboard.Tabs {
		scrolled := gtk.NewScrolledWindow()
		scrolled.SetPolicy(gtk.PolicyNever, gtk.PolicyAutomatic)
		scrolled.SetVExpand(true)

		contentBox := gtk.NewBox(gtk.OrientationVertical, 24)
		contentBox.SetMarginTop(24)
		contentBox.SetMarginBottom(24)
		contentBox.SetMarginStart(24)
		contentBox.SetMarginEnd(24)

		for _, slot := range app.dashboard.Slots(tab) {
			contentBox.Append(app.bindSlot(slot))
		}

		scrolled.SetChild(contentBox)
		app.tabs.AddTitled(scrolled, string(tab), tab.Title())
	}

	app.tabs.NotifyProperty("visible-child-name", func() {
		tab, ok := dashboard.ParseTab(app.tabs.VisibleChildName())
		if !ok {
			return
		}
		go func() {
			if err := app.dashboard.SwitchTab(app.ctx, tab); err != nil {
				app.logger.Debug("Tab load failed", "tab", tab, "error", err)
			}
		}()
	})

	release := app.dashboard.OnTabChange(func(tab dashboard.Tab) {
		onMainLoop(func() {
			if app.tabs.VisibleChildName() != string(tab) {
				app.tabs.SetVisibleChildName(string(tab))
			}
		})
	})
	app.releases = append(app.releases, release)

	app.switcher = gtk.NewStackSwitcher()
	app.switcher.SetStack(app.tabs)

	app.pages.AddNamed(app.tabs, PAGE_DASHBOARD)
}

// bindSlot returns a container that always shows slot's current content.
func (app *App) bindSlot(slot *view.Slot) *gtk.Box {
	container := gtk.NewBox(gtk.OrientationVertical, 12)
	container.SetName(slot.Name)

	show := func(node *view.Node) {
		clearBox(container)
		if widget := app.render(node); widget != nil {
			container.Append(widget)
		}
	}
	show(slot.Current())

	release := slot.OnChange(func(node *view.Node) {
		onMainLoop(func() { show(node) })
	})
	app.releases = append(app.releases, release)

	return container
}

// showTab brings the window up on tab.
func (app *App) showTab(tab dashboard.Tab) {
	app.present()
	app.showDashboardPage()
	app.tabs.SetVisibleChildName(string(tab))
}

func (app *App) showDashboardPage() {
	app.pages.SetVisibleChildName(PAGE_DASHBOARD)
	app.mainWindow.SetTitle(APP_TITLE)
	app.headerBar.SetTitleWidget(app.switcher)
	app.backButton.SetVisible(false)
	app.settingsButton.SetVisible(true)
}

func (app *App) showSettingsPage() {
	app.settingsPage.reset(app)
	app.pages.SetVisibleChildName(PAGE_SETTINGS)
	app.mainWindow.SetTitle("Settings")
	app.headerBar.SetTitleWidget(nil)
	app.backButton.SetVisible(true)
	app.settingsButton.SetVisible(false)
}

func clearBox(box *gtk.Box) {
	for child := box.FirstChild(); child != nil; child = box.FirstChild() {
		box.Remove(child)
	}
}
