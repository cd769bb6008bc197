package app

import (
	"context"

	adw "github.com/diamondburned/gotk4-adwaita/pkg/adw"
	gtk "github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/monorkin/home-network-monitor/internal/dashboard"
	"github.com/monorkin/home-network-monitor/internal/view"
)

const (
	responseCancel  = "cancel"
	responseConfirm = "confirm"
)

// dialogs shows the dashboard's modals as windows and asks confirmations with message
// dialogs. Its fields are only touched on the main loop.
type dialogs struct {
	app *App

	modal  *view.Modal
	window *gtk.Window
	body   *gtk.Box
}

func newDialogs(app *App) *dialogs {
	return &dialogs{app: app}
}

// Confirm blocks until the user answers. It is called by actions running off the
// main loop, never on it.
func (d *dialogs) Confirm(ctx context.Context, confirmation dashboard.Confirmation) (bool, error) {
	answers := make(chan bool, 1)

	onMainLoop(func() {
		if d.app.mainWindow == nil {
			answers <- false
			return
		}
		d.app.present()

		heading := confirmation.Title
		if heading == "" {
			heading = "Are you sure?"
		}
		label := confirmation.ConfirmLabel
		if label == "" {
			label = "Continue"
		}

		dialog := adw.NewMessageDialog(&d.app.mainWindow.Window, heading, confirmation.Message)
		dialog.AddResponse(responseCancel, "Cancel")
		dialog.AddResponse(responseConfirm, label)
		dialog.SetResponseAppearance(responseConfirm, adw.ResponseDestructive)
		dialog.SetDefaultResponse(responseCancel)
		dialog.SetCloseResponse(responseCancel)
		dialog.ConnectResponse(func(response string) {
			answers <- response == responseConfirm
		})
		dialog.Present()
	})

	select {
	case answer := <-answers:
		return answer, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// watchModals mirrors the modal host. A new modal replaces the open window and a
// body change re-renders it in place.
func (d *dialogs) watchModals() {
	d.app.context.Modals.OnChange(func(modal *view.Modal) {
		onMainLoop(func() { d.show(modal) })
	})
}

func (d *dialogs) show(modal *view.Modal) {
	if modal == nil || modal.Closed() {
		d.closeWindow()
		return
	}

	if modal != d.modal {
		d.closeWindow()
		d.openWindow(modal)
	}

	clearBox(d.body)
	if widget := d.app.render(modal.Body()); widget != nil {
		d.body.Append(widget)
	}
}

func (d *dialogs) openWindow(modal *view.Modal) {
	window := gtk.NewWindow()
	window.SetTitle(modal.Title)
	window.SetModal(true)
	window.SetTransientFor(&d.app.mainWindow.Window)
	window.SetDefaultSize(560, 480)

	headerBar := adw.NewHeaderBar()
	window.SetTitlebar(headerBar)

	scrolled := gtk.NewScrolledWindow()
	scrolled.SetPolicy(gtk.PolicyNever, gtk.PolicyAutomatic)
	scrolled.SetVExpand(true)

	body := gtk.NewBox(gtk.OrientationVertical, 18)
	body.SetMarginTop(18)
	body.SetMarginBottom(18)
	body.SetMarginStart(18)
	body.SetMarginEnd(18)
	scrolled.SetChild(body)
	window.SetChild(scrolled)

	// Closing the window closes the modal, which releases its handlers.
	window.ConnectCloseRequest(func() bool {
		if d.modal == modal {
			d.modal = nil
			d.window = nil
			d.body = nil
		}
		modal.Close()
		return false
	})

	d.modal = modal
	d.window = window
	d.body = body
	window.Present()
}

func (d *dialogs) closeWindow() {
	window := d.window
	d.modal = nil
	d.window = nil
	d.body = nil
	if window != nil {
		window.Destroy()
	}
}
