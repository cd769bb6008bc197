package app

import (
	"strings"

	adw "github.com/diamondburned/gotk4-adwaita/pkg/adw"
	gtk "github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/monorkin/home-network-monitor/internal/view"
)

// render builds the widget tree for node. Hidden nodes render to nil.
func (app *App) render(node *view.Node) gtk.Widgetter {
	if node == nil || node.Hidden {
		return nil
	}

	var widget gtk.Widgetter
	switch node.Kind {
	case view.KindSection:
		widget = app.createSection(node)
	case view.KindText:
		widget = createLabel(node.Text)
	case view.KindBadge:
		badge := gtk.NewLabel(node.Text)
		badge.AddCSSClass("caption-heading")
		badge.SetVAlign(gtk.AlignCenter)
		widget = badge
	case view.KindField:
		widget = createFieldRow(node.Text, node.Detail)
	case view.KindRow:
		widget = app.createRow(node)
	case view.KindList:
		widget = app.createList(node)
	case view.KindTable:
		widget = createTable(node)
	case view.KindGroup:
		box := gtk.NewBox(gtk.OrientationHorizontal, 6)
		box.SetVAlign(gtk.AlignCenter)
		app.appendChildren(box, node.Children)
		widget = box
	case view.KindButton:
		widget = app.createButton(node.Action)
	case view.KindProgress:
		widget = createProgress(node)
	case view.KindEmpty, view.KindError:
		widget = app.createStatusBox(node)
	case view.KindLink:
		widget = gtk.NewLinkButtonWithLabel(node.Href, node.Text)
	case view.KindCode:
		code := gtk.NewLabel(node.Text)
		code.AddCSSClass("monospace")
		code.SetSelectable(true)
		code.SetWrap(true)
		code.SetXAlign(0)
		widget = code
	default:
		app.logger.Debug("Unknown view node", "kind", node.Kind)
		return nil
	}
	if widget == nil {
		return nil
	}

	base := gtk.BaseWidget(widget)
	if node.ID != "" {
		base.SetName(node.ID)
	}
	if class := cssClass(node.Class); class != "" {
		base.AddCSSClass(class)
	}
	return widget
}

func (app *App) appendChildren(box *gtk.Box, children []*view.Node) {
	for _, child := range children {
		if widget := app.render(child); widget != nil {
			box.Append(widget)
		}
	}
}

func (app *App) createSection(node *view.Node) *adw.PreferencesGroup {
	group := adw.NewPreferencesGroup()
	if node.Text != "" {
		group.SetTitle(escapeMarkup(node.Text))
	}
	if node.Detail != "" {
		group.SetDescription(escapeMarkup(node.Detail))
	}
	for _, child := range node.Children {
		if widget := app.render(child); widget != nil {
			group.Add(widget)
		}
	}
	return group
}

func createLabel(text string) *gtk.Label {
	label := gtk.NewLabel(text)
	label.SetHAlign(gtk.AlignStart)
	label.SetXAlign(0)
	label.SetWrap(true)
	return label
}

func createFieldRow(title, value string) *adw.ActionRow {
	row := adw.NewActionRow()
	row.SetUseMarkup(false)
	row.SetTitle(title)

	valueLabel := gtk.NewLabel(value)
	valueLabel.AddCSSClass("dim-label")
	valueLabel.SetSelectable(true)
	valueLabel.SetWrap(true)
	row.AddSuffix(valueLabel)

	return row
}

func (app *App) createRow(node *view.Node) *adw.ActionRow {
	row := adw.NewActionRow()
	row.SetUseMarkup(false)
	row.SetTitle(node.Text)
	if node.Detail != "" {
		row.SetSubtitle(node.Detail)
	}

	if node.Icon != "" {
		icon := gtk.NewLabel(node.Icon)
		icon.AddCSSClass("title-3")
		row.AddPrefix(icon)
	}

	for _, child := range node.Children {
		if widget := app.render(child); widget != nil {
			gtk.BaseWidget(widget).SetVAlign(gtk.AlignCenter)
			row.AddSuffix(widget)
		}
	}

	if node.Action != nil {
		action := node.Action
		row.SetActivatable(true)
		row.ConnectActivated(func() {
			app.runAction(action.ID, action.Run)
		})
	}

	return row
}

func (app *App) createList(node *view.Node) *gtk.ListBox {
	listBox := gtk.NewListBox()
	listBox.SetSelectionMode(gtk.SelectionNone)
	listBox.AddCSSClass("boxed-list")
	for _, child := range node.Children {
		if widget := app.render(child); widget != nil {
			listBox.Append(widget)
		}
	}
	return listBox
}

// createTable lays a table out on a grid. The table's own cells are the header.
func createTable(node *view.Node) *gtk.ScrolledWindow {
	grid := gtk.NewGrid()
	grid.SetColumnSpacing(18)
	grid.SetRowSpacing(6)
	grid.SetMarginTop(6)
	grid.SetMarginBottom(6)

	for column, header := range node.Cells {
		label := createLabel(header)
		label.AddCSSClass("heading")
		grid.Attach(label, column, 0, 1, 1)
	}
	for row, child := range node.Children {
		if child == nil || child.Hidden {
			continue
		}
		for column, cell := range child.Cells {
			label := createLabel(cell)
			label.SetSelectable(true)
			grid.Attach(label, column, row+1, 1, 1)
		}
	}

	scrolled := gtk.NewScrolledWindow()
	scrolled.SetPolicy(gtk.PolicyAutomatic, gtk.PolicyNever)
	scrolled.SetChild(grid)
	return scrolled
}

func (app *App) createButton(action *view.Action) gtk.Widgetter {
	if action == nil {
		return nil
	}

	label := action.Label
	if action.Icon != "" {
		label = action.Icon + " " + label
	}
	button := gtk.NewButtonWithLabel(label)
	button.SetSensitive(!action.Disabled)
	if action.Destructive {
		button.AddCSSClass("destructive-action")
	}
	button.ConnectClicked(func() {
		app.runAction(action.ID, action.Run)
	})
	return button
}

func createProgress(node *view.Node) *gtk.ProgressBar {
	progress := gtk.NewProgressBar()
	progress.SetFraction(node.Value / 100)
	if node.Text != "" {
		progress.SetText(node.Text)
		progress.SetShowText(true)
	}
	return progress
}

// createStatusBox is the centered icon, title and description used for empty and
// error states.
func (app *App) createStatusBox(node *view.Node) *gtk.Box {
	statusBox := gtk.NewBox(gtk.OrientationVertical, 12)
	statusBox.SetHAlign(gtk.AlignCenter)
	statusBox.SetVAlign(gtk.AlignCenter)
	statusBox.SetMarginTop(48)
	statusBox.SetMarginBottom(48)

	if node.Icon != "" {
		icon := gtk.NewLabel(node.Icon)
		icon.AddCSSClass("title-1")
		statusBox.Append(icon)
	}

	title := gtk.NewLabel(node.Text)
	title.AddCSSClass("title-2")
	title.SetWrap(true)
	statusBox.Append(title)

	if node.Detail != "" {
		description := gtk.NewLabel(node.Detail)
		description.AddCSSClass("dim-label")
		description.SetWrap(true)
		description.SetJustify(gtk.JustifyCenter)
		statusBox.Append(description)
	}

	if len(node.Children) > 0 {
		buttons := gtk.NewBox(gtk.OrientationHorizontal, 6)
		buttons.SetHAlign(gtk.AlignCenter)
		app.appendChildren(buttons, node.Children)
		statusBox.Append(buttons)
	}

	return statusBox
}

// cssClass maps a semantic class to the libadwaita style class.
func cssClass(class string) string {
	switch class {
	case view.ClassOnline, view.ClassSuccess:
		return "success"
	case view.ClassOffline, view.ClassError, view.ClassDestructive:
		return "error"
	case view.ClassWarning:
		return "warning"
	case view.ClassUnknown, view.ClassMuted:
		return "dim-label"
	case view.ClassAccent:
		return "accent"
	}
	return ""
}

var markupReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// escapeMarkup escapes text for widgets that always parse Pango markup.
func escapeMarkup(text string) string {
	return markupReplacer.Replace(text)
}
