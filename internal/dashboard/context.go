package dashboard

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/notify"
	"github.com/monorkin/home-network-monitor/internal/view"
)

type Tab string

const (
	TabStatus  Tab = "status"
	TabDevices Tab = "devices"
	TabNetwork Tab = "network"
	TabHistory Tab = "history"
	TabVPN     Tab = "vpn"
)

var Tabs = []Tab{TabStatus, TabDevices, TabNetwork, TabHistory, TabVPN}

func ParseTab(value string) (Tab, bool) {
	for _, tab := range Tabs {
		if string(tab) == value {
			return tab, true
		}
	}
	return "", false
}

func (tab Tab) Title() string {
	switch tab {
	case TabStatus:
		return "Status"
	case TabDevices:
		return "Devices"
	case TabNetwork:
		return "Network"
	case TabHistory:
		return "History"
	case TabVPN:
		return "VPN"
	}
	return string(tab)
}

// Confirmation is a question asked before an irreversible action.
type Confirmation struct {
	Title        string
	Message      string
	ConfirmLabel string
}

type Confirmer interface {
	Confirm(ctx context.Context, confirmation Confirmation) (bool, error)
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, confirmation Confirmation) (bool, error)

func (fn ConfirmerFunc) Confirm(ctx context.Context, confirmation Confirmation) (bool, error) {
	return fn(ctx, confirmation)
}

// AlwaysConfirm affirms every confirmation. It backs the CLI's --yes flag.
var AlwaysConfirm = ConfirmerFunc(func(context.Context, Confirmation) (bool, error) {
	return true, nil
})

type Navigator interface {
	SwitchTab(ctx context.Context, tab Tab) error
}

// Context carries everything a view controller needs. One is built at start-up and
// handed to every controller.
type Context struct {
	API       *api.Client
	Logger    *slog.Logger
	Notifier  notify.Notifier
	Confirmer Confirmer
	Modals    *view.ModalHost
	Now       func() time.Time

	navigator Navigator
}

func NewContext(client *api.Client, logger *slog.Logger, notifier notify.Notifier, confirmer Confirmer) *Context {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Context{
		API:       client,
		Logger:    logger,
		Notifier:  notifier,
		Confirmer: confirmer,
		Modals:    view.NewModalHost(),
		Now:       time.Now,
	}
}

func (c *Context) SetNavigator(navigator Navigator) {
	c.navigator = navigator
}

func (c *Context) SwitchTab(ctx context.Context, tab Tab) error {
	if c.navigator == nil {
		c.Logger.Debug("No navigator, ignoring tab switch", "tab", tab)
		return nil
	}
	return c.navigator.SwitchTab(ctx, tab)
}

// Notify delivers a notification. Delivery failures are logged, never returned.
func (c *Context) Notify(ctx context.Context, level notify.Level, message string) {
	if c.Notifier == nil {
		return
	}
	if err := c.Notifier.Notify(ctx, notify.Notification{Level: level, Message: message}); err != nil {
		c.Logger.Warn("Failed to deliver notification", "error", err)
	}
}

// NotifyError reports err to the user with the appliance's message verbatim.
func (c *Context) NotifyError(ctx context.Context, err error) {
	c.Notify(ctx, notify.LevelError, api.UserMessage(err))
}

// Confirm asks the Confirmer. Without one, nothing is confirmed.
func (c *Context) Confirm(ctx context.Context, confirmation Confirmation) bool {
	if c.Confirmer == nil {
		return false
	}
	ok, err := c.Confirmer.Confirm(ctx, confirmation)
	if err != nil {
		c.Logger.Warn("Confirmation failed", "error", err)
		return false
	}
	return ok
}

func (c *Context) CurrentTime() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}
