// Package controllers ties the view controllers into the tabbed dashboard.
package controllers

import (
	"context"
	"fmt"
	"sync"

	"github.com/monorkin/home-network-monitor/internal/dashboard"
	"github.com/monorkin/home-network-monitor/internal/dashboard/catalog"
	"github.com/monorkin/home-network-monitor/internal/dashboard/discovery"
	"github.com/monorkin/home-network-monitor/internal/dashboard/history"
	"github.com/monorkin/home-network-monitor/internal/dashboard/status"
	"github.com/monorkin/home-network-monitor/internal/dashboard/vpn"
	"github.com/monorkin/home-network-monitor/internal/view"
)

// Dashboard owns one controller per tab and tracks the current tab.
type Dashboard struct {
	ctx *dashboard.Context

	Status    *status.View
	Catalog   *catalog.View
	Discovery *discovery.Controller
	History   *history.Controller
	VPN       *vpn.Controller

	mutex     sync.Mutex
	current   dashboard.Tab
	started   bool
	listeners map[int]func(dashboard.Tab)
	nextID    int
}

func New(ctx *dashboard.Context, discoveryOptions ...discovery.Option) *Dashboard {
	devices := catalog.New(ctx)
	d := &Dashboard{
		ctx:       ctx,
		Status:    status.New(ctx),
		Catalog:   devices,
		Discovery: discovery.New(ctx, devices, discoveryOptions...),
		History:   history.New(ctx, devices),
		VPN:       vpn.New(ctx),
		listeners: make(map[int]func(dashboard.Tab)),
	}
	ctx.SetNavigator(d)
	return d
}

// Start shows the status tab and makes the one start-up auto-sync attempt. Calling it
// again does nothing.
func (d *Dashboard) Start(ctx context.Context) error {
	d.mutex.Lock()
	if d.started {
		d.mutex.Unlock()
		return nil
	}
	d.started = true
	d.current = dashboard.TabStatus
	d.mutex.Unlock()

	d.ctx.Logger.Debug("Dashboard starting", "tab", dashboard.TabStatus)
	d.notifyListeners(dashboard.TabStatus)

	err := d.Load(ctx, dashboard.TabStatus)
	d.VPN.AutoSync(ctx)
	return err
}

func (d *Dashboard) Current() dashboard.Tab {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.current
}

// SwitchTab makes tab current and loads its data. Switching to the current tab is a
// no-op.
func (d *Dashboard) SwitchTab(ctx context.Context, tab dashboard.Tab) error {
	if _, ok := dashboard.ParseTab(string(tab)); !ok {
		return fmt.Errorf("unknown tab %q", tab)
	}

	d.mutex.Lock()
	if d.current == tab {
		d.mutex.Unlock()
		d.ctx.Logger.Debug("Already on tab", "tab", tab)
		return nil
	}
	previous := d.current
	d.current = tab
	d.mutex.Unlock()

	d.ctx.Logger.Debug("Switching tab", "from", previous, "to", tab)
	d.notifyListeners(tab)
	return d.Load(ctx, tab)
}

// Load fetches the data shown on tab.
func (d *Dashboard) Load(ctx context.Context, tab dashboard.Tab) error {
	switch tab {
	case dashboard.TabStatus:
		_, err := d.Status.Load(ctx, false)
		return err
	case dashboard.TabDevices:
		_, err := d.Catalog.List(ctx, false)
		return err
	case dashboard.TabNetwork:
		// Scans are slow and only run on request.
		d.Discovery.Slot.Replace(d.Discovery.Render())
		return nil
	case dashboard.TabHistory:
		if _, err := d.History.Load(ctx); err != nil {
			return err
		}
		_, err := d.History.Events(ctx, history.DEFAULT_EVENTS_LIMIT)
		return err
	case dashboard.TabVPN:
		return d.VPN.Load(ctx)
	}
	return fmt.Errorf("unknown tab %q", tab)
}

// Slot returns the slot holding the main panel of tab.
func (d *Dashboard) Slot(tab dashboard.Tab) *view.Slot {
	switch tab {
	case dashboard.TabStatus:
		return d.Status.Slot
	case dashboard.TabDevices:
		return d.Catalog.Slot
	case dashboard.TabNetwork:
		return d.Discovery.Slot
	case dashboard.TabHistory:
		return d.History.Slot
	case dashboard.TabVPN:
		return d.VPN.Slot
	}
	return nil
}

// Slots returns every slot of tab, main panel first.
func (d *Dashboard) Slots(tab dashboard.Tab) []*view.Slot {
	switch tab {
	case dashboard.TabHistory:
		return []*view.Slot{d.History.Slot, d.History.EventsSlot, d.History.DisconnectedSlot}
	case dashboard.TabVPN:
		return []*view.Slot{d.VPN.Slot, d.VPN.RoutesSlot, d.VPN.ACLSlot}
	}
	if slot := d.Slot(tab); slot != nil {
		return []*view.Slot{slot}
	}
	return nil
}

// OnTabChange registers fn to run whenever the current tab changes.
func (d *Dashboard) OnTabChange(fn func(dashboard.Tab)) func() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	return func() {
		d.mutex.Lock()
		defer d.mutex.Unlock()
		delete(d.listeners, id)
	}
}

func (d *Dashboard) notifyListeners(tab dashboard.Tab) {
	d.mutex.Lock()
	listeners := make([]func(dashboard.Tab), 0, len(d.listeners))
	for _, fn := range d.listeners {
		listeners = append(listeners, fn)
	}
	d.mutex.Unlock()

	for _, fn := range listeners {
		fn(tab)
	}
}
