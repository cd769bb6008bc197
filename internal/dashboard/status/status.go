package status

import (
	"context"
	"strconv"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/dashboard"
	"github.com/monorkin/home-network-monitor/internal/view"
)

// View renders the appliance's system status.
type View struct {
	ctx  *dashboard.Context
	Slot *view.Slot
}

func New(ctx *dashboard.Context) *View {
	return &View{ctx: ctx, Slot: view.NewSlot("status")}
}

// Load fetches /api/status, reusing a cached answer unless forceRefresh is set.
func (v *View) Load(ctx context.Context, forceRefresh bool) (*api.SystemStatus, error) {
	status, err := v.ctx.API.SystemStatus(ctx, !forceRefresh)
	if err != nil {
		v.ctx.Logger.Error("Failed to load system status", "error", err)
		v.Slot.Replace(view.Error("Unable to reach the appliance", api.UserMessage(err), &view.Action{
			ID:    "status:retry",
			Label: "Retry",
			Run: func(ctx context.Context) error {
				_, err := v.Load(ctx, true)
				return err
			},
		}))
		return nil, err
	}

	v.Slot.Replace(Render(status))
	return status, nil
}

func Render(status *api.SystemStatus) *view.Node {
	debug := view.Badge("production", view.ClassSuccess)
	if status.Debug {
		debug = view.Badge("debug", view.ClassWarning)
	}

	return view.Section("System status",
		view.Field("Application", dashboard.OrDash(status.AppName)),
		view.Field("Version", dashboard.OrDash(status.Version)),
		view.Field("Server", dashboard.OrDash(status.Server)),
		view.Field("Debug", strconv.FormatBool(status.Debug)),
		view.Field("Storage", dashboard.OrDash(status.Storage)),
		view.Group(debug),
	).WithID("status")
}
