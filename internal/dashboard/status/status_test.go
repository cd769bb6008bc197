package status

import (
	"context"
	"net/http"
	"testing"

	"github.com/monorkin/home-network-monitor/internal/dashboard/dashboardtest"
	"github.com/monorkin/home-network-monitor/internal/view"
)

func TestLoadRendersFields(t *testing.T) {
	tc := dashboardtest.NewContext(t)
	tc.Appliance.Handle(http.MethodGet, "/api/status", `{"success":true,"data":{"app_name":"333home","version":"2.1.0","server":"uvicorn","debug":true}}`)

	v := New(tc.Context)
	if _, err := v.Load(context.Background(), false); err != nil {
		t.Fatalf("Load: %v", err)
	}
	v.Load(context.Background(), false)

	if got := tc.Appliance.Count(http.MethodGet, "/api/status"); got != 1 {
		t.Fatalf("status requests=%d want 1", got)
	}

	node := v.Slot.Current()
	fields := map[string]string{}
	view.Walk(node, func(n *view.Node) bool {
		if n.Kind == view.KindField {
			fields[n.Text] = n.Detail
		}
		return true
	})
	if fields["Version"] != "2.1.0" || fields["Storage"] != "-" || fields["Debug"] != "true" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestLoadFailureShowsRetry(t *testing.T) {
	tc := dashboardtest.NewContext(t)

	v := New(tc.Context)
	if _, err := v.Load(context.Background(), true); err == nil {
		t.Fatalf("expected an error for a missing endpoint")
	}

	node := v.Slot.Current()
	if node.Kind != view.KindError || node.Detail != "HTTP 404: Not Found" {
		t.Fatalf("unexpected panel %+v", node)
	}
	if view.FindAction(node, "status:retry") == nil {
		t.Fatalf("error panel has no retry action")
	}
}
