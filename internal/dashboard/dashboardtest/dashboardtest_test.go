package dashboardtest

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestApplianceRecordsBodyAndPassesItOn(t *testing.T) {
	appliance := NewAppliance(t)

	var received string
	appliance.HandleFunc(http.MethodPost, "/api/devices", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received = string(body)
		io.WriteString(w, `{"success":true}`)
	})

	sent := `{"name":"NAS","ip":"10.0.0.2"}`
	response, err := http.Post(appliance.URL+"/api/devices", "application/json", strings.NewReader(sent))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	response.Body.Close()

	if received != sent {
		t.Fatalf("handler read %q want %q", received, sent)
	}
	calls := appliance.Calls()
	if len(calls) != 1 || calls[0].Body != sent {
		t.Fatalf("recorded calls %+v", calls)
	}
}
