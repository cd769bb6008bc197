// Package dashboardtest provides a scriptable fake appliance and recording doubles for
// controller tests.
package dashboardtest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/dashboard"
	"github.com/monorkin/home-network-monitor/internal/notify"
)

// Call is one request received by the fake appliance.
type Call struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// Appliance answers "METHOD /path" routes with canned JSON bodies.
type Appliance struct {
	*httptest.Server

	mutex  sync.Mutex
	routes map[string]http.HandlerFunc
	calls  []Call
}

func NewAppliance(t *testing.T) *Appliance {
	t.Helper()
	appliance := &Appliance{routes: make(map[string]http.HandlerFunc)}
	appliance.Server = httptest.NewServer(http.HandlerFunc(appliance.serve))
	t.Cleanup(appliance.Server.Close)
	return appliance
}

// Handle registers a canned body for method and path. A later call replaces it.
func (appliance *Appliance) Handle(method, path, body string) {
	appliance.HandleFunc(method, path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	})
}

func (appliance *Appliance) HandleFunc(method, path string, handler http.HandlerFunc) {
	appliance.mutex.Lock()
	defer appliance.mutex.Unlock()
	appliance.routes[method+" "+path] = handler
}

func (appliance *Appliance) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	appliance.mutex.Lock()
	appliance.calls = append(appliance.calls, Call{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})
	handler, ok := appliance.routes[r.Method+" "+r.URL.Path]
	appliance.mutex.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	handler(w, r)
}

func (appliance *Appliance) Calls() []Call {
	appliance.mutex.Lock()
	defer appliance.mutex.Unlock()
	return append([]Call(nil), appliance.calls...)
}

// Count returns how many requests matched method and path.
func (appliance *Appliance) Count(method, path string) int {
	count := 0
	for _, call := range appliance.Calls() {
		if call.Method == method && call.Path == path {
			count++
		}
	}
	return count
}

// Notifier records notifications.
type Notifier struct {
	mutex         sync.Mutex
	Notifications []notify.Notification
}

func (notifier *Notifier) Notify(ctx context.Context, notification notify.Notification) error {
	notifier.mutex.Lock()
	defer notifier.mutex.Unlock()
	notifier.Notifications = append(notifier.Notifications, notification)
	return nil
}

// Last returns the most recent notification.
func (notifier *Notifier) Last() (notify.Notification, bool) {
	notifier.mutex.Lock()
	defer notifier.mutex.Unlock()
	if len(notifier.Notifications) == 0 {
		return notify.Notification{}, false
	}
	return notifier.Notifications[len(notifier.Notifications)-1], true
}

// Confirmer answers every confirmation with Answer and records the questions asked.
type Confirmer struct {
	mutex  sync.Mutex
	Answer bool
	Asked  []dashboard.Confirmation
}

func (confirmer *Confirmer) Confirm(ctx context.Context, confirmation dashboard.Confirmation) (bool, error) {
	confirmer.mutex.Lock()
	defer confirmer.mutex.Unlock()
	confirmer.Asked = append(confirmer.Asked, confirmation)
	return confirmer.Answer, nil
}

// Clock is a settable time source.
type Clock struct {
	mutex sync.Mutex
	now   time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (clock *Clock) Now() time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return clock.now
}

func (clock *Clock) Advance(d time.Duration) {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	clock.now = clock.now.Add(d)
}

// Context is a dashboard context wired to appliance with recording doubles.
type Context struct {
	*dashboard.Context
	Appliance *Appliance
	Notifier  *Notifier
	Confirmer *Confirmer
	Clock     *Clock
}

func NewContext(t *testing.T) *Context {
	t.Helper()
	appliance := NewAppliance(t)
	clock := NewClock(time.Unix(1_700_000_000, 0))
	notifier := &Notifier{}
	confirmer := &Confirmer{}

	client := api.NewClient(appliance.URL, api.WithClock(clock.Now))
	ctx := dashboard.NewContext(client, nil, notifier, confirmer)
	ctx.Now = clock.Now

	return &Context{
		Context:   ctx,
		Appliance: appliance,
		Notifier:  notifier,
		Confirmer: confirmer,
		Clock:     clock,
	}
}
