package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (clock *fakeClock) Now() time.Time {
	return clock.now
}

func (clock *fakeClock) Advance(d time.Duration) {
	clock.now = clock.now.Add(d)
}

func countingServer(t *testing.T, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestRequestCacheWithinTTL(t *testing.T) {
	server, hits := countingServer(t, `{"success":true,"data":[]}`)
	clock := &fakeClock{now: time.Unix(1000, 0)}
	client := NewClient(server.URL, WithClock(clock.Now))

	ctx := context.Background()
	if _, err := client.Request(ctx, "/api/devices", RequestOptions{UseCache: true}); err != nil {
		t.Fatalf("first request: %v", err)
	}
	clock.Advance(29 * time.Second)
	if _, err := client.Request(ctx, "/api/devices", RequestOptions{UseCache: true}); err != nil {
		t.Fatalf("second request: %v", err)
	}

	if got := atomic.LoadInt32(hits); got != 1 {
		t.Fatalf("requests within TTL = %d want 1", got)
	}
}

func TestRequestCacheAfterTTL(t *testing.T) {
	server, hits := countingServer(t, `{"success":true,"data":[]}`)
	clock := &fakeClock{now: time.Unix(1000, 0)}
	client := NewClient(server.URL, WithClock(clock.Now))

	ctx := context.Background()
	client.Request(ctx, "/api/devices", RequestOptions{UseCache: true})
	clock.Advance(DefaultCacheTTL)
	client.Request(ctx, "/api/devices", RequestOptions{UseCache: true})
	client.Request(ctx, "/api/devices", RequestOptions{UseCache: true})

	if got := atomic.LoadInt32(hits); got != 2 {
		t.Fatalf("requests after expiry = %d want 2", got)
	}
}

func TestRequestCacheIgnoresNonGET(t *testing.T) {
	server, hits := countingServer(t, `{"success":true}`)
	client := NewClient(server.URL)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := client.Request(ctx, "/api/devices", RequestOptions{Method: http.MethodPost, UseCache: true, Body: map[string]string{"ip": "10.0.0.5"}}); err != nil {
			t.Fatalf("post: %v", err)
		}
	}

	if got := atomic.LoadInt32(hits); got != 2 {
		t.Fatalf("POST requests = %d want 2", got)
	}
}

func TestRequestCacheKeyedByOptions(t *testing.T) {
	server, hits := countingServer(t, `{"success":true}`)
	client := NewClient(server.URL)

	ctx := context.Background()
	client.Request(ctx, "/api/status", RequestOptions{UseCache: true})
	client.Request(ctx, "/api/status", RequestOptions{UseCache: true, Body: map[string]string{"q": "nas"}})
	client.Request(ctx, "/api/status", RequestOptions{UseCache: true})

	if got := atomic.LoadInt32(hits); got != 2 {
		t.Fatalf("requests = %d want 2", got)
	}
}

func TestRequestCacheNormalizesMethod(t *testing.T) {
	server, hits := countingServer(t, `{"success":true}`)
	client := NewClient(server.URL)

	ctx := context.Background()
	for _, method := range []string{"", "GET", "get"} {
		if _, err := client.Request(ctx, "/api/status", RequestOptions{UseCache: true, Method: method}); err != nil {
			t.Fatalf("request with method %q: %v", method, err)
		}
	}

	if got := atomic.LoadInt32(hits); got != 1 {
		t.Fatalf("requests = %d want 1", got)
	}
}

func TestInvalidate(t *testing.T) {
	server, hits := countingServer(t, `{"success":true,"data":[]}`)
	client := NewClient(server.URL)

	ctx := context.Background()
	client.Request(ctx, "/api/devices", RequestOptions{UseCache: true})
	client.Invalidate("/api/devices")
	client.Request(ctx, "/api/devices", RequestOptions{UseCache: true})

	if got := atomic.LoadInt32(hits); got != 2 {
		t.Fatalf("requests = %d want 2", got)
	}
}

func TestRequestHTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Request(context.Background(), "/api/status", RequestOptions{})

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("error = %v want TransportError", err)
	}
	if transportErr.StatusCode != http.StatusServiceUnavailable || transportErr.Status != "Service Unavailable" {
		t.Fatalf("got %d %q", transportErr.StatusCode, transportErr.Status)
	}
}

type statusTransport struct {
	code   int
	status string
}

func (transport statusTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: transport.code,
		Status:     transport.status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader("")),
		Request:    request,
	}, nil
}

func TestRequestKeepsReasonPhrase(t *testing.T) {
	cases := map[string]statusTransport{
		"Down For Maintenance": {code: http.StatusServiceUnavailable, status: "503 Down For Maintenance"},
		"Bad Gateway":          {code: http.StatusBadGateway, status: "502"},
	}

	for want, transport := range cases {
		client := NewClient("http://appliance.test", WithHTTPClient(&http.Client{Transport: transport}))
		_, err := client.Request(context.Background(), "/api/status", RequestOptions{})

		var transportErr *TransportError
		if !errors.As(err, &transportErr) {
			t.Fatalf("%s: error = %v want TransportError", want, err)
		}
		if transportErr.StatusCode != transport.code || transportErr.Status != want {
			t.Fatalf("%s: got %d %q", want, transportErr.StatusCode, transportErr.Status)
		}
	}
}

func TestRequestHeaders(t *testing.T) {
	var userAgent, requestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		requestID = r.Header.Get(REQUEST_ID_HEADER)
		w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	NewClient(server.URL+"/").Request(context.Background(), "/api/status", RequestOptions{})

	if userAgent != USER_AGENT_PREFIX+"dev" {
		t.Fatalf("User-Agent = %q", userAgent)
	}
	if len(requestID) != 36 {
		t.Fatalf("X-Request-ID = %q", requestID)
	}
}

func TestApplicationErrors(t *testing.T) {
	cases := map[string]string{
		`{"success":false,"message":"Device already exists"}`:                  "",
		`{"success":false,"message":"Key expired","error":"expired_key"}`:      ErrorKindExpiredKey,
		`{"success":false,"message":"No key on file","error":"missing_key"}`:   ErrorKindMissingKey,
		`{"success":false,"message":"upstream timeout","error":"upstream_5xx"}`: "upstream_5xx",
	}

	for body, kind := range cases {
		server, _ := countingServer(t, body)
		client := NewClient(server.URL)

		_, err := client.ListDevices(context.Background(), false)

		var appErr *ApplicationError
		if !errors.As(err, &appErr) {
			t.Fatalf("%s: error = %v want ApplicationError", body, err)
		}
		if appErr.Kind != kind {
			t.Fatalf("%s: kind = %q want %q", body, appErr.Kind, kind)
		}

		var remediable *RemediableConfigError
		isRemediable := errors.As(err, &remediable)
		wantRemediable := kind == ErrorKindExpiredKey || kind == ErrorKindMissingKey
		if isRemediable != wantRemediable {
			t.Fatalf("%s: remediable = %v want %v", body, isRemediable, wantRemediable)
		}
		if isRemediable && remediable.HelpURL != TailscaleKeysURL {
			t.Fatalf("%s: help url = %q", body, remediable.HelpURL)
		}
	}
}

func TestUserMessageIsVerbatim(t *testing.T) {
	err := newApplicationError("/api/devices", "IP 10.0.0.5 déjà enregistrée", "")
	if got := UserMessage(err); got != "IP 10.0.0.5 déjà enregistrée" {
		t.Fatalf("UserMessage = %q", got)
	}
}

func TestSanitizeBaseURL(t *testing.T) {
	cases := map[string]string{
		"":                          "",
		" http://333home.local/ ":   "http://333home.local",
		"http://192.168.1.10:8000":  "http://192.168.1.10:8000",
		"http://192.168.1.10:8000//": "http://192.168.1.10:8000",
	}
	for raw, want := range cases {
		if got := SanitizeBaseURL(raw); got != want {
			t.Fatalf("SanitizeBaseURL(%q)=%q want %q", raw, got, want)
		}
	}
}
