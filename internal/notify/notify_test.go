package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

type failingNotifier struct{ err error }

func (f failingNotifier) Notify(context.Context, Notification) error { return f.err }

func TestTerminalFormat(t *testing.T) {
	cases := map[string]Notification{
		"✓ Device added\n":           {Level: LevelSuccess, Message: "Device added"},
		"✗ Scan: HTTP 500: boom\n":   {Level: LevelError, Title: "Scan", Message: "HTTP 500: boom"},
		"• Wake-on-LAN signal sent\n": {Message: "Wake-on-LAN signal sent"},
	}
	for want, notification := range cases {
		var out bytes.Buffer
		if err := NewTerminal(&out).Notify(context.Background(), notification); err != nil {
			t.Fatalf("Notify: %v", err)
		}
		if out.String() != want {
			t.Fatalf("Notify(%+v)=%q want %q", notification, out.String(), want)
		}
	}
}

func TestMultiDeliversToAll(t *testing.T) {
	var out bytes.Buffer
	boom := errors.New("no session bus")
	multi := Multi{failingNotifier{boom}, nil, NewTerminal(&out)}

	err := multi.Notify(context.Background(), Notification{Message: "hello"})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v want %v", err, boom)
	}
	if out.Len() == 0 {
		t.Fatalf("terminal notifier skipped after a failure")
	}
}
