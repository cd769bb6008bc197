package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a transient user-visible message.
type Notification struct {
	Level   Level
	Title   string
	Message string
}

type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// Terminal prints notifications as single lines.
type Terminal struct {
	mutex sync.Mutex
	w     io.Writer
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (terminal *Terminal) Notify(ctx context.Context, notification Notification) error {
	terminal.mutex.Lock()
	defer terminal.mutex.Unlock()

	line := notification.Message
	if notification.Title != "" {
		line = notification.Title + ": " + notification.Message
	}
	_, err := fmt.Fprintf(terminal.w, "%s %s\n", levelSymbol(notification.Level), line)
	return err
}

func levelSymbol(level Level) string {
	switch level {
	case LevelSuccess:
		return "✓"
	case LevelWarning:
		return "!"
	case LevelError:
		return "✗"
	default:
		return "•"
	}
}

// Multi fans a notification out to several notifiers and returns the first error.
type Multi []Notifier

func (multi Multi) Notify(ctx context.Context, notification Notification) error {
	var first error
	for _, notifier := range multi {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, notification); err != nil && first == nil {
			first = err
		}
	}
	return first
}
