package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/dashboard"
	"github.com/monorkin/home-network-monitor/internal/metrics"
	"github.com/monorkin/home-network-monitor/internal/notify"
)

const (
	DEFAULT_WATCH_INTERVAL = 30 * time.Second
	MIN_WATCH_INTERVAL     = time.Second
	METRICS_PATH           = "/metrics"
)

func newWatchCmd(opts *options) *cobra.Command {
	var (
		interval    time.Duration
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the appliance and report device status changes",
		Long: `Poll the appliance at a fixed interval, print a summary line per round and send a
notification whenever a monitored device goes online or offline. With --metrics-addr
the observed state is also exported for Prometheus at ` + METRICS_PATH + `.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval < MIN_WATCH_INTERVAL {
				return fmt.Errorf("--interval must be at least %s", MIN_WATCH_INTERVAL)
			}

			s, err := opts.newSession(cmd)
			if err != nil {
				return err
			}

			notifier, closeNotifier := opts.watchNotifier(cmd.ErrOrStderr())
			defer closeNotifier()

			watcher := &watcher{
				client:   s.client,
				recorder: metrics.NewRecorder(),
				tracker:  newStatusTracker(),
				notifier: notifier,
				logger:   opts.logger,
				out:      cmd.OutOrStdout(),
				now:      s.context.CurrentTime,
			}

			ctx := cmd.Context()
			errs := make(chan error, 1)
			if metricsAddr != "" {
				go func() {
					errs <- serveMetrics(ctx, metricsAddr, watcher.recorder, opts.logger)
				}()
			}

			return watcher.run(ctx, interval, errs)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", DEFAULT_WATCH_INTERVAL, "Time between polls")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9333")
	return cmd
}

// watchNotifier prints transitions and, when enabled in the settings and a session
// bus is available, also sends them as desktop notifications.
func (opts *options) watchNotifier(w io.Writer) (notify.Notifier, func()) {
	terminal := notify.NewTerminal(w)
	if !opts.settings.DesktopNotifications {
		return terminal, func() {}
	}

	desktop, err := notify.NewDesktop()
	if err != nil {
		opts.logger.Debug("Desktop notifications unavailable", "error", err)
		return terminal, func() {}
	}
	return notify.Multi{terminal, desktop}, func() { desktop.Close() }
}

type watcher struct {
	client   *api.Client
	recorder *metrics.Recorder
	tracker  *statusTracker
	notifier notify.Notifier
	logger   *slog.Logger
	out      io.Writer
	now      func() time.Time
}

// run polls until ctx ends or errs delivers an error.
func (w *watcher) run(ctx context.Context, interval time.Duration, errs <-chan error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Watch stopped")
			return nil
		case err := <-errs:
			return err
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *watcher) poll(ctx context.Context) {
	devices, err := w.client.ListDevices(ctx, false)
	if err != nil {
		w.logger.Warn("Failed to list devices", "error", err)
		fmt.Fprintf(w.out, "%s appliance unreachable: %s\n", w.now().Format(dashboard.TIME_FORMAT), api.UserMessage(err))
	} else {
		for _, transition := range w.tracker.Update(devices) {
			level := notify.LevelWarning
			if transition.To == api.StatusOnline {
				level = notify.LevelSuccess
			}
			if err := w.notifier.Notify(ctx, notify.Notification{Level: level, Title: "Device " + transition.To, Message: transition.String()}); err != nil {
				w.logger.Warn("Failed to deliver notification", "error", err)
			}
		}
		fmt.Fprintf(w.out, "%s %s\n", w.now().Format(dashboard.TIME_FORMAT), summarizeDevices(devices))
	}

	// Failures are already counted and logged by the recorder.
	w.recorder.Poll(ctx, w.client, w.logger)
}

func summarizeDevices(devices []api.Device) string {
	online, offline := 0, 0
	for _, device := range devices {
		switch device.DisplayStatus() {
		case api.StatusOnline:
			online++
		case api.StatusOffline:
			offline++
		}
	}
	return fmt.Sprintf("%d devices, %d online, %d offline", len(devices), online, offline)
}

// transition is a change of a device's displayed status between two polls.
type transition struct {
	Name string
	IP   string
	From string
	To   string
}

func (t transition) String() string {
	return fmt.Sprintf("%s (%s) is now %s", t.Name, t.IP, t.To)
}

// statusTracker remembers each device's last status. The first observation of a
// device is never a transition, and neither is a change to or from unknown.
type statusTracker struct {
	statuses map[string]string
}

func newStatusTracker() *statusTracker {
	return &statusTracker{statuses: make(map[string]string)}
}

func (tracker *statusTracker) Update(devices []api.Device) []transition {
	var transitions []transition
	seen := make(map[string]bool, len(devices))

	for _, device := range devices {
		identity := device.Identity()
		seen[identity] = true

		status := device.DisplayStatus()
		previous, known := tracker.statuses[identity]
		tracker.statuses[identity] = status

		if !known || previous == status || previous == api.StatusUnknown || status == api.StatusUnknown {
			continue
		}

		name := device.Name
		if name == "" {
			name = device.IP
		}
		transitions = append(transitions, transition{Name: name, IP: device.IP, From: previous, To: status})
	}

	for identity := range tracker.statuses {
		if !seen[identity] {
			delete(tracker.statuses, identity)
		}
	}

	sort.Slice(transitions, func(i, j int) bool {
		return dashboard.CompareIP(transitions[i].IP, transitions[j].IP) < 0
	})
	return transitions
}

// serveMetrics serves the recorder until ctx ends.
func serveMetrics(ctx context.Context, addr string, recorder *metrics.Recorder, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(METRICS_PATH, recorder.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics", "addr", addr, "path", METRICS_PATH)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve metrics: %w", err)
	}
	return nil
}
