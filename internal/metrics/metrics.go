// Package metrics exports the state seen by the watch command as Prometheus gauges.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/dashboard/vpn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const NAMESPACE = "home_network"

// Recorder holds the gauges on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	devices       *prometheus.GaugeVec
	deviceUp      *prometheus.GaugeVec
	scans         prometheus.Gauge
	uniqueHosts   prometheus.Gauge
	lastScanHosts prometheus.Gauge
	lastScanTime  prometheus.Gauge
	vpnDevices    *prometheus.GaugeVec
	pollErrors    *prometheus.CounterVec
	polls         prometheus.Counter
}

func NewRecorder() *Recorder {
	recorder := &Recorder{
		registry: prometheus.NewRegistry(),
		devices: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Name:      "devices",
			Help:      "monitored devices by status",
		},
			[]string{"status"},
		),
		deviceUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Name:      "device_up",
			Help:      "1 when the monitored device is online, 0 otherwise",
		},
			[]string{"name", "ip"},
		),
		scans: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Name:      "scans_total",
			Help:      "scans recorded by the appliance",
		}),
		uniqueHosts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Name:      "unique_hosts",
			Help:      "distinct hosts ever seen by a scan",
		}),
		lastScanHosts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Name:      "last_scan_hosts",
			Help:      "hosts found by the most recent scan",
		}),
		lastScanTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Name:      "last_scan_timestamp_seconds",
			Help:      "time of the most recent scan in unix format",
		}),
		vpnDevices: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Name:      "vpn_devices",
			Help:      "tailnet devices by connectivity",
		},
			[]string{"state"},
		),
		pollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "poll_errors_total",
			Help:      "failed appliance polls by source",
		},
			[]string{"source"},
		),
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "polls_total",
			Help:      "completed poll rounds",
		}),
	}
	recorder.register()
	return recorder
}

func (recorder *Recorder) register() {
	recorder.registry.MustRegister(recorder.devices)
	recorder.registry.MustRegister(recorder.deviceUp)
	recorder.registry.MustRegister(recorder.scans)
	recorder.registry.MustRegister(recorder.uniqueHosts)
	recorder.registry.MustRegister(recorder.lastScanHosts)
	recorder.registry.MustRegister(recorder.lastScanTime)
	recorder.registry.MustRegister(recorder.vpnDevices)
	recorder.registry.MustRegister(recorder.pollErrors)
	recorder.registry.MustRegister(recorder.polls)
}

func (recorder *Recorder) Registry() *prometheus.Registry {
	return recorder.registry
}

func (recorder *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(recorder.registry, promhttp.HandlerOpts{})
}

// ObserveDevices replaces the per-device gauges with devices.
func (recorder *Recorder) ObserveDevices(devices []api.Device) {
	counts := map[string]float64{
		api.StatusOnline:  0,
		api.StatusOffline: 0,
		api.StatusUnknown: 0,
	}

	recorder.deviceUp.Reset()
	for _, device := range devices {
		status := device.DisplayStatus()
		counts[status]++

		up := 0.0
		if status == api.StatusOnline {
			up = 1
		}
		recorder.deviceUp.WithLabelValues(device.Name, device.IP).Set(up)
	}

	for status, count := range counts {
		recorder.devices.WithLabelValues(status).Set(count)
	}
}

func (recorder *Recorder) ObserveScanStats(stats *api.ScanStats) {
	if stats == nil {
		return
	}
	recorder.scans.Set(float64(stats.TotalScans))
	recorder.uniqueHosts.Set(float64(stats.UniqueDevices))
	recorder.lastScanHosts.Set(float64(stats.LastScanCount))
	if !stats.LastScanAt.IsZero() {
		recorder.lastScanTime.Set(float64(stats.LastScanAt.Unix()))
	}
}

func (recorder *Recorder) ObserveVPN(summary vpn.Summary) {
	recorder.vpnDevices.WithLabelValues("online").Set(float64(summary.Online))
	recorder.vpnDevices.WithLabelValues("offline").Set(float64(summary.Offline))
}

func (recorder *Recorder) ObserveError(source string) {
	recorder.pollErrors.WithLabelValues(source).Inc()
}

func (recorder *Recorder) ObservePoll() {
	recorder.polls.Inc()
}

// Poll runs one round against the appliance. A failing source is counted and logged;
// the others are still observed.
func (recorder *Recorder) Poll(ctx context.Context, client *api.Client, logger *slog.Logger) error {
	var firstErr error
	fail := func(source string, err error) {
		recorder.ObserveError(source)
		logger.Warn("Poll failed", "source", source, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	if devices, err := client.ListDevices(ctx, false); err != nil {
		fail("devices", err)
	} else {
		recorder.ObserveDevices(devices)
	}

	if stats, err := client.ScanStats(ctx); err != nil {
		fail("scan_stats", err)
	} else {
		recorder.ObserveScanStats(stats)
	}

	if config, err := client.VPNConfig(ctx); err != nil {
		fail("vpn", err)
	} else if config.Configured {
		if devices, err := client.VPNDevices(ctx); err != nil {
			fail("vpn", err)
		} else {
			now := time.Now()
			recorder.ObserveVPN(vpn.Summarize(devices, now, now))
		}
	}

	recorder.ObservePoll()
	return firstErr
}
