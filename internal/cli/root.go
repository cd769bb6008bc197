package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/app"
	"github.com/monorkin/home-network-monitor/internal/config"
	"github.com/monorkin/home-network-monitor/internal/controllers"
	"github.com/monorkin/home-network-monitor/internal/dashboard"
	"github.com/monorkin/home-network-monitor/internal/notify"
	"github.com/monorkin/home-network-monitor/internal/view"
)

// options holds the global flags shared by every command.
type options struct {
	url     string
	verbose bool
	yes     bool
	json    bool
	html    bool

	logger   *slog.Logger
	settings *config.Settings
}

// NewRootCommand builds the command tree. Without a subcommand it starts the desktop
// dashboard.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "home-network-monitor",
		Short: "Home network appliance dashboard",
		Long: `A dashboard for a home network monitoring appliance.

It shows the appliance's status, the catalog of monitored devices, network scans,
the device history and the Tailscale VPN overlay. Run without a command to open the
desktop dashboard, or use the commands below from a terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.setupLogger(cmd.ErrOrStderr())
			opts.loadSettings()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSession(cmd)
			if err != nil {
				return err
			}
			return opts.runDesktop(s)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.url, "url", "", "Appliance base URL (discovered on the LAN when empty)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose (debug) logging")
	flags.BoolVarP(&opts.yes, "yes", "y", false, "Answer yes to every confirmation")
	flags.BoolVar(&opts.json, "json", false, "Print results as JSON")
	flags.BoolVar(&opts.html, "html", false, "Print results as a standalone HTML document")
	rootCmd.MarkFlagsMutuallyExclusive("json", "html")

	rootCmd.AddCommand(
		newStatusCmd(opts),
		newDeviceCmd(opts),
		newScanCmd(opts),
		newHistoryCmd(opts),
		newVPNCmd(opts),
		newApplianceCmd(opts),
		newWatchCmd(opts),
		newSandboxCmd(opts),
		newVersionCmd(opts),
	)

	return rootCmd
}

// Execute runs the command tree and reports a failure on stderr.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %s\n", api.UserMessage(err))
		return err
	}
	return nil
}

// setupLogger configures the logger based on the verbose flag
func (opts *options) setupLogger(w io.Writer) {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}

	opts.logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))

	slog.SetDefault(opts.logger)
}

func (opts *options) loadSettings() {
	created, settings := config.LoadOrInitializeSettingsFromDefaultLocation()
	if created {
		opts.logger.Debug("Creating settings file", "path", config.DefaultSettingsPath())
		if err := settings.Save(); err != nil {
			opts.logger.Warn("Failed to save new settings", "error", err)
		}
	}
	opts.settings = settings
}

// session is everything a command needs to talk to the appliance.
type session struct {
	client    *api.Client
	context   *dashboard.Context
	dashboard *controllers.Dashboard
}

func (opts *options) newSession(cmd *cobra.Command) (*session, error) {
	url, err := opts.applianceURL(cmd.Context())
	if err != nil {
		return nil, err
	}
	opts.logger.Debug("Using appliance", "url", url)

	client := api.NewClient(url,
		api.WithLogger(opts.logger),
		api.WithCacheTTL(opts.settings.CacheTTL()),
	)

	var confirmer dashboard.Confirmer = newPromptConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr())
	if opts.yes {
		confirmer = dashboard.AlwaysConfirm
	}

	ctx := dashboard.NewContext(client, opts.logger, notify.NewTerminal(cmd.ErrOrStderr()), confirmer)
	return &session{
		client:    client,
		context:   ctx,
		dashboard: controllers.New(ctx),
	}, nil
}

// applianceURL resolves the appliance from the --url flag, then the environment and
// settings, then mDNS discovery.
func (opts *options) applianceURL(ctx context.Context) (string, error) {
	if opts.url != "" {
		return api.SanitizeBaseURL(opts.url), nil
	}
	if url := opts.settings.ResolvedApplianceURL(); url != "" {
		return api.SanitizeBaseURL(url), nil
	}

	opts.logger.Info("No appliance URL configured, searching the local network")
	appliances, err := api.DiscoverAppliances(ctx, opts.settings.HostnamePrefix(), api.DISCOVERY_TIMEOUT, opts.logger)
	if err != nil {
		return "", fmt.Errorf("failed to discover the appliance: %w", err)
	}
	if len(appliances) == 0 {
		return "", errors.New("no appliance found on the local network, pass --url or set " + config.URL_ENV)
	}
	return appliances[0].URL(), nil
}

// print writes node in the requested format. data is what --json prints.
func (opts *options) print(cmd *cobra.Command, title string, node *view.Node, data any) error {
	w := cmd.OutOrStdout()
	switch {
	case opts.json:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	case opts.html:
		return view.RenderHTML(w, title, node)
	default:
		return view.RenderText(w, node)
	}
}

// printMessage writes a one-line outcome, or {"message": ...} under --json.
func (opts *options) printMessage(cmd *cobra.Command, message string) error {
	if opts.json {
		return opts.print(cmd, "", nil, map[string]string{"message": message})
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), message)
	return err
}

// runDesktop opens the GTK dashboard. It builds its own dashboard context so that
// confirmations and notifications go through the desktop.
func (opts *options) runDesktop(s *session) error {
	desktop := app.NewApp(s.client, opts.settings, opts.logger)
	if code := desktop.Run(); code != 0 {
		os.Exit(code)
	}
	return nil
}
