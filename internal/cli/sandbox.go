package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/monorkin/home-network-monitor/internal/config"
	"github.com/monorkin/home-network-monitor/internal/database"
	"github.com/monorkin/home-network-monitor/internal/sandbox"
)

func newSandboxCmd(opts *options) *cobra.Command {
	var (
		listen  string
		network string
		dbPath  string
		noSeed  bool
	)

	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Run a simulated appliance for development",
		Long: `Serve the appliance's JSON API from a local sqlite database. Scans report a fixed
set of hosts and the Tailscale endpoints are simulated, so the dashboard can be used
without real hardware.

Example:
  home-network-monitor sandbox --listen 127.0.0.1:8333 &
  home-network-monitor --url http://127.0.0.1:8333 device list`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen == "" {
				listen = opts.settings.SandboxAddress()
			}

			var (
				db  *gorm.DB
				err error
			)
			if dbPath == "" {
				db, err = database.OpenDefault()
			} else {
				db, err = database.Open(dbPath)
			}
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}

			if !noSeed {
				if err := sandbox.Seed(db, time.Now()); err != nil {
					return fmt.Errorf("failed to seed the sandbox: %w", err)
				}
			}

			server := sandbox.New(db, sandbox.WithLogger(opts.logger), sandbox.WithNetwork(network))
			return server.ListenAndServe(cmd.Context(), listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Address to listen on (default from settings, "+config.DEFAULT_SANDBOX_LISTEN+")")
	cmd.Flags().StringVar(&network, "network", sandbox.DEFAULT_NETWORK, "CIDR block scans report")
	cmd.Flags().StringVar(&dbPath, "db", "", "Database path (default "+config.DB_PATH_ENV+" or the data directory)")
	cmd.Flags().BoolVar(&noSeed, "no-seed", false, "Start with an empty catalog and tailnet")
	return cmd
}
