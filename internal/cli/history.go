package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/monorkin/home-network-monitor/internal/dashboard/history"
)

func newHistoryCmd(opts *options) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the device history",
		Long: `Commands for the appliance's history of every MAC address it has seen, and for
its log of connection and address change events.`,
	}

	historyCmd.AddCommand(
		&cobra.Command{
			Use:     "list",
			Aliases: []string{"ls"},
			Short:   "List every device the appliance has seen",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := opts.newSession(cmd)
				if err != nil {
					return err
				}

				entries, err := s.dashboard.History.Load(cmd.Context())
				if err != nil {
					return err
				}
				return opts.print(cmd, "Device history", s.dashboard.History.Render(), entries)
			},
		},
		&cobra.Command{
			Use:   "show <mac>",
			Short: "Show the full history of one device",
			Long: `Show the full history of one device. Devices that never reported a MAC address
are addressed by their no_mac_<ip> key.`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := opts.newSession(cmd)
				if err != nil {
					return err
				}

				entry, err := findEntry(cmd, s, args[0])
				if err != nil {
					return err
				}
				return opts.print(cmd, entry.Title(), history.Details(entry, s.context.CurrentTime()), entry)
			},
		},
		newHistoryEventsCmd(opts),
		&cobra.Command{
			Use:   "disconnected",
			Short: "List devices that recently left the network",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := opts.newSession(cmd)
				if err != nil {
					return err
				}

				devices, err := s.dashboard.History.Disconnected(cmd.Context())
				if err != nil {
					return err
				}
				return opts.print(cmd, "Recently disconnected", history.RenderDisconnected(devices), devices)
			},
		},
		&cobra.Command{
			Use:   "promote <mac>",
			Short: "Monitor a device of the history again, at its last known IP",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := opts.newSession(cmd)
				if err != nil {
					return err
				}

				if _, err := findEntry(cmd, s, args[0]); err != nil {
					return err
				}
				created, err := s.dashboard.History.Promote(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return opts.print(cmd, created.Name, deviceDetails(*created), created)
			},
		},
	)

	return historyCmd
}

func newHistoryEventsCmd(opts *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent network events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}

			s, err := opts.newSession(cmd)
			if err != nil {
				return err
			}

			events, err := s.dashboard.History.Events(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return opts.print(cmd, "Network events", history.RenderEvents(events), events)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", history.DEFAULT_EVENTS_LIMIT, "Maximum number of events per category")
	return cmd
}

func findEntry(cmd *cobra.Command, s *session, key string) (history.Entry, error) {
	if _, err := s.dashboard.History.Load(cmd.Context()); err != nil {
		return history.Entry{}, err
	}
	entry, ok := s.dashboard.History.Entry(key)
	if !ok {
		return history.Entry{}, fmt.Errorf("no history for %s", key)
	}
	return entry, nil
}
