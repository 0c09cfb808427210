package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/appmenu/internal/dbus"
	"github.com/jmylchreest/appmenu/internal/output"
)

var statusOpts struct {
	waitHeartbeat bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a registrar is running",
	Long: `Report whether com.canonical.AppMenu.Registrar has an owner on the session
bus, the owner's unique name and how many windows are registered.

With --wait-heartbeat, also wait up to the call timeout for the next
ServiceStarted heartbeat and report its status string.

Examples:
  appmenu status
  appmenu status -o json
  appmenu status --wait-heartbeat --timeout 10s`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusOpts.waitHeartbeat, "wait-heartbeat", false,
		"Wait for the next heartbeat signal")
}

func runStatus(cmd *cobra.Command, args []string) error {
	formatter, err := newFormatter(output.DefaultFormatterOptions())
	if err != nil {
		return err
	}

	client, err := connectClient()
	if err != nil {
		return err
	}
	defer client.Close()

	// Subscribe before querying so a heartbeat sent in between is not missed.
	var heartbeats chan dbus.Event
	if statusOpts.waitHeartbeat {
		conn := client.Conn()
		if conn == nil {
			return errors.New("waiting for a heartbeat needs a session bus connection")
		}
		heartbeats = make(chan dbus.Event, 1)
		monitor := dbus.NewMonitor(conn, logger)
		monitor.SetEventHandler(func(event dbus.Event) {
			if event.Kind != dbus.EventHeartbeat {
				return
			}
			select {
			case heartbeats <- event:
			default:
			}
		})
		if err := monitor.Start(); err != nil {
			return err
		}
		defer monitor.Stop()
	}

	ctx, cancel := callContext(context.Background())
	defer cancel()

	status, err := client.Status(ctx)
	if err != nil {
		return err
	}

	if heartbeats != nil && status.Running {
		select {
		case event := <-heartbeats:
			at := event.Received
			status.Heartbeat = event.Status
			status.HeartbeatAt = &at
		case <-ctx.Done():
			logger.Warn("no heartbeat received", "timeout", getConfig().Client.Timeout.Duration().Round(time.Millisecond))
		}
	}

	return formatter.FormatStatus(cmd.OutOrStdout(), status)
}
