package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/appmenu/internal/dbus"
	"github.com/jmylchreest/appmenu/internal/output"
	"github.com/jmylchreest/appmenu/internal/tui"
)

var monitorOpts struct {
	plain bool
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Follow the registrar's Log and heartbeat signals",
	Long: `Follow the registrar's Log and ServiceStarted signals.

By default an interactive view shows the registered windows above a live
log pane. With --plain, events are written one per line in the selected
output format (json gives newline-delimited JSON).

Key bindings:
  tab         Switch between windows and log
  j/k, ↑/↓    Navigate
  enter       Query the selected window's menu
  c           Copy window id
  C           Copy all windows as JSON
  r           Refresh
  f           Toggle log follow
  x           Clear log
  ?           Show help
  q           Quit`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().BoolVar(&monitorOpts.plain, "plain", false,
		"Stream events to stdout instead of the interactive view")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Close()

	if !monitorOpts.plain {
		return tui.Run(tui.RunOptions{
			Config: getConfig(),
			Client: client,
			Logger: logger,
		})
	}

	formatter, err := newFormatter(output.DefaultFormatterOptions())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	events := make(chan dbus.Event, 64)
	monitor := dbus.NewMonitor(client.Conn(), logger)
	monitor.SetEventHandler(func(event dbus.Event) {
		select {
		case events <- event:
		case <-ctx.Done():
		}
	})
	if err := monitor.Start(); err != nil {
		return err
	}
	defer monitor.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-events:
			if err := formatter.FormatEvent(out, event); err != nil {
				return err
			}
		}
	}
}
