package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var registerOpts struct {
	hold bool
}

var registerCmd = &cobra.Command{
	Use:   "register <window-id> <object-path>",
	Short: "Register a menu object path for a window",
	Long: `Register a window's menu with the registrar. The calling connection is
recorded as the menu's service.

When the registrar cleans up registrations whose client disconnects, the
registration only lasts while this process is connected. Use --hold to keep
the connection open until interrupted.

Examples:
  appmenu register 0x2a /com/example/menu/42
  appmenu register 42 /com/example/menu/42 --hold`,
	Args: cobra.ExactArgs(2),
	RunE: runRegister,
}

var unregisterCmd = &cobra.Command{
	Use:   "unregister <window-id>",
	Short: "Remove a window's registration",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnregister,
}

func init() {
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(unregisterCmd)

	registerCmd.Flags().BoolVar(&registerOpts.hold, "hold", false,
		"Keep the bus connection open until interrupted")
}

func runRegister(cmd *cobra.Command, args []string) error {
	windowID, err := parseWindowID(args[0])
	if err != nil {
		return err
	}

	client, err := connectClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := callContext(context.Background())
	err = client.RegisterWindow(ctx, windowID, args[1])
	cancel()
	if err != nil {
		return err
	}
	logger.Debug("registered window", "window_id", windowID, "path", args[1])

	if !registerOpts.hold {
		return nil
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "holding registration for window %d, press Ctrl-C to release\n", windowID)

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logger.Debug("releasing registration", "window_id", windowID)
	return nil
}

func runUnregister(cmd *cobra.Command, args []string) error {
	windowID, err := parseWindowID(args[0])
	if err != nil {
		return err
	}

	client, err := connectClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := callContext(context.Background())
	defer cancel()

	return client.UnregisterWindow(ctx, windowID)
}
