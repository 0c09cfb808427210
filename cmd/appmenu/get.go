package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/appmenu/internal/output"
)

var getCmd = &cobra.Command{
	Use:   "get <window-id>",
	Short: "Query the menu location for a window",
	Long: `Ask the registrar which service and object path export the menu for a
window. The id may be decimal or 0x-prefixed hexadecimal.

The registrar records registrations but does not resolve them, so the
service and path are currently always empty (shown as "-" in plain output).`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	windowID, err := parseWindowID(args[0])
	if err != nil {
		return err
	}

	formatter, err := newFormatter(output.DefaultFormatterOptions())
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

	service, path, err := client.GetMenuForWindow(ctx, windowID)
	if err != nil {
		return err
	}

	return formatter.FormatMenu(cmd.OutOrStdout(), output.MenuInfo{
		WindowID:       windowID,
		Service:        service,
		MenuObjectPath: path,
	})
}
