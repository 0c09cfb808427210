package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/appmenu/internal/output"
)

var listOpts struct {
	template  string
	showIndex bool
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List windows registered with the registrar",
	Long: `List the window ids currently registered with the registrar.

Examples:
  # Human-readable list
  appmenu list

  # Bare ids for scripting
  appmenu list -o ids | xargs -n1 appmenu get

  # Custom line format
  appmenu list --template '{{.Index}} {{printf "0x%08x" .WindowID}}'`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listOpts.template, "template", "",
		"Go template for plain output lines (fields: .Index, .WindowID)")
	listCmd.Flags().BoolVar(&listOpts.showIndex, "index", false,
		"Prefix plain output lines with a 1-based index")
}

func runList(cmd *cobra.Command, args []string) error {
	formatter, err := newFormatter(output.FormatterOptions{
		Template:  listOpts.template,
		ShowIndex: listOpts.showIndex,
	})
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

	ids, err := client.GetWindowList(ctx)
	if err != nil {
		return err
	}
	logger.Debug("fetched window list", "count", len(ids))

	return formatter.FormatWindows(cmd.OutOrStdout(), output.NewWindowList(ids))
}
