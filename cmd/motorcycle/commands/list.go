package commands

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the manuals that would be downloaded, without downloading them.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newFetcher()
		if err != nil {
			return fail(cmd.Context(), exitInvalidConfig, "invalid fetch options", err)
		}
		manuals, err := buildCatalog(cmd.Context(), client)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"Manufacturer", "Manual", "Link"})
		for _, group := range manuals {
			for _, entry := range group.Files {
				t.AppendRow(table.Row{group.Key, entry.Name, entry.Link})
			}
		}
		t.AppendFooter(table.Row{"", "Total", manuals.FileCount()})
		t.Render()
		return nil
	},
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
