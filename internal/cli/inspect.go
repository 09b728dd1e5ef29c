package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/jvs-project/epubpack/internal/verify"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.epub>",
	Short: "List the entries of an EPUB file",
	Long: `List the entries of an EPUB file in stored order with their
compression method and sizes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := verify.ListEntries(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), entries)
		}
		fmt.Fprintln(cmd.OutOrStdout(), entryTable(entries))
		return nil
	},
}

func entryTable(entries []verify.Entry) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Name", "Method", "Size", "Compressed", "Modified"})

	var total, compressed uint64
	for i, e := range entries {
		tw.AppendRow(table.Row{
			i + 1,
			e.Name,
			e.Method,
			humanize.Bytes(e.Size),
			humanize.Bytes(e.CompressedSize),
			e.Modified.Local().Format("2006-01-02 15:04:05"),
		})
		total += e.Size
		compressed += e.CompressedSize
	}
	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d entries", len(entries)), "", humanize.Bytes(total), humanize.Bytes(compressed), ""})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	return tw.Render()
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
