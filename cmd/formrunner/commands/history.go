package commands

import (
	"os"
	"strconv"

	"formrunner/lib/runstore"
	"formrunner/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyDb *string
var historyLimit *int

func init() {
	historyDb = historyCmd.Flags().String("db", "history.db", "The run history database to read.")
	historyLimit = historyCmd.Flags().Int("limit", 20, "How many runs to show.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [--db <path/to/history.db>]",
	Short: "Prints recorded runs, newest first.",
	Run: func(cmd *cobra.Command, args []string) {
		db, err := runstore.Open(*historyDb)
		if err != nil {
			serviceutil.Fatal("failed to open run history", err)
		}
		defer db.Close()

		runs, err := runstore.NewStore(db).Recent(cmd.Context(), *historyLimit)
		if err != nil {
			serviceutil.Fatal("failed to read run history", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Started", "Posted", "Status", "Target", "Fields"})

		for _, r := range runs {
			t.AppendRow(table.Row{
				r.StartedAt.Format("2006-01-02 15:04:05"),
				strconv.FormatBool(r.Posted),
				r.StatusCode,
				r.Target,
				len(r.Payload),
			})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
