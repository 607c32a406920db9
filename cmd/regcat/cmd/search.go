package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wesm/regcat/internal/query"
	"github.com/wesm/regcat/internal/tui"
)

var (
	searchDept   string
	searchNumber string
	searchArea   string
	searchTitle  string
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search [host] [port]",
	Short: "Search the catalog and print matching classes",
	Long: `Search the catalog on a running server and print one line per matching
class, ordered by department, course number, and class id.

Each filter matches as a case-insensitive substring; _ and % match literally.
With no filters every class is listed.

Examples:
  regcat search --dept cos
  regcat search --area qr --title intro reg.example.edu 5500`,
	Args: argsRange(0, 2),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchDept, "dept", "", "department substring")
	searchCmd.Flags().StringVar(&searchNumber, "number", "", "course number substring")
	searchCmd.Flags().StringVar(&searchArea, "area", "", "distribution area substring")
	searchCmd.Flags().StringVar(&searchTitle, "title", "", "title substring")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	client, err := newClient(args)
	if err != nil {
		return err
	}

	criteria := query.NewSearchCriteria(searchDept, searchNumber, searchArea, searchTitle)
	logger.Debug("searching", "server", client.Addr(), "criteria", criteria.String())

	rows, err := client.Search(cmd.Context(), criteria)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if searchJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	for _, row := range rows {
		fmt.Fprintln(out, tui.FormatRow(row))
	}
	return nil
}
