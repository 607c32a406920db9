package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var detailJSON bool

var detailCmd = &cobra.Command{
	Use:   "detail <classid> [host] [port]",
	Short: "Print everything known about one class",
	Args:  argsRange(1, 3),
	RunE:  runDetail,
}

func init() {
	detailCmd.Flags().BoolVar(&detailJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(detailCmd)
}

func runDetail(cmd *cobra.Command, args []string) error {
	classID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return usagef("invalid class id %q: must be an integer", args[0])
	}

	client, err := newClient(args[1:])
	if err != nil {
		return err
	}

	d, err := client.Detail(cmd.Context(), classID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if detailJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}
	fmt.Fprint(out, d.String())
	return nil
}
