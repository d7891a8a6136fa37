// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/danielhkuo/quickly-predict/logging"
	"github.com/danielhkuo/quickly-predict/sheet"
)

var (
	sheetPlatform  string
	sheetKeyColumn string
)

var sheetCmd = &cobra.Command{
	Use:   "sheet <workbook.xlsx>",
	Short: "List spreadsheet rows with their stable keys",
	Long: `Opens a workbook the way the server does, assigning keys to rows that
have none (the key column is written back to the file), and lists the rows.

Example:
  quickly-predict sheet Social_Media_Trends.xlsx --platform twitter`,
	Args: cobra.ExactArgs(1),
	RunE: runSheet,
}

func init() {
	sheetCmd.Flags().StringVar(&sheetPlatform, "platform", "", "Only rows whose platform contains this text")
	sheetCmd.Flags().StringVar(&sheetKeyColumn, "key-column", sheet.DefaultKeyColumn, "Column holding stable row keys")
}

func runSheet(cmd *cobra.Command, args []string) error {
	logger, err := logging.New("development", "warn")
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := sheet.Open(args[0], sheet.Options{KeyColumn: sheetKeyColumn, Logger: logger})
	if err != nil {
		return err
	}

	columns := store.Columns()
	rows := store.List(sheetPlatform)

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "#\tKEY\t%s\n", strings.ToUpper(strings.Join(columns, "\t")))
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, c := range columns {
			cells[i] = row.Values[c]
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", row.Index, row.Key, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n%s of %s rows\n",
		humanize.Comma(int64(len(rows))), humanize.Comma(int64(store.Len())))
	return nil
}
