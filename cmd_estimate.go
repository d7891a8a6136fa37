// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/danielhkuo/quickly-predict/knn"
)

var (
	estimateK        int
	estimateQueries  string
	estimateValues   map[string]string
	estimateDescribe bool
)

var estimateCmd = &cobra.Command{
	Use:   "estimate <reference.csv>",
	Short: "Estimate wine quality offline",
	Long: `Runs the nearest-neighbour estimator over a reference CSV without the
server. Queries come from --set feature=value pairs or from another CSV
(--queries), whose quality column, if present, is printed next to the
estimate.

Example:
  quickly-predict estimate winequality-red.csv --queries new.csv
  quickly-predict estimate winequality-red.csv --describe`,
	Args: cobra.ExactArgs(1),
	RunE: runEstimate,
}

func init() {
	estimateCmd.Flags().IntVarP(&estimateK, "neighbours", "k", knn.DefaultK, "Number of neighbours averaged")
	estimateCmd.Flags().StringVarP(&estimateQueries, "queries", "q", "", "CSV of samples to estimate")
	estimateCmd.Flags().StringToStringVar(&estimateValues, "set", nil, "Feature value of a single query, e.g. --set alcohol=9.4")
	estimateCmd.Flags().BoolVar(&estimateDescribe, "describe", false, "Print column statistics of the reference set")
}

func readCSV(path string) ([]string, []knn.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return knn.ParseCSV(f)
}

func runEstimate(cmd *cobra.Command, args []string) error {
	info, err := os.Stat(args[0])
	if err != nil {
		return err
	}
	columns, refs, err := readCSV(args[0])
	if err != nil {
		return err
	}
	if missing := knn.MissingColumns(columns); len(missing) > 0 {
		return fmt.Errorf("%s is missing columns: %s", args[0], strings.Join(missing, ", "))
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Loaded %s reference rows from %s (%s)\n",
		humanize.Comma(int64(len(refs))), args[0], humanize.Bytes(uint64(info.Size())))

	if estimateDescribe {
		printStats(cmd, knn.Describe(columns, refs))
	}

	var queries []knn.Sample
	switch {
	case estimateQueries != "":
		_, queries, err = readCSV(estimateQueries)
		if err != nil {
			return err
		}
	case len(estimateValues) > 0:
		q := make(knn.Sample, len(estimateValues))
		for k, v := range estimateValues {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %s", k, knn.InvalidQueryMessage)
			}
			q[k] = f
		}
		queries = append(queries, q)
	case !estimateDescribe:
		return fmt.Errorf("nothing to estimate: pass --queries, --set or --describe")
	}

	if len(queries) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tESTIMATE\tNEIGHBOURS\tACTUAL")
	for i, q := range queries {
		res, err := knn.Estimate(knn.Query(q), refs, knn.WineFeatures, estimateK)
		if err != nil {
			if errors.Is(err, knn.ErrInvalidQuery) {
				return fmt.Errorf("query %d: %s", i+1, knn.InvalidQueryMessage)
			}
			return fmt.Errorf("query %d: %w", i+1, err)
		}
		actual := "-"
		if v, ok := q[knn.LabelColumn]; ok {
			actual = strconv.FormatFloat(v, 'f', -1, 64)
		}
		fmt.Fprintf(tw, "%d\t%.1f\t%d\t%s\n", i+1, res.Value, res.Neighbors, actual)
	}
	return tw.Flush()
}

func printStats(cmd *cobra.Command, stats knn.Stats) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tMEAN\tMIN\tMAX")

	names := make([]string, 0, len(stats.Columns))
	for name := range stats.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := stats.Columns[name]
		fmt.Fprintf(tw, "%s\t%g\t%g\t%g\n", name, c.Mean, c.Min, c.Max)
	}
	tw.Flush()

	fmt.Fprintln(cmd.OutOrStdout())
	for _, d := range stats.Distribution {
		fmt.Fprintf(cmd.OutOrStdout(), "quality %g: %s\n", d.Quality, humanize.Comma(int64(d.Count)))
	}
}
