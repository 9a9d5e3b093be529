package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bwservicing/certtrack/internal/models"
	"github.com/bwservicing/certtrack/internal/services"
	"github.com/bwservicing/certtrack/internal/store"
)

var (
	sqlParams []string
	sqlJSON   bool
)

var sqlCmd = &cobra.Command{
	Use:   "sql STATEMENT",
	Short: "Run one statement of the restricted SQL dialect",
	Example: `  certtrack sql "SELECT * FROM certificates WHERE company_id = \$1 ORDER BY retest_date" --param 3f2c...
  certtrack sql "UPDATE companies SET phone = '0161 000' WHERE id = \$1" --param 3f2c...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfiguration(cmd)
		if err != nil {
			return err
		}
		st, err := store.Open(cmd.Context(), cfg, nil)
		if err != nil {
			return err
		}
		defer st.Close()

		params := make([]any, 0, len(sqlParams))
		for _, p := range sqlParams {
			params = append(params, p)
		}
		rows, err := services.NewSQLService(st).Execute(cmd.Context(), args[0], params)
		if err != nil {
			return err
		}

		if sqlJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}
		printRows(cmd.OutOrStdout(), rows)
		return nil
	},
}

func init() {
	sqlCmd.Flags().StringArrayVar(&sqlParams, "param", nil, "value bound to the next $n placeholder (repeatable)")
	sqlCmd.Flags().BoolVar(&sqlJSON, "json", false, "print rows as JSON")
}

// printRows writes one block per row, columns sorted, keys highlighted.
func printRows(w io.Writer, rows []models.Row) {
	key := color.New(color.FgCyan).SprintFunc()
	null := color.New(color.Faint).SprintFunc()

	for i, row := range rows {
		if i > 0 {
			fmt.Fprintln(w)
		}
		cols := make([]string, 0, len(row))
		width := 0
		for c := range row {
			cols = append(cols, c)
			width = max(width, len(c))
		}
		sort.Strings(cols)
		for _, c := range cols {
			pad := strings.Repeat(" ", width-len(c))
			if row[c] == nil {
				fmt.Fprintf(w, "%s%s  %s\n", key(c), pad, null("NULL"))
				continue
			}
			fmt.Fprintf(w, "%s%s  %v\n", key(c), pad, row[c])
		}
	}
	color.New(color.FgGreen).Fprintf(w, "(%d rows)\n", len(rows))
}
