package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Anuar-boop/teamrankrise/internal/audit"
)

func newAuditCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "audit <url>",
		Short: "Audit one URL and print the scores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			runner, err := appInstance.Runner()
			if err != nil {
				return fmt.Errorf("init audit runner: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res, err := runner.Run(ctx, args[0])
			if err != nil {
				return fmt.Errorf("audit %s: %s", args[0], audit.Message(err))
			}
			if asJSON {
				return writeResultJSON(cmd.OutOrStdout(), res)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderResult(res))
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func writeResultJSON(w io.Writer, res audit.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

// renderResult formats scores, opportunities and diagnostics as tables.
func renderResult(res audit.Result) string {
	scores := table.NewWriter()
	scores.SetStyle(table.StyleRounded)
	scores.SetTitle(res.URL)
	scores.AppendHeader(table.Row{"Category", "Score"})
	scores.AppendRows([]table.Row{
		{"Performance", res.Categories.Performance},
		{"Accessibility", res.Categories.Accessibility},
		{"Best practices", res.Categories.BestPractices},
		{"SEO", res.Categories.SEO},
	})
	out := scores.Render()

	if len(res.Opportunities) > 0 {
		opps := table.NewWriter()
		opps.SetStyle(table.StyleRounded)
		opps.AppendHeader(table.Row{"Opportunity", "Savings (ms)", "Items"})
		for _, o := range res.Opportunities {
			opps.AppendRow(table.Row{o.Title, strconv.FormatFloat(o.Savings, 'f', 0, 64), len(o.Items)})
		}
		out += "\n" + opps.Render()
	}

	if len(res.Diagnostics) > 0 {
		keys := make([]string, 0, len(res.Diagnostics))
		for k := range res.Diagnostics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		diag := table.NewWriter()
		diag.SetStyle(table.StyleRounded)
		diag.AppendHeader(table.Row{"Diagnostic", "Value"})
		for _, k := range keys {
			diag.AppendRow(table.Row{k, strconv.FormatFloat(res.Diagnostics[k], 'f', -1, 64)})
		}
		out += "\n" + diag.Render()
	}
	return out
}
