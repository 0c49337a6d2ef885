package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"transmute/internal/deps"
	"transmute/internal/textutil"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check the external tools transmute depends on",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				state := textutil.Ternary(status.Available, "ok", "missing")
				kind := textutil.Ternary(status.Optional, "optional", "required")
				rows = append(rows, []string{status.Name, status.Command, kind, state, status.Detail})
			}
			headers := []string{"Tool", "Command", "Kind", "Status", "Detail"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))

			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}
