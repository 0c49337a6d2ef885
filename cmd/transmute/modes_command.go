package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"transmute/internal/explore"
	"transmute/internal/textutil"
)

func newModesCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "modes",
		Short:       "List the available search strategies",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0, len(explore.Strategies()))
			for _, strategy := range explore.Strategies() {
				compress := textutil.Ternary(strategy.RequiresCompression(), "yes", "no")
				verify := textutil.Ternary(strategy.VerifiesQuality(), "yes", "no")
				rows = append(rows, []string{
					strategy.String(),
					textutil.Label(strategy.String()),
					compress,
					verify,
					strategy.Description(),
				})
			}
			headers := []string{"Flag", "Mode", "Compress", "Verify", "Description"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}
}
