package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"transmute/internal/explore"
	"transmute/internal/pipeline"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var (
		strategyFlag      string
		outputFlag        string
		contentTypeFlag   string
		bestEffortFlag    bool
		sizeToleranceFlag bool
	)

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a single file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy, err := explore.ParseStrategy(strategyFlag)
			if err != nil {
				return err
			}
			input := args[0]
			if _, err := os.Stat(input); err != nil {
				return fmt.Errorf("input file: %w", err)
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if sizeToleranceFlag {
				cfg.Encoding.AllowSizeTolerance = true
			}

			runCtx, cancel, p, err := ctx.buildPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer cancel()

			outcome := p.Convert(runCtx, pipeline.Request{
				InputPath:   input,
				OutputPath:  outputFlag,
				Strategy:    strategy,
				ContentType: contentTypeFlag,
				BestEffort:  bestEffortFlag,
			})

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(outcomeHeaders, [][]string{outcomeRow(outcome)}, outcomeAligns))

			switch outcome.Status {
			case pipeline.StatusAccepted, pipeline.StatusBestEffort:
				return nil
			case pipeline.StatusRejected:
				return fmt.Errorf("conversion rejected: %s", outcome.Reason)
			default:
				return fmt.Errorf("conversion failed: %s", outcome.Reason)
			}
		},
	}

	cmd.Flags().StringVarP(&strategyFlag, "strategy", "s", explore.CompressWithQuality.String(), "Search strategy (see 'transmute modes')")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output path (defaults next to the input)")
	cmd.Flags().StringVar(&contentTypeFlag, "content-type", "", "Content-type hint for the prediction model")
	cmd.Flags().BoolVar(&bestEffortFlag, "best-effort", false, "Accept a non-compressing result when the source codec cannot be played natively")
	cmd.Flags().BoolVar(&sizeToleranceFlag, "size-tolerance", false, "Accept output up to size_tolerance_pct larger than the input")
	return cmd
}
