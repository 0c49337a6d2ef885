package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"transmute/internal/explore"
	"transmute/internal/ledger"
	"transmute/internal/pipeline"
	"transmute/internal/workers"
)

var mediaExtensions = map[string]struct{}{
	".mkv":  {},
	".mp4":  {},
	".m4v":  {},
	".mov":  {},
	".avi":  {},
	".webm": {},
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var (
		strategyFlag      string
		resolutionFlag    string
		workersFlag       int
		noResumeFlag      bool
		sizeToleranceFlag bool
	)

	cmd := &cobra.Command{
		Use:   "batch <path>...",
		Short: "Convert a directory or set of files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy, err := explore.ParseStrategy(strategyFlag)
			if err != nil {
				return err
			}
			class, err := parseResolutionClass(resolutionFlag)
			if err != nil {
				return err
			}

			files, err := collectMediaFiles(args)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no media files found under %s", strings.Join(args, ", "))
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
			var book *ledger.Ledger
			if !noResumeFlag {
				book, err = ledger.Open(cfg.Paths.LedgerPath)
				if err != nil {
					return fmt.Errorf("open ledger: %w", err)
				}
				defer book.Close()
			}

			size := workersFlag
			if size <= 0 {
				size = workers.PoolSize(runCtx, cfg.Workers, class, ctx.logger)
			}

			requests := make([]pipeline.Request, len(files))
			for i, file := range files {
				requests[i] = pipeline.Request{InputPath: file, Strategy: strategy}
			}

			outcomes := p.Batch(runCtx, requests, book, size)

			rows := make([][]string, 0, len(outcomes))
			counts := map[pipeline.Status]int{}
			for _, outcome := range outcomes {
				rows = append(rows, outcomeRow(outcome))
				counts[outcome.Status]++
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(outcomeHeaders, rows, outcomeAligns))
			fmt.Fprintf(out, "accepted %d, rejected %d, failed %d, skipped %d\n",
				counts[pipeline.StatusAccepted]+counts[pipeline.StatusBestEffort],
				counts[pipeline.StatusRejected],
				counts[pipeline.StatusFailed],
				counts[pipeline.StatusSkipped])

			if counts[pipeline.StatusFailed] > 0 {
				return fmt.Errorf("%d file(s) failed", counts[pipeline.StatusFailed])
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&strategyFlag, "strategy", "s", explore.CompressWithQuality.String(), "Search strategy (see 'transmute modes')")
	cmd.Flags().StringVar(&resolutionFlag, "resolution", "hd", "Dominant resolution class for pool sizing (sd|hd|uhd)")
	cmd.Flags().IntVarP(&workersFlag, "workers", "w", 0, "Worker count (0 = auto)")
	cmd.Flags().BoolVar(&noResumeFlag, "no-resume", false, "Ignore the ledger and reconvert everything")
	cmd.Flags().BoolVar(&sizeToleranceFlag, "size-tolerance", false, "Accept output up to size_tolerance_pct larger than the input")
	return cmd
}

func parseResolutionClass(value string) (workers.ResolutionClass, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "sd":
		return workers.ResolutionSD, nil
	case "hd", "":
		return workers.ResolutionHD, nil
	case "uhd", "4k":
		return workers.ResolutionUHD, nil
	default:
		return 0, fmt.Errorf("unknown resolution class %q (want sd, hd, or uhd)", value)
	}
}

// collectMediaFiles expands directories into their media files and passes
// explicit file arguments through regardless of extension.
func collectMediaFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				return nil
			}
			if _, ok := mediaExtensions[strings.ToLower(filepath.Ext(path))]; ok {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}
