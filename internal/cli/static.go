package cli

import (
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ChuLiYu/murdock-reporter/internal/metrics"
	"github.com/ChuLiYu/murdock-reporter/internal/postbuild"
	"github.com/ChuLiYu/murdock-reporter/internal/report"
	"github.com/ChuLiYu/murdock-reporter/pkg/types"
)

func (a *app) buildStaticCommand() *cobra.Command {
	var journalPath string

	cmd := &cobra.Command{
		Use:   "static [result.json]",
		Short: "Write the final report of a finished run",
		Long: `Read a complete result set (result.json, or the journal of a live run)
and write builds.json, tests.json, the failure lists, stats.json, badge.svg,
per-application files and summary.txt into output.dir.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := DefaultResultFile
			if len(args) == 1 {
				file = args[0]
			}
			return a.runStatic(cmd, file, journalPath)
		},
	}
	cmd.Flags().StringVar(&journalPath, "journal", "", "rebuild the result set from a live-run journal instead of result.json")
	return cmd
}

// runStatic 產生完整報告；輸入讀取失敗時不寫任何檔案
func (a *app) runStatic(cmd *cobra.Command, file, journalPath string) error {
	var (
		raws []types.RawJob
		err  error
	)
	if journalPath != "" {
		raws, err = report.LoadJournal(journalPath)
	} else {
		raws, err = report.LoadResults(file)
	}
	if err != nil {
		return err
	}

	rep := report.FromRaw(a.classifier(), raws)
	dir := a.cfg.Output.Dir

	if a.cfg.PostBuild.Enabled {
		res, err := postbuild.Run(rep.Records, postbuild.Options{Dir: dir, Logger: a.log})
		if err != nil {
			return err
		}
		rep.CollectedErrors = res.Errors
	}

	genErr := report.Generate(cmd.Context(), rep, report.Options{
		Dir:            dir,
		SaveJobResults: a.cfg.Output.SaveJobResults,
		RenderWorkers:  a.cfg.Output.RenderWorkers,
		Metrics:        metrics.NewCollector(prometheus.NewRegistry()),
		Logger:         a.log,
	})

	if err := report.SaveSummary(filepath.Join(dir, report.SummaryFile), rep); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := report.WriteSummary(out, rep, report.NewStyles(out)); err != nil {
		return err
	}
	return genErr
}
