package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ChuLiYu/murdock-reporter/internal/config"
	"github.com/ChuLiYu/murdock-reporter/internal/metrics"
	"github.com/ChuLiYu/murdock-reporter/internal/nightly"
	"github.com/ChuLiYu/murdock-reporter/internal/server"
	"github.com/ChuLiYu/murdock-reporter/internal/snapshot"
	"github.com/ChuLiYu/murdock-reporter/internal/upload"
)

// ============================================================================
// serve
// ============================================================================

func (a *app) buildServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the status sink and serve the report directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			reg := prometheus.NewRegistry()
			metrics.NewCollector(reg)
			srv := server.New(server.Options{
				Addr:      addr,
				Token:     a.cfg.Server.Token,
				OutputDir: a.cfg.Output.Dir,
				Gatherer:  reg,
				Logger:    a.log,
			})
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return cmd
}

// ============================================================================
// nightly
// ============================================================================

func (a *app) buildNightlyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "nightly <repodir> [branch]",
		Short: "Record the latest nightly build in nightlies.json",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			branch := nightly.DefaultBranch
			if len(args) == 2 {
				branch = args[1]
			}
			entries, err := nightly.Update(args[0], branch, a.cfg.Nightly.Keep, time.Now())
			if err != nil {
				return err
			}
			a.log.Info().
				Str("branch", branch).
				Str("commit", entries[0].Commit).
				Str("result", entries[0].Result).
				Int("entries", len(entries)).
				Msg("nightly list updated")
			return nil
		},
	}
}

// ============================================================================
// upload
// ============================================================================

func (a *app) buildUploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upload [dir]",
		Short: "Upload a report directory to S3-compatible storage",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.Output.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			cfg := a.cfg.Upload
			client, err := upload.NewClient(cfg)
			if err != nil {
				return err
			}
			u := upload.New(client, upload.Options{
				Bucket:      cfg.Bucket,
				Region:      cfg.Region,
				Prefix:      cfg.Prefix,
				Concurrency: cfg.Concurrency,
				Metrics:     metrics.NewCollector(prometheus.NewRegistry()),
				Logger:      a.log,
			})
			summary, err := u.UploadDir(cmd.Context(), dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d files (%d bytes) to %s\n", summary.Files, summary.Bytes, cfg.Bucket)
			return nil
		},
	}
}

// ============================================================================
// status
// ============================================================================

func (a *app) buildStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the last status document dumped by a live run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := snapshot.NewManager(a.cfg.Status.DumpFile)
			if !m.Exists() {
				return fmt.Errorf("no status dump at %s", m.GetPath())
			}
			status, err := m.Load()
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(status, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

// ============================================================================
// config
// ============================================================================

func (a *app) buildConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			redacted := a.cfg.Redacted()
			data, err := config.Marshal(&redacted)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	return cmd
}
