// ============================================================================
// murdock-reporter CLI
// ============================================================================
//
// Command structure:
//   reporter <result.json>            # static report (positional form)
//   reporter <queue> <uid> <token>    # live reporter (positional form)
//   ├── static [file] [--journal]     # static report from result.json or a journal
//   ├── live <queue> <uid> <token>    # drain the queue and publish status
//   ├── serve                         # status sink + report file server
//   ├── nightly <repodir> [branch]    # update nightlies.json
//   ├── upload [dir]                  # copy a report to object storage
//   ├── status                        # print the last dumped status document
//   └── config show                   # print the effective configuration
//
// Every command loads configs/default.yaml (or --config), applies MURDOCK_*
// and legacy environment overrides, and sets up zerolog before running.
// SIGINT/SIGTERM cancel the command context.
//
// Exit code is 1 for any error returned by a command.
// ============================================================================

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ChuLiYu/murdock-reporter/internal/config"
	"github.com/ChuLiYu/murdock-reporter/internal/logging"
	"github.com/ChuLiYu/murdock-reporter/internal/parser"
)

// Version 由 -ldflags 注入
var Version = "dev"

// DefaultResultFile 是 static 未指定檔案時讀取的結果檔
const DefaultResultFile = "result.json"

// app 保存一次命令執行所需的共用狀態
type app struct {
	configFile string
	logLevel   string
	outputDir  string

	cfg    *config.Config
	log    zerolog.Logger
	closer io.Closer
}

// BuildCLI returns the root command.
func BuildCLI() *cobra.Command {
	a := &app{log: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "reporter [result.json | <queue> <uid> <token>]",
		Short: "Summarize CI job results",
		Long: `murdock-reporter turns CI job results into reports:
- static mode reads a finished result.json and writes JSON artifacts, a badge and a summary
- live mode drains the job queue and keeps the dashboard status up to date`,
		Version:      Version,
		SilenceUsage: true,
		Args:         positionalArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch len(args) {
			case 0:
				return cmd.Help()
			case 1:
				return a.runStatic(cmd, args[0], "")
			default:
				return a.runLive(cmd, args[0], args[1], args[2])
			}
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.closer != nil {
				return a.closer.Close()
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", config.DefaultPath, "config file path")
	flags.StringVar(&a.logLevel, "log-level", "", "override logging.level")
	flags.StringVarP(&a.outputDir, "output-dir", "o", "", "override output.dir")

	rootCmd.AddCommand(
		a.buildStaticCommand(),
		a.buildLiveCommand(),
		a.buildServeCommand(),
		a.buildNightlyCommand(),
		a.buildUploadCommand(),
		a.buildStatusCommand(),
		a.buildConfigCommand(),
	)
	return rootCmd
}

// Execute runs the CLI with a signal-aware context and returns the exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := BuildCLI().ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func positionalArgs(cmd *cobra.Command, args []string) error {
	switch len(args) {
	case 0, 1, 3:
		return nil
	default:
		return fmt.Errorf("expected <result.json> or <queue> <uid> <token>, got %d arguments", len(args))
	}
}

// setup loads the configuration and installs the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.outputDir != "" {
		cfg.Output.Dir = a.outputDir
	}

	logger, closer, err := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	}, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = logger
	a.closer = closer
	return nil
}

func (a *app) classifier() *parser.Classifier {
	c := a.cfg.Classifier
	return parser.NewClassifier(c.Entrypoint, c.TestTypes, c.BuildTypes)
}
