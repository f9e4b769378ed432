package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tracker/internal/amqp"
	"tracker/internal/backend"
	"tracker/internal/cli"
	"tracker/internal/config"
	"tracker/internal/log"
	"tracker/internal/services"
	"tracker/internal/storage"
)

// exportConsumer is the part of the AMQP client the watch command needs.
type exportConsumer interface {
	ConsumeExports(ctx context.Context, handler func(context.Context, *amqp.ExportCompletedMessage) error) error
	Close() error
}

type app struct {
	out    io.Writer
	errOut io.Writer

	envFiles    []string
	backendName string
	location    string
	logLevel    string

	cfg    *config.Config
	logger *log.Logger

	openBackend  func(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.Result, error)
	openAudit    func(path string) (services.AuditStore, func() error, error)
	openConsumer func(cfg *config.Config) (exportConsumer, error)
}

func newApp(out, errOut io.Writer) *app {
	return &app{
		out:          out,
		errOut:       errOut,
		openBackend:  openBackend,
		openAudit:    openAudit,
		openConsumer: openConsumer,
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "trackerctl",
		Short: "Inspect and export the project tracker workbook",
		Long: `trackerctl runs the dashboard pipeline without the web server: it lists
sheets, exports filtered rows as CSV, prints the task trend and summary, and
reads the export audit trail.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringSliceVar(&a.envFiles, "env-file", nil, "Environment files to load (default .env)")
	pf.StringVar(&a.backendName, "backend", "", "Workbook source: local, remote or google (default $SOURCE_BACKEND)")
	pf.StringVar(&a.location, "source", "", "Workbook path, URL or spreadsheet ID (default from environment)")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error (default warn)")

	root.AddCommand(
		a.sheetsCmd(),
		a.exportCmd(),
		a.trendCmd(),
		a.summaryCmd(),
		a.exportsCmd(),
	)
	return root
}

// init loads configuration, applies flag overrides and builds the logger.
func (a *app) init() error {
	cli.LoadEnvFile(a.envFiles...)

	cfg := config.Load()
	if a.backendName != "" {
		cfg.SourceBackend = strings.ToLower(a.backendName)
	}
	if a.location != "" {
		switch cfg.SourceBackend {
		case config.BackendRemote:
			cfg.SourceURL = a.location
		case config.BackendGoogle:
			cfg.GoogleSpreadsheetID = a.location
		default:
			cfg.SourcePath = a.location
		}
	}
	switch {
	case a.logLevel != "":
		cfg.LogLevel = a.logLevel
	case os.Getenv("LOG_LEVEL") == "":
		cfg.LogLevel = "warn"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = cli.SetupLogger(a.errOut, cfg.LogLevel, cfg.LogFormat).WithComponent(log.ComponentCLI)
	return nil
}

// dashboard opens the configured source. The returned release func must be
// called once the command is done.
func (a *app) dashboard(ctx context.Context) (*services.Dashboard, *backend.Result, func(), error) {
	res, err := a.openBackend(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, nil, nil, err
	}
	release := func() {
		if res.Cleanup == nil {
			return
		}
		if err := res.Cleanup(); err != nil {
			a.logger.Warn("Failed to release backend", log.FieldError, err.Error())
		}
	}
	d := services.NewDashboard(res.Loader, res.Location, a.cfg.SheetPolicy(), a.cfg.LoadTimeout, a.logger.Slog())
	return d, res, release, nil
}

func (a *app) warn(warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(a.errOut, "warning: %s\n", w)
	}
}

// openBackend builds the loader chain without a cache: every command loads
// the workbook once.
func openBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.Result, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	bc.CacheTTL = 0
	return backend.NewFactory(logger.WithComponent(log.ComponentBackend).Slog()).CreateBackend(ctx, bc)
}

func openAudit(path string) (services.AuditStore, func() error, error) {
	repo, err := storage.NewSQLiteRepository(path)
	if err != nil {
		return nil, nil, err
	}
	return repo, repo.Close, nil
}

func openConsumer(cfg *config.Config) (exportConsumer, error) {
	return amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
}
