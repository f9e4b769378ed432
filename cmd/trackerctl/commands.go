package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tracker/internal/amqp"
	"tracker/internal/core"
	"tracker/internal/log"
	"tracker/internal/pipeline"
	"tracker/internal/report"
	"tracker/internal/services"
	"tracker/internal/storage"
)

// queryFlags are the sheet and filter flags shared by export, trend and summary.
// An unset flag selects every value; a set flag selects exactly the given
// values, "" standing for blank cells.
type queryFlags struct {
	sheets  []string
	status  []string
	health  []string
	manager []string
}

func (q *queryFlags) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringArrayVar(&q.sheets, "sheet", nil, "Sheet to include (repeatable, default every eligible sheet)")
	f.StringArrayVar(&q.status, "status", nil, "Status to keep (repeatable)")
	f.StringArrayVar(&q.health, "health", nil, "Health to keep (repeatable)")
	f.StringArrayVar(&q.manager, "manager", nil, "Project Manager to keep (repeatable)")
}

func (q *queryFlags) query(cmd *cobra.Command) services.Query {
	pick := func(name string, values []string) []string {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		out := make([]string, 0, len(values))
		seen := make(map[string]bool, len(values))
		for _, v := range values {
			v = strings.TrimSpace(v)
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
		return out
	}
	return services.Query{
		Sheets: pick("sheet", q.sheets),
		Selection: pipeline.Selection{
			Status:  pick("status", q.status),
			Health:  pick("health", q.health),
			Manager: pick("manager", q.manager),
		},
	}
}

func (a *app) view(cmd *cobra.Command, q *queryFlags) (*services.View, error) {
	d, _, release, err := a.dashboard(cmd.Context())
	if err != nil {
		return nil, err
	}
	defer release()

	v, err := d.View(cmd.Context(), q.query(cmd))
	if err != nil {
		return nil, err
	}
	a.warn(warningText(v.Warnings))
	return v, nil
}

func warningText(ws []core.Warning) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Message
	}
	return out
}

func (a *app) sheetsCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "List the sheets of the workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, _, release, err := a.dashboard(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			wb, eligible, err := d.Workbook(cmd.Context())
			if err != nil {
				return err
			}
			if !all {
				for _, name := range eligible {
					fmt.Fprintln(a.out, name)
				}
				return nil
			}
			policy := a.cfg.SheetPolicy()
			for _, name := range wb.SheetNames() {
				if policy.Allowed(name) {
					fmt.Fprintln(a.out, name)
				} else {
					fmt.Fprintf(a.out, "%s\t(excluded)\n", name)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Also list sheets excluded by the sheet policy")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var (
		q   queryFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered rows as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, res, release, err := a.dashboard(ctx)
			if err != nil {
				return err
			}
			defer release()

			v, err := d.View(ctx, q.query(cmd))
			if err != nil {
				return err
			}
			a.warn(warningText(v.Warnings))

			w := a.out
			var f *os.File
			if out != "" && out != "-" {
				if f, err = os.Create(out); err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				w = f
			}

			exports := services.NewExportService(res.Audit, res.Publisher, a.logger.WithComponent(log.ComponentExport).Slog())
			rec, err := exports.Export(ctx, w, v, "cli")
			if f != nil {
				if cerr := f.Close(); err == nil && cerr != nil {
					err = fmt.Errorf("close output: %w", cerr)
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.errOut, "exported %d rows, %d columns (export %s)\n", rec.Rows, rec.Columns, rec.ID)
			return nil
		},
	}
	q.bind(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	return cmd
}

func (a *app) trendCmd() *cobra.Command {
	var (
		q      queryFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Print the total tasks per start date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.view(cmd, &q)
			if err != nil {
				return err
			}
			points := report.TaskTrend(v.Filtered)
			if asJSON {
				type point struct {
					Date  string  `json:"date"`
					Tasks float64 `json:"tasks"`
				}
				out := make([]point, len(points))
				for i, p := range points {
					out[i] = point{Date: p.Label(), Tasks: p.Tasks}
				}
				return writeJSON(a.out, out)
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tTASKS")
			for _, p := range points {
				fmt.Fprintf(tw, "%s\t%s\n", p.Label(), strconv.FormatFloat(p.Tasks, 'f', -1, 64))
			}
			return tw.Flush()
		},
	}
	q.bind(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func (a *app) summaryCmd() *cobra.Command {
	var (
		q      queryFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print headline figures, manager shares and health counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.view(cmd, &q)
			if err != nil {
				return err
			}
			health := report.HealthCounts(v.Filtered)
			if asJSON {
				return writeJSON(a.out, map[string]any{
					"sheets":   v.Sheets,
					"summary":  v.Summary,
					"managers": v.Managers,
					"health":   health,
				})
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "Sheets\t%s\n", strings.Join(v.Sheets, ", "))
			fmt.Fprintf(tw, "Projects\t%d\n", v.Summary.Projects)
			fmt.Fprintf(tw, "Managers\t%d\n", v.Summary.Managers)
			fmt.Fprintf(tw, "Total tasks\t%s\n", strconv.FormatFloat(v.Summary.TotalTasks, 'f', -1, 64))
			fmt.Fprintf(tw, "Mean tasks\t%s\n", strconv.FormatFloat(v.Summary.MeanTasks, 'f', -1, 64))
			fmt.Fprintf(tw, "Median tasks\t%s\n", strconv.FormatFloat(v.Summary.MedianTasks, 'f', -1, 64))
			fmt.Fprintf(tw, "Without start date\t%d\n", v.Summary.WithoutStart)
			fmt.Fprintln(tw)
			fmt.Fprintln(tw, "PROJECT MANAGER\tTOTAL PROJECTS\tSHARE")
			for _, m := range v.Managers {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", m.Label, m.Value, m.PercentLabel())
			}
			fmt.Fprintln(tw)
			fmt.Fprintln(tw, "HEALTH\tPROJECTS")
			for _, h := range health {
				fmt.Fprintf(tw, "%s\t%d\n", h.Label, h.Value)
			}
			return tw.Flush()
		},
	}
	q.bind(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func (a *app) exportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exports",
		Short: "Read the export audit trail",
	}
	cmd.AddCommand(a.exportsListCmd(), a.exportsWatchCmd())
	return cmd
}

func (a *app) exportsListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent exports recorded in AUDIT_DB_PATH",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.AuditDBPath == "" {
				return fmt.Errorf("%w: set AUDIT_DB_PATH", services.ErrAuditDisabled)
			}
			store, closeStore, err := a.openAudit(a.cfg.AuditDBPath)
			if err != nil {
				return err
			}
			defer closeStore()

			recs, err := services.NewExportService(store, nil, a.logger.Slog()).Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tROWS\tCOLUMNS\tSHEETS\tCLIENT")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
					r.ID, r.CreatedAt.Format(time.RFC3339), r.Rows, r.Columns, strings.Join(r.Sheets, ","), r.ClientIP)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of exports to show")
	return cmd
}

func (a *app) exportsWatchCmd() *cobra.Command {
	var record bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print export events from the AMQP queue as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.AMQPURL == "" {
				return errors.New("AMQP_URL is not set")
			}
			var store services.AuditStore
			if record {
				if a.cfg.AuditDBPath == "" {
					return fmt.Errorf("%w: --record needs AUDIT_DB_PATH", services.ErrAuditDisabled)
				}
				s, closeStore, err := a.openAudit(a.cfg.AuditDBPath)
				if err != nil {
					return err
				}
				defer closeStore()
				store = s
			}

			consumer, err := a.openConsumer(a.cfg)
			if err != nil {
				return fmt.Errorf("connect to AMQP: %w", err)
			}
			defer consumer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.logger.Info("Watching export events", "queue", a.cfg.AMQPQueue, "record", record)
			err = consumer.ConsumeExports(ctx, a.exportHandler(store))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&record, "record", false, "Also store each event in the audit database")
	return cmd
}

// exportHandler prints one line per event and, with a store, records it.
// Events already in the store are acknowledged without error.
func (a *app) exportHandler(store services.AuditStore) func(context.Context, *amqp.ExportCompletedMessage) error {
	return func(ctx context.Context, msg *amqp.ExportCompletedMessage) error {
		rec := msg.Record()
		fmt.Fprintf(a.out, "%s\t%s\t%d rows\t%s\t%s\n",
			rec.CreatedAt.UTC().Format(time.RFC3339), rec.ID, rec.Rows, rec.Location, strings.Join(rec.Sheets, ","))
		if store == nil {
			return nil
		}
		if err := store.RecordExport(ctx, rec); err != nil && !errors.Is(err, storage.ErrExportExists) {
			return err
		}
		return nil
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
