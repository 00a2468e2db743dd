package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/orgsync"
	"github.com/agentstation/orgsync/internal/cmd/output"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
)

// NewRunCommand creates the run command.
func (a *App) NewRunCommand() *cobra.Command {
	var (
		dryRun      bool
		courses     []string
		keepOrphans bool
	)

	cmd := &cobra.Command{
		Use:     "run",
		GroupID: "core",
		Short:   "Run one synchronization",
		Long: `Run loads the HR users, reconciles the LMS directory and records the
completion of every course in Reporting.

Per-entity failures are reported in the summary and make the command exit
non-zero; authentication and snapshot failures abort the run.`,
		Example: `  orgsync run
  orgsync run --dry-run -o yaml
  orgsync run --course COURSE00042 --course 57`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			opts := []orgsync.Option{
				orgsync.WithDryRun(dryRun),
				orgsync.WithDisableOrphans(!keepOrphans),
			}
			if len(courses) > 0 {
				opts = append(opts, orgsync.WithCourses(courses...))
			}

			syncer, err := a.Syncer(ctx, opts...)
			if err != nil {
				return err
			}

			summary, err := syncer.Sync(ctx)
			if summary != nil {
				if werr := summary.Write(cmd.OutOrStdout(), a.summaryFormat()); werr != nil {
					logging.FromContext(ctx).Error().Err(werr).Msg("Writing summary failed")
				}
			}
			if err != nil {
				return err
			}
			if !summary.IsSuccess() {
				entities := make([]string, 0, len(summary.Failures))
				for _, f := range summary.Failures {
					entities = append(entities, f.Entity)
				}
				return errors.NewSyncError("run", entities, fmt.Errorf("%d entities failed", len(summary.Failures)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan every change without writing to either platform")
	cmd.Flags().StringSliceVar(&courses, "course", nil, "limit the metric phase to a course key or LMS id (repeatable)")
	cmd.Flags().BoolVar(&keepOrphans, "keep-orphans", false, "do not disable active LMS users missing from HR")
	return cmd
}

// NewScheduleCommand creates the schedule command.
func (a *App) NewScheduleCommand() *cobra.Command {
	var spec string

	cmd := &cobra.Command{
		Use:     "schedule",
		GroupID: "core",
		Short:   "Run synchronizations on a cron schedule",
		Long: `Schedule runs a synchronization on every tick of a cron expression until
interrupted. A tick that arrives while a run is still going is skipped.`,
		Example: `  orgsync schedule --cron "0 2 * * *"
  SYNC_SCHEDULE=@daily orgsync schedule`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if spec == "" {
				spec = a.config.Schedule
			}
			if spec == "" {
				return errors.NewConfigError("schedule", "set --cron or SYNC_SCHEDULE", nil)
			}
			if _, err := orgsync.ParseSchedule(spec); err != nil {
				return err
			}

			ctx := cmd.Context()
			syncer, err := a.Syncer(ctx)
			if err != nil {
				return err
			}
			syncer.OnRunCompleted(func(summary *orgsync.Summary) {
				_ = summary.Write(cmd.OutOrStdout(), a.summaryFormat())
			})
			return syncer.Schedule(ctx, spec)
		},
	}

	cmd.Flags().StringVar(&spec, "cron", "", "cron expression, e.g. \"0 2 * * *\" or \"@every 6h\" (default $SYNC_SCHEDULE)")
	return cmd
}

// NewInspectCommand creates the inspect command and its subcommands.
func (a *App) NewInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "inspect",
		GroupID: "management",
		Short:   "Show the state of the remote platforms",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "indices",
		Short: "List Reporting indices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.ReportingClient(cmd.Context())
			if err != nil {
				return err
			}
			indices, err := client.ListIndices(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(cmd, indices, output.IndicesTable(indices))
		},
	})

	var code string
	measurements := &cobra.Command{
		Use:   "measurements",
		Short: "List Reporting measurements",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.ReportingClient(cmd.Context())
			if err != nil {
				return err
			}
			list, err := client.ListMeasurements(cmd.Context())
			if code != "" {
				list, err = client.MeasurementsByCode(cmd.Context(), code)
			}
			if err != nil {
				return err
			}
			return a.render(cmd, list, output.MeasurementsTable(list))
		},
	}
	measurements.Flags().StringVar(&code, "code", "", "only the measurement with this code")
	cmd.AddCommand(measurements)

	cmd.AddCommand(&cobra.Command{
		Use:   "accounts",
		Short: "List Reporting accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.ReportingClient(cmd.Context())
			if err != nil {
				return err
			}
			accounts, err := client.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(cmd, accounts, output.AccountsTable(accounts))
		},
	})

	var deleteID int
	units := &cobra.Command{
		Use:   "units",
		Short: "List LMS units, or delete one with --delete",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.LMSClient(cmd.Context())
			if err != nil {
				return err
			}
			if deleteID > 0 {
				if err := client.DeleteUnit(cmd.Context(), deleteID); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted unit %d\n", deleteID)
				return err
			}
			list, err := client.ListUnits(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(cmd, list, output.UnitsTable(list))
		},
	}
	units.Flags().IntVar(&deleteID, "delete", 0, "delete the unit with this id")
	cmd.AddCommand(units)

	return cmd
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "orgsync %s (commit %s, built %s by %s)\n",
				a.version, a.commit, a.date, a.builtBy)
			return err
		},
	}
}

// render writes raw as JSON or YAML, and table otherwise.
func (a *App) render(cmd *cobra.Command, raw any, table output.Data) error {
	format, err := output.ParseFormat(a.config.Format)
	if err != nil {
		return err
	}
	if format == "" {
		format = output.DetectFormat("")
	}
	switch format {
	case output.FormatJSON, output.FormatYAML:
		return output.NewFormatter(format).Format(cmd.OutOrStdout(), raw)
	default:
		return output.NewFormatter(output.FormatTable).Format(cmd.OutOrStdout(), table)
	}
}

// summaryFormat maps the output flag to a summary format.
func (a *App) summaryFormat() string {
	switch strings.ToLower(a.config.Format) {
	case "json", "yaml", "yml":
		return a.config.Format
	}
	return "text"
}
