package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hire-matcher/internal/export"
	"github.com/spigell/hire-matcher/internal/pipeline"
)

var applicationsCmd = &cobra.Command{
	Use:     "applications",
	Aliases: []string{"apps"},
	Short:   "Review and move applications through the pipeline",
}

var applicationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List applications, best matches first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		filter, err := applicationFilterFromFlags(cmd)
		if err != nil {
			return err
		}
		apps, total, err := d.svc.ListApplications(cmd.Context(), filter)
		if err != nil {
			return err
		}
		d.logger.Info("applications", zap.Int("shown", len(apps)), zap.Int("total", total))
		return printJSON(cmd, apps)
	},
}

var applicationsGetCmd = &cobra.Command{
	Use:   "get APPLICATION_ID",
	Short: "Show an application",
	Args:  cobra.ExactArgs(1),
	RunE: withID(func(cmd *cobra.Command, d *deps, id int64) (any, error) {
		return d.svc.GetApplication(cmd.Context(), id)
	}),
}

var applicationsStatusCmd = &cobra.Command{
	Use:   "status APPLICATION_ID STATUS",
	Short: "Set the status of an application",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		d, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		status := pipeline.ApplicationStatus(args[1])
		upd := pipeline.ApplicationUpdate{Status: &status}
		if cmd.Flags().Changed("notes") {
			notes, _ := cmd.Flags().GetString("notes")
			upd.Notes = &notes
		}
		app, err := d.svc.UpdateApplication(cmd.Context(), id, upd)
		if err != nil {
			return err
		}
		return printJSON(cmd, app)
	},
}

var applicationsShortlistCmd = &cobra.Command{
	Use:   "shortlist APPLICATION_ID",
	Short: "Shortlist an application",
	Args:  cobra.ExactArgs(1),
	RunE: withID(func(cmd *cobra.Command, d *deps, id int64) (any, error) {
		return d.svc.Shortlist(cmd.Context(), id)
	}),
}

var applicationsRejectCmd = &cobra.Command{
	Use:   "reject APPLICATION_ID",
	Short: "Reject an application",
	Args:  cobra.ExactArgs(1),
	RunE: withID(func(cmd *cobra.Command, d *deps, id int64) (any, error) {
		return d.svc.Reject(cmd.Context(), id)
	}),
}

var applicationsDeleteCmd = &cobra.Command{
	Use:   "delete APPLICATION_ID",
	Short: "Delete an application and its screenings",
	Args:  cobra.ExactArgs(1),
	RunE: withID(func(cmd *cobra.Command, d *deps, id int64) (any, error) {
		ok, err := confirm(cmd, fmt.Sprintf("Delete application %d?", id))
		if err != nil || !ok {
			return nil, err
		}
		if err := d.svc.DeleteApplication(cmd.Context(), id); err != nil {
			return nil, err
		}
		return map[string]int64{"deleted": id}, nil
	}),
}

var applicationsBulkInviteCmd = &cobra.Command{
	Use:   "bulk-invite APPLICATION_ID...",
	Short: "Schedule screenings for several applications",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		d, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		ok, err := confirm(cmd, fmt.Sprintf("Invite %d applications to screening?", len(ids)))
		if err != nil || !ok {
			return err
		}

		source, _ := cmd.Flags().GetString("source")
		res, err := d.svc.BulkInvite(cmd.Context(), ids, pipeline.ScreeningSource(source))
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

var applicationsAutoInviteCmd = &cobra.Command{
	Use:   "auto-invite",
	Short: "Invite pending applications that reach the auto invite threshold",
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		settings, err := d.svc.Settings(cmd.Context())
		if err != nil {
			return err
		}
		ok, err := confirm(cmd, fmt.Sprintf("Invite pending applications scoring %d or more?", settings.AutoInviteThreshold))
		if err != nil || !ok {
			return err
		}

		jobID, _ := cmd.Flags().GetInt64("job-id")
		res, err := d.svc.AutoInvite(cmd.Context(), jobID)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

var applicationsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count applications per status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		jobID, _ := cmd.Flags().GetInt64("job-id")
		stats, err := d.svc.ApplicationStats(cmd.Context(), jobID)
		if err != nil {
			return err
		}
		return printJSON(cmd, stats)
	},
}

var applicationsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export applications to an xlsx workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()
		ctx := cmd.Context()

		filter, err := applicationFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		var apps []pipeline.Application
		filter.Offset, filter.Limit = 0, 100
		for {
			batch, total, err := d.svc.ListApplications(ctx, filter)
			if err != nil {
				return err
			}
			apps = append(apps, batch...)
			filter.Offset += len(batch)
			if len(batch) == 0 || filter.Offset >= total {
				break
			}
		}

		stats, err := d.svc.ApplicationStats(ctx, filter.JobID)
		if err != nil {
			return err
		}

		output, _ := cmd.Flags().GetString("output")
		path, err := export.SaveApplications(output, export.Report{
			Generated:    time.Now(),
			Stats:        stats,
			Applications: apps,
		})
		if err != nil {
			return err
		}
		d.logger.Info("exported applications", zap.String("filename", path), zap.Int("count", len(apps)))
		return nil
	},
}

// withID parses the leading id argument and prints what fn returns.
func withID(fn func(cmd *cobra.Command, d *deps, id int64) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		d, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		out, err := fn(cmd, d, id)
		if err != nil || out == nil {
			return err
		}
		return printJSON(cmd, out)
	}
}

func applicationFilterFromFlags(cmd *cobra.Command) (pipeline.ApplicationFilter, error) {
	flags := cmd.Flags()
	var f pipeline.ApplicationFilter
	f.JobID, _ = flags.GetInt64("job-id")
	status, _ := flags.GetString("status")
	f.Status = pipeline.ApplicationStatus(status)
	f.Search, _ = flags.GetString("search")
	f.Offset, _ = flags.GetInt("offset")
	f.Limit, _ = flags.GetInt("limit")
	if flags.Changed("min-score") {
		v, err := flags.GetFloat64("min-score")
		if err != nil {
			return f, err
		}
		f.MinScore = &v
	}
	return f, nil
}

func addFilterFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int64("job-id", 0, "only applications for this job")
	f.String("status", "", "only applications in this status")
	f.String("search", "", "match candidate name or email")
	f.Float64("min-score", 0, "minimum match score")
	f.Int("offset", 0, "skip this many applications")
	f.Int("limit", 20, "page size (max 100)")
}

func init() {
	rootCmd.AddCommand(applicationsCmd)
	applicationsCmd.AddCommand(
		applicationsListCmd,
		applicationsGetCmd,
		applicationsStatusCmd,
		applicationsShortlistCmd,
		applicationsRejectCmd,
		applicationsDeleteCmd,
		applicationsBulkInviteCmd,
		applicationsAutoInviteCmd,
		applicationsStatsCmd,
		applicationsExportCmd,
	)

	addFilterFlags(applicationsListCmd)
	addFilterFlags(applicationsExportCmd)
	applicationsExportCmd.Flags().StringP("output", "o", "applications.xlsx", "output file")

	applicationsStatusCmd.Flags().String("notes", "", "recruiter notes")

	for _, c := range []*cobra.Command{applicationsDeleteCmd, applicationsBulkInviteCmd, applicationsAutoInviteCmd} {
		c.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	}
	applicationsBulkInviteCmd.Flags().String("source", string(pipeline.SourceBulk), "screening source (manual, bulk, auto)")
	applicationsAutoInviteCmd.Flags().Int64("job-id", 0, "only this job (default all jobs)")
	applicationsStatsCmd.Flags().Int64("job-id", 0, "only this job (default all jobs)")
}
