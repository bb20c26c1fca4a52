package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spigell/hire-matcher/internal/pipeline"
)

var screeningsCmd = &cobra.Command{
	Use:   "screenings",
	Short: "Schedule and record screenings",
}

var screeningsCreateCmd = &cobra.Command{
	Use:   "create APPLICATION_ID",
	Short: "Schedule a screening for an application",
	Args:  cobra.ExactArgs(1),
	RunE: withID(func(cmd *cobra.Command, d *deps, id int64) (any, error) {
		in := pipeline.NewScreening{ApplicationID: id}
		if at, _ := cmd.Flags().GetString("at"); at != "" {
			t, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return nil, fmt.Errorf("invalid --at: %w", err)
			}
			in.ScheduledAt = &t
		}
		source, _ := cmd.Flags().GetString("source")
		in.Source = pipeline.ScreeningSource(source)
		return d.svc.CreateScreening(cmd.Context(), in)
	}),
}

var screeningsStartCmd = &cobra.Command{
	Use:   "start SCREENING_ID",
	Short: "Mark a screening as in progress",
	Args:  cobra.ExactArgs(1),
	RunE: withID(func(cmd *cobra.Command, d *deps, id int64) (any, error) {
		return d.svc.StartScreening(cmd.Context(), id)
	}),
}

var screeningsCompleteCmd = &cobra.Command{
	Use:   "complete SCREENING_ID",
	Short: "Record the evaluation of a screening",
	Args:  cobra.ExactArgs(1),
	RunE: withID(func(cmd *cobra.Command, d *deps, id int64) (any, error) {
		flags := cmd.Flags()
		var ev pipeline.Evaluation
		ev.TechnicalScore, _ = flags.GetFloat64("technical")
		ev.CommunicationScore, _ = flags.GetFloat64("communication")
		ev.CulturalFitScore, _ = flags.GetFloat64("cultural-fit")
		if flags.Changed("overall") {
			v, _ := flags.GetFloat64("overall")
			ev.OverallScore = &v
		}
		rec, _ := flags.GetString("recommendation")
		ev.Recommendation = pipeline.ScreeningRecommendation(rec)
		if flags.Changed("notes") {
			notes, _ := flags.GetString("notes")
			ev.Notes = &notes
		}
		return d.svc.CompleteScreening(cmd.Context(), id, ev)
	}),
}

var screeningsCancelCmd = &cobra.Command{
	Use:   "cancel SCREENING_ID",
	Short: "Cancel a screening",
	Args:  cobra.ExactArgs(1),
	RunE: withID(func(cmd *cobra.Command, d *deps, id int64) (any, error) {
		return d.svc.CancelScreening(cmd.Context(), id)
	}),
}

var screeningsNotesCmd = &cobra.Command{
	Use:   "notes SCREENING_ID NOTES",
	Short: "Replace the notes of a screening",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withID(func(cmd *cobra.Command, d *deps, id int64) (any, error) {
			return d.svc.UpdateScreeningNotes(cmd.Context(), id, args[1])
		})(cmd, args)
	},
}

var screeningsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List screenings, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		flags := cmd.Flags()
		var filter pipeline.ScreeningFilter
		filter.ApplicationID, _ = flags.GetInt64("application-id")
		status, _ := flags.GetString("status")
		filter.Status = pipeline.ScreeningStatus(status)
		filter.Offset, _ = flags.GetInt("offset")
		filter.Limit, _ = flags.GetInt("limit")

		items, _, err := d.svc.ListScreenings(cmd.Context(), filter)
		if err != nil {
			return err
		}
		return printJSON(cmd, items)
	},
}

var screeningsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise screenings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		stats, err := d.svc.ScreeningStats(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, stats)
	},
}

func init() {
	rootCmd.AddCommand(screeningsCmd)
	screeningsCmd.AddCommand(
		screeningsCreateCmd,
		screeningsStartCmd,
		screeningsCompleteCmd,
		screeningsCancelCmd,
		screeningsNotesCmd,
		screeningsListCmd,
		screeningsStatsCmd,
	)

	screeningsCreateCmd.Flags().String("at", "", "scheduled time in RFC3339")
	screeningsCreateCmd.Flags().String("source", string(pipeline.SourceManual), "screening source (manual, bulk, auto)")

	f := screeningsCompleteCmd.Flags()
	f.Float64("technical", 0, "technical score 0..100")
	f.Float64("communication", 0, "communication score 0..100")
	f.Float64("cultural-fit", 0, "cultural fit score 0..100")
	f.Float64("overall", 0, "overall score 0..100 (default weighted average)")
	f.String("recommendation", "", "strong_pass, pass, borderline or fail (default derived from overall)")
	f.String("notes", "", "interviewer notes")
	screeningsCompleteCmd.MarkFlagRequired("technical")
	screeningsCompleteCmd.MarkFlagRequired("communication")
	screeningsCompleteCmd.MarkFlagRequired("cultural-fit")

	l := screeningsListCmd.Flags()
	l.Int64("application-id", 0, "only screenings of this application")
	l.String("status", "", "only screenings in this status")
	l.Int("offset", 0, "skip this many screenings")
	l.Int("limit", 20, "page size (max 100)")
}
