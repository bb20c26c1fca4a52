package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spigell/hire-matcher/internal/extract"
	"github.com/spigell/hire-matcher/internal/pipeline"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Submit an application on behalf of a candidate",
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		jobID, _ := flags.GetInt64("job-id")
		sub := pipeline.Submission{JobID: jobID}
		sub.Email, _ = flags.GetString("email")
		sub.FullName, _ = flags.GetString("name")
		sub.Phone, _ = flags.GetString("phone")
		sub.CoverLetter, _ = flags.GetString("cover-letter")
		sub.Source, _ = flags.GetString("source")

		if path, _ := flags.GetString("resume"); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading resume: %w", err)
			}
			sub.Resume = data
			sub.ResumeMediaType = extract.MediaTypeFromPath(path)
		}

		d, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		app, err := d.svc.Submit(cmd.Context(), sub)
		if err != nil {
			return err
		}
		return printJSON(cmd, app)
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)

	f := applyCmd.Flags()
	f.Int64("job-id", 0, "job to apply to")
	f.String("email", "", "candidate email")
	f.String("name", "", "candidate full name")
	f.String("phone", "", "candidate phone")
	f.String("cover-letter", "", "cover letter text")
	f.StringP("resume", "r", "", "resume file (pdf, docx, txt)")
	f.String("source", "cli", "where the candidate came from")
	applyCmd.MarkFlagRequired("job-id")
	applyCmd.MarkFlagRequired("email")
	applyCmd.MarkFlagRequired("name")
}
