package cmd

import (
	"github.com/spf13/cobra"

	"github.com/spigell/hire-matcher/internal/pipeline"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage job postings",
}

var jobsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a job",
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		var in pipeline.NewJob
		if file, _ := cmd.Flags().GetString("file"); file != "" {
			profile, err := readJobProfile(file)
			if err != nil {
				return err
			}
			in = pipeline.NewJob{
				Title:            profile.Title,
				Description:      profile.Description,
				Requirements:     profile.Requirements,
				Responsibilities: profile.Responsibilities,
				SkillsRequired:   profile.SkillsRequired,
				ExperienceLevel:  profile.ExperienceLevel,
			}
		}

		flags := cmd.Flags()
		for name, dst := range map[string]*string{
			"title":            &in.Title,
			"department":       &in.Department,
			"location":         &in.Location,
			"job-type":         &in.JobType,
			"experience-level": &in.ExperienceLevel,
			"description":      &in.Description,
			"requirements":     &in.Requirements,
			"skills":           &in.SkillsRequired,
		} {
			if flags.Changed(name) {
				*dst, _ = flags.GetString(name)
			}
		}
		status, _ := flags.GetString("status")
		in.Status = pipeline.JobStatus(status)

		job, err := d.svc.CreateJob(cmd.Context(), in)
		if err != nil {
			return err
		}
		return printJSON(cmd, job)
	},
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		status, _ := cmd.Flags().GetString("status")
		jobs, err := d.svc.ListJobs(cmd.Context(), pipeline.JobFilter{Status: pipeline.JobStatus(status)})
		if err != nil {
			return err
		}
		return printJSON(cmd, jobs)
	},
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status JOB_ID STATUS",
	Short: "Set a job status (draft, active, paused, closed)",
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

		job, err := d.svc.SetJobStatus(cmd.Context(), id, pipeline.JobStatus(args[1]))
		if err != nil {
			return err
		}
		return printJSON(cmd, job)
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsCreateCmd, jobsListCmd, jobsStatusCmd)

	f := jobsCreateCmd.Flags()
	f.String("file", "", "yaml file with the job description")
	f.String("title", "", "job title")
	f.String("department", "", "department")
	f.String("location", "", "location")
	f.String("job-type", "", "job type, e.g. full-time")
	f.String("experience-level", "", "experience level, e.g. senior")
	f.String("description", "", "description")
	f.String("requirements", "", "requirements")
	f.String("skills", "", "required skills as a comma separated list or JSON array")
	f.String("status", "", "initial status (default draft)")

	jobsListCmd.Flags().String("status", "", "only jobs in this status")
}
