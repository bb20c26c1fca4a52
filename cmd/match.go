package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/hire-matcher/internal/extract"
	"github.com/spigell/hire-matcher/internal/matcher"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Score a resume against a job without storing anything",
	Example: `  hire-matcher match --resume cv.pdf --job job.yaml
  hire-matcher match --resume cv.docx --job-id 3`,
	RunE: match,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("resume", "r", "", "resume file (pdf, docx, txt)")
	matchCmd.Flags().String("job", "", "yaml file describing the job")
	matchCmd.Flags().Int64("job-id", 0, "stored job to match against")
	matchCmd.MarkFlagRequired("resume")
	matchCmd.MarkFlagsOneRequired("job", "job-id")
	matchCmd.MarkFlagsMutuallyExclusive("job", "job-id")
}

func match(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	resumePath, _ := cmd.Flags().GetString("resume")
	text, err := readResume(ctx, resumePath)
	if err != nil {
		return err
	}

	var (
		job    matcher.JobProfile
		scorer *matcher.Matcher
	)

	if jobID, _ := cmd.Flags().GetInt64("job-id"); jobID > 0 {
		d, err := setup(ctx)
		if err != nil {
			return err
		}
		defer d.Close()

		stored, err := d.svc.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		job = stored.Profile()
		scorer = matcher.New(d.newEmbedder(), matcher.WithLogger(d.logger.Named("matcher")))
	} else {
		jobPath, _ := cmd.Flags().GetString("job")
		if job, err = readJobProfile(jobPath); err != nil {
			return err
		}

		config, err := getConfig()
		if err != nil {
			return fmt.Errorf("getting a config: %w", err)
		}
		d := &deps{config: config, logger: newLogger()}
		defer d.Close()
		scorer = matcher.New(d.newEmbedder(), matcher.WithLogger(d.logger.Named("matcher")))
	}

	res, err := scorer.Match(ctx, text, job)
	if err != nil {
		return err
	}
	return printJSON(cmd, res.Map())
}

func readResume(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading resume: %w", err)
	}
	mediaType := extract.MediaTypeFromPath(path)
	if mediaType == "" {
		return "", fmt.Errorf("%w: %s", extract.ErrUnsupportedFormat, path)
	}
	return extract.Extract(ctx, data, mediaType)
}

// readJobProfile loads a job description from a yaml file.
func readJobProfile(path string) (matcher.JobProfile, error) {
	var job matcher.JobProfile

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return job, fmt.Errorf("reading job file: %w", err)
	}
	if err := v.Unmarshal(&job); err != nil {
		return job, fmt.Errorf("decoding job file: %w", err)
	}
	if job.Title == "" && job.Description == "" {
		return job, errors.New("job file needs at least a title or a description")
	}
	return job, nil
}
