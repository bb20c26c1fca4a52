package cmd

import (
	"github.com/spf13/cobra"

	"github.com/spigell/hire-matcher/internal/pipeline"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change pipeline settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the current settings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		s, err := d.svc.Settings(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, s)
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change settings",
	Example: `  hire-matcher settings set --auto-invite --threshold 80
  hire-matcher settings set --auto-invite=false`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var upd pipeline.SettingsUpdate
		flags := cmd.Flags()
		if flags.Changed("auto-invite") {
			v, _ := flags.GetBool("auto-invite")
			upd.AutoInviteScreening = &v
		}
		if flags.Changed("threshold") {
			v, _ := flags.GetInt("threshold")
			upd.AutoInviteThreshold = &v
		}

		d, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		s, err := d.svc.UpdateSettings(cmd.Context(), upd)
		if err != nil {
			return err
		}
		return printJSON(cmd, s)
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)

	settingsSetCmd.Flags().Bool("auto-invite", false, "invite new applications that reach the threshold")
	settingsSetCmd.Flags().Int("threshold", 75, "auto invite match score threshold 0..100")
}
