package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Set with -ldflags "-X github.com/spigell/hire-matcher/cmd.version=...".
var version = "unknown"

type buildInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version,omitempty"`
	Revision  string `json:"revision,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
}

func readBuildInfo() buildInfo {
	info := buildInfo{Version: version}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Revision = s.Value
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := readBuildInfo()
		if viper.GetBool("json") {
			return printJSON(cmd, info)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s version: %s\n", app, info.Version)
		if info.Revision != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "revision: %s (modified: %t)\n", info.Revision, info.Modified)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
