package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vorn/vorn/internal/version"
)

var versionJSONFlag bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		out := cmd.OutOrStdout()
		if versionJSONFlag {
			data, err := FormatJSONOutput(info)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			return nil
		}
		fmt.Fprintf(out, "vorn %s (%s)\n", info.Version, info.GoVersion)
		if info.Revision != "" {
			dirty := ""
			if info.Modified {
				dirty = "+dirty"
			}
			fmt.Fprintf(out, "revision %s%s\n", info.Revision, dirty)
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSONFlag, "json", false, "Print as JSON")
}

// GetVersionCmd export
func GetVersionCmd() *cobra.Command {
	return versionCmd
}
