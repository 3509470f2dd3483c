package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vorn/vorn/internal/catalog"
)

var rulesFormatFlag string

// rulesCmd lists the rule catalog
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the compliance rule catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := catalog.Default()
		if err != nil {
			return fmt.Errorf("failed to load rule catalog: %w", err)
		}

		out := cmd.OutOrStdout()
		switch rulesFormatFlag {
		case "text":
			fmt.Fprint(out, FormatRulesText(cat.Version(), cat.Rules()))
		case "json":
			data, err := FormatJSONOutput(map[string]any{
				"version": cat.Version(),
				"rules":   cat.Rules(),
			})
			if err != nil {
				return fmt.Errorf("failed to marshal catalog: %w", err)
			}
			fmt.Fprintln(out, string(data))
		default:
			return fmt.Errorf("invalid format: %s (use text or json)", rulesFormatFlag)
		}
		return nil
	},
}

func init() {
	rulesCmd.Flags().StringVar(&rulesFormatFlag, "format", "text", "Output format: text or json")
}

// GetRulesCmd export
func GetRulesCmd() *cobra.Command {
	return rulesCmd
}
