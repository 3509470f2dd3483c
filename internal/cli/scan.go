package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vorn/vorn/internal/models"
	"github.com/vorn/vorn/internal/observability"
	"github.com/vorn/vorn/internal/observability/logging"
	otelobs "github.com/vorn/vorn/internal/observability/otel"
	"github.com/vorn/vorn/internal/observability/receipt"
)

// scanCmd evaluates a CSV file and prints the remediated result
var scanCmd = &cobra.Command{
	Use:   "scan <file.csv|->",
	Short: "Evaluate a CSV export against the rule catalog",
	Long: `Parses the CSV file, evaluates every row against the PCI and
organisational rules, and prints the remediated rows with the file score.

Card numbers never appear in the output: they are masked and tokenized.

Examples:
  # JSON result
  vorn scan payments.csv

  # Human-readable summary
  vorn scan payments.csv --format text

  # Read from stdin
  cat payments.csv | vorn scan -`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

var (
	scanFormatFlag string
	scanPrettyFlag bool
	scanRun        runFlags
)

func init() {
	scanCmd.Flags().StringVar(&scanFormatFlag, "format", "json", "Output format: json or text")
	scanCmd.Flags().BoolVarP(&scanPrettyFlag, "pretty", "p", false, "Indent JSON output")
	addRunFlags(scanCmd, &scanRun)
}

// GetScanCmd export
func GetScanCmd() *cobra.Command {
	return scanCmd
}

func runScan(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	path := args[0]

	sess := receipt.Start(ctx, "vorn scan", os.Args[1:])
	var res *models.FileResult
	var catalogVersion string
	defer func() {
		_ = sess.Finish(err, receipt.WithInput(inputPath(path)), receipt.WithCompliance(res, catalogVersion))
	}()

	log := logging.From(ctx)
	start := time.Now()

	ctx, span := otelobs.Start(ctx, "scan",
		attribute.String("vorn.op_id", observability.OpID(ctx)),
		attribute.String("vorn.command", "scan"),
	)
	defer func() { otelobs.End(span, err) }()

	log.Event(ctx, "scan.start", nil)

	var resultStatus string
	defer func() {
		fields := map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      resultStatus,
		}
		if res != nil {
			fields["total_rows"] = res.TotalRows
			fields["compliance_score"] = res.ComplianceScore
		}
		log.Event(ctx, "scan.complete", fields)
	}()

	if scanFormatFlag != "json" && scanFormatFlag != "text" {
		resultStatus = "fail"
		return fmt.Errorf("invalid format: %s (use json or text)", scanFormatFlag)
	}

	result, e, procErr := processFile(ctx, cmd, path, scanRun)
	if procErr != nil {
		resultStatus = "fail"
		return procErr
	}
	res = result
	catalogVersion = e.Catalog().Version()

	out := cmd.OutOrStdout()
	if scanFormatFlag == "text" {
		fmt.Fprint(out, FormatScanText(res))
		resultStatus = "success"
		return nil
	}

	var output []byte
	if scanPrettyFlag {
		output, err = json.MarshalIndent(res, "", "  ")
	} else {
		output, err = json.Marshal(res)
	}
	if err != nil {
		resultStatus = "fail"
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	fmt.Fprintln(out, string(output))
	resultStatus = "success"
	return nil
}
