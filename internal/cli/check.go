package cli

import (
	"errors"
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
	"github.com/vorn/vorn/internal/policy"
)

// errGateFailed is returned when the policy gate fails. The result has
// already been printed, so Execute exits without repeating it.
var errGateFailed = errors.New("policy check failed")

// checkCmd gates a CSV file on a policy
var checkCmd = &cobra.Command{
	Use:   "check <file.csv|-> [--preset baseline|strict | --policy file.yaml]",
	Short: "Gate a CSV export on a compliance policy",
	Long: `Processes the file like scan, then evaluates CEL policy rules over the
file result. Exits 1 when the gate fails.

In warn mode only error-severity failures fail the gate; in strict mode any
failed rule does.

Examples:
  # Built-in baseline preset
  vorn check payments.csv

  # Strict preset for CI
  vorn check payments.csv --preset strict --format json

  # Custom policy
  vorn check payments.csv --policy policy.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

var (
	checkPresetFlag string
	checkPolicyFlag string
	checkFormatFlag string
	checkRun        runFlags
)

func init() {
	checkCmd.Flags().StringVar(&checkPresetFlag, "preset", "", "Built-in policy preset: baseline or strict (default baseline)")
	checkCmd.Flags().StringVar(&checkPolicyFlag, "policy", "", "Path to a policy YAML file")
	checkCmd.Flags().StringVar(&checkFormatFlag, "format", "text", "Output format: text or json")
	addRunFlags(checkCmd, &checkRun)
}

// GetCheckCmd export
func GetCheckCmd() *cobra.Command {
	return checkCmd
}

func runCheck(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	path := args[0]

	sess := receipt.Start(ctx, "vorn check", os.Args[1:])
	var (
		res            *models.FileResult
		catalogVersion string
		policyName     string
		presetName     string
		policyStatus   string
		receiptHits    []receipt.RuleHit
	)
	defer func() {
		_ = sess.Finish(err,
			receipt.WithInput(inputPath(path)),
			receipt.WithCompliance(res, catalogVersion),
			receipt.WithPolicy(policyName, presetName, policyStatus, receiptHits),
		)
	}()

	log := logging.From(ctx)
	start := time.Now()

	ctx, span := otelobs.Start(ctx, "check",
		attribute.String("vorn.op_id", observability.OpID(ctx)),
		attribute.String("vorn.command", "check"),
	)
	defer func() { otelobs.End(span, err) }()

	log.Event(ctx, "check.start", nil)

	var resultStatus string
	defer func() {
		log.Event(ctx, "check.complete", map[string]any{
			"duration_ms":   time.Since(start).Milliseconds(),
			"result":        resultStatus,
			"policy_status": policyStatus,
		})
	}()

	if checkFormatFlag != "text" && checkFormatFlag != "json" {
		resultStatus = "fail"
		return fmt.Errorf("invalid format: %s (use text or json)", checkFormatFlag)
	}

	config, preset, loadErr := loadPolicy(checkPresetFlag, checkPolicyFlag)
	if loadErr != nil {
		resultStatus = "fail"
		policyStatus = policy.StatusFail
		return fmt.Errorf("failed to load policy: %w", loadErr)
	}
	policyName = config.Name
	presetName = preset
	span.SetAttributes(attribute.String("vorn.preset", preset))

	engine, engErr := policy.NewEngine()
	if engErr != nil {
		resultStatus = "fail"
		return fmt.Errorf("failed to create policy engine: %w", engErr)
	}
	if err := engine.CompileAndValidate(config); err != nil {
		resultStatus = "fail"
		policyStatus = policy.StatusFail
		return err
	}

	result, e, procErr := processFile(ctx, cmd, path, checkRun)
	if procErr != nil {
		resultStatus = "fail"
		return procErr
	}
	res = result
	catalogVersion = e.Catalog().Version()

	results := engine.Evaluate(config, res, e.Catalog())
	checkResult := BuildCheckResult(res, config, preset, results)
	policyStatus = checkResult.Policy.Status
	for _, r := range results {
		if !r.Passed {
			receiptHits = append(receiptHits, receipt.RuleHit{
				Name:        r.RuleName,
				Severity:    string(r.Severity),
				ControlRefs: r.ControlRefs,
			})
		}
	}

	out := cmd.OutOrStdout()
	if checkFormatFlag == "json" {
		jsonOutput, jsonErr := FormatJSONOutput(checkResult)
		if jsonErr != nil {
			resultStatus = "fail"
			return fmt.Errorf("failed to format JSON output: %w", jsonErr)
		}
		fmt.Fprintln(out, string(jsonOutput))
	} else {
		fmt.Fprint(out, FormatCheckText(checkResult))
	}

	if checkResult.Outcome == OutcomeFail {
		resultStatus = "fail"
		return errGateFailed
	}
	resultStatus = "success"
	return nil
}

// loadPolicy resolves --preset and --policy. A preset name is reported as
// preset; files report "custom".
func loadPolicy(preset, path string) (*models.PolicyConfig, string, error) {
	if preset != "" && path != "" {
		return nil, "", fmt.Errorf("use either --preset or --policy, not both")
	}
	if path != "" {
		config, err := policy.LoadFile(path)
		if err != nil {
			return nil, "", err
		}
		return config, "custom", nil
	}
	if preset == "" {
		preset = "baseline"
	}
	config := policy.GetPreset(preset)
	if config == nil {
		return nil, "", fmt.Errorf("unknown preset: %s (use one of %v)", preset, policy.ListPresetNames())
	}
	return config, preset, nil
}
