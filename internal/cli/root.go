package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vorn/vorn/internal/observability"
	"github.com/vorn/vorn/internal/observability/logging"
	otelobs "github.com/vorn/vorn/internal/observability/otel"
	"github.com/vorn/vorn/internal/observability/receipt"
	"github.com/vorn/vorn/internal/version"
)

const (
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"
)

var rootCmd = &cobra.Command{
	Use:   "vorn",
	Short: "Card-data compliance scanner for CSV exports",
	Long: `vorn: PCI DSS and privacy checks for tabular card data.
Masks and tokenizes card numbers, flags policy violations and scores each file.`,
	Version:           version.BuildVersion(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupObservability,
}

var (
	logFormatFlag       string
	logLevelFlag        string
	logOutputFlag       string
	otelEnabledFlag     bool
	otelEndpointFlag    string
	otelProtocolFlag    string
	otelInsecureFlag    bool
	otelSampleRatioFlag float64
	receiptPathFlag     string
	receiptModeFlag     string
)

// cleanups run after the command returns, in reverse order.
var cleanups []func()

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logFormatFlag, "log-format", logging.FormatPretty, "Log format: pretty, jsonl or text")
	pf.StringVar(&logLevelFlag, "log-level", logging.LevelInfo, "Log level: debug, info, warn or error")
	pf.StringVar(&logOutputFlag, "log-output", "stderr", "Log destination: stderr, stdout or a file path")
	pf.BoolVar(&otelEnabledFlag, "otel", false, "Export traces over OTLP")
	pf.StringVar(&otelEndpointFlag, "otel-endpoint", "", "OTLP endpoint (default from OTEL_EXPORTER_OTLP_ENDPOINT)")
	pf.StringVar(&otelProtocolFlag, "otel-protocol", otelobs.ProtocolHTTP, "OTLP protocol: otlphttp or otlpgrpc")
	pf.BoolVar(&otelInsecureFlag, "otel-insecure", false, "Disable TLS for the OTLP exporter")
	pf.Float64Var(&otelSampleRatioFlag, "otel-sample-ratio", 1.0, "Trace sample ratio between 0 and 1")
	pf.StringVar(&receiptPathFlag, "receipt", "", "Write an audit receipt to this path (- for stdout)")
	pf.StringVar(&receiptModeFlag, "receipt-mode", string(receipt.ModeOverwrite), "Receipt mode: overwrite or append")

	rootCmd.AddCommand(GetScanCmd())
	rootCmd.AddCommand(GetCheckCmd())
	rootCmd.AddCommand(GetRulesCmd())
	rootCmd.AddCommand(GetServeCmd())
	rootCmd.AddCommand(GetVersionCmd())
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	err := rootCmd.Execute()
	runCleanups()
	if err != nil {
		if !errors.Is(err, errGateFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// setupObservability installs op id, logger, tracer and receipt writer in
// the command context.
func setupObservability(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = observability.WithOpID(ctx)

	logger, err := logging.NewLogger(logging.Config{
		Format: logFormatFlag,
		Level:  logLevelFlag,
		Output: logOutputFlag,
	})
	if err != nil {
		return err
	}
	ctx = logging.WithLogger(ctx, logger)
	cleanups = append(cleanups, func() { _ = logger.Close() })

	if otelEnabledFlag || os.Getenv("VORN_OTEL_ENABLED") == "true" {
		cfg := otelobs.DefaultConfig()
		cfg.Enabled = true
		cfg.Endpoint = otelEndpointFlag
		cfg.Protocol = otelProtocolFlag
		cfg.Insecure = otelInsecureFlag
		cfg.SampleRatio = otelSampleRatioFlag
		h, err := otelobs.Init(ctx, cfg)
		if err != nil {
			return err
		}
		ctx = otelobs.WithHandle(ctx, h)
		cleanups = append(cleanups, func() { _ = h.Shutdown(context.Background()) })
	}

	if receiptPathFlag != "" {
		w, err := receipt.NewWriter(receiptPathFlag, receiptModeFlag)
		if err != nil {
			return err
		}
		ctx = receipt.WithWriter(ctx, w)
		cleanups = append(cleanups, func() { _ = w.Close() })
	}

	cmd.SetContext(ctx)
	return nil
}

func runCleanups() {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	cleanups = nil
}
