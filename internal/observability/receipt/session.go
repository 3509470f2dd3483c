package receipt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"time"

	"github.com/vorn/vorn/internal/models"
	"github.com/vorn/vorn/internal/observability"
)

// MaxErrorLength is the maximum length for error strings in receipts.
const MaxErrorLength = 2048

// Session tracks command execution
type Session struct {
	ctx     context.Context
	start   time.Time
	command string
	args    []string
}

// Start session
func Start(ctx context.Context, cmd string, args []string) *Session {
	return &Session{
		ctx:     ctx,
		start:   time.Now(),
		command: cmd,
		args:    args,
	}
}

// Option configures receipt
type Option func(*Receipt)

// WithInput records the evaluated file with its size and digest.
func WithInput(path string) Option {
	return func(r *Receipt) {
		if path == "" {
			return
		}
		ref := &InputRef{Path: path}
		if n, hash, err := digestFile(path); err == nil {
			ref.Bytes = n
			ref.SHA256 = hash
		}
		r.Input = ref
	}
}

// WithCompliance records counts from a processed file.
func WithCompliance(res *models.FileResult, catalogVersion string) Option {
	return func(r *Receipt) {
		if res == nil {
			return
		}
		s := &ComplianceSummary{
			CatalogVersion:   catalogVersion,
			TotalRows:        res.TotalRows,
			NonCompliantRows: res.NonCompliantRows(),
			ComplianceScore:  res.ComplianceScore,
		}
		for _, rs := range res.RulesSummary {
			if rs.AffectedRows > 0 {
				s.RulesFired = append(s.RulesFired, RuleCount{RuleID: rs.RuleID, AffectedRows: rs.AffectedRows})
			}
		}
		r.Compliance = s
	}
}

// WithPolicy option
func WithPolicy(name, preset, status string, hits []RuleHit) Option {
	return func(r *Receipt) {
		r.Policy = &PolicySummary{
			Name:     name,
			Preset:   preset,
			Status:   status,
			RulesHit: hits,
		}
	}
}

// Finish and write receipt
func (s *Session) Finish(err error, opts ...Option) error {
	w := From(s.ctx)
	if w == nil {
		// No writer configured, receipts disabled
		return nil
	}

	redactedArgs, wasRedacted := RedactArgs(s.args)

	r := Receipt{
		SchemaVersion: ReceiptSchemaVersion,
		OpID:          observability.OpID(s.ctx),
		TsStart:       s.start.UTC().Format(time.RFC3339Nano),
		TsEnd:         time.Now().UTC().Format(time.RFC3339Nano),
		Command:       s.command,
		Args:          redactedArgs,
		ArgsRedacted:  wasRedacted,
		Result:        Result{Status: "success"},
	}
	if err != nil {
		r.Result = Result{
			Status: "fail",
			Error:  truncateError(RedactText(err.Error())),
		}
	}

	for _, opt := range opts {
		opt(&r)
	}

	return w.Write(r)
}

func digestFile(path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

// truncateError helper
func truncateError(s string) string {
	if len(s) <= MaxErrorLength {
		return s
	}
	return s[:MaxErrorLength-3] + "..."
}
