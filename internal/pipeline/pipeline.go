// Package pipeline turns an uploaded file into a FileResult.
package pipeline

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/vorn/vorn/internal/compliance"
	"github.com/vorn/vorn/internal/engine"
	"github.com/vorn/vorn/internal/models"
	"github.com/vorn/vorn/internal/observability"
	"github.com/vorn/vorn/internal/observability/logging"
	"github.com/vorn/vorn/internal/observability/otel"
	"github.com/vorn/vorn/internal/parser"
)

// DefaultFilename is used when a request names no file.
const DefaultFilename = "upload.csv"

// Defaults for Options fields left at zero.
const (
	DefaultMaxRows  = 5000
	DefaultMaxBytes = 5 << 20
)

type Options struct {
	// Workers bounds parallel row evaluation; 0 means GOMAXPROCS.
	Workers int
	// MaxRows and MaxBytes reject oversized input; negative disables the check.
	MaxRows  int
	MaxBytes int64
	// Metrics is optional.
	Metrics *observability.Metrics
}

// Request is one file to evaluate.
type Request struct {
	Filename string
	Content  string
}

// Processor runs parse, evaluate and aggregate. Safe for concurrent use.
type Processor struct {
	engine *engine.Engine
	opts   Options
	now    func() time.Time
}

func New(e *engine.Engine, opts Options) *Processor {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.MaxRows == 0 {
		opts.MaxRows = DefaultMaxRows
	}
	if opts.MaxBytes == 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	return &Processor{engine: e, opts: opts, now: time.Now}
}

func (p *Processor) Engine() *engine.Engine { return p.engine }

func (p *Processor) Options() Options { return p.opts }

// Process evaluates every row of req. On cancellation no partial result is
// returned.
func (p *Processor) Process(ctx context.Context, req Request) (res *models.FileResult, err error) {
	start := p.now()
	filename := req.Filename
	if filename == "" {
		filename = DefaultFilename
	}

	ctx, span := otel.Start(ctx, "pipeline.process", attribute.String("vorn.filename", filename))
	defer func() {
		if res != nil {
			span.SetAttributes(
				attribute.Int("vorn.total_rows", res.TotalRows),
				attribute.Int("vorn.compliance_score", res.ComplianceScore),
			)
		}
		otel.End(span, err)
		if p.opts.Metrics != nil {
			p.opts.Metrics.ObserveFile(res, p.now().Sub(start))
		}
	}()

	log := logging.From(ctx)

	if p.opts.MaxBytes > 0 && int64(len(req.Content)) > p.opts.MaxBytes {
		return nil, &LimitError{Err: ErrPayloadTooLarge, Limit: p.opts.MaxBytes, Actual: int64(len(req.Content))}
	}

	parsed := parser.ParseCSV(req.Content)
	for _, w := range parsed.Warnings {
		log.Warn("pipeline", w, "filename", filename)
	}
	if len(parsed.RawHeaders) == 0 {
		return nil, ErrInputFormat
	}
	if len(parsed.Rows) == 0 {
		return nil, ErrEmptyDataset
	}
	if p.opts.MaxRows > 0 && len(parsed.Rows) > p.opts.MaxRows {
		return nil, &LimitError{Err: ErrRowLimitExceeded, Limit: int64(p.opts.MaxRows), Actual: int64(len(parsed.Rows))}
	}

	rows, err := p.evaluate(ctx, parsed.Rows)
	if err != nil {
		return nil, err
	}

	res = &models.FileResult{
		Filename:        filename,
		TotalRows:       len(rows),
		Rows:            rows,
		ComplianceScore: compliance.ComputeFileScore(rows),
		RulesSummary:    compliance.SummarizeRules(rows, p.engine.Catalog().Rules()),
	}
	res.ProcessingDurationMS = p.now().Sub(start).Milliseconds()

	log.Debug("pipeline", "file processed",
		"filename", filename,
		"total_rows", res.TotalRows,
		"compliance_score", res.ComplianceScore,
		"duration_ms", res.ProcessingDurationMS,
	)
	return res, nil
}

// evaluate runs rows through the engine in parallel. Results are written by
// index so output order equals input order.
func (p *Processor) evaluate(ctx context.Context, in []models.RowInput) ([]models.RowOutput, error) {
	out := make([]models.RowOutput, len(in))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i := range in {
		i := i
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = p.engine.ProcessRow(in[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
