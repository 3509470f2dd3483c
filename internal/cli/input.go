package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/vorn/vorn/internal/engine"
	"github.com/vorn/vorn/internal/models"
	"github.com/vorn/vorn/internal/pipeline"
)

const defaultTimeout = 60 * time.Second

// runFlags are shared by commands that process a file.
type runFlags struct {
	workers  int
	maxRows  int
	maxBytes int64
	timeout  time.Duration
}

func addRunFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Parallel row workers (0 = one per CPU)")
	cmd.Flags().IntVar(&f.maxRows, "max-rows", pipeline.DefaultMaxRows, "Reject files with more data rows (-1 disables)")
	cmd.Flags().Int64Var(&f.maxBytes, "max-bytes", pipeline.DefaultMaxBytes, "Reject files larger than this many bytes (-1 disables)")
	cmd.Flags().DurationVarP(&f.timeout, "timeout", "t", defaultTimeout, "Timeout for processing the file")
}

// readInput reads path, or stdin when path is "-". The filename reported in
// results is the base name.
func readInput(cmd *cobra.Command, path string) (string, string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return pipeline.DefaultFilename, string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read input: %w", err)
	}
	return filepath.Base(path), string(data), nil
}

// processFile runs the pipeline over path and returns the result with the
// engine that produced it.
func processFile(ctx context.Context, cmd *cobra.Command, path string, f runFlags) (*models.FileResult, *engine.Engine, error) {
	filename, content, err := readInput(cmd, path)
	if err != nil {
		return nil, nil, err
	}

	e, err := engine.NewDefault()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load rule catalog: %w", err)
	}
	p := pipeline.New(e, pipeline.Options{
		Workers:  f.workers,
		MaxRows:  f.maxRows,
		MaxBytes: f.maxBytes,
	})

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	res, err := p.Process(ctx, pipeline.Request{Filename: filename, Content: content})
	if err != nil {
		return nil, nil, fmt.Errorf("processing %s failed: %w", filename, err)
	}
	return res, e, nil
}

// inputPath is the receipt path for an input argument.
func inputPath(path string) string {
	if path == "-" {
		return ""
	}
	return path
}
