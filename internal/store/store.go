// Package store persists processed files.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/vorn/vorn/internal/models"
)

// ErrNotFound is returned by GetFile for an unknown id.
var ErrNotFound = errors.New("file not found")

// Listing bounds for ListFiles.
const (
	DefaultListLimit = 10
	MaxListLimit     = 50
)

// FileSummary is one entry of a file listing.
type FileSummary struct {
	ID              string    `json:"id"`
	Filename        string    `json:"filename"`
	CreatedAt       time.Time `json:"created_at"`
	TotalRows       int       `json:"total_rows"`
	ComplianceScore int       `json:"compliance_score"`
}

// FileRecord is a stored file with its full result.
type FileRecord struct {
	FileSummary
	RulesSummary []models.RuleSummary `json:"rules_summary"`
	Result       models.FileResult    `json:"file_result"`
}

// Store persists and retrieves processed files.
type Store interface {
	SaveFile(ctx context.Context, res models.FileResult) (string, error)
	GetFile(ctx context.Context, id string) (FileRecord, error)
	// ListFiles returns the newest files first.
	ListFiles(ctx context.Context, limit int) ([]FileSummary, error)
	Close() error
}

// ClampLimit maps a requested listing size onto [1, MaxListLimit]; values
// below 1 select DefaultListLimit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
