// Package usecase contains the application-specific business rules.
package usecase

import (
	"context"
	"time"

	"nutriauth/internal/domain/entity"
)

// ExportEventsInput bounds the audit window to report on.
type ExportEventsInput struct {
	From time.Time
	To   time.Time
}

// CSVExport carries a rendered CSV document and its suggested filename.
type CSVExport struct {
	Filename string
	Data     []byte
}

// SecurityUsecase defines the interface for the security event pipeline:
// reading heterogeneous audit tables, normalizing them into a unified event
// model, correlating events into incidents, and exporting the result.
type SecurityUsecase interface {
	// ExportEvents builds the full JSON report for a time range.
	ExportEvents(ctx context.Context, input ExportEventsInput) (*entity.SecurityReport, error)

	// ExportEventsCSV builds the flattened CSV export for a time range.
	ExportEventsCSV(ctx context.Context, input ExportEventsInput) (*CSVExport, error)
}
