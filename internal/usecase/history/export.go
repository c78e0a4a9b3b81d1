package history

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mleite/autofund-backend/internal/domain"
)

// ExportFormat selects the history export encoding.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
)

// ErrUnknownFormat wraps an unsupported export format request.
var ErrUnknownFormat = fmt.Errorf("unknown export format")

type dateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

type jsonExport struct {
	ExecutionHistory []*domain.ExecutionRecord `json:"executionHistory"`
	ExportedAt       time.Time                 `json:"exportedAt"`
	TotalExecutions  int                       `json:"totalExecutions"`
	DateRange        dateRange                 `json:"dateRange"`
}

// Export serializes the execution log, optionally restricted to records
// executed inside [from, to]. It returns a suggested filename alongside
// the encoded payload.
func (s *Service) Export(ctx context.Context, format ExportFormat, from, to *time.Time) (string, []byte, error) {
	records, err := s.log.List(ctx, 0)
	if err != nil {
		return "", nil, err
	}
	records = filterByDate(records, from, to)

	now := time.Now()
	filename := fmt.Sprintf("auto-funding-history-%s.%s", now.Format("2006-01-02"), format)

	switch format {
	case FormatJSON:
		data, err := exportJSON(records, now)
		return filename, data, err
	case FormatCSV:
		data, err := exportCSV(records)
		return filename, data, err
	default:
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func filterByDate(records []*domain.ExecutionRecord, from, to *time.Time) []*domain.ExecutionRecord {
	if from == nil && to == nil {
		return records
	}
	filtered := make([]*domain.ExecutionRecord, 0, len(records))
	for _, r := range records {
		if from != nil && r.ExecutedAt.Before(*from) {
			continue
		}
		if to != nil && r.ExecutedAt.After(*to) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

func exportJSON(records []*domain.ExecutionRecord, now time.Time) ([]byte, error) {
	export := jsonExport{
		ExecutionHistory: records,
		ExportedAt:       now,
		TotalExecutions:  len(records),
	}

	for _, r := range records {
		executed := r.ExecutedAt
		if export.DateRange.From == nil || executed.Before(*export.DateRange.From) {
			export.DateRange.From = &executed
		}
		if export.DateRange.To == nil || executed.After(*export.DateRange.To) {
			export.DateRange.To = &executed
		}
	}

	return json.MarshalIndent(export, "", "  ")
}

func exportCSV(records []*domain.ExecutionRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"Execution ID", "Trigger", "Executed At", "Rules Executed", "Total Funded", "Success"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, r := range records {
		row := []string{
			r.ID.String(),
			string(r.Trigger),
			r.ExecutedAt.Format(time.RFC3339),
			fmt.Sprintf("%d", r.RulesExecuted),
			r.TotalFunded.StringFixed(2),
			fmt.Sprintf("%t", r.RulesExecuted > 0),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}
