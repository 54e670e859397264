package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"mercator-hq/aegis/pkg/audit"
)

// CSVExporter exports audit records as CSV with a fixed header row.
type CSVExporter struct{}

// NewCSVExporter creates a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// csvHeader is the fixed column order.
var csvHeader = []string{
	"seq", "id", "kind", "prev_hash", "hash", "recorded_at",
	"decision_id", "message_id", "score", "level", "mode", "action",
	"reason", "validating_roles", "constitutional_hash",
	"operator", "from_mode", "to_mode",
}

// Export writes the records to w as CSV.
func (e *CSVExporter) Export(ctx context.Context, records []*audit.Record, w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("csv export header: %w", err)
	}

	for _, rec := range records {
		row := []string{
			strconv.FormatUint(rec.Seq, 10),
			rec.ID,
			string(rec.Kind),
			rec.PrevHash,
			rec.Hash,
			rec.RecordedAt.UTC().Format(time.RFC3339Nano),
			rec.DecisionID,
			rec.MessageID,
			strconv.FormatFloat(rec.Score, 'g', -1, 64),
			rec.Level,
			rec.Mode,
			rec.Action,
			rec.Reason,
			strings.Join(rec.ValidatingRoles, ","),
			rec.ConstitutionalHash,
			rec.Operator,
			rec.FromMode,
			rec.ToMode,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv export seq %d: %w", rec.Seq, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
