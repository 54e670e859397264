// Package export writes audit chain ranges to interchange formats for
// offline verification and compliance handoff.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"mercator-hq/aegis/pkg/audit"
)

// Exporter writes a range of audit records to an output stream.
type Exporter interface {
	Export(ctx context.Context, records []*audit.Record, w io.Writer) error
}

// JSONExporter exports audit records as a JSON array.
type JSONExporter struct {
	// Pretty enables indented output.
	Pretty bool
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes the records to w as a JSON array. The export preserves
// every chain field (seq, prev_hash, hash), so an exported range can be
// re-verified without the originating store.
func (e *JSONExporter) Export(ctx context.Context, records []*audit.Record, w io.Writer) error {
	if len(records) == 0 {
		_, err := w.Write([]byte("[]"))
		return err
	}

	var data []byte
	var err error
	if e.Pretty {
		data, err = json.MarshalIndent(records, "", "  ")
	} else {
		data, err = json.Marshal(records)
	}
	if err != nil {
		return fmt.Errorf("json export of %d records: %w", len(records), err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("json export write: %w", err)
	}
	return nil
}
