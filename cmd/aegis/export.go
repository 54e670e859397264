package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/aegis/pkg/audit/export"
	"mercator-hq/aegis/pkg/cli"
	"mercator-hq/aegis/pkg/config"
)

var exportFlags struct {
	format string
	output string
	from   uint64
	to     uint64
	pretty bool
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit records",
	Long: `Export audit chain records for offline analysis or archival.

Records keep their sequence numbers and hashes, so an exported range can
be re-verified independently of the live store.

Examples:
  # Export everything as JSON to stdout
  aegis export

  # Export a range as CSV to a file
  aegis export --format csv --from 100 --to 200 --output audit.csv`,
	RunE: exportRecords,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportFlags.format, "format", "json", "output format: json, csv")
	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", "", "output file (default stdout)")
	exportCmd.Flags().Uint64Var(&exportFlags.from, "from", 0, "first sequence number to export")
	exportCmd.Flags().Uint64Var(&exportFlags.to, "to", 0, "export up to but excluding this sequence number (0 = end of chain)")
	exportCmd.Flags().BoolVar(&exportFlags.pretty, "pretty", false, "indent JSON output")
}

func exportRecords(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	store, err := buildAuditStore(cfg)
	if err != nil {
		return cli.NewCommandError("export", err)
	}
	defer store.Close()

	ctx := context.Background()

	toSeq := exportFlags.to
	if toSeq == 0 {
		last, err := store.Last(ctx)
		if err != nil {
			return cli.NewCommandError("export", err)
		}
		if last == nil {
			fmt.Fprintln(os.Stderr, "No audit records found.")
			return nil
		}
		toSeq = last.Seq + 1
	}

	records, err := store.Range(ctx, exportFlags.from, toSeq)
	if err != nil {
		return cli.NewCommandError("export", err)
	}

	var out io.Writer = os.Stdout
	if exportFlags.output != "" {
		f, err := os.Create(exportFlags.output)
		if err != nil {
			return cli.NewCommandError("export", err)
		}
		defer f.Close()
		out = f
	}

	var exporter export.Exporter
	switch exportFlags.format {
	case "json":
		exporter = export.NewJSONExporter(exportFlags.pretty)
	case "csv":
		exporter = export.NewCSVExporter()
	default:
		return fmt.Errorf("unsupported format: %s", exportFlags.format)
	}

	if err := exporter.Export(ctx, records, out); err != nil {
		return cli.NewCommandError("export", err)
	}
	if exportFlags.output != "" {
		fmt.Printf("✓ Exported %d records to %s\n", len(records), exportFlags.output)
	}
	return nil
}
