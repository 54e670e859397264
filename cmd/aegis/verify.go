package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/aegis/pkg/audit/ledger"
	"mercator-hq/aegis/pkg/cli"
	"mercator-hq/aegis/pkg/config"
)

var verifyFlags struct {
	from   uint64
	to     uint64
	format string
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit chain",
	Long: `Recompute and verify the hash chain over stored audit records.

Each record's hash must equal the hash of its predecessor's hash plus its
own canonical form; the first record links to the genesis hash. Any
tampering, reordering, or deletion inside the verified range breaks the
chain and is reported with the first bad sequence number.

Examples:
  # Verify the whole chain
  aegis verify

  # Verify a range
  aegis verify --from 100 --to 200`,
	RunE: verifyChain,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().Uint64Var(&verifyFlags.from, "from", 0, "first sequence number to verify")
	verifyCmd.Flags().Uint64Var(&verifyFlags.to, "to", 0, "verify up to but excluding this sequence number (0 = end of chain)")
	verifyCmd.Flags().StringVar(&verifyFlags.format, "format", "text", "output format: text, json")
}

func verifyChain(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	store, err := buildAuditStore(cfg)
	if err != nil {
		return cli.NewCommandError("verify", err)
	}
	defer store.Close()

	led, err := ledger.New(store, nil)
	if err != nil {
		return cli.NewCommandError("verify", fmt.Errorf("failed to open audit ledger: %w", err))
	}
	defer led.Close()

	toSeq := verifyFlags.to
	if toSeq == 0 {
		toSeq = led.NextSeq()
	}

	ctx := context.Background()
	ok, firstBad, err := led.VerifyChain(ctx, verifyFlags.from, toSeq)
	if err != nil {
		return cli.NewCommandError("verify", err)
	}

	if cli.OutputFormat(verifyFlags.format) == cli.FormatJSON {
		result := map[string]any{
			"ok":   ok,
			"from": verifyFlags.from,
			"to":   toSeq,
		}
		if !ok {
			result["first_bad_seq"] = firstBad
		}
		formatter := cli.NewFormatter(cli.FormatJSON)
		if err := formatter.FormatTo(os.Stdout, result); err != nil {
			return cli.NewCommandError("verify", err)
		}
	} else {
		fmt.Printf("Verified sequences [%d, %d)\n", verifyFlags.from, toSeq)
		if !ok {
			fmt.Printf("✗ Chain broken at sequence %d\n", firstBad)
		} else {
			fmt.Println("✓ Chain intact")
		}
	}
	if !ok {
		return &cli.ChainBrokenError{Seq: firstBad}
	}
	return nil
}
