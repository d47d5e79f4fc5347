package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/Veridex-Labs/veridex/kernel/pkg/config"
)

// runVerifyCmd implements `veridex verify`.
//
// Walks the audit ledger, recomputing hashes, linkage, and signatures.
//
// Exit codes:
//
//	0 = chain valid
//	1 = chain broken
//	2 = runtime error
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var jsonOutput bool
	cmd.BoolVar(&jsonOutput, "json", false, "Output the report as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	ctx := context.Background()
	l, closer, err := openLedger(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	report, err := l.VerifyChain(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: verification aborted: %v\n", err)
		return 2
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(report, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else if report.Valid {
		_, _ = fmt.Fprintf(stdout, "Ledger chain VALID (%d entries checked)\n", report.Checked)
	} else {
		_, _ = fmt.Fprintf(stdout, "Ledger chain BROKEN at index %d\n", report.FirstBreakIndex)
		_, _ = fmt.Fprintf(stdout, "Reason: %s\n", report.Reason)
	}

	if !report.Valid {
		return 1
	}
	return 0
}
