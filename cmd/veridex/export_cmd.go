package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Veridex-Labs/veridex/kernel/pkg/config"
)

// runExportCmd implements `veridex export`.
//
// Seals a sequence range of the ledger into a portable bundle with a bundle
// hash and an EdDSA attestation token, for handover to auditors.
//
// Exit codes:
//
//	0 = bundle written
//	2 = runtime error
func runExportCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("export", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		from uint64
		to   uint64
		out  string
	)
	cmd.Uint64Var(&from, "from", 0, "Export entries with sequence greater than this")
	cmd.Uint64Var(&to, "to", 0, "Last sequence to export (0 = head)")
	cmd.StringVar(&out, "out", "", "Output file (default stdout)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	signer, err := newSigner(cfg)
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

	bundle, err := l.Export(ctx, from, to, signer)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: export failed: %v\n", err)
		return 2
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if out == "" {
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}
	//nolint:gosec // G306: bundles are handed to auditors, keep them readable
	if err := os.WriteFile(out, data, 0644); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: cannot write bundle: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintf(stdout, "Bundle %s written to %s (%d entries, %s)\n",
		bundle.BundleID, out, bundle.EntryCount, bundle.BundleHash)
	return 0
}
