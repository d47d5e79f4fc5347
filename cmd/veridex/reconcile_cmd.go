package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/Veridex-Labs/veridex/kernel/pkg/config"
	"github.com/Veridex-Labs/veridex/kernel/pkg/resilient"
)

// runReconcileCmd implements `veridex reconcile`.
//
// Drains cached writes into the durable backend, recording each outcome in
// the ledger. With --check, cached payloads are integrity-verified first and
// mismatches quarantined.
//
// Exit codes:
//
//	0 = backlog fully drained
//	1 = some entries failed or were quarantined
//	2 = runtime error
func runReconcileCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		check bool
		sweep bool
	)
	cmd.BoolVar(&check, "check", false, "Verify cached payload integrity before syncing")
	cmd.BoolVar(&sweep, "sweep", false, "Delete synced entries past the retention window")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	log := setupLogger(cfg.LogLevel, stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs, obsShutdown := initObservability(ctx, cfg, log)
	defer obsShutdown()

	l, ledgerCloser, err := openLedger(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if ledgerCloser != nil {
		defer func() { _ = ledgerCloser.Close() }()
	}

	store, cacheCloser, err := openResilientStore(ctx, cfg, l)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if cacheCloser != nil {
		defer func() { _ = cacheCloser.Close() }()
	}

	var report resilient.IntegrityReport
	if check {
		report, err = store.VerifyIntegrity(ctx)
		if err != nil && report.Quarantined == 0 {
			_, _ = fmt.Fprintf(stderr, "Error: integrity check failed: %v\n", err)
			return 2
		}
		for _, key := range report.Corrupted {
			_, _ = fmt.Fprintf(stdout, "Corrupted: %s\n", key)
		}
		if report.Quarantined > 0 {
			log.Warn("quarantined corrupted cache entries", "count", report.Quarantined)
		}
	}

	stats, err := store.Reconcile(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: reconcile aborted: %v\n", err)
		return 2
	}
	obs.RecordSync(ctx, "SYNCED", stats.Synced)
	obs.RecordSync(ctx, "FAILED", stats.Failed)

	if sweep {
		deleted, err := store.Sweep(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: sweep failed: %v\n", err)
			return 2
		}
		_, _ = fmt.Fprintf(stdout, "Swept %d aged entries\n", deleted)
	}

	_, _ = fmt.Fprintf(stdout, "Synced: %d  Failed: %d  Remaining: %d\n",
		stats.Synced, stats.Failed, stats.Remaining)
	if len(report.Corrupted) > 0 {
		_, _ = fmt.Fprintf(stdout, "Quarantined: %d\n", len(report.Corrupted))
	}

	if stats.Failed > 0 || len(report.Corrupted) > 0 {
		return 1
	}
	return 0
}
