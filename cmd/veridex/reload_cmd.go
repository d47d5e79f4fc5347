package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/Veridex-Labs/veridex/kernel/pkg/config"
	"github.com/Veridex-Labs/veridex/kernel/pkg/ledger"
	"github.com/Veridex-Labs/veridex/kernel/pkg/rules"
)

// runReloadCmd implements `veridex reload`.
//
// Validates a candidate catalog against the active one and records the
// outcome in the audit ledger. The active catalog stays in force when the
// candidate is rejected.
//
// Exit codes:
//
//	0 = candidate accepted
//	1 = candidate rejected (invalid document or version downgrade)
//	2 = runtime error
func runReloadCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("reload", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		candidatePath string
		currentPath   string
		actor         string
	)
	cmd.StringVar(&candidatePath, "catalog", "", "Path to the candidate catalog YAML (REQUIRED)")
	cmd.StringVar(&currentPath, "current", "", "Path to the active catalog (defaults to CATALOG_PATH)")
	cmd.StringVar(&actor, "actor", "cli", "Acting principal recorded in the ledger")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if candidatePath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --catalog is required")
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	log := setupLogger(cfg.LogLevel, stderr)
	if currentPath == "" {
		currentPath = cfg.CatalogPath
	}

	loader, err := rules.NewLoader()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	current, err := loader.LoadFile(currentPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: active catalog unreadable: %v\n", err)
		return 2
	}
	catalog, err := rules.NewCatalog(current)
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

	payload := map[string]any{
		"source":         candidatePath,
		"active_version": current.Version().String(),
	}

	candidate, loadErr := loader.LoadFile(candidatePath)
	if loadErr == nil {
		payload["candidate_version"] = candidate.Version().String()
		loadErr = catalog.Replace(candidate)
	}
	if loadErr != nil {
		payload["reason"] = loadErr.Error()
		recordReload(ctx, l, actor, candidatePath, "REJECTED", payload, stderr)
		log.Warn("catalog reload rejected", "source", candidatePath, "error", loadErr)
		_, _ = fmt.Fprintf(stderr, "Rejected: %v\n", loadErr)
		return 1
	}

	snap := catalog.Snapshot()
	payload["rules"] = snap.Len()
	payload["content_hash"] = snap.ContentHash()
	recordReload(ctx, l, actor, candidatePath, "LOADED", payload, stderr)

	_, _ = fmt.Fprintf(stdout, "Loaded: version %s (%d rules)\n", snap.Version(), snap.Len())
	return 0
}

func recordReload(ctx context.Context, l *ledger.Ledger, actor, resource, outcome string, payload map[string]any, stderr io.Writer) {
	if _, err := l.Append(ctx, ledger.Event{
		Type:     ledger.EventCatalogReload,
		Actor:    actor,
		Resource: resource,
		Outcome:  outcome,
		Payload:  payload,
	}); err != nil {
		_, _ = fmt.Fprintf(stderr, "Warning: failed to record reload: %v\n", err)
	}
}
