package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Veridex-Labs/veridex/kernel/pkg/config"
	"github.com/Veridex-Labs/veridex/kernel/pkg/ledger"
	"github.com/Veridex-Labs/veridex/kernel/pkg/policy"
	"github.com/Veridex-Labs/veridex/kernel/pkg/rules"
)

// runEvaluateCmd implements `veridex evaluate`.
//
// Evaluates one action request against the rule catalog and records the
// decision in the audit ledger.
//
// Exit codes:
//
//	0 = approved (or conditional)
//	1 = rejected
//	2 = runtime error
func runEvaluateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		catalogPath  string
		action       string
		jurisdiction string
		payloadArg   string
		actor        string
		jsonOutput   bool
		strict       bool
	)
	cmd.StringVar(&catalogPath, "catalog", "", "Path to the rule catalog YAML (defaults to CATALOG_PATH)")
	cmd.StringVar(&action, "action", "", "Action type, e.g. transfer_phi (REQUIRED)")
	cmd.StringVar(&jurisdiction, "jurisdiction", rules.JurisdictionGlobal, "Jurisdiction of the request")
	cmd.StringVar(&payloadArg, "payload", "{}", "Payload JSON, or @file to read from disk")
	cmd.StringVar(&actor, "actor", "cli", "Acting principal recorded in the ledger")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the decision as JSON")
	cmd.BoolVar(&strict, "strict", false, "Reject instead of returning CONDITIONAL on missing fields")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if action == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --action is required")
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	log := setupLogger(cfg.LogLevel, stderr)
	if catalogPath == "" {
		catalogPath = cfg.CatalogPath
	}

	payload, err := parsePayload(payloadArg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: invalid payload: %v\n", err)
		return 2
	}

	loader, err := rules.NewLoader()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	snap, err := loader.LoadFile(catalogPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: catalog rejected: %v\n", err)
		return 2
	}
	log.Debug("catalog loaded", "version", snap.Version(), "rules", snap.Len(), "hash", snap.ContentHash())

	ctx := context.Background()
	obs, obsShutdown := initObservability(ctx, cfg, log)
	defer obsShutdown()

	var opts []policy.Option
	if strict {
		opts = append(opts, policy.WithStrictRequiredFields())
	}
	engine := policy.NewEngine(opts...)

	req := policy.NewActionRequest(action, jurisdiction, payload)

	ctx, span := obs.StartSpan(ctx, "kernel.evaluate")
	defer span.End()

	start := time.Now()
	decision := engine.Evaluate(req, snap)
	obs.RecordDecision(ctx, string(decision.Status), time.Since(start))

	l, closer, err := openLedger(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	if _, err := l.Append(ctx, ledger.Event{
		Type:     ledger.EventPolicyDecision,
		Actor:    actor,
		Resource: action,
		Outcome:  string(decision.Status),
		Payload:  decision,
	}); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: failed to record decision: %v\n", err)
		return 2
	}
	obs.RecordAppend(ctx, string(ledger.EventPolicyDecision))

	if jsonOutput {
		data, _ := json.MarshalIndent(decision, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		_, _ = fmt.Fprintf(stdout, "Decision: %s\n", decision.Status)
		if len(decision.MatchedRules) > 0 {
			_, _ = fmt.Fprintf(stdout, "Matched rules: %s\n", strings.Join(decision.MatchedRules, ", "))
		}
		if len(decision.MissingFields) > 0 {
			_, _ = fmt.Fprintf(stdout, "Missing fields: %s\n", strings.Join(decision.MissingFields, ", "))
		}
		for _, c := range decision.Citations {
			_, _ = fmt.Fprintf(stdout, "  - %s\n", c)
		}
	}

	if decision.Status == policy.StatusRejected {
		return 1
	}
	return 0
}

func parsePayload(arg string) (map[string]any, error) {
	raw := []byte(arg)
	if strings.HasPrefix(arg, "@") {
		data, err := os.ReadFile(arg[1:])
		if err != nil {
			return nil, err
		}
		raw = data
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
