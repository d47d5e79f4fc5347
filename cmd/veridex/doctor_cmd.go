package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/Veridex-Labs/veridex/kernel/pkg/config"
	"github.com/Veridex-Labs/veridex/kernel/pkg/rules"
)

// runDoctorCmd implements `veridex doctor` — configuration health check.
//
// Exit codes:
//
//	0 = all checks pass
//	1 = one or more checks failed
func runDoctorCmd(stdout, stderr io.Writer) int {
	type checkResult struct {
		Name   string
		Status string // "ok", "warn", "fail"
		Detail string
	}

	var results []checkResult
	allOK := true

	results = append(results, checkResult{
		Name:   "go_runtime",
		Status: "ok",
		Detail: fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
	})

	cfg, err := config.Load()
	if err != nil {
		results = append(results, checkResult{Name: "config", Status: "fail", Detail: err.Error()})
		allOK = false
	} else {
		results = append(results, checkResult{
			Name:   "config",
			Status: "ok",
			Detail: fmt.Sprintf("durable=%s ledger=%s", cfg.DurableBackend.Type, cfg.LedgerStore),
		})

		if _, err := os.Stat(cfg.CatalogPath); err != nil {
			results = append(results, checkResult{
				Name:   "catalog_file",
				Status: "warn",
				Detail: fmt.Sprintf("%s not found", cfg.CatalogPath),
			})
		} else if loader, err := rules.NewLoader(); err != nil {
			results = append(results, checkResult{Name: "catalog", Status: "fail", Detail: err.Error()})
			allOK = false
		} else if snap, err := loader.LoadFile(cfg.CatalogPath); err != nil {
			results = append(results, checkResult{Name: "catalog", Status: "fail", Detail: err.Error()})
			allOK = false
		} else {
			results = append(results, checkResult{
				Name:   "catalog",
				Status: "ok",
				Detail: fmt.Sprintf("version %s, %d rules, %s", snap.Version(), snap.Len(), snap.ContentHash()),
			})
		}

		if len(cfg.SigningSeed) == 0 {
			results = append(results, checkResult{
				Name:   "signing_key",
				Status: "warn",
				Detail: "SIGNING_SEED not set; an ephemeral key will be generated",
			})
		} else {
			results = append(results, checkResult{Name: "signing_key", Status: "ok", Detail: cfg.SigningKey})
		}
	}

	_, _ = fmt.Fprintln(stdout, "\nVeridex Doctor")
	_, _ = fmt.Fprintln(stdout, "──────────────")
	for _, r := range results {
		icon := "✅"
		switch r.Status {
		case "warn":
			icon = "⚠️ "
		case "fail":
			icon = "❌"
		}
		_, _ = fmt.Fprintf(stdout, "  %s  %-14s %s\n", icon, r.Name, r.Detail)
	}

	if allOK {
		_, _ = fmt.Fprintln(stdout, "\nAll checks passed.")
		return 0
	}
	return 1
}
