package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Veridex-Labs/veridex/kernel/pkg/config"
	"github.com/Veridex-Labs/veridex/kernel/pkg/crypto"
	"github.com/Veridex-Labs/veridex/kernel/pkg/ledger"
	"github.com/Veridex-Labs/veridex/kernel/pkg/observability"
	"github.com/Veridex-Labs/veridex/kernel/pkg/resilient"
)

// initObservability builds the telemetry provider when an OTLP endpoint is
// configured. An exporter failure degrades to disabled telemetry instead of
// blocking the command. The returned shutdown func flushes pending exports.
func initObservability(ctx context.Context, cfg *config.Config, log *slog.Logger) (*observability.Provider, func()) {
	obsCfg := observability.DefaultConfig()
	obsCfg.Enabled = cfg.OTLPEndpoint != ""
	if obsCfg.Enabled {
		obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
		obsCfg.Insecure = cfg.OTLPInsecure
	}

	prov, err := observability.New(ctx, obsCfg)
	if err != nil {
		log.Warn("telemetry disabled", "endpoint", cfg.OTLPEndpoint, "error", err)
		prov, _ = observability.New(ctx, &observability.Config{Enabled: false})
	}
	return prov, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = prov.Shutdown(sctx)
	}
}

// newSigner builds the ledger signing key from configuration. Without a
// configured seed a fresh ephemeral key is generated; fine for evaluation,
// useless for verifying an existing ledger.
func newSigner(cfg *config.Config) (*crypto.Ed25519Signer, error) {
	if len(cfg.SigningSeed) > 0 {
		return crypto.NewSignerFromSeed(cfg.SigningSeed, cfg.SigningKey)
	}
	return crypto.NewEd25519Signer(cfg.SigningKey)
}

// openLedger wires the configured storage backend into a ledger. The returned
// closer is nil for the memory store.
func openLedger(ctx context.Context, cfg *config.Config) (*ledger.Ledger, io.Closer, error) {
	signer, err := newSigner(cfg)
	if err != nil {
		return nil, nil, err
	}
	ring := crypto.NewKeyRing(signer)

	var (
		storage ledger.Storage
		closer  io.Closer
	)
	switch cfg.LedgerStore {
	case "memory":
		storage = ledger.NewMemoryStorage()
	case "sqlite":
		s, err := ledger.OpenSQLiteStorage(cfg.LedgerPath)
		if err != nil {
			return nil, nil, err
		}
		storage, closer = s, s
	case "postgres":
		s, err := ledger.OpenPostgresStorage(cfg.LedgerDSN)
		if err != nil {
			return nil, nil, err
		}
		storage, closer = s, s
	default:
		return nil, nil, fmt.Errorf("unknown ledger store: %s", cfg.LedgerStore)
	}

	l, err := ledger.New(ctx, storage, ring)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, nil, err
	}
	return l, closer, nil
}

// openResilientStore wires the configured cache, probe, and durable backend.
func openResilientStore(ctx context.Context, cfg *config.Config, rec resilient.Recorder) (*resilient.Store, io.Closer, error) {
	durable, err := resilient.NewDurable(ctx, cfg.DurableBackend)
	if err != nil {
		return nil, nil, err
	}

	var (
		cache  resilient.CacheStore
		closer io.Closer
	)
	if cfg.CachePath != "" {
		c, err := resilient.OpenSQLiteCache(cfg.CachePath)
		if err != nil {
			return nil, nil, err
		}
		cache, closer = c, c
	} else {
		cache = resilient.NewMemoryCache()
	}

	opts := []resilient.Option{resilient.WithRetention(cfg.Retention)}
	if cfg.ProbeTarget != "" {
		opts = append(opts, resilient.WithProbe(resilient.NewTCPProbe(cfg.ProbeTarget, cfg.ProbeTimeout)))
	}
	if rec != nil {
		opts = append(opts, resilient.WithRecorder(rec))
	}

	return resilient.New(cache, durable, opts...), closer, nil
}
