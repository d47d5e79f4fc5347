package ledger

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Veridex-Labs/veridex/kernel/pkg/canonicalize"
)

// ExportBundle is a portable slice of the ledger handed to auditors. The
// bundle hash covers the canonical serialization of the entries; the
// attestation is an EdDSA JWT over that hash, so a bundle's provenance can be
// checked offline with just the signing public key.
type ExportBundle struct {
	BundleID    string        `json:"bundle_id"`
	Version     string        `json:"version"`
	CreatedAt   time.Time     `json:"created_at"`
	StartSeq    uint64        `json:"start_sequence"`
	EndSeq      uint64        `json:"end_sequence"`
	EntryCount  int           `json:"entry_count"`
	Entries     []*AuditEntry `json:"entries"`
	ChainHead   string        `json:"chain_head"`
	BundleHash  string        `json:"bundle_hash"`
	Attestation string        `json:"attestation"`
}

const bundleVersion = "1.0.0"

// AttestationKey provides the raw key material for bundle attestation.
// *crypto.Ed25519Signer satisfies it.
type AttestationKey interface {
	PrivateKey() ed25519.PrivateKey
	KeyID() string
}

// Export collects entries in (fromSeq, toSeq] and seals them into a bundle.
// A zero toSeq exports to the current head.
func (l *Ledger) Export(ctx context.Context, fromSeq, toSeq uint64, key AttestationKey) (*ExportBundle, error) {
	var entries []*AuditEntry
	cursor := fromSeq
	for {
		page, err := l.storage.Page(ctx, cursor, pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to page entries: %w", err)
		}
		if len(page) == 0 {
			break
		}
		done := false
		for _, e := range page {
			if toSeq > 0 && e.Sequence > toSeq {
				done = true
				break
			}
			entries = append(entries, e)
			cursor = e.Sequence
		}
		if done {
			break
		}
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("no entries in range (%d, %d]", fromSeq, toSeq)
	}

	canonical, err := canonicalize.JCS(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize bundle: %w", err)
	}

	bundle := &ExportBundle{
		BundleID:   uuid.New().String(),
		Version:    bundleVersion,
		CreatedAt:  time.Now().UTC(),
		StartSeq:   entries[0].Sequence,
		EndSeq:     entries[len(entries)-1].Sequence,
		EntryCount: len(entries),
		Entries:    entries,
		ChainHead:  entries[len(entries)-1].EntryHash,
		BundleHash: "sha256:" + canonicalize.HashBytes(canonical),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"iss":         "veridex-kernel",
		"iat":         bundle.CreatedAt.Unix(),
		"bundle_id":   bundle.BundleID,
		"bundle_hash": bundle.BundleHash,
		"entry_count": bundle.EntryCount,
	})
	token.Header["kid"] = key.KeyID()

	attestation, err := token.SignedString(key.PrivateKey())
	if err != nil {
		return nil, fmt.Errorf("failed to sign attestation: %w", err)
	}
	bundle.Attestation = attestation

	return bundle, nil
}

// VerifyBundle checks a bundle's hash, internal chain linkage, and
// attestation against the given public key.
func VerifyBundle(bundle *ExportBundle, pub ed25519.PublicKey) error {
	if len(bundle.Entries) == 0 {
		return fmt.Errorf("bundle is empty")
	}

	canonical, err := canonicalize.JCS(bundle.Entries)
	if err != nil {
		return fmt.Errorf("failed to canonicalize bundle: %w", err)
	}
	if computed := "sha256:" + canonicalize.HashBytes(canonical); computed != bundle.BundleHash {
		return fmt.Errorf("%w: bundle hash mismatch", ErrChainBroken)
	}

	for i := 1; i < len(bundle.Entries); i++ {
		if bundle.Entries[i].PreviousHash != bundle.Entries[i-1].EntryHash {
			return fmt.Errorf("%w: bundle chain broken at entry %d", ErrChainBroken, i)
		}
	}

	token, err := jwt.Parse(bundle.Attestation, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return pub, nil
	})
	if err != nil {
		return fmt.Errorf("attestation invalid: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("attestation has no claims")
	}
	if claims["bundle_hash"] != bundle.BundleHash {
		return fmt.Errorf("attestation covers a different bundle hash")
	}
	return nil
}
