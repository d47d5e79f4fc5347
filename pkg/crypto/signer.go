// Package crypto provides the signing primitives for the audit kernel:
// Ed25519 signers, seed-derived key material, and a rotating keyring used to
// verify historical ledger entries after the active key changes.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Signature components separators and prefixes.
const (
	SigSeparator     = ":"
	SigPrefixEd25519 = "ed25519"
)

// Signer is the identity-provider contract for the ledger. It allows swapping
// the in-memory backend for an HSM, Vault, or cloud KMS.
type Signer interface {
	// Sign returns the hex-encoded signature over data.
	Sign(data []byte) (string, error)
	KeyID() string
	PublicKey() string
	PublicKeyBytes() []byte
}

// Ed25519Signer holds an in-process Ed25519 key pair.
type Ed25519Signer struct {
	privKey ed25519.PrivateKey
	pubKey  ed25519.PublicKey
	keyID   string
}

// NewEd25519Signer generates a fresh key pair. Intended for development and
// tests; production deployments derive the key from a configured seed.
func NewEd25519Signer(keyID string) (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}
	return &Ed25519Signer{privKey: priv, pubKey: pub, keyID: keyID}, nil
}

// NewSignerFromSeed derives a deterministic Ed25519 key from seed material
// using HKDF-SHA256. The same seed and keyID always yield the same key, so a
// restarted node keeps verifying its own ledger.
func NewSignerFromSeed(seed []byte, keyID string) (*Ed25519Signer, error) {
	if len(seed) == 0 {
		return nil, fmt.Errorf("empty signing seed")
	}
	kdf := hkdf.New(sha256.New, seed, nil, []byte("veridex/ledger/"+keyID))
	keyMaterial := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(kdf, keyMaterial); err != nil {
		return nil, fmt.Errorf("seed derivation failed: %w", err)
	}
	priv := ed25519.NewKeyFromSeed(keyMaterial)
	return &Ed25519Signer{
		privKey: priv,
		pubKey:  priv.Public().(ed25519.PublicKey),
		keyID:   keyID,
	}, nil
}

func (s *Ed25519Signer) Sign(data []byte) (string, error) {
	sig := ed25519.Sign(s.privKey, data)
	return hex.EncodeToString(sig), nil
}

func (s *Ed25519Signer) KeyID() string {
	return s.keyID
}

func (s *Ed25519Signer) PublicKey() string {
	return hex.EncodeToString(s.pubKey)
}

func (s *Ed25519Signer) PublicKeyBytes() []byte {
	return s.pubKey
}

// PrivateKey exposes the raw key for attestation tokens (JWT EdDSA signing).
func (s *Ed25519Signer) PrivateKey() ed25519.PrivateKey {
	return s.privKey
}

// SignatureType returns the "ed25519:<key-id>" tag recorded on entries.
func (s *Ed25519Signer) SignatureType() string {
	return SigPrefixEd25519 + SigSeparator + s.keyID
}

// Verify checks a hex signature against a hex public key.
func Verify(pubKeyHex, sigHex string, data []byte) (bool, error) {
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return false, fmt.Errorf("invalid public key hex: %w", err)
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, fmt.Errorf("invalid signature hex: %w", err)
	}

	if len(pubKey) != ed25519.PublicKeySize {
		return false, fmt.Errorf("invalid public key size")
	}

	return ed25519.Verify(ed25519.PublicKey(pubKey), data, sig), nil
}
