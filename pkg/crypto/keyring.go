package crypto

import (
	"fmt"
	"sync"
)

// KeyRing tracks the active signer plus every key that has ever signed a
// ledger entry, so chain verification keeps working across rotations.
// Revoked keys stop verifying; their entries surface as broken links, which
// is the intended behavior for a compromised key.
type KeyRing struct {
	mu      sync.RWMutex
	active  Signer
	signers map[string]Signer // keyID -> verifier
}

// NewKeyRing creates a keyring with the given active signer.
func NewKeyRing(active Signer) *KeyRing {
	ring := &KeyRing{signers: make(map[string]Signer)}
	if active != nil {
		ring.active = active
		ring.signers[active.KeyID()] = active
	}
	return ring
}

// Active returns the current signing key.
func (k *KeyRing) Active() Signer {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.active
}

// Rotate installs a new active signer and returns the previous key ID.
// The old key stays in the ring for verification.
func (k *KeyRing) Rotate(next Signer) (string, error) {
	if next == nil {
		return "", fmt.Errorf("cannot rotate to nil signer")
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	prevID := ""
	if k.active != nil {
		prevID = k.active.KeyID()
	}
	if _, exists := k.signers[next.KeyID()]; exists && next.KeyID() != prevID {
		return "", fmt.Errorf("key id %q already present in ring", next.KeyID())
	}
	k.active = next
	k.signers[next.KeyID()] = next
	return prevID, nil
}

// Revoke removes a key from the ring. Revoking the active key is refused.
func (k *KeyRing) Revoke(keyID string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.active != nil && k.active.KeyID() == keyID {
		return fmt.Errorf("cannot revoke active key %q", keyID)
	}
	if _, exists := k.signers[keyID]; !exists {
		return fmt.Errorf("unknown key: %s", keyID)
	}
	delete(k.signers, keyID)
	return nil
}

// Sign signs with the active key.
func (k *KeyRing) Sign(data []byte) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.active == nil {
		return "", fmt.Errorf("no active signing key")
	}
	return k.active.Sign(data)
}

// ActiveKeyID returns the key ID the next signature will carry.
func (k *KeyRing) ActiveKeyID() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.active == nil {
		return ""
	}
	return k.active.KeyID()
}

// VerifyKey verifies a hex signature made by a specific key.
func (k *KeyRing) VerifyKey(keyID string, sigHex string, data []byte) (bool, error) {
	k.mu.RLock()
	signer, exists := k.signers[keyID]
	k.mu.RUnlock()

	if !exists {
		return false, fmt.Errorf("unknown or revoked key: %s", keyID)
	}
	return Verify(signer.PublicKey(), sigHex, data)
}

// KeyIDs lists the IDs currently able to verify.
func (k *KeyRing) KeyIDs() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	ids := make([]string, 0, len(k.signers))
	for id := range k.signers {
		ids = append(ids, id)
	}
	return ids
}
