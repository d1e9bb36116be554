package ledger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// LedgerSigner signs and verifies entry hashes with HMAC-SHA256, and
// supports key rotation: signatures always carry the id of the key that
// produced them, so verification of historical entries continues to work
// after the active signing key changes. This resolves the system key
// lifecycle left open by the core's design notes.
type LedgerSigner struct {
	mu         sync.RWMutex
	activeKeyId string
	keys        map[string][]byte
}

// NewLedgerSigner constructs a signer with a single initial signing key.
func NewLedgerSigner(keyId string, key []byte) *LedgerSigner {
	return &LedgerSigner{
		activeKeyId: keyId,
		keys:        map[string][]byte{keyId: append([]byte(nil), key...)},
	}
}

// Rotate installs a new active signing key while retaining the previous
// one for verification of entries it already signed. Old keys are never
// discarded by Rotate; an operator wanting to retire one entirely must do
// so out of band once no unverified entry depends on it.
func (s *LedgerSigner) Rotate(newKeyId string, newKey []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[newKeyId] = append([]byte(nil), newKey...)
	s.activeKeyId = newKeyId
}

// Sign HMAC-SHA256's entryHash under the active key, returning the
// signature (hex-encoded) and the id of the key used.
func (s *LedgerSigner) Sign(entryHash string) (signature, keyId string, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[s.activeKeyId]
	if !ok {
		return "", "", fmt.Errorf("ledger: active signing key %q not found", s.activeKeyId)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(entryHash))
	return hex.EncodeToString(mac.Sum(nil)), s.activeKeyId, nil
}

// Verify checks signature against entryHash using the key identified by
// keyId, which may or may not be the currently active key.
func (s *LedgerSigner) Verify(entryHash, signature, keyId string) bool {
	s.mu.RLock()
	key, ok := s.keys[keyId]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(entryHash))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
