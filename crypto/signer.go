// Package crypto implements the default scp.Signer: Ed25519 over the
// XDR-encoded statement payload package wire produces. Grounded on
// cmd/scptxvm/msg.go's ed25519.Sign/ed25519.Verify pairing, here via
// the stdlib crypto/ed25519 instead of that file's private
// chain/crypto/ed25519 fork (see DESIGN.md).
package crypto

import (
	"crypto/ed25519"

	"github.com/DavidCanHelpMe/stellar-core/scp"
	"github.com/pkg/errors"
)

// Ed25519Signer implements scp.Signer for a single local identity.
type Ed25519Signer struct {
	PrivateKey ed25519.PrivateKey
	PublicKeys map[scp.NodeID]ed25519.PublicKey
}

// NewEd25519Signer returns a Signer for priv, able to verify
// signatures from any peer in knownKeys.
func NewEd25519Signer(priv ed25519.PrivateKey, knownKeys map[scp.NodeID]ed25519.PublicKey) *Ed25519Signer {
	return &Ed25519Signer{PrivateKey: priv, PublicKeys: knownKeys}
}

func (s *Ed25519Signer) Sign(payload []byte) ([]byte, error) {
	if len(s.PrivateKey) != ed25519.PrivateKeySize {
		return nil, errors.New("crypto: signer has no private key")
	}
	return ed25519.Sign(s.PrivateKey, payload), nil
}

func (s *Ed25519Signer) Verify(nodeID scp.NodeID, payload, signature []byte) bool {
	pub, ok := s.PublicKeys[nodeID]
	if !ok {
		return false
	}
	return ed25519.Verify(pub, payload, signature)
}

// NodeIDFromPublicKey derives the scp.NodeID a public key advertises
// itself as: the raw key bytes, zero-padded/truncated to NodeID's
// fixed width. Grounded on the same identity-is-the-key convention
// node.go's NodeID(string) constructor follows, adapted from a
// variable-length string key to Ed25519's fixed 32-byte key (which
// happens to already be NodeID's width).
func NodeIDFromPublicKey(pub ed25519.PublicKey) scp.NodeID {
	var id scp.NodeID
	copy(id[:], pub)
	return id
}
