// Package security generates the WireGuard-style key pairs of simulated nodes.
// Keys are Curve25519 and encoded in base64 like `wg genkey`. The simulator
// carries them as opaque strings; nothing is encrypted.
package security

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/tutu-network/wgsim/internal/domain"
)

// KeySize is the length of a raw Curve25519 key.
const KeySize = 32

// Keypair holds a node's Curve25519 identity.
type Keypair struct {
	Public  []byte
	Private []byte
}

// GenerateKeypair creates a new X25519 keypair.
func GenerateKeypair() (Keypair, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return Keypair{}, fmt.Errorf("generate x25519 keypair: %w", err)
	}
	return Keypair{Public: priv.PublicKey().Bytes(), Private: priv.Bytes()}, nil
}

// ParsePrivateKey decodes a base64 private key and derives its public half,
// like `wg pubkey`.
func ParsePrivateKey(b64 string) (Keypair, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return Keypair{}, fmt.Errorf("decode private key: %w", err)
	}
	if len(raw) != KeySize {
		return Keypair{}, fmt.Errorf("private key is %d bytes, want %d", len(raw), KeySize)
	}
	priv, err := ecdh.X25519().NewPrivateKey(raw)
	if err != nil {
		return Keypair{}, fmt.Errorf("parse private key: %w", err)
	}
	return Keypair{Public: priv.PublicKey().Bytes(), Private: priv.Bytes()}, nil
}

// PublicKeyBase64 returns the public key in WireGuard's text form.
func (kp Keypair) PublicKeyBase64() string {
	return base64.StdEncoding.EncodeToString(kp.Public)
}

// PrivateKeyBase64 returns the private key in WireGuard's text form.
func (kp Keypair) PrivateKeyBase64() string {
	return base64.StdEncoding.EncodeToString(kp.Private)
}

// FillMissingKeys gives every node without a public key one: derived from
// its private key when set, generated otherwise. It returns how many nodes
// were changed.
func FillMissingKeys(nodes []domain.NodeSpec) (int, error) {
	filled := 0
	for i := range nodes {
		n := &nodes[i]
		if n.PublicKey != "" {
			continue
		}

		var (
			kp  Keypair
			err error
		)
		if n.PrivateKey != "" {
			kp, err = ParsePrivateKey(n.PrivateKey)
		} else {
			kp, err = GenerateKeypair()
		}
		if err != nil {
			return filled, fmt.Errorf("node %s: %w", n.Name, err)
		}
		n.PublicKey = kp.PublicKeyBase64()
		n.PrivateKey = kp.PrivateKeyBase64()
		filled++
	}
	return filled, nil
}
