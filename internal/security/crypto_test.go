package security

import (
	"encoding/base64"
	"testing"

	"github.com/tutu-network/wgsim/internal/domain"
)

// ─── Keypair Generation ─────────────────────────────────────────────────────

func TestGenerateKeypair(t *testing.T) {
	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	if len(kp.Public) != KeySize {
		t.Errorf("public key len = %d, want %d", len(kp.Public), KeySize)
	}
	if len(kp.Private) != KeySize {
		t.Errorf("private key len = %d, want %d", len(kp.Private), KeySize)
	}
}

func TestGenerateKeypair_Unique(t *testing.T) {
	kp1, _ := GenerateKeypair()
	kp2, _ := GenerateKeypair()

	if kp1.PublicKeyBase64() == kp2.PublicKeyBase64() {
		t.Error("two generated keypairs should have different public keys")
	}
}

func TestPublicKeyBase64(t *testing.T) {
	kp, _ := GenerateKeypair()
	b64 := kp.PublicKeyBase64()

	if len(b64) != 44 { // 32 bytes = 44 base64 chars, as printed by wg
		t.Errorf("base64 len = %d, want 44", len(b64))
	}
}

// ─── Parsing ────────────────────────────────────────────────────────────────

func TestParsePrivateKey_DerivesPublic(t *testing.T) {
	kp, _ := GenerateKeypair()

	parsed, err := ParsePrivateKey(kp.PrivateKeyBase64())
	if err != nil {
		t.Fatalf("ParsePrivateKey() error: %v", err)
	}
	if parsed.PublicKeyBase64() != kp.PublicKeyBase64() {
		t.Error("derived public key should match the generated one")
	}
}

func TestParsePrivateKey_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "%%%"},
		{"short", base64.StdEncoding.EncodeToString([]byte("short"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePrivateKey(tt.input); err == nil {
				t.Error("ParsePrivateKey() should fail")
			}
		})
	}
}

// ─── Topology Keys ──────────────────────────────────────────────────────────

func TestFillMissingKeys(t *testing.T) {
	known, _ := GenerateKeypair()
	nodes := []domain.NodeSpec{
		{Name: "kept", PublicKey: "opaque-key"},
		{Name: "derived", PrivateKey: known.PrivateKeyBase64()},
		{Name: "generated"},
	}

	filled, err := FillMissingKeys(nodes)
	if err != nil {
		t.Fatalf("FillMissingKeys() error: %v", err)
	}
	if filled != 2 {
		t.Errorf("filled = %d, want 2", filled)
	}
	if nodes[0].PublicKey != "opaque-key" {
		t.Errorf("existing key replaced: %q", nodes[0].PublicKey)
	}
	if nodes[1].PublicKey != known.PublicKeyBase64() {
		t.Error("public key should be derived from the configured private key")
	}
	if nodes[2].PublicKey == "" || nodes[2].PrivateKey == "" {
		t.Error("node without keys should get a generated pair")
	}
}

func TestFillMissingKeys_BadPrivateKey(t *testing.T) {
	nodes := []domain.NodeSpec{{Name: "broken", PrivateKey: "nope"}}
	if _, err := FillMissingKeys(nodes); err == nil {
		t.Error("FillMissingKeys() should fail on an invalid private key")
	}
}
