package crypto

import (
	"encoding/base64"
	"errors"
	"testing"
)

const (
	zeroKeyB64 = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="
	oneKeyB64  = "AQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQE="
)

func TestSealOpenString(t *testing.T) {
	k, err := NewKeyring("k1", map[string][]byte{"k1": mustKey(t, zeroKeyB64)})
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}

	raw, err := k.SealString("sk-secret", "openai")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	out, err := k.OpenString(raw, "openai")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if out != "sk-secret" {
		t.Fatalf("expected original string, got %q", out)
	}
}

func TestOpenWithWrongLabelFails(t *testing.T) {
	k, err := NewKeyring("k1", map[string][]byte{"k1": mustKey(t, zeroKeyB64)})
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}
	raw, err := k.SealString("sk-secret", "openai")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := k.OpenString(raw, "grok"); err == nil {
		t.Fatalf("expected envelope bound to openai to fail for grok")
	}
}

func TestRotation(t *testing.T) {
	oldKey := mustKey(t, zeroKeyB64)
	newKey := mustKey(t, oneKeyB64)

	oldRing, err := NewKeyring("old", map[string][]byte{"old": oldKey})
	if err != nil {
		t.Fatalf("old keyring: %v", err)
	}
	legacy, err := oldRing.SealString("legacy", "claude")
	if err != nil {
		t.Fatalf("old seal: %v", err)
	}

	rotated, err := NewKeyring("new", map[string][]byte{"old": oldKey, "new": newKey})
	if err != nil {
		t.Fatalf("rotated keyring: %v", err)
	}
	if !rotated.NeedsRotation(legacy) {
		t.Fatalf("expected legacy envelope to need rotation")
	}

	fresh, err := rotated.Rotate(legacy, "claude")
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rotated.NeedsRotation(fresh) {
		t.Fatalf("expected rotated envelope to use the current key")
	}
	plain, err := rotated.OpenString(fresh, "claude")
	if err != nil {
		t.Fatalf("open rotated: %v", err)
	}
	if plain != "legacy" {
		t.Fatalf("unexpected plaintext: %q", plain)
	}

	newOnly, err := NewKeyring("new", map[string][]byte{"new": newKey})
	if err != nil {
		t.Fatalf("new-only keyring: %v", err)
	}
	if _, err := newOnly.OpenString(legacy, "claude"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestNewKeyringValidates(t *testing.T) {
	if _, err := NewKeyring("", map[string][]byte{"a": mustKey(t, zeroKeyB64)}); err == nil {
		t.Fatalf("expected error for empty current id")
	}
	if _, err := NewKeyring("b", map[string][]byte{"a": mustKey(t, zeroKeyB64)}); err == nil {
		t.Fatalf("expected error for missing current key")
	}
	if _, err := NewKeyring("a", map[string][]byte{"a": []byte("short")}); err == nil {
		t.Fatalf("expected error for short key")
	}
}

func mustKey(t *testing.T, b64 string) []byte {
	t.Helper()
	k, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("decode key: %v", err)
	}
	if len(k) != 32 {
		t.Fatalf("expected 32-byte key, got %d", len(k))
	}
	return k
}
