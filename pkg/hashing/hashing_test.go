// Copyright 2025 Signia Protocol
//
// Domain-Separated Hashing Tests

package hashing

import (
	"bytes"
	"crypto/sha256"
	"testing"
)

func TestSum_DomainSeparation(t *testing.T) {
	payload := []byte(`{"a":1}`)
	a := Sum(DomainSchema, payload)
	b := Sum(DomainManifest, payload)
	if bytes.Equal(a[:], b[:]) {
		t.Error("different domains must produce different digests")
	}
}

func TestSum_Layout(t *testing.T) {
	payload := []byte("payload")
	got := Sum(DomainLeafEntity, payload)

	h := sha256.New()
	h.Write([]byte(DomainLeafEntity))
	h.Write([]byte{0x00})
	h.Write(payload)
	want := h.Sum(nil)

	if !bytes.Equal(got[:], want) {
		t.Errorf("digest layout mismatch: got %x, want %x", got, want)
	}
}

func TestSum_SeparatorMatters(t *testing.T) {
	// The zero separator prevents ambiguity between domain and payload.
	a := Sum("signia:x", []byte("ypayload"))
	b := Sum("signia:xy", []byte("payload"))
	if bytes.Equal(a[:], b[:]) {
		t.Error("domain/payload boundary must be unambiguous")
	}
}

func TestHexRoundTrip(t *testing.T) {
	d := Sum(DomainProofRoot, []byte("root"))
	s := Hex(d)
	if len(s) != 64 {
		t.Fatalf("hex digest must be 64 characters, got %d", len(s))
	}
	back, err := ParseHex(s)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if back != d {
		t.Error("hex round trip mismatch")
	}
}

func TestParseHex_Rejects(t *testing.T) {
	if _, err := ParseHex("abcd"); err == nil {
		t.Error("short digest must be rejected")
	}
	if _, err := ParseHex(string(make([]byte, 64))); err == nil {
		t.Error("non-hex digest must be rejected")
	}
}

func TestLeafDomain(t *testing.T) {
	cases := map[string]string{
		"entity":     DomainLeafEntity,
		"edge":       DomainLeafEdge,
		"type":       DomainLeafType,
		"constraint": DomainLeafConstraint,
	}
	for kind, want := range cases {
		got, ok := LeafDomain(kind)
		if !ok || got != want {
			t.Errorf("leaf domain for %s: got %s, want %s", kind, got, want)
		}
	}
	if _, ok := LeafDomain("other"); ok {
		t.Error("unknown leaf kind must not resolve")
	}
}
