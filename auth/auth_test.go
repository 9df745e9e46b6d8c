// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestGenerateID(t *testing.T) {
	tests := []struct {
		name    string
		byteLen int
		wantLen int // hex encoded length = byteLen * 2
	}{
		{"3 bytes", 3, 6},
		{"8 bytes", 8, 16},
		{"16 bytes", 16, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := GenerateID(tt.byteLen)
			if err != nil {
				t.Fatalf("GenerateID() error = %v", err)
			}
			if len(id) != tt.wantLen {
				t.Errorf("GenerateID() length = %d, want %d", len(id), tt.wantLen)
			}
			// Verify it's valid hex
			for _, c := range id {
				if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
					t.Errorf("GenerateID() contains invalid hex char: %c", c)
				}
			}
		})
	}

	// Test randomness - two IDs should be different
	id1, _ := GenerateID(16)
	id2, _ := GenerateID(16)
	if id1 == id2 {
		t.Error("GenerateID() produced duplicate IDs (extremely unlikely)")
	}
}

func TestNewID(t *testing.T) {
	id := NewID()
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("NewID() = %q is not a UUID: %v", id, err)
	}
	if id == NewID() {
		t.Error("NewID() produced duplicate IDs")
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Jane Doe", "jane-doe"},
		{"José Núñez", "jose-nunez"},
		{"  Mary-Kate O'Brien  ", "mary-kate-o-brien"},
		{"City Council, District 4", "city-council-district-4"},
		{"2026 General Election!!", "2026-general-election"},
		{"候选人", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestUniqueSlug(t *testing.T) {
	slug, err := UniqueSlug("Jane Doe")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(slug, "jane-doe-") || len(slug) != len("jane-doe-")+6 {
		t.Errorf("UniqueSlug() = %q, want jane-doe-xxxxxx", slug)
	}

	bare, err := UniqueSlug("!!!")
	if err != nil {
		t.Fatal(err)
	}
	if len(bare) != 6 {
		t.Errorf("UniqueSlug() of unsluggable name = %q, want 6 hex chars", bare)
	}
}

func TestUnsubscribeToken(t *testing.T) {
	userID := "4b1f6c2e-1c1a-4a51-9ad9-0d7b6f2b9e11"
	token := GenerateUnsubscribeToken(userID, "salt")

	// Should be deterministic
	if token != GenerateUnsubscribeToken(userID, "salt") {
		t.Error("GenerateUnsubscribeToken() is not deterministic")
	}
	// Should be URL-safe
	if strings.ContainsAny(token, "+/=") {
		t.Errorf("token contains non URL-safe characters: %s", token)
	}

	got, err := ParseUnsubscribeToken(token, "salt")
	if err != nil {
		t.Fatalf("ParseUnsubscribeToken() error = %v", err)
	}
	if got != userID {
		t.Errorf("ParseUnsubscribeToken() = %q, want %q", got, userID)
	}

	if _, err := ParseUnsubscribeToken(token, "other-salt"); err != ErrBadSignature {
		t.Errorf("expected ErrBadSignature with wrong salt, got %v", err)
	}

	tampered := "someone-else" + token[strings.LastIndexByte(token, '.'):]
	if _, err := ParseUnsubscribeToken(tampered, "salt"); err != ErrBadSignature {
		t.Errorf("expected ErrBadSignature for tampered user, got %v", err)
	}

	for _, bad := range []string{"", "nodot", ".sig", "user."} {
		if _, err := ParseUnsubscribeToken(bad, "salt"); err != ErrInvalidToken {
			t.Errorf("ParseUnsubscribeToken(%q) error = %v, want ErrInvalidToken", bad, err)
		}
	}
}

func TestHashIP(t *testing.T) {
	tests := []struct {
		name string
		ip   string
		salt string
	}{
		{"ipv4", "192.168.1.1", "salt"},
		{"ipv6", "2001:0db8:85a3:0000:0000:8a2e:0370:7334", "salt"},
		{"localhost", "127.0.0.1", "salt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash := HashIP(tt.ip, tt.salt)

			// Should be 16 hex chars (8 bytes)
			if len(hash) != 16 {
				t.Errorf("HashIP() length = %d, want 16", len(hash))
			}

			// Should be deterministic
			if hash != HashIP(tt.ip, tt.salt) {
				t.Error("HashIP() is not deterministic")
			}

			// Different salt should produce different hash
			if hash == HashIP(tt.ip, tt.salt+"x") {
				t.Error("HashIP() produced same hash for different salts")
			}
		})
	}
}
