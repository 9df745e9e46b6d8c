// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrInvalidToken = errors.New("invalid token format")
	ErrBadSignature = errors.New("token signature mismatch")
)

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewID returns a new record ID
func NewID() string {
	return uuid.NewString()
}

// Slugify turns a display name into a lowercase ASCII URL segment.
// Accents are folded ("José" -> "jose") and any run of other characters
// becomes a single dash.
func Slugify(s string) string {
	// Transformers carry state, so build a fresh chain per call
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}

	return strings.TrimRight(b.String(), "-")
}

// UniqueSlug appends a short random suffix to the slug of base
func UniqueSlug(base string) (string, error) {
	suffix, err := GenerateID(3)
	if err != nil {
		return "", err
	}
	slug := Slugify(base)
	if slug == "" {
		return suffix, nil
	}
	return slug + "-" + suffix, nil
}

func sign(value, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(value))
	// Use URL-safe base64 and trim padding for cleaner tokens
	return strings.TrimRight(base64.URLEncoding.EncodeToString(h.Sum(nil)), "=")
}

// GenerateUnsubscribeToken creates a signed token identifying a user
// for one-click email opt-out links. Nothing is stored server side.
func GenerateUnsubscribeToken(userID, salt string) string {
	return userID + "." + sign(userID, salt)
}

// ParseUnsubscribeToken validates a token from GenerateUnsubscribeToken
// and returns the user ID it carries
func ParseUnsubscribeToken(token, salt string) (string, error) {
	i := strings.LastIndexByte(token, '.')
	if i <= 0 || i == len(token)-1 {
		return "", ErrInvalidToken
	}
	userID, mac := token[:i], token[i+1:]
	if !hmac.Equal([]byte(mac), []byte(sign(userID, salt))) {
		return "", ErrBadSignature
	}
	return userID, nil
}

// HashIP creates a one-way hash of an IP address for privacy
// Includes salt to prevent rainbow table attacks
func HashIP(ip, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(ip))
	sum := h.Sum(nil)
	// Return first 16 hex chars (64 bits) - enough for deduplication
	return hex.EncodeToString(sum[:8])
}
