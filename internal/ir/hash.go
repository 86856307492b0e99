package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainInterface = "solpm/interface/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DocumentDigest computes the content identity of an interface document.
// Formatting differences (whitespace, key order, Unicode normalization)
// do not change the digest.
func DocumentDigest(data []byte) (string, error) {
	canonical, err := CanonicalizeJSON(data)
	if err != nil {
		return "", fmt.Errorf("DocumentDigest: %w", err)
	}
	return hashWithDomain(DomainInterface, canonical), nil
}

// MustDocumentDigest is like DocumentDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDocumentDigest(data []byte) string {
	d, err := DocumentDigest(data)
	if err != nil {
		panic(err)
	}
	return d
}
