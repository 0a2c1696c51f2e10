package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainBlob    = "revstore/blob/v1"
	DomainPayload = "revstore/payload/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// BlobID computes the permanent content id of a binary payload.
// Identical bytes always yield the same id, which is what makes blob
// uploads idempotent.
func BlobID(data []byte) string {
	return hashWithDomain(DomainBlob, data)
}

// PayloadHash computes the integrity hash stored on a revision.
// The input is the codec-encoded payload exactly as persisted.
func PayloadHash(encoded []byte) string {
	return hashWithDomain(DomainPayload, encoded)
}
