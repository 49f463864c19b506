package canon

import (
	"crypto/sha256"
	"encoding/hex"
)

// RowHash computes the 64-hex content fingerprint of a canonicalized row:
// SHA-256 over the UTF-8 bytes of CanonicalRow(row), lowercase hex.
func RowHash(row Row) string {
	return HashBytes(CanonicalRow(row))
}

// HashBytes is the fingerprint primitive RowHash and the commit-id
// derivation (store.DeriveCommitID) both build on, kept here so the two
// callers agree on exactly one hash function.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
