package assethash

import (
	"crypto/sha256"
	"designlink/core"
	"encoding/hex"
	"errors"
	"regexp"
)

// DigestLength is the number of hex characters kept from the SHA-256 sum.
// 32 bits keeps asset ids short enough for share links; an accidental
// collision between two uploads of one user is accepted as unlikely, and
// Verify exists for the case where it matters.
const DigestLength = 8

// ErrInvalidID is returned by ParseID for anything that is not
// "<known prefix>-<lowercase hex>".
var ErrInvalidID = errors.New("invalid asset id")

var idPattern = regexp.MustCompile(`^([a-z]+)-([0-9a-f]+)$`)

// Digest returns the truncated lowercase hex SHA-256 of canonical bytes.
func Digest(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:DigestLength]
}

// MakeID formats an asset id from a kind and a digest.
func MakeID(kind core.AssetKind, digest string) string {
	return kind.Prefix() + "-" + digest
}

// ParseID splits an asset id into its kind and digest. It is the inverse
// of MakeID for well-formed ids.
func ParseID(id string) (core.AssetKind, string, error) {
	m := idPattern.FindStringSubmatch(id)
	if m == nil {
		return "", "", ErrInvalidID
	}
	for _, kind := range core.Kinds {
		if kind.Prefix() == m[1] {
			return kind, m[2], nil
		}
	}
	return "", "", ErrInvalidID
}

// GenerateID canonicalizes content and returns its asset id.
func GenerateID(kind core.AssetKind, content []byte) string {
	return MakeID(kind, Digest(Canonicalize(kind, content)))
}

// Verify reports whether content canonicalizes and hashes to expectedDigest.
func Verify(kind core.AssetKind, content []byte, expectedDigest string) bool {
	return Digest(Canonicalize(kind, content)) == expectedDigest
}

// VerifyID checks content against a full asset id, including its kind.
func VerifyID(id string, content []byte) bool {
	kind, digest, err := ParseID(id)
	if err != nil {
		return false
	}
	return Verify(kind, content, digest)
}
