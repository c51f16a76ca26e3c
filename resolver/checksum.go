package resolver

import (
	"crypto/sha256"
	"encoding/hex"
	"hash/crc32"
	"strings"
)

// normalize collapses line endings and trims trailing whitespace before
// checksumming, so a script re-saved with different line endings doesn't
// spuriously look modified.
func normalize(script string) string {
	s := strings.ReplaceAll(script, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.Join(lines, "\n")
}

// checksum computes the CRC32 checksum schema.ResolvedMigration.Checksum
// carries, and the SHA-256 audit digest resolver.go sets on
// ResolvedMigration.Digest, which the engine copies into
// AppliedMigration.Digest.
func checksum(script string) (int32, string) {
	norm := normalize(script)
	crc := int32(crc32.ChecksumIEEE([]byte(norm)))
	sum := sha256.Sum256([]byte(norm))
	return crc, hex.EncodeToString(sum[:])
}
