package chunk

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"
)

// maxID keeps ids inside the signed 63-bit range so every client
// runtime (including ones without unsigned 64-bit integers) can carry
// them without overflow.
const maxID = uint64(1)<<63 - 1

// ID derives the chunk id from its primary key (file_path, line_start).
// The digest is fixed (sha256, first 8 bytes, big-endian) so the same
// key maps to the same id on every platform and in every process; the
// id is the sole duplicate-prevention mechanism.
func ID(filePath string, lineStart int) uint64 {
	sum := sha256.Sum256([]byte(filePath + ":" + strconv.Itoa(lineStart)))
	return binary.BigEndian.Uint64(sum[:8]) % maxID
}

// ContentHash is the lowercase hex sha256 of the chunk content, used to
// detect unchanged chunks during incremental indexing.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
