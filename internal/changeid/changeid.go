// Package changeid computes the content-derived change identifier
// (glossary: change-id) shared by the index and change packages. Kept
// separate from both so neither has to import the other.
package changeid

import (
	"encoding/binary"
	"encoding/hex"

	"lukechampine.com/blake3"
)

// Compute hashes name, description, author and timestamp (Unix
// seconds, little-endian) separated by NUL bytes, returning the
// lowercase-hex blake3 digest used as a Change's ID.
func Compute(name, description, author string, timestamp int64) string {
	h := blake3.New(32, nil)
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(description))
	h.Write([]byte{0})
	h.Write([]byte(author))
	h.Write([]byte{0})
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(timestamp))
	h.Write(ts[:])
	return hex.EncodeToString(h.Sum(nil))
}
