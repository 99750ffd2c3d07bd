package badger

import (
	"encoding/binary"
)

// Key prefixes for different data types
const (
	chunkPrefix      = "chunk:"
	chunkDocPrefix   = "chunkdoc:"
	jobPrefix        = "job:"
	deadLetterPrefix = "dlq:"
	jobSeq           = "seq:job"
	deadLetterSeq    = "seq:dlq"
)

// makeChunkKey generates a key for a chunk by ID.
func makeChunkKey(id string) []byte {
	return []byte(chunkPrefix + id)
}

// makeChunkDocKey generates a composite key for the document index.
// Format: prefix:documentID\x00chunkID
func makeChunkDocKey(documentID, chunkID string) []byte {
	return append(makePartialChunkDocKey(documentID), chunkID...)
}

// makePartialChunkDocKey generates the prefix shared by all index keys of a document.
// The NUL terminator keeps "doc1" from matching "doc10".
func makePartialChunkDocKey(documentID string) []byte {
	buf := make([]byte, 0, len(chunkDocPrefix)+len(documentID)+1)
	buf = append(buf, chunkDocPrefix...)
	buf = append(buf, documentID...)
	return append(buf, 0)
}

// chunkIDFromDocKey extracts the chunk ID from a document index key.
func chunkIDFromDocKey(key []byte, documentID string) string {
	return string(key[len(chunkDocPrefix)+len(documentID)+1:])
}

// makeSeqKey generates a key ordered by sequence number.
// Format: prefix + 8 bytes big-endian sequence
func makeSeqKey(prefix string, seq uint64) []byte {
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}
