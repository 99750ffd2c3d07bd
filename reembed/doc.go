// Package reembed recomputes the embedding of every stored chunk with the
// active embedder. Operators run it after switching embedding models so
// that stored vectors and query vectors come from the same model.
//
// Chunks are read from a storage.ChunkScanner in batches, embedded with
// one batch call per batch (retried with exponential backoff), and
// upserted back under their existing ids.
package reembed
