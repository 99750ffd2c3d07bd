// Package ingestion turns queued documents into stored, searchable chunks.
//
// A Worker runs one blocking dequeue loop. Each job moves through
// Received, Extracting, Chunking, Embedding and Storing before ending in
// Done or Failed. Jobs are processed at most once: a failed job is logged
// and, when the queue keeps dead letters, recorded there, but it is never
// re-queued.
//
// A Pipeline runs several Workers on an ants pool against the same queue
// and store. Workers do not coordinate; re-processing the same document
// is safe because chunk ids are deterministic and the store upserts.
package ingestion
