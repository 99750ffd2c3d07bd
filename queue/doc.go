// Package queue defines the work queue that feeds ingestion workers.
//
// Enqueuers publish core.IngestionJob payloads; workers block in Dequeue
// until a job arrives. Dequeue removes the job, so delivery is at most once:
// a worker that fails or crashes mid-job does not see the job again.
// Queues that also implement DeadLetterer keep a record of failed jobs for
// operators to inspect and resubmit by hand.
//
// Implementations: the in-memory Memory queue here, and a persistent queue
// in storage/badger.
package queue
