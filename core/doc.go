// Package core holds the domain model shared by the ingestion and query
// pipelines: documents, chunks, ingestion jobs and stream events, plus the
// error classes used to report pipeline failures.
package core
