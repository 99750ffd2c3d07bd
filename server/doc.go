// Package server exposes ingestion and query over HTTP.
//
// Documents are enqueued with POST /v1/documents and answered queries are
// streamed from POST /v1/query as newline-delimited JSON, one event per line.
package server
