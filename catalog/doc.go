// Package catalog records the documents accepted for ingestion and
// whether each has been processed. The ingestion core runs without one;
// a catalog only adds bookkeeping for listing and deletion.
package catalog
