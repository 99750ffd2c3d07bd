// Package qdrant implements storage.VectorStore on a Qdrant collection
// through its REST API.
package qdrant
