package server

import "errors"

var (
	ErrQueueRequired        = errors.New("queue is required")
	ErrStoreRequired        = errors.New("vector store is required")
	ErrOrchestratorRequired = errors.New("orchestrator is required")
)
