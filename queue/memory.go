package queue

import (
	"context"
	"sync"
	"time"

	"github.com/poiesic/ragstream/core"
)

// Memory is an unbounded in-process queue.
type Memory struct {
	mu        sync.Mutex
	jobs      []core.IngestionJob
	dead      []DeadLetter
	notify    chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

var (
	_ Queue        = (*Memory)(nil)
	_ DeadLetterer = (*Memory)(nil)
)

// NewMemory returns an empty queue.
func NewMemory() *Memory {
	return &Memory{
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (m *Memory) Enqueue(_ context.Context, job core.IngestionJob) error {
	if m.isClosed() {
		return ErrClosed
	}
	m.mu.Lock()
	m.jobs = append(m.jobs, job)
	m.mu.Unlock()
	m.signal()
	return nil
}

func (m *Memory) Dequeue(ctx context.Context) (core.IngestionJob, error) {
	for {
		if m.isClosed() {
			return core.IngestionJob{}, ErrClosed
		}
		m.mu.Lock()
		if len(m.jobs) > 0 {
			job := m.jobs[0]
			m.jobs[0] = core.IngestionJob{}
			m.jobs = m.jobs[1:]
			remaining := len(m.jobs)
			m.mu.Unlock()
			if remaining > 0 {
				// Pass the wakeup on to the next waiting consumer.
				m.signal()
			}
			return job, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return core.IngestionJob{}, ctx.Err()
		case <-m.closed:
			return core.IngestionJob{}, ErrClosed
		case <-m.notify:
		}
	}
}

func (m *Memory) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs), nil
}

func (m *Memory) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func (m *Memory) Bury(_ context.Context, job core.IngestionJob, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dead = append(m.dead, DeadLetter{Job: job, Reason: reason, FailedAt: time.Now().UTC()})
	return nil
}

func (m *Memory) DeadLetters(_ context.Context) ([]DeadLetter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DeadLetter(nil), m.dead...), nil
}

func (m *Memory) signal() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *Memory) isClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}
