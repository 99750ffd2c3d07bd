package ai

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrStreamClosed is returned by Recv after Close.
var ErrStreamClosed = errors.New("stream closed")

// Producer writes deltas through emit until the completion ends. emit
// returns an error once the consumer has gone away; producers must stop
// and return when it does.
type Producer func(ctx context.Context, emit func(delta string) error) error

// Stream is a forward-only sequence of text deltas written by a producer
// goroutine and read with Recv. It is not restartable.
type Stream struct {
	deltas    chan string
	done      chan struct{}
	cancel    context.CancelFunc
	err       error
	closeOnce sync.Once
}

// NewStream runs produce in a new goroutine and returns the consuming end.
// Cancelling ctx or calling Close stops the producer.
func NewStream(ctx context.Context, produce Producer) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		deltas: make(chan string),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go func() {
		defer close(s.deltas)
		s.err = produce(ctx, func(delta string) error {
			select {
			case s.deltas <- delta:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	return s
}

// Recv returns the next delta. It returns io.EOF after the last delta of a
// completed stream and the producer's error if the backend failed.
func (s *Stream) Recv() (string, error) {
	select {
	case <-s.done:
		return "", ErrStreamClosed
	default:
	}
	select {
	case delta, ok := <-s.deltas:
		if ok {
			return delta, nil
		}
		// deltas is closed only after the producer returned, so err is set.
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	case <-s.done:
		return "", ErrStreamClosed
	}
}

// Close stops the producer and releases the backend connection. It is safe
// to call more than once and from any goroutine.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
	})
	return nil
}

// StaticStream returns a Stream that yields deltas and then ends with err,
// or io.EOF when err is nil.
func StaticStream(ctx context.Context, deltas []string, err error) *Stream {
	return NewStream(ctx, func(ctx context.Context, emit func(string) error) error {
		for _, d := range deltas {
			if emitErr := emit(d); emitErr != nil {
				return emitErr
			}
		}
		return err
	})
}
