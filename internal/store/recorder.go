package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Saver interface {
	Save(ctx context.Context, m *Match) error
}

// Recorder writes matches on its own goroutine so callers never wait on the
// database. When the queue is full the match is dropped and logged.
type Recorder struct {
	saver   Saver
	log     *zap.Logger
	queue   chan Match
	timeout time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

func NewRecorder(saver Saver, log *zap.Logger, size int) *Recorder {
	if size <= 0 {
		size = 64
	}
	return &Recorder{
		saver:   saver,
		log:     log.Named("store"),
		queue:   make(chan Match, size),
		timeout: 5 * time.Second,
		done:    make(chan struct{}),
	}
}

func (r *Recorder) RecordMatch(m Match) {
	select {
	case r.queue <- m:
	default:
		r.log.Warn("match queue full, dropping", zap.String("room", m.RoomCode))
	}
}

// Run drains the queue until Close is called.
func (r *Recorder) Run() {
	defer close(r.done)
	for m := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := r.saver.Save(ctx, &m); err != nil {
			r.log.Error("save match", zap.String("room", m.RoomCode), zap.Error(err))
		}
		cancel()
	}
}

// Close stops accepting matches and waits for queued ones to be written.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() { close(r.queue) })
	<-r.done
}
