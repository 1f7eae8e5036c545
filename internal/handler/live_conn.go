package handler

import (
	"errors"
	"sync"

	"orderdesk/internal/model"
)

var errLiveClosed = errors.New("live connection closed")

type jsonWriter interface {
	WriteJSON(v any) error
	Close() error
}

// liveConn is the hub writer of one websocket client. Write only queues the
// snapshot; run does the network write. Snapshots are full replacements, so a
// snapshot still queued when the next one arrives is discarded.
type liveConn struct {
	out     jsonWriter
	pending chan []model.Order
	closed  chan struct{}
	once    sync.Once
}

func newLiveConn(out jsonWriter) *liveConn {
	return &liveConn{
		out:     out,
		pending: make(chan []model.Order, 1),
		closed:  make(chan struct{}),
	}
}

// Write is called by a single producer, the store's broadcast.
func (l *liveConn) Write(snapshot []model.Order) error {
	select {
	case <-l.closed:
		return errLiveClosed
	default:
	}

	select {
	case l.pending <- snapshot:
		return nil
	default:
	}
	select {
	case <-l.pending:
	default:
	}
	select {
	case l.pending <- snapshot:
	default:
	}
	return nil
}

func (l *liveConn) Close() error {
	l.once.Do(func() {
		close(l.closed)
		_ = l.out.Close()
	})
	return nil
}

func (l *liveConn) run() {
	for {
		select {
		case <-l.closed:
			return
		case orders := <-l.pending:
			if err := l.out.WriteJSON(LiveMessage{Type: LiveTypeSnapshot, Orders: orders}); err != nil {
				_ = l.Close()
				return
			}
		}
	}
}
