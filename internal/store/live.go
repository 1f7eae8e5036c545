package store

import (
	"fmt"
	"sync"
	"sync/atomic"

	"orderdesk/internal/hub"
	"orderdesk/internal/model"
)

// ValidateFilter checks that a live query targets a supported collection and
// field, returning the status it selects.
func ValidateFilter(name string, filter model.Filter) (model.Status, error) {
	if name != model.CollectionOrders {
		return "", fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	if filter.Field != model.FieldStatus || filter.Op != model.OpEqual {
		return "", fmt.Errorf("%w: %s %s", ErrUnsupportedFilter, filter.Field, filter.Op)
	}
	status := model.Status(filter.Value)
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatusValue, filter.Value)
	}
	return status, nil
}

type listener struct {
	onSnapshot func([]model.Order)
	detached   atomic.Bool
}

func (l *listener) Write(snapshot []model.Order) error {
	if l.detached.Load() {
		return nil
	}
	l.onSnapshot(snapshot)
	return nil
}

func (l *listener) Close() error {
	l.detached.Store(true)
	return nil
}

// Subscribe registers w for live snapshots of a filtered collection. The
// current matching set is written before it returns. A failed Write closes w
// and drops it from the feed.
func (s *Store) Subscribe(name string, filter model.Filter, w hub.Writer) (unsubscribe func(), err error) {
	status, err := ValidateFilter(name, filter)
	if err != nil {
		return nil, err
	}
	conn := &hub.Connection{Topic: string(status), Writer: w}

	s.notifyMu.Lock()
	s.live.Register(conn)
	s.live.Send(conn, s.ListOrders(status))
	s.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.live.Unregister(conn)
		})
	}, nil
}

// SubscribeToCollection registers a live query. The current matching set is
// delivered before it returns, then a full replacement snapshot follows every
// change that affects the filter.
func (s *Store) SubscribeToCollection(name string, filter model.Filter, onSnapshot func([]model.Order), onError func(error)) func() {
	l := &listener{onSnapshot: onSnapshot}
	unsubscribe, err := s.Subscribe(name, filter, l)
	if err != nil {
		if onError != nil {
			onError(err)
		}
		return func() {}
	}
	return func() {
		_ = l.Close()
		unsubscribe()
	}
}

func (s *Store) publish(statuses ...model.Status) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	for _, status := range statuses {
		topic := string(status)
		if !s.live.Has(topic) {
			continue
		}
		s.live.Broadcast(topic, s.ListOrders(status))
	}
}
