package feed

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"orderdesk/internal/model"
)

// Source is the live query interface of the remote store. Each snapshot is
// the full ordered set of records currently matching the filter.
type Source interface {
	SubscribeToCollection(name string, filter model.Filter, onSnapshot func([]model.Order), onError func(error)) (unsubscribe func())
}

// State is what the synchronizer publishes. Entries is never nil.
type State struct {
	Loading bool
	Query   Query
	Entries []OrderViewModel
	Err     error
}

// FeedError reports a failure of the live subscription. The subscription
// stays attached; the source is expected to recover on its own.
type FeedError struct {
	Query Query
	Err   error
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("feed %s: %v", e.Query.Status, e.Err)
}

func (e *FeedError) Unwrap() error { return e.Err }

type Observer func(State)

type Option func(*Synchronizer)

func WithLocation(loc *time.Location) Option {
	return func(s *Synchronizer) {
		s.format = func(t time.Time) string { return FormatWhen(t, loc) }
	}
}

func WithFormatter(format func(time.Time) string) Option {
	return func(s *Synchronizer) {
		if format != nil {
			s.format = format
		}
	}
}

// Synchronizer keeps at most one live subscription open against a Source and
// republishes every snapshot as view models.
//
// Every subscription carries a generation number. Callbacks captured for an
// older generation are dropped, so once Resubscribe or Unsubscribe has
// started no observer sees data from the superseded subscription.
// Observers run serially and must not call back into the Synchronizer.
type Synchronizer struct {
	source Source
	format func(time.Time) string

	// deliverMu is held across a generation check and the observer calls
	// that follow it.
	deliverMu sync.Mutex

	mu           sync.Mutex
	generation   uint64
	cancel       func()
	state        State
	observers    map[int]Observer
	nextObserver int
}

func New(source Source, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		source:    source,
		format:    func(t time.Time) string { return FormatWhen(t, time.Local) },
		state:     State{Loading: true, Entries: []OrderViewModel{}},
		observers: make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscription identifies one generation of the synchronizer's live query.
type Subscription struct {
	s          *Synchronizer
	generation uint64
	query      Query
}

func (sub *Subscription) Generation() uint64 { return sub.generation }

func (sub *Subscription) Query() Query { return sub.query }

// Close detaches the subscription if it is still the current one.
func (sub *Subscription) Close() {
	sub.s.detach(sub.generation, true)
}

func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Synchronizer) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Observe registers fn for every published state and returns its removal.
func (s *Synchronizer) Observe(fn Observer) (remove func()) {
	s.mu.Lock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Synchronizer) Subscribe(q Query) (*Subscription, error) {
	return s.Resubscribe(q)
}

// Resubscribe cancels the current subscription, publishes a loading state and
// opens a new subscription for q.
func (s *Synchronizer) Resubscribe(q Query) (*Subscription, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.deliverMu.Lock()
	s.mu.Lock()
	s.generation++
	gen := s.generation
	prev := s.cancel
	s.cancel = nil
	s.state = State{Loading: true, Query: q, Entries: []OrderViewModel{}}
	state := s.state
	observers := s.observersLocked()
	s.mu.Unlock()
	notify(observers, state)
	s.deliverMu.Unlock()

	if prev != nil {
		prev()
	}

	unsubscribe := s.source.SubscribeToCollection(model.CollectionOrders, q.Filter(),
		func(orders []model.Order) { s.handleSnapshot(gen, orders) },
		func(err error) { s.handleError(gen, err) },
	)

	sub := &Subscription{s: s, generation: gen, query: q}
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		unsubscribe()
		return sub, nil
	}
	s.cancel = unsubscribe
	s.mu.Unlock()
	return sub, nil
}

// Unsubscribe detaches from the source. It is idempotent and leaves the last
// published state in place.
func (s *Synchronizer) Unsubscribe() {
	s.detach(0, false)
}

func (s *Synchronizer) detach(gen uint64, onlyIfCurrent bool) {
	s.deliverMu.Lock()
	s.mu.Lock()
	if onlyIfCurrent && s.generation != gen {
		s.mu.Unlock()
		s.deliverMu.Unlock()
		return
	}
	s.generation++
	prev := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	s.deliverMu.Unlock()

	if prev != nil {
		prev()
	}
}

func (s *Synchronizer) handleSnapshot(gen uint64, orders []model.Order) {
	entries := make([]OrderViewModel, 0, len(orders))
	for _, o := range orders {
		entries = append(entries, toViewModel(o, s.format))
	}

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.state = State{Loading: false, Query: s.state.Query, Entries: entries}
	state := s.state
	observers := s.observersLocked()
	s.mu.Unlock()

	notify(observers, state)
}

func (s *Synchronizer) handleError(gen uint64, err error) {
	if err == nil {
		return
	}

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.state.Err = &FeedError{Query: s.state.Query, Err: err}
	state := s.state
	observers := s.observersLocked()
	s.mu.Unlock()

	notify(observers, state)
}

func (s *Synchronizer) observersLocked() []Observer {
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	result := make([]Observer, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.observers[id])
	}
	return result
}

func notify(observers []Observer, state State) {
	for _, fn := range observers {
		fn(state)
	}
}
