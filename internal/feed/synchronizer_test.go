package feed

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"orderdesk/internal/model"
)

type fakeSub struct {
	name         string
	filter       model.Filter
	onSnapshot   func([]model.Order)
	onError      func(error)
	unsubscribed int
}

type fakeSource struct {
	mu   sync.Mutex
	subs []*fakeSub
}

func (f *fakeSource) SubscribeToCollection(name string, filter model.Filter, onSnapshot func([]model.Order), onError func(error)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := &fakeSub{name: name, filter: filter, onSnapshot: onSnapshot, onError: onError}
	f.subs = append(f.subs, sub)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		sub.unsubscribed++
	}
}

func (f *fakeSource) sub(t *testing.T, i int) *fakeSub {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.subs) {
		t.Fatalf("expected subscription %d, have %d", i, len(f.subs))
	}
	return f.subs[i]
}

func (f *fakeSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

var fixedFormat = WithFormatter(func(t time.Time) string { return t.UTC().Format(time.RFC3339) })

func order(id string, status model.Status, createdAt int64) model.Order {
	return model.Order{ID: id, Client: "client " + id, Title: "title " + id, Status: status, CreatedAt: createdAt}
}

func TestSynchronizer_InitialState(t *testing.T) {
	s := New(&fakeSource{})
	st := s.State()
	if !st.Loading || st.Entries == nil || len(st.Entries) != 0 {
		t.Fatalf("unexpected initial state %+v", st)
	}
	if s.Active() {
		t.Fatalf("expected no active subscription")
	}
}

func TestSynchronizer_SubscribeOpensFilteredQuery(t *testing.T) {
	src := &fakeSource{}
	s := New(src, fixedFormat)

	sub, err := s.Subscribe(Query{Status: model.StatusOpen})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if sub.Query().Status != model.StatusOpen {
		t.Fatalf("unexpected subscription query %+v", sub.Query())
	}

	got := src.sub(t, 0)
	if got.name != model.CollectionOrders {
		t.Fatalf("expected orders collection, got %q", got.name)
	}
	if diff := cmp.Diff(model.Filter{Field: "status", Op: "==", Value: "open"}, got.filter); diff != "" {
		t.Fatalf("filter mismatch (-want +got):\n%s", diff)
	}
	if st := s.State(); !st.Loading || st.Query.Status != model.StatusOpen {
		t.Fatalf("expected loading state before first snapshot, got %+v", st)
	}
	if !s.Active() {
		t.Fatalf("expected active subscription")
	}
}

func TestSynchronizer_SnapshotMapsToViewModels(t *testing.T) {
	src := &fakeSource{}
	created := time.Date(2022, 7, 18, 10, 0, 0, 0, time.UTC)
	s := New(src, WithLocation(time.UTC))

	if _, err := s.Subscribe(Query{Status: model.StatusOpen}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	src.sub(t, 0).onSnapshot([]model.Order{{
		ID: "1", Client: "Ana", Title: "Logo", Description: "SM Motos", Status: model.StatusOpen, CreatedAt: created.UnixMilli(),
	}})

	want := State{
		Loading: false,
		Query:   Query{Status: model.StatusOpen},
		Entries: []OrderViewModel{{
			ID: "1", Client: "Ana", Title: "Logo", Description: "SM Motos", Status: model.StatusOpen, When: "18/07/2022 às 10:00",
		}},
	}
	if diff := cmp.Diff(want, s.State()); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestSynchronizer_PreservesDeliveredOrder(t *testing.T) {
	src := &fakeSource{}
	s := New(src, fixedFormat)
	_, _ = s.Subscribe(Query{Status: model.StatusOpen})

	src.sub(t, 0).onSnapshot([]model.Order{
		order("b", model.StatusOpen, 1000),
		order("c", model.StatusOpen, 3000),
		order("a", model.StatusOpen, 2000),
	})

	var ids []string
	for _, e := range s.State().Entries {
		ids = append(ids, e.ID)
	}
	if diff := cmp.Diff([]string{"b", "c", "a"}, ids); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestSynchronizer_EmptySnapshot(t *testing.T) {
	src := &fakeSource{}
	s := New(src, fixedFormat)
	_, _ = s.Subscribe(Query{Status: model.StatusClosed})
	src.sub(t, 0).onSnapshot(nil)

	st := s.State()
	if st.Loading || st.Entries == nil || len(st.Entries) != 0 || st.Query.Status != model.StatusClosed {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestSynchronizer_ResubscribeDropsStaleSnapshots(t *testing.T) {
	src := &fakeSource{}
	s := New(src, fixedFormat)

	var seen []State
	remove := s.Observe(func(st State) { seen = append(seen, st) })
	defer remove()

	_, _ = s.Subscribe(Query{Status: model.StatusOpen})
	_, _ = s.Resubscribe(Query{Status: model.StatusClosed})
	_, _ = s.Resubscribe(Query{Status: model.StatusOpen})

	first, second, third := src.sub(t, 0), src.sub(t, 1), src.sub(t, 2)
	if first.unsubscribed != 1 || second.unsubscribed != 1 || third.unsubscribed != 0 {
		t.Fatalf("unexpected unsubscribe counts %d %d %d", first.unsubscribed, second.unsubscribed, third.unsubscribed)
	}

	mark := len(seen)
	first.onSnapshot([]model.Order{order("stale-1", model.StatusOpen, 1)})
	second.onSnapshot([]model.Order{order("stale-2", model.StatusClosed, 1)})
	second.onError(errors.New("stale failure"))
	if len(seen) != mark {
		t.Fatalf("stale callbacks reached observers: %+v", seen[mark:])
	}
	if st := s.State(); !st.Loading || len(st.Entries) != 0 || st.Err != nil {
		t.Fatalf("stale callbacks changed state: %+v", st)
	}

	third.onSnapshot([]model.Order{order("fresh", model.StatusOpen, 1)})
	st := s.State()
	if st.Loading || len(st.Entries) != 1 || st.Entries[0].ID != "fresh" {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestSynchronizer_EntriesMatchQueryStatus(t *testing.T) {
	for _, status := range []model.Status{model.StatusOpen, model.StatusClosed} {
		src := &fakeSource{}
		s := New(src, fixedFormat)
		_, _ = s.Subscribe(Query{Status: model.StatusOpen})
		src.sub(t, 0).onSnapshot([]model.Order{order("x", model.StatusOpen, 1)})

		_, _ = s.Resubscribe(Query{Status: status})
		src.sub(t, 0).onSnapshot([]model.Order{order("late", model.StatusOpen, 2)})
		src.sub(t, 1).onSnapshot([]model.Order{order("a", status, 1), order("b", status, 2)})

		for _, e := range s.State().Entries {
			if e.Status != status {
				t.Fatalf("query %s published entry with status %s", status, e.Status)
			}
		}
	}
}

func TestSynchronizer_ResubscribePublishesLoading(t *testing.T) {
	src := &fakeSource{}
	s := New(src, fixedFormat)
	_, _ = s.Subscribe(Query{Status: model.StatusOpen})
	src.sub(t, 0).onSnapshot([]model.Order{order("1", model.StatusOpen, 1)})

	var seen []State
	remove := s.Observe(func(st State) { seen = append(seen, st) })
	defer remove()

	_, _ = s.Resubscribe(Query{Status: model.StatusClosed})
	if len(seen) != 1 {
		t.Fatalf("expected one published state, got %d", len(seen))
	}
	want := State{Loading: true, Query: Query{Status: model.StatusClosed}, Entries: []OrderViewModel{}}
	if diff := cmp.Diff(want, seen[0]); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestSynchronizer_InvalidQuery(t *testing.T) {
	src := &fakeSource{}
	s := New(src)
	if _, err := s.Resubscribe(Query{Status: "pending"}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if src.count() != 0 {
		t.Fatalf("expected no subscription opened")
	}
}

func TestSynchronizer_UnsubscribeIdempotent(t *testing.T) {
	src := &fakeSource{}
	s := New(src, fixedFormat)
	_, _ = s.Subscribe(Query{Status: model.StatusOpen})
	src.sub(t, 0).onSnapshot([]model.Order{order("1", model.StatusOpen, 1)})

	s.Unsubscribe()
	after := s.State()
	s.Unsubscribe()

	if src.sub(t, 0).unsubscribed != 1 {
		t.Fatalf("expected exactly one detach, got %d", src.sub(t, 0).unsubscribed)
	}
	if diff := cmp.Diff(after, s.State()); diff != "" {
		t.Fatalf("second unsubscribe changed state (-want +got):\n%s", diff)
	}
	if s.Active() {
		t.Fatalf("expected inactive")
	}

	src.sub(t, 0).onSnapshot([]model.Order{order("2", model.StatusOpen, 2)})
	if diff := cmp.Diff(after, s.State()); diff != "" {
		t.Fatalf("snapshot after unsubscribe changed state (-want +got):\n%s", diff)
	}
}

func TestSynchronizer_UnsubscribeWithoutSubscription(t *testing.T) {
	s := New(&fakeSource{})
	s.Unsubscribe()
	s.Unsubscribe()
	if !s.State().Loading {
		t.Fatalf("expected state untouched")
	}
}

func TestSynchronizer_SubscriptionCloseOnlyWhenCurrent(t *testing.T) {
	src := &fakeSource{}
	s := New(src, fixedFormat)
	old, _ := s.Subscribe(Query{Status: model.StatusOpen})
	current, _ := s.Resubscribe(Query{Status: model.StatusClosed})
	if current.Generation() <= old.Generation() {
		t.Fatalf("expected increasing generations")
	}

	old.Close()
	if !s.Active() || src.sub(t, 1).unsubscribed != 0 {
		t.Fatalf("closing a superseded handle must not detach the current one")
	}

	current.Close()
	if s.Active() || src.sub(t, 1).unsubscribed != 1 {
		t.Fatalf("expected current subscription detached")
	}
}

func TestSynchronizer_FeedErrorKeepsSubscription(t *testing.T) {
	src := &fakeSource{}
	s := New(src, fixedFormat)
	_, _ = s.Subscribe(Query{Status: model.StatusOpen})
	src.sub(t, 0).onSnapshot([]model.Order{order("1", model.StatusOpen, 1)})

	boom := errors.New("connection lost")
	src.sub(t, 0).onError(boom)

	st := s.State()
	var feedErr *FeedError
	if !errors.As(st.Err, &feedErr) {
		t.Fatalf("expected FeedError, got %v", st.Err)
	}
	if !errors.Is(st.Err, boom) || feedErr.Query.Status != model.StatusOpen {
		t.Fatalf("unexpected feed error %+v", feedErr)
	}
	if len(st.Entries) != 1 || st.Loading {
		t.Fatalf("error must keep last entries, got %+v", st)
	}
	if !s.Active() || src.sub(t, 0).unsubscribed != 0 {
		t.Fatalf("error must not tear down the subscription")
	}

	src.sub(t, 0).onSnapshot(nil)
	if s.State().Err != nil {
		t.Fatalf("expected error cleared by next snapshot")
	}
}

func TestSynchronizer_ErrorWhileLoadingStaysLoading(t *testing.T) {
	src := &fakeSource{}
	s := New(src, fixedFormat)
	_, _ = s.Subscribe(Query{Status: model.StatusClosed})
	src.sub(t, 0).onError(errors.New("dial failed"))

	st := s.State()
	if !st.Loading || st.Err == nil {
		t.Fatalf("expected loading state carrying the error, got %+v", st)
	}
}

func TestSynchronizer_ObserverRemoval(t *testing.T) {
	src := &fakeSource{}
	s := New(src, fixedFormat)
	calls := 0
	remove := s.Observe(func(State) { calls++ })

	_, _ = s.Subscribe(Query{Status: model.StatusOpen})
	remove()
	remove()
	src.sub(t, 0).onSnapshot(nil)

	if calls != 1 {
		t.Fatalf("expected 1 call before removal, got %d", calls)
	}
}

// syncSource delivers the first snapshot from inside SubscribeToCollection,
// the way the in-process store does.
type syncSource struct {
	orders map[model.Status][]model.Order
}

func (s syncSource) SubscribeToCollection(name string, filter model.Filter, onSnapshot func([]model.Order), onError func(error)) func() {
	onSnapshot(s.orders[model.Status(filter.Value)])
	return func() {}
}

func TestSynchronizer_SynchronousFirstSnapshot(t *testing.T) {
	src := syncSource{orders: map[model.Status][]model.Order{
		model.StatusOpen: {order("1", model.StatusOpen, 1)},
	}}
	s := New(src, fixedFormat)

	if _, err := s.Subscribe(Query{Status: model.StatusOpen}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	st := s.State()
	if st.Loading || len(st.Entries) != 1 {
		t.Fatalf("expected populated state, got %+v", st)
	}
	if !s.Active() {
		t.Fatalf("expected active subscription")
	}
}

func TestSynchronizer_ConcurrentResubscribe(t *testing.T) {
	src := &fakeSource{}
	s := New(src, fixedFormat)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := model.StatusOpen
			if i%2 == 1 {
				status = model.StatusClosed
			}
			_, _ = s.Resubscribe(Query{Status: status})
		}(i)
	}
	wg.Wait()

	attached := 0
	src.mu.Lock()
	for _, sub := range src.subs {
		if sub.unsubscribed == 0 {
			attached++
		}
	}
	src.mu.Unlock()
	if attached != 1 {
		t.Fatalf("expected exactly one attached subscription, got %d", attached)
	}
}
