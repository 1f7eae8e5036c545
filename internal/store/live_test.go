package store

import (
	"errors"
	"testing"

	"orderdesk/internal/model"
)

type recorder struct {
	snapshots [][]model.Order
	errs      []error
}

func (r *recorder) onSnapshot(orders []model.Order) { r.snapshots = append(r.snapshots, orders) }
func (r *recorder) onError(err error) { r.errs = append(r.errs, err) }

func (r *recorder) last() []model.Order {
	if len(r.snapshots) == 0 {
		return nil
	}
	return r.snapshots[len(r.snapshots)-1]
}

func TestValidateFilter(t *testing.T) {
	if status, err := ValidateFilter("orders", model.StatusFilter(model.StatusClosed)); err != nil || status != model.StatusClosed {
		t.Fatalf("expected closed, got %q %v", status, err)
	}
	if _, err := ValidateFilter("users", model.StatusFilter(model.StatusOpen)); !errors.Is(err, ErrUnknownCollection) {
		t.Fatalf("expected ErrUnknownCollection, got %v", err)
	}
	if _, err := ValidateFilter("orders", model.Filter{Field: "client", Op: "==", Value: "Ana"}); !errors.Is(err, ErrUnsupportedFilter) {
		t.Fatalf("expected ErrUnsupportedFilter, got %v", err)
	}
	if _, err := ValidateFilter("orders", model.Filter{Field: "status", Op: "==", Value: "pending"}); !errors.Is(err, ErrInvalidStatusValue) {
		t.Fatalf("expected ErrInvalidStatusValue, got %v", err)
	}
}

func TestSubscribeToCollection_InitialAndUpdates(t *testing.T) {
	s := New()
	existing, _ := s.CreateOrder(NewOrder{Client: "Ana", Title: "Logo"}, 1000)

	var open recorder
	unsubscribe := s.SubscribeToCollection("orders", model.StatusFilter(model.StatusOpen), open.onSnapshot, open.onError)
	defer unsubscribe()

	if len(open.snapshots) != 1 {
		t.Fatalf("expected initial snapshot, got %d", len(open.snapshots))
	}
	if len(open.last()) != 1 || open.last()[0].ID != existing.ID {
		t.Fatalf("unexpected initial snapshot %+v", open.last())
	}

	added, _ := s.CreateOrder(NewOrder{Client: "Bia", Title: "Site"}, 2000)
	if len(open.snapshots) != 2 || len(open.last()) != 2 || open.last()[0].ID != added.ID {
		t.Fatalf("unexpected snapshot after insert %+v", open.last())
	}

	if _, err := s.CloseOrder(existing.ID, 3000); err != nil {
		t.Fatalf("CloseOrder: %v", err)
	}
	if len(open.last()) != 1 || open.last()[0].ID != added.ID {
		t.Fatalf("expected closed order removed from open feed, got %+v", open.last())
	}
	for _, snap := range open.snapshots {
		for _, o := range snap {
			if o.Status != model.StatusOpen {
				t.Fatalf("open feed delivered %s order", o.Status)
			}
		}
	}
}

func TestSubscribeToCollection_ClosedFeedSeesTransition(t *testing.T) {
	s := New()
	o, _ := s.CreateOrder(NewOrder{Client: "Ana", Title: "Logo"}, 1000)

	var closed recorder
	unsubscribe := s.SubscribeToCollection("orders", model.StatusFilter(model.StatusClosed), closed.onSnapshot, closed.onError)
	defer unsubscribe()
	if len(closed.last()) != 0 {
		t.Fatalf("expected empty initial snapshot")
	}

	_, _ = s.CreateOrder(NewOrder{Client: "Bia", Title: "Site"}, 2000)
	if len(closed.snapshots) != 1 {
		t.Fatalf("expected no snapshot for unrelated insert, got %d", len(closed.snapshots))
	}

	_, _ = s.CloseOrder(o.ID, 3000)
	if len(closed.last()) != 1 || closed.last()[0].Status != model.StatusClosed {
		t.Fatalf("unexpected closed snapshot %+v", closed.last())
	}
}

func TestSubscribeToCollection_Unsubscribe(t *testing.T) {
	s := New()
	var rec recorder
	unsubscribe := s.SubscribeToCollection("orders", model.StatusFilter(model.StatusOpen), rec.onSnapshot, rec.onError)
	unsubscribe()
	unsubscribe()

	_, _ = s.CreateOrder(NewOrder{Client: "Ana", Title: "Logo"}, 1000)
	if len(rec.snapshots) != 1 {
		t.Fatalf("expected only the initial snapshot, got %d", len(rec.snapshots))
	}
}

func TestSubscribeToCollection_InvalidFilterReportsError(t *testing.T) {
	s := New()
	var rec recorder
	unsubscribe := s.SubscribeToCollection("orders", model.Filter{Field: "status", Op: "!=", Value: "open"}, rec.onSnapshot, rec.onError)
	unsubscribe()
	if len(rec.errs) != 1 || !errors.Is(rec.errs[0], ErrUnsupportedFilter) {
		t.Fatalf("expected unsupported filter error, got %v", rec.errs)
	}
	if len(rec.snapshots) != 0 {
		t.Fatalf("expected no snapshots")
	}
}

type flakyWriter struct {
	writes   int
	failFrom int
	closed   bool
}

func (w *flakyWriter) Write(snapshot []model.Order) error {
	w.writes++
	if w.writes >= w.failFrom {
		return errors.New("connection reset")
	}
	return nil
}

func (w *flakyWriter) Close() error {
	w.closed = true
	return nil
}

func TestSubscribe_DropsWriterFailingInitialSnapshot(t *testing.T) {
	s := New()
	w := &flakyWriter{failFrom: 1}
	unsubscribe, err := s.Subscribe("orders", model.StatusFilter(model.StatusOpen), w)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribe()

	if !w.closed {
		t.Fatalf("expected failed writer closed")
	}
	if s.live.Has(string(model.StatusOpen)) {
		t.Fatalf("expected failed writer unregistered")
	}
}

func TestSubscribe_DropsWriterFailingBroadcast(t *testing.T) {
	s := New()
	w := &flakyWriter{failFrom: 2}
	var healthy recorder
	unsubscribe, err := s.Subscribe("orders", model.StatusFilter(model.StatusOpen), w)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribe()
	stop := s.SubscribeToCollection("orders", model.StatusFilter(model.StatusOpen), healthy.onSnapshot, healthy.onError)
	defer stop()

	_, _ = s.CreateOrder(NewOrder{Client: "Ana", Title: "Logo"}, 1000)
	if !w.closed {
		t.Fatalf("expected failed writer closed")
	}
	_, _ = s.CreateOrder(NewOrder{Client: "Bia", Title: "Site"}, 2000)
	if w.writes != 2 {
		t.Fatalf("expected no writes after drop, got %d", w.writes)
	}
	if len(healthy.snapshots) != 3 || len(healthy.last()) != 2 {
		t.Fatalf("healthy listener must keep receiving, got %d snapshots", len(healthy.snapshots))
	}
}

func TestSubscribe_InvalidFilter(t *testing.T) {
	s := New()
	if _, err := s.Subscribe("users", model.StatusFilter(model.StatusOpen), &flakyWriter{failFrom: 99}); !errors.Is(err, ErrUnknownCollection) {
		t.Fatalf("expected ErrUnknownCollection, got %v", err)
	}
}
