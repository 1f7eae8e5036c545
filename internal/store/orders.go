package store

import (
	"log"
	"sort"
	"strings"

	"github.com/google/uuid"
	"orderdesk/internal/model"
)

type NewOrder struct {
	Client      string
	Title       string
	Description string
}

func (s *Store) CreateOrder(in NewOrder, nowMillis int64) (model.Order, error) {
	client := strings.TrimSpace(in.Client)
	title := strings.TrimSpace(in.Title)
	if client == "" {
		return model.Order{}, ErrMissingClient
	}
	if title == "" {
		return model.Order{}, ErrMissingTitle
	}

	o := model.Order{
		ID:          uuid.NewString(),
		Client:      client,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Status:      model.StatusOpen,
		CreatedAt:   nowMillis,
	}

	s.mu.Lock()
	s.ordersByID[o.ID] = o
	s.mu.Unlock()

	s.persistOrder(o)
	s.publish(o.Status)
	return o, nil
}

func (s *Store) GetOrder(id string) (model.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.ordersByID[id]
	return o, ok
}

// CloseOrder moves an open order to closed. Closed orders never reopen.
func (s *Store) CloseOrder(id string, nowMillis int64) (model.Order, error) {
	s.mu.Lock()
	o, ok := s.ordersByID[id]
	if !ok {
		s.mu.Unlock()
		return model.Order{}, ErrOrderNotFound
	}
	if o.Status == model.StatusClosed {
		s.mu.Unlock()
		return o, ErrOrderClosed
	}
	o.Status = model.StatusClosed
	o.ClosedAt = nowMillis
	s.ordersByID[id] = o
	s.mu.Unlock()

	s.persistOrder(o)
	s.publish(model.StatusOpen, model.StatusClosed)
	return o, nil
}

// ListOrders returns the orders with the given status, newest first.
func (s *Store) ListOrders(status model.Status) []model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Order, 0)
	for _, o := range s.ordersByID {
		if o.Status == status {
			result = append(result, o)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt > result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (s *Store) persistOrder(o model.Order) {
	if s.orders == nil {
		return
	}
	if err := s.orders.upsert(o); err != nil {
		log.Printf("orders persistence: upsert %s failed: %v", o.ID, err)
	}
}
