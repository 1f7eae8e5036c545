package feed

import (
	"errors"
	"fmt"
	"time"

	"orderdesk/internal/model"
)

var ErrInvalidStatus = errors.New("invalid status")

// Query selects which orders a subscription tracks. Ordering is whatever the
// store's query evaluation delivers.
type Query struct {
	Status model.Status
}

func (q Query) Validate() error {
	if !q.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, q.Status)
	}
	return nil
}

func (q Query) Filter() model.Filter {
	return model.StatusFilter(q.Status)
}

// OrderViewModel is the display projection of an order. When is derived from
// CreatedAt on every snapshot and never stored.
type OrderViewModel struct {
	ID          string
	Client      string
	Title       string
	Description string
	Status      model.Status
	When        string
}

const whenLayout = "02/01/2006 às 15:04"

func FormatWhen(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(whenLayout)
}

func toViewModel(o model.Order, format func(time.Time) string) OrderViewModel {
	return OrderViewModel{
		ID:          o.ID,
		Client:      o.Client,
		Title:       o.Title,
		Description: o.Description,
		Status:      o.Status,
		When:        format(time.UnixMilli(o.CreatedAt)),
	}
}
