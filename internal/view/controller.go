package view

import (
	"sync"

	"orderdesk/internal/feed"
	"orderdesk/internal/model"
)

type Kind int

const (
	Loading Kind = iota
	Empty
	Populated
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "Empty"
	case Populated:
		return "Populated"
	default:
		return "Loading"
	}
}

// RenderState is what the rendering collaborator draws. Filter is the status
// of the query that produced the state.
type RenderState struct {
	Kind    Kind
	Filter  model.Status
	Entries []feed.OrderViewModel
	Err     error
}

func (r RenderState) Count() int { return len(r.Entries) }

func (r RenderState) EmptyMessage() string {
	if r.Filter == model.StatusClosed {
		return "Você ainda não possui\nserviços finalizados"
	}
	return "Você ainda não possui\nserviços em andamento"
}

// Derive maps a synchronizer state to its render state.
func Derive(st feed.State) RenderState {
	r := RenderState{Filter: st.Query.Status, Err: st.Err}
	switch {
	case st.Loading:
		r.Kind = Loading
	case len(st.Entries) == 0:
		r.Kind = Empty
	default:
		r.Kind = Populated
		r.Entries = st.Entries
	}
	return r
}

type Renderer interface {
	Render(state RenderState, count int)
}

type Navigator interface {
	GoToNew()
	GoToDetail(orderID string)
}

// Synchronizer is the part of feed.Synchronizer the controller drives.
type Synchronizer interface {
	State() feed.State
	Observe(fn feed.Observer) (remove func())
	Resubscribe(q feed.Query) (*feed.Subscription, error)
	Unsubscribe()
}

// Controller binds one order list screen to a synchronizer. Construct one
// per screen and Close it on teardown.
type Controller struct {
	feedSync  Synchronizer
	navigator Navigator
	renderer  Renderer

	mu     sync.Mutex
	filter model.Status
	remove func()
}

func NewController(s Synchronizer, navigator Navigator, renderer Renderer) *Controller {
	c := &Controller{
		feedSync:  s,
		navigator: navigator,
		renderer:  renderer,
		filter:    model.StatusOpen,
	}
	c.remove = s.Observe(c.onState)
	return c
}

// Start subscribes with the current filter, open by default.
func (c *Controller) Start() error {
	return c.SetStatusFilter(c.Filter())
}

func (c *Controller) SetStatusFilter(status model.Status) error {
	if _, err := c.feedSync.Resubscribe(feed.Query{Status: status}); err != nil {
		return err
	}
	c.mu.Lock()
	c.filter = status
	c.mu.Unlock()
	return nil
}

func (c *Controller) Filter() model.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

func (c *Controller) State() RenderState {
	return Derive(c.feedSync.State())
}

func (c *Controller) OpenDetail(orderID string) {
	c.navigator.GoToDetail(orderID)
}

func (c *Controller) OpenCreate() {
	c.navigator.GoToNew()
}

func (c *Controller) Close() {
	c.mu.Lock()
	remove := c.remove
	c.remove = nil
	c.mu.Unlock()
	if remove != nil {
		remove()
	}
	c.feedSync.Unsubscribe()
}

func (c *Controller) onState(st feed.State) {
	if c.renderer == nil {
		return
	}
	r := Derive(st)
	c.renderer.Render(r, r.Count())
}
