package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"orderdesk/internal/model"
)

type liveMessage struct {
	Type   string        `json:"type"`
	Orders []model.Order `json:"orders"`
	Error  string        `json:"error"`
}

// SubscribeToCollection streams snapshots of a filtered collection until the
// returned function is called. Connection failures are reported through
// onError and the stream is redialed with capped exponential backoff.
// Callbacks run on one goroutine per subscription and never after
// unsubscribe has returned.
func (c *Client) SubscribeToCollection(name string, filter model.Filter, onSnapshot func([]model.Order), onError func(error)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	l := &liveStream{
		client:     c,
		name:       name,
		filter:     filter,
		onSnapshot: onSnapshot,
		onError:    onError,
	}
	go func() {
		defer close(done)
		l.run(ctx)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			l.closeConn()
			<-done
		})
	}
}

type liveStream struct {
	client     *Client
	name       string
	filter     model.Filter
	onSnapshot func([]model.Order)
	onError    func(error)

	mu   sync.Mutex
	conn *websocket.Conn
}

func (l *liveStream) run(ctx context.Context) {
	backoff := l.client.minBackoff
	for {
		delivered, err := l.stream(ctx)
		if ctx.Err() != nil {
			return
		}
		if delivered {
			backoff = l.client.minBackoff
		}
		if err != nil {
			log.Printf("remote: live %s %s: %v", l.name, l.filter.Value, err)
			if l.onError != nil {
				l.onError(err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > l.client.maxBackoff {
			backoff = l.client.maxBackoff
		}
	}
}

// stream holds one connection open. It reports whether at least one
// snapshot was delivered.
func (l *liveStream) stream(ctx context.Context) (bool, error) {
	conn, err := l.dial(ctx)
	if err != nil {
		return false, err
	}
	if !l.setConn(ctx, conn) {
		_ = conn.Close()
		return false, ctx.Err()
	}
	defer l.closeConn()

	delivered := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return delivered, nil
			}
			return delivered, fmt.Errorf("read: %w", err)
		}

		var msg liveMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "snapshot":
			if ctx.Err() != nil {
				return delivered, nil
			}
			orders := msg.Orders
			if orders == nil {
				orders = []model.Order{}
			}
			l.onSnapshot(orders)
			delivered = true
		case "error":
			return delivered, errors.New(msg.Error)
		}
	}
}

func (l *liveStream) dial(ctx context.Context) (*websocket.Conn, error) {
	u := *l.client.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path += "/v1/collections/" + url.PathEscape(l.name) + "/live"
	q := url.Values{}
	q.Set("field", l.filter.Field)
	q.Set("op", l.filter.Op)
	q.Set("value", l.filter.Value)
	if token := l.client.Token(); token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()

	conn, resp, err := l.client.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusUnauthorized {
				return nil, ErrUnauthorized
			}
			return nil, fmt.Errorf("dial: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("dial: %w", err)
	}
	return conn, nil
}

func (l *liveStream) setConn(ctx context.Context, conn *websocket.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	l.conn = conn
	return true
}

// closeConn unblocks a pending read.
func (l *liveStream) closeConn() {
	l.mu.Lock()
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}
