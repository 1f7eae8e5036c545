package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"orderdesk/internal/model"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

// ProviderError is a non-2xx answer from the server. Code carries the
// identity provider code when the server sent one.
type ProviderError struct {
	Status  int
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("remote: %d: %s", e.Status, e.Message)
}

func (e *ProviderError) ProviderCode() string { return e.Code }

func (e *ProviderError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	}
	return nil
}

// Client talks to an orderdesk server. It is the session provider and the
// live query source of the terminal client.
type Client struct {
	baseURL    *url.URL
	http       *http.Client
	dialer     *websocket.Dialer
	minBackoff time.Duration
	maxBackoff time.Duration

	mu    sync.Mutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithBackoff sets the redial delay bounds of live subscriptions.
func WithBackoff(min, max time.Duration) Option {
	return func(c *Client) {
		if min > 0 {
			c.minBackoff = min
		}
		if max >= c.minBackoff {
			c.maxBackoff = max
		}
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	c := &Client{
		baseURL:    u,
		http:       &http.Client{Timeout: 15 * time.Second},
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) Register(ctx context.Context, email, password string) error {
	return c.do(ctx, http.MethodPost, "/v1/accounts", credentials{Email: email, Password: password}, nil)
}

func (c *Client) SignIn(ctx context.Context, email, password string) error {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/signin", credentials{Email: email, Password: password}, &resp); err != nil {
		return err
	}
	if resp.Token == "" {
		return errors.New("remote: sign in returned no token")
	}
	c.setToken(resp.Token)
	return nil
}

// SignOut revokes the current token. A token the server already rejects
// counts as signed out.
func (c *Client) SignOut(ctx context.Context) error {
	if c.Token() == "" {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/v1/auth/signout", nil, nil)
	if err != nil && !errors.Is(err, ErrUnauthorized) {
		return err
	}
	c.setToken("")
	return nil
}

type Me struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (c *Client) Me(ctx context.Context) (Me, error) {
	var me Me
	err := c.do(ctx, http.MethodGet, "/v1/me", nil, &me)
	return me, err
}

type orderResponse struct {
	Order model.Order `json:"order"`
}

func (c *Client) CreateOrder(ctx context.Context, client, title, description string) (model.Order, error) {
	body := map[string]string{"client": client, "title": title, "description": description}
	var resp orderResponse
	err := c.do(ctx, http.MethodPost, "/v1/orders", body, &resp)
	return resp.Order, err
}

func (c *Client) GetOrder(ctx context.Context, id string) (model.Order, error) {
	var resp orderResponse
	err := c.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(id), nil, &resp)
	return resp.Order, err
}

func (c *Client) CloseOrder(ctx context.Context, id string) (model.Order, error) {
	var resp orderResponse
	err := c.do(ctx, http.MethodPost, "/v1/orders/"+url.PathEscape(id)+"/close", nil, &resp)
	return resp.Order, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("remote: decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(status int, raw []byte) error {
	var payload struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	_ = json.Unmarshal(raw, &payload)
	if payload.Error == "" {
		payload.Error = http.StatusText(status)
	}
	return &ProviderError{Status: status, Code: payload.Code, Message: payload.Error}
}
