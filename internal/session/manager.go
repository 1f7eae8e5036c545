package session

import (
	"context"
	"log"
	"sync"
)

// Provider is the external identity provider.
type Provider interface {
	SignIn(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
}

type State struct {
	Authenticated bool
	IsSubmitting  bool
}

// Manager owns the operator's authenticated session. Only one SignIn may be
// in flight; callers prevent re-entry while State().IsSubmitting is true.
type Manager struct {
	provider Provider

	mu       sync.Mutex
	state    State
	onChange func(State)
}

func NewManager(provider Provider) *Manager {
	return &Manager{provider: provider}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnChange sets the function called after every state transition.
func (m *Manager) OnChange(fn func(State)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	var missing []string
	if email == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}

	m.update(func(s *State) { s.IsSubmitting = true })

	if err := m.provider.SignIn(ctx, email, password); err != nil {
		authErr := newAuthError(err)
		log.Printf("session: sign in failed: %v", err)
		m.update(func(s *State) {
			s.IsSubmitting = false
			s.Authenticated = false
		})
		return authErr
	}

	m.update(func(s *State) {
		s.IsSubmitting = false
		s.Authenticated = true
	})
	return nil
}

func (m *Manager) SignOut(ctx context.Context) error {
	if err := m.provider.SignOut(ctx); err != nil {
		log.Printf("session: sign out failed: %v", err)
		return &SignOutError{Err: err}
	}
	m.update(func(s *State) { s.Authenticated = false })
	return nil
}

// Expire marks the session unauthenticated after the provider reports it is
// no longer valid.
func (m *Manager) Expire() {
	m.update(func(s *State) { s.Authenticated = false })
}

func (m *Manager) update(fn func(*State)) {
	m.mu.Lock()
	before := m.state
	fn(&m.state)
	after := m.state
	onChange := m.onChange
	m.mu.Unlock()

	if onChange != nil && before != after {
		onChange(after)
	}
}
