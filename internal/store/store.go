package store

import (
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"
	"orderdesk/internal/hub"
	"orderdesk/internal/model"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderClosed        = errors.New("order already closed")
	ErrMissingClient      = errors.New("missing client")
	ErrMissingTitle       = errors.New("missing title")
	ErrEmailInUse         = errors.New("email already in use")
	ErrAccountNotFound    = errors.New("account not found")
	ErrUnknownCollection  = errors.New("unknown collection")
	ErrUnsupportedFilter  = errors.New("unsupported filter")
	ErrInvalidStatusValue = errors.New("invalid status value")
)

type Store struct {
	mu sync.RWMutex

	accountsStateFile string
	persistMu         sync.Mutex

	accountsByEmail map[string]model.Account
	revokedTokens   map[string]int64 // token id -> expiry millis

	ordersByID map[string]model.Order
	orders     *orderDB

	// notifyMu serializes snapshot delivery so every listener observes
	// snapshots in the order they were computed.
	notifyMu sync.Mutex
	live     *hub.Hub
}

type Options struct {
	AccountsStateFile string
	OrdersDBFile      string
}

func New() *Store {
	return &Store{
		accountsByEmail: make(map[string]model.Account),
		revokedTokens:   make(map[string]int64),
		ordersByID:      make(map[string]model.Order),
		live:            hub.New(),
	}
}

func NewWithOptions(opts Options) (*Store, error) {
	s := New()
	s.accountsStateFile = opts.AccountsStateFile

	if s.accountsStateFile != "" {
		if err := s.loadAccountsFromFile(s.accountsStateFile); err != nil {
			log.Printf("accounts persistence: load failed (%s): %v", s.accountsStateFile, err)
		}
	}

	if opts.OrdersDBFile != "" {
		db, err := openOrderDB(opts.OrdersDBFile)
		if err != nil {
			return nil, err
		}
		loaded, err := db.loadAll()
		if err != nil {
			_ = db.close()
			return nil, err
		}
		for _, o := range loaded {
			s.ordersByID[o.ID] = o
		}
		s.orders = db
	}

	return s, nil
}

func (s *Store) Close() error {
	if s.orders == nil {
		return nil
	}
	return s.orders.close()
}

func (s *Store) CreateAccount(email, passwordHash string, nowMillis int64) (model.Account, error) {
	if email == "" {
		return model.Account{}, errors.New("missing email")
	}

	s.mu.Lock()
	if _, ok := s.accountsByEmail[email]; ok {
		s.mu.Unlock()
		return model.Account{}, ErrEmailInUse
	}

	acc := model.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    nowMillis,
	}
	s.accountsByEmail[email] = acc

	var snapshot []model.Account
	if s.accountsStateFile != "" {
		snapshot = s.snapshotAccountsLocked()
	}
	s.mu.Unlock()
	if snapshot != nil {
		s.persistAccountsSnapshot(snapshot)
	}
	return acc, nil
}

func (s *Store) GetAccountByEmail(email string) (model.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accountsByEmail[email]
	return acc, ok
}

func (s *Store) RevokeToken(tokenID string, expiresAtMillis, nowMillis int64) {
	if tokenID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, exp := range s.revokedTokens {
		if exp <= nowMillis {
			delete(s.revokedTokens, id)
		}
	}
	s.revokedTokens[tokenID] = expiresAtMillis
}

func (s *Store) IsRevoked(tokenID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.revokedTokens[tokenID]
	return ok
}
