// Package session holds the single active identity of this workspace and
// persists it to the local cache so it survives restarts.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/geocoder89/teamflow/internal/auth"
	"github.com/geocoder89/teamflow/internal/domain/account"
	"github.com/geocoder89/teamflow/internal/localcache"
	"github.com/geocoder89/teamflow/internal/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnverifiedAccount  = errors.New("account email is not verified")
)

type State struct {
	User            *account.Account `json:"user"`
	IsAuthenticated bool             `json:"isAuthenticated"`
}

// AccountSource returns the current account collection. Implemented by syncer.Client.
type AccountSource interface {
	Accounts(ctx context.Context) []account.Account
}

type Manager struct {
	store    localcache.Store
	key      string
	accounts AccountSource
	tokens   *auth.Manager
	log      *slog.Logger

	mu    sync.RWMutex
	state State
}

func NewManager(store localcache.Store, key string, accounts AccountSource, tokens *auth.Manager, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}

	return &Manager{
		store:    store,
		key:      key,
		accounts: accounts,
		tokens:   tokens,
		log:      log,
	}
}

// Restore loads the persisted session verbatim. A missing or unreadable value
// restores as signed out.
func (m *Manager) Restore(ctx context.Context) State {
	var restored State

	raw, found, err := m.store.Get(ctx, m.key)
	switch {
	case err != nil:
		m.log.ErrorContext(ctx, "session read failed", "err", err)
	case !found:
	default:
		if err := json.Unmarshal([]byte(raw), &restored); err != nil {
			m.log.WarnContext(ctx, "persisted session is corrupt, starting signed out", "err", err)
			restored = State{}
		}
	}

	if restored.User == nil {
		restored.IsAuthenticated = false
	}

	m.mu.Lock()
	m.state = restored
	m.mu.Unlock()

	return m.Current()
}

// Login checks the credentials against a fresh copy of the account collection
// and, on success, makes that account the active session.
func (m *Manager) Login(ctx context.Context, username, secret string) (State, string, error) {
	for _, acc := range m.accounts.Accounts(ctx) {
		if acc.Username != username || !security.Matches(acc.Password, secret) {
			continue
		}
		if !acc.IsVerified {
			return State{}, "", ErrUnverifiedAccount
		}
		return m.Establish(ctx, acc)
	}

	return State{}, "", ErrInvalidCredentials
}

// Establish makes acc the active session and issues an access token for it.
func (m *Manager) Establish(ctx context.Context, acc account.Account) (State, string, error) {
	token, err := m.tokens.GenerateAccessToken(acc.ID, acc.Username, string(acc.Role))
	if err != nil {
		return State{}, "", fmt.Errorf("issue access token: %w", err)
	}

	safe := acc.Sanitized()
	m.set(ctx, State{User: &safe, IsAuthenticated: true})

	return m.Current(), token, nil
}

func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	m.state = State{}
	m.mu.Unlock()

	if err := m.store.Delete(ctx, m.key); err != nil {
		m.log.ErrorContext(ctx, "session delete failed", "err", err)
	}
}

// Current returns a copy of the active state.
func (m *Manager) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := State{IsAuthenticated: m.state.IsAuthenticated}
	if m.state.User != nil {
		u := *m.state.User
		out.User = &u
	}
	return out
}

// Active returns the session account when accountID is the one signed in.
func (m *Manager) Active(accountID string) (account.Account, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.state.IsAuthenticated || m.state.User == nil || m.state.User.ID != accountID {
		return account.Account{}, false
	}
	return *m.state.User, true
}

func (m *Manager) set(ctx context.Context, s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()

	b, err := json.Marshal(s)
	if err != nil {
		m.log.ErrorContext(ctx, "session encode failed", "err", err)
		return
	}
	if err := m.store.Set(ctx, m.key, string(b)); err != nil {
		m.log.ErrorContext(ctx, "session write failed", "err", err)
	}
}
