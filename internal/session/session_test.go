package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/geocoder89/teamflow/internal/auth"
	"github.com/geocoder89/teamflow/internal/domain/account"
	"github.com/geocoder89/teamflow/internal/localcache"
	"github.com/geocoder89/teamflow/internal/security"
)

type fakeAccounts struct {
	listFn func(ctx context.Context) []account.Account
}

func (f fakeAccounts) Accounts(ctx context.Context) []account.Account { return f.listFn(ctx) }

func staticAccounts(list ...account.Account) fakeAccounts {
	return fakeAccounts{listFn: func(context.Context) []account.Account { return list }}
}

func newTestManager(store localcache.Store, src AccountSource) *Manager {
	return NewManager(store, "teamflow_auth", src, auth.NewManager("test-secret", time.Hour), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLogin(t *testing.T) {
	hashed, err := security.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	src := staticAccounts(
		account.Account{ID: "u1", Username: "alice", Role: account.RoleAdmin, IsVerified: true, Password: hashed},
		account.Account{ID: "u2", Username: "bob", Role: account.RoleMember, IsVerified: true, Password: "plain"},
		account.Account{ID: "u3", Username: "carol", Role: account.RoleMember, IsVerified: false, Password: "pw"},
	)

	tests := []struct {
		name     string
		username string
		secret   string
		wantErr  error
		wantID   string
	}{
		{name: "hashed secret", username: "alice", secret: "hunter2", wantID: "u1"},
		{name: "legacy plain secret", username: "bob", secret: "plain", wantID: "u2"},
		{name: "wrong secret", username: "alice", secret: "nope", wantErr: ErrInvalidCredentials},
		{name: "unknown user", username: "dave", secret: "pw", wantErr: ErrInvalidCredentials},
		{name: "unverified", username: "carol", secret: "pw", wantErr: ErrUnverifiedAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(localcache.NewMemoryStore(), src)

			st, token, err := m.Login(context.Background(), tt.username, tt.secret)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if m.Current().IsAuthenticated {
					t.Fatalf("failed login must not authenticate")
				}
				return
			}

			if err != nil {
				t.Fatalf("login: %v", err)
			}
			if !st.IsAuthenticated || st.User.ID != tt.wantID {
				t.Fatalf("unexpected state %+v", st)
			}
			if st.User.Password != "" {
				t.Fatalf("session must not hold the secret")
			}
			if token == "" {
				t.Fatalf("expected an access token")
			}
		})
	}
}

func TestLoginFetchesFreshAccounts(t *testing.T) {
	calls := 0
	src := fakeAccounts{listFn: func(context.Context) []account.Account {
		calls++
		return []account.Account{{ID: "u1", Username: "alice", IsVerified: true, Password: "pw"}}
	}}
	m := newTestManager(localcache.NewMemoryStore(), src)

	_, _, _ = m.Login(context.Background(), "alice", "pw")
	_, _, _ = m.Login(context.Background(), "alice", "pw")

	if calls != 2 {
		t.Fatalf("expected a fetch per login, got %d", calls)
	}
}

func TestSessionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := localcache.NewMemoryStore()
	src := staticAccounts(account.Account{ID: "u1", Username: "alice", Name: "Alice", Role: account.RoleMember, IsVerified: true, Password: "pw"})

	first := newTestManager(store, src)
	if _, _, err := first.Login(ctx, "alice", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	raw, found, _ := store.Get(ctx, "teamflow_auth")
	if !found {
		t.Fatalf("session was not persisted")
	}
	if want := `{"user":{"id":"u1","username":"alice","email":"","name":"Alice","role":"member","isVerified":true},"isAuthenticated":true}`; raw != want {
		t.Fatalf("unexpected persisted session:\n got %s\nwant %s", raw, want)
	}

	second := newTestManager(store, src)
	st := second.Restore(ctx)
	if !st.IsAuthenticated || st.User.Username != "alice" {
		t.Fatalf("expected restored session, got %+v", st)
	}
	if _, ok := second.Active("u1"); !ok {
		t.Fatalf("restored account must be active")
	}
}

func TestRestoreCorruptValue(t *testing.T) {
	ctx := context.Background()
	store := localcache.NewMemoryStore()
	_ = store.Set(ctx, "teamflow_auth", "{not json")

	st := newTestManager(store, staticAccounts()).Restore(ctx)
	if st.IsAuthenticated || st.User != nil {
		t.Fatalf("expected signed out, got %+v", st)
	}
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	store := localcache.NewMemoryStore()
	m := newTestManager(store, staticAccounts(account.Account{ID: "u1", Username: "alice", IsVerified: true, Password: "pw"}))

	if _, _, err := m.Login(ctx, "alice", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	m.Logout(ctx)

	if m.Current().IsAuthenticated {
		t.Fatalf("expected signed out")
	}
	if _, ok := m.Active("u1"); ok {
		t.Fatalf("logged out account must not be active")
	}
	if _, found, _ := store.Get(ctx, "teamflow_auth"); found {
		t.Fatalf("persisted session must be cleared")
	}
}

func TestCurrentReturnsCopy(t *testing.T) {
	m := newTestManager(localcache.NewMemoryStore(), staticAccounts())
	if _, _, err := m.Establish(context.Background(), account.Account{ID: "u1", Name: "Alice"}); err != nil {
		t.Fatalf("establish: %v", err)
	}

	st := m.Current()
	st.User.Name = "Mallory"

	if m.Current().User.Name != "Alice" {
		t.Fatalf("caller mutation leaked into the session")
	}
}
