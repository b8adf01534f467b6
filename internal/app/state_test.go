package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/teamflow/internal/app"
	"github.com/geocoder89/teamflow/internal/auth"
	"github.com/geocoder89/teamflow/internal/domain/account"
	"github.com/geocoder89/teamflow/internal/domain/project"
	"github.com/geocoder89/teamflow/internal/domain/task"
	"github.com/geocoder89/teamflow/internal/localcache"
	"github.com/geocoder89/teamflow/internal/notifications"
	"github.com/geocoder89/teamflow/internal/session"
	"github.com/geocoder89/teamflow/internal/signup"
	"github.com/geocoder89/teamflow/internal/syncer"
	"github.com/geocoder89/teamflow/internal/views"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type codeCatcher struct {
	mu   sync.Mutex
	last string
}

func (c *codeCatcher) SendVerificationCode(_ context.Context, in notifications.VerificationCodeInput) error {
	c.mu.Lock()
	c.last = in.Code
	c.mu.Unlock()
	return nil
}

func newSyncer(t *testing.T) *syncer.Client {
	t.Helper()
	return syncer.New(localcache.NewMemoryStore(), nil, syncer.Options{Logger: quietLogger()})
}

func seeded(t *testing.T, accounts ...account.Account) (*app.State, *syncer.Client) {
	t.Helper()
	ctx := context.Background()

	sc := newSyncer(t)
	sc.SaveAccounts(ctx, accounts)
	sc.SaveProjects(ctx, []project.Project{{ID: "p1", Name: "P1", Client: "Acme"}})

	st := app.New(sc, quietLogger())
	if err := st.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	return st, sc
}

func TestEndToEndFirstAdminScenario(t *testing.T) {
	ctx := context.Background()
	sc := newSyncer(t)
	mailer := &codeCatcher{}

	sessions := session.NewManager(localcache.NewMemoryStore(), "teamflow_auth", sc, auth.NewManager("secret", time.Hour), quietLogger())
	flow := signup.NewFlow(sc, sessions, mailer, signup.MailConfig{}, time.Minute, quietLogger())

	ticket, err := flow.Submit(ctx, signup.Form{Name: "Alice", Username: "alice", Email: "alice@example.com", Password: "pw1234"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, _, err := flow.Verify(ctx, ticket.ID, mailer.last); err != nil {
		t.Fatalf("verify: %v", err)
	}

	sessions.Logout(ctx)
	cur, _, err := sessions.Login(ctx, "alice", "pw1234")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if cur.User.Role != account.RoleAdmin {
		t.Fatalf("first user must be admin, got %s", cur.User.Role)
	}

	state := app.New(sc, quietLogger())
	if err := state.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	p := state.CreateProject(ctx, *cur.User, project.CreateProjectRequest{Name: "P1", Client: "Acme", StartDate: "2024-01-01", EndDate: "2024-01-10"})
	tk, err := state.CreateTask(ctx, *cur.User, p.ID, task.CreateTaskRequest{Title: "T1", StartDate: "2024-01-02", EndDate: "2024-01-03"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if tk.ProjectName != "P1" || tk.Client != "Acme" || tk.Status != task.StatusTodo || tk.OwnerName != "Alice" {
		t.Fatalf("unexpected task %+v", tk)
	}

	snap := state.Snapshot()
	if got := views.Summarize(snap.Projects, snap.Tasks); got != (views.Summary{TotalProjects: 1, PendingTasks: 1, DoneTasks: 0}) {
		t.Fatalf("unexpected summary %+v", got)
	}

	if _, err := state.UpdateTaskStatus(ctx, tk.ID, "done"); err != nil {
		t.Fatalf("update status: %v", err)
	}

	snap = state.Snapshot()
	if got := views.Summarize(snap.Projects, snap.Tasks); got != (views.Summary{TotalProjects: 1, PendingTasks: 0, DoneTasks: 1}) {
		t.Fatalf("unexpected summary %+v", got)
	}

	// a fresh load sees what was written through the cache
	reloaded := app.New(sc, quietLogger())
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if ts := reloaded.Snapshot().Tasks; len(ts) != 1 || ts[0].Status != task.StatusDone {
		t.Fatalf("unexpected persisted tasks %+v", ts)
	}
}

func TestCreateTaskUnknownProject(t *testing.T) {
	st, _ := seeded(t)

	_, err := st.CreateTask(context.Background(), account.Account{ID: "u1"}, "missing", task.CreateTaskRequest{Title: "x"})
	if !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateTaskStatusErrors(t *testing.T) {
	st, _ := seeded(t)
	ctx := context.Background()

	tk, err := st.CreateTask(ctx, account.Account{ID: "u1"}, "p1", task.CreateTaskRequest{Title: "x"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := st.UpdateTaskStatus(ctx, tk.ID, "blocked"); !errors.Is(err, app.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := st.UpdateTaskStatus(ctx, "missing", "done"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdminOperations(t *testing.T) {
	ctx := context.Background()
	st, sc := seeded(t,
		account.Account{ID: "u1", Username: "alice", Role: account.RoleAdmin, IsVerified: true},
		account.Account{ID: "u2", Username: "bob", Role: account.RoleMember, IsVerified: false, Password: "pw"},
	)

	bob, err := st.ToggleRole(ctx, "u2")
	if err != nil || bob.Role != account.RoleAdmin {
		t.Fatalf("toggle: %+v %v", bob, err)
	}
	bob, err = st.ToggleRole(ctx, "u2")
	if err != nil || bob.Role != account.RoleMember {
		t.Fatalf("toggle back: %+v %v", bob, err)
	}

	bob, err = st.VerifyAccount(ctx, "u2")
	if err != nil || !bob.IsVerified {
		t.Fatalf("verify: %+v %v", bob, err)
	}

	saved := sc.Accounts(ctx)
	if len(saved) != 2 || !saved[1].IsVerified || saved[1].Password != "pw" {
		t.Fatalf("whole collection must be saved with secrets intact, got %+v", saved)
	}

	if err := st.DeleteAccount(ctx, "u2", false); !errors.Is(err, app.ErrConfirmationRequired) {
		t.Fatalf("expected ErrConfirmationRequired, got %v", err)
	}
	if err := st.DeleteAccount(ctx, "u2", true); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := st.DeleteAccount(ctx, "u2", true); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if got := sc.Accounts(ctx); len(got) != 1 || got[0].ID != "u1" {
		t.Fatalf("unexpected accounts after delete %+v", got)
	}
	if _, err := st.ToggleRole(ctx, "missing"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestToggleRoleRejectsUnknownRole(t *testing.T) {
	st, _ := seeded(t, account.Account{ID: "u1", Role: "owner"})

	if _, err := st.ToggleRole(context.Background(), "u1"); !errors.Is(err, account.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestDeleteAccountKeepsOwnedWork(t *testing.T) {
	ctx := context.Background()
	st, _ := seeded(t, account.Account{ID: "u1", Name: "Alice"})

	if _, err := st.CreateTask(ctx, account.Account{ID: "u1", Name: "Alice"}, "p1", task.CreateTaskRequest{Title: "x"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.DeleteAccount(ctx, "u1", true); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if got := st.Snapshot().Tasks; len(got) != 1 || got[0].OwnerName != "Alice" {
		t.Fatalf("tasks must survive account deletion, got %+v", got)
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	st, _ := seeded(t)

	snap := st.Snapshot()
	snap.Projects[0].Name = "changed"

	if st.Snapshot().Projects[0].Name != "P1" {
		t.Fatalf("snapshot mutation leaked into state")
	}
	if snap.Accounts == nil || snap.Tasks == nil {
		t.Fatalf("empty collections must be non-nil")
	}
}
