// Package app holds the loaded collections that every screen renders from.
// Mutations replace a whole collection and hand it to the sync client.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/geocoder89/teamflow/internal/domain/account"
	"github.com/geocoder89/teamflow/internal/domain/project"
	"github.com/geocoder89/teamflow/internal/domain/task"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidStatus        = errors.New("invalid task status")
	ErrConfirmationRequired = errors.New("confirmation required")
)

// Collections is implemented by syncer.Client.
type Collections interface {
	Accounts(ctx context.Context) []account.Account
	Projects(ctx context.Context) []project.Project
	Tasks(ctx context.Context) []task.Task
	SaveAccounts(ctx context.Context, accounts []account.Account)
	SaveProjects(ctx context.Context, projects []project.Project)
	SaveTasks(ctx context.Context, tasks []task.Task)
}

type Snapshot struct {
	Accounts []account.Account
	Projects []project.Project
	Tasks    []task.Task
}

type State struct {
	store Collections
	log   *slog.Logger
	newID func() string

	mu       sync.RWMutex
	accounts []account.Account
	projects []project.Project
	tasks    []task.Task
}

func New(store Collections, log *slog.Logger) *State {
	if log == nil {
		log = slog.Default()
	}

	return &State{
		store: store,
		log:   log,
		newID: uuid.NewString,
	}
}

// Load fetches all three collections concurrently and swaps them in together.
func (s *State) Load(ctx context.Context) error {
	var (
		accounts []account.Account
		projects []project.Project
		tasks    []task.Task
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		accounts = s.store.Accounts(gctx)
		return nil
	})
	g.Go(func() error {
		projects = s.store.Projects(gctx)
		return nil
	})
	g.Go(func() error {
		tasks = s.store.Tasks(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	s.accounts, s.projects, s.tasks = accounts, projects, tasks
	s.mu.Unlock()

	s.log.DebugContext(ctx, "collections loaded", "accounts", len(accounts), "projects", len(projects), "tasks", len(tasks))
	return nil
}

// Reload is the manual refresh.
func (s *State) Reload(ctx context.Context) error {
	return s.Load(ctx)
}

// Snapshot returns copies that callers may keep.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Accounts: cloneOrEmpty(s.accounts),
		Projects: cloneOrEmpty(s.projects),
		Tasks:    cloneOrEmpty(s.tasks),
	}
}

func (s *State) CreateProject(ctx context.Context, owner account.Account, req project.CreateProjectRequest) project.Project {
	p := project.Project{
		ID:          s.newID(),
		Name:        req.Name,
		OwnerID:     owner.ID,
		OwnerName:   owner.Name,
		Client:      req.Client,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Description: req.Description,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := append(cloneOrEmpty(s.projects), p)
	s.store.SaveProjects(ctx, next)
	s.projects = next

	return p
}

// CreateTask adds a todo task to projectID, copying the project's name and
// client onto the task.
func (s *State) CreateTask(ctx context.Context, owner account.Account, projectID string, req task.CreateTaskRequest) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := indexOf(s.projects, func(p project.Project) bool { return p.ID == projectID })
	if idx < 0 {
		return task.Task{}, ErrNotFound
	}
	p := s.projects[idx]

	t := task.Task{
		ID:          s.newID(),
		ProjectID:   p.ID,
		ProjectName: p.Name,
		Title:       req.Title,
		OwnerID:     owner.ID,
		OwnerName:   owner.Name,
		Client:      p.Client,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Notes:       req.Notes,
		Status:      task.StatusTodo,
	}

	next := append(cloneOrEmpty(s.tasks), t)
	s.store.SaveTasks(ctx, next)
	s.tasks = next

	return t, nil
}

func (s *State) UpdateTaskStatus(ctx context.Context, id, status string) (task.Task, error) {
	st, err := task.ParseStatus(status)
	if err != nil {
		return task.Task{}, ErrInvalidStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := indexOf(s.tasks, func(t task.Task) bool { return t.ID == id })
	if idx < 0 {
		return task.Task{}, ErrNotFound
	}

	next := cloneOrEmpty(s.tasks)
	next[idx].Status = st
	s.store.SaveTasks(ctx, next)
	s.tasks = next

	return next[idx], nil
}

func (s *State) ToggleRole(ctx context.Context, id string) (account.Account, error) {
	return s.updateAccount(ctx, id, func(a *account.Account) error {
		role, err := a.Role.Toggle()
		if err != nil {
			return err
		}
		a.Role = role
		return nil
	})
}

// VerifyAccount marks an account verified without the email step.
func (s *State) VerifyAccount(ctx context.Context, id string) (account.Account, error) {
	return s.updateAccount(ctx, id, func(a *account.Account) error {
		a.IsVerified = true
		return nil
	})
}

// DeleteAccount removes the account only. Projects and tasks it owns are kept.
func (s *State) DeleteAccount(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := indexOf(s.accounts, func(a account.Account) bool { return a.ID == id })
	if idx < 0 {
		return ErrNotFound
	}

	next := make([]account.Account, 0, len(s.accounts)-1)
	next = append(next, s.accounts[:idx]...)
	next = append(next, s.accounts[idx+1:]...)

	s.store.SaveAccounts(ctx, next)
	s.accounts = next

	s.log.InfoContext(ctx, "account deleted", "account_id", id)
	return nil
}

func (s *State) updateAccount(ctx context.Context, id string, fn func(*account.Account) error) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := indexOf(s.accounts, func(a account.Account) bool { return a.ID == id })
	if idx < 0 {
		return account.Account{}, ErrNotFound
	}

	next := cloneOrEmpty(s.accounts)
	if err := fn(&next[idx]); err != nil {
		return account.Account{}, err
	}

	s.store.SaveAccounts(ctx, next)
	s.accounts = next

	return next[idx], nil
}

func indexOf[T any](items []T, match func(T) bool) int {
	for i, it := range items {
		if match(it) {
			return i
		}
	}
	return -1
}

func cloneOrEmpty[T any](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	return out
}
