package signup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/teamflow/internal/cache"
	"github.com/geocoder89/teamflow/internal/domain/account"
	"github.com/geocoder89/teamflow/internal/notifications"
	"github.com/geocoder89/teamflow/internal/security"
	"github.com/geocoder89/teamflow/internal/session"
)

type memAccounts struct {
	mu   sync.Mutex
	list []account.Account
}

func (m *memAccounts) Accounts(context.Context) []account.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]account.Account(nil), m.list...)
}

func (m *memAccounts) SaveAccounts(_ context.Context, accounts []account.Account) {
	m.mu.Lock()
	m.list = append([]account.Account(nil), accounts...)
	m.mu.Unlock()
}

type fakeSessions struct {
	established []account.Account
}

func (f *fakeSessions) Establish(_ context.Context, acc account.Account) (session.State, string, error) {
	f.established = append(f.established, acc)
	safe := acc.Sanitized()
	return session.State{User: &safe, IsAuthenticated: true}, "token-" + acc.ID, nil
}

type fakeNotifier struct {
	sendFn func(in notifications.VerificationCodeInput) error
	sent   []notifications.VerificationCodeInput
}

func (f *fakeNotifier) SendVerificationCode(_ context.Context, in notifications.VerificationCodeInput) error {
	f.sent = append(f.sent, in)
	if f.sendFn != nil {
		return f.sendFn(in)
	}
	return nil
}

type fixture struct {
	flow     *Flow
	accounts *memAccounts
	sessions *fakeSessions
	notifier *fakeNotifier
}

func newFixture(existing ...account.Account) *fixture {
	fx := &fixture{
		accounts: &memAccounts{list: existing},
		sessions: &fakeSessions{},
		notifier: &fakeNotifier{},
	}
	fx.flow = NewFlow(fx.accounts, fx.sessions, fx.notifier,
		MailConfig{ServiceID: "team_flow", TemplateID: "tpl", CompanyName: "TeamFlow"},
		time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	codes := 0
	fx.flow.newCode = func() (string, error) {
		codes++
		return strconv.Itoa(111110 + codes), nil
	}
	return fx
}

var aliceForm = Form{Name: "Alice", Username: "alice", Email: "alice@example.com", Password: "pw1234"}

func TestFirstSignupBecomesVerifiedAdmin(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()

	if !fx.flow.IsFirstUser(ctx) {
		t.Fatalf("empty collection must report first user")
	}

	ticket, err := fx.flow.Submit(ctx, aliceForm)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if ticket.ID == "" || ticket.Email != "alice@example.com" || ticket.ExpiresIn != 60 {
		t.Fatalf("unexpected ticket %+v", ticket)
	}

	if len(fx.notifier.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(fx.notifier.sent))
	}
	mail := fx.notifier.sent[0]
	if mail.Code != "111111" || mail.Email != "alice@example.com" || mail.ServiceID != "team_flow" || mail.CompanyName != "TeamFlow" {
		t.Fatalf("unexpected mail %+v", mail)
	}
	if len(fx.accounts.list) != 0 {
		t.Fatalf("nothing may be persisted before verification")
	}

	st, token, err := fx.flow.Verify(ctx, ticket.ID, "111111")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if token == "" || !st.IsAuthenticated || st.User.Username != "alice" {
		t.Fatalf("unexpected session %+v", st)
	}

	saved := fx.accounts.list
	if len(saved) != 1 || saved[0].Role != account.RoleAdmin || !saved[0].IsVerified {
		t.Fatalf("unexpected saved accounts %+v", saved)
	}
	if !security.Matches(saved[0].Password, "pw1234") || saved[0].Password == "pw1234" {
		t.Fatalf("secret must be stored hashed")
	}

	if _, _, err := fx.flow.Verify(ctx, ticket.ID, "111111"); !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("ticket must be single use, got %v", err)
	}
}

func TestLaterSignupIsMember(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(account.Account{ID: "u1", Username: "root", Email: "root@example.com", Role: account.RoleAdmin, IsVerified: true})

	if fx.flow.IsFirstUser(ctx) {
		t.Fatalf("populated collection is not first user")
	}

	ticket, err := fx.flow.Submit(ctx, aliceForm)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, _, err := fx.flow.Verify(ctx, ticket.ID, "111111"); err != nil {
		t.Fatalf("verify: %v", err)
	}

	if len(fx.accounts.list) != 2 || fx.accounts.list[1].Role != account.RoleMember {
		t.Fatalf("unexpected accounts %+v", fx.accounts.list)
	}
}

func TestSubmitDuplicates(t *testing.T) {
	existing := account.Account{ID: "u1", Username: "alice", Email: "taken@example.com"}

	tests := []struct {
		name string
		form Form
		want error
	}{
		{name: "username", form: Form{Username: "alice", Email: "new@example.com"}, want: ErrDuplicateUsername},
		{name: "email", form: Form{Username: "other", Email: "taken@example.com"}, want: ErrDuplicateEmail},
		{name: "both reports username", form: Form{Username: "alice", Email: "taken@example.com"}, want: ErrDuplicateUsername},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(existing)
			if _, err := fx.flow.Submit(context.Background(), tt.form); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if len(fx.notifier.sent) != 0 {
				t.Fatalf("no email may be sent for a rejected form")
			}
		})
	}
}

func TestSubmitDeliveryFailureKeepsNothing(t *testing.T) {
	fx := newFixture()
	fx.notifier.sendFn = func(notifications.VerificationCodeInput) error { return errors.New("smtp down") }

	if _, err := fx.flow.Submit(context.Background(), aliceForm); !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
	if fx.flow.pending.Len() != 0 {
		t.Fatalf("failed delivery must not park a signup")
	}
}

func TestVerifyWrongCode(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()

	ticket, err := fx.flow.Submit(ctx, aliceForm)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, _, err := fx.flow.Verify(ctx, ticket.ID, "999999"); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("expected ErrCodeMismatch, got %v", err)
	}
	// still in the verify step
	if _, _, err := fx.flow.Verify(ctx, ticket.ID, "111111"); err != nil {
		t.Fatalf("correct code after a miss should pass, got %v", err)
	}
	if len(fx.sessions.established) != 1 {
		t.Fatalf("expected one session, got %d", len(fx.sessions.established))
	}
}

func TestResendReplacesCode(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()

	ticket, err := fx.flow.Submit(ctx, aliceForm)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	fx.notifier.sendFn = func(notifications.VerificationCodeInput) error { return errors.New("smtp down") }
	if err := fx.flow.Resend(ctx, ticket.ID); !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}

	if _, _, err := fx.flow.Verify(ctx, ticket.ID, "111111"); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("old code must be replaced, got %v", err)
	}
	if _, _, err := fx.flow.Verify(ctx, ticket.ID, "111112"); err != nil {
		t.Fatalf("new code should verify, got %v", err)
	}
}

func TestResendAndCancelUnknownTicket(t *testing.T) {
	fx := newFixture()

	if err := fx.flow.Resend(context.Background(), "nope"); !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("expected ErrTicketNotFound, got %v", err)
	}
	if err := fx.flow.Cancel("nope"); !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("expected ErrTicketNotFound, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()

	ticket, err := fx.flow.Submit(ctx, aliceForm)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := fx.flow.Cancel(ticket.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, _, err := fx.flow.Verify(ctx, ticket.ID, "111111"); !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("expected ErrTicketNotFound after cancel, got %v", err)
	}
}

func TestSweepDropsExpiredTickets(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	fx.flow.pending = cache.New[pending](200 * time.Millisecond)

	stale, err := fx.flow.Submit(ctx, aliceForm)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	time.Sleep(250 * time.Millisecond)

	bob := Form{Name: "Bob", Username: "bob", Email: "bob@example.com", Password: "pw1234"}
	if _, err := fx.flow.Submit(ctx, bob); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if n := fx.flow.Sweep(ctx); n != 1 {
		t.Fatalf("expected 1 dropped signup, got %d", n)
	}
	if fx.flow.pending.Len() != 1 {
		t.Fatalf("live ticket must survive the sweep, %d parked", fx.flow.pending.Len())
	}
	if _, _, err := fx.flow.Verify(ctx, stale.ID, "111111"); !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("expected ErrTicketNotFound, got %v", err)
	}
}

func TestRunSweepsUntilCancelled(t *testing.T) {
	fx := newFixture()
	fx.flow.pending = cache.New[pending](10 * time.Millisecond)

	if _, err := fx.flow.Submit(context.Background(), aliceForm); err != nil {
		t.Fatalf("submit: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		fx.flow.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for fx.flow.pending.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("abandoned signup was never swept")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("sweeper did not stop on cancel")
	}
}

func TestGenerateCodeRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		n, err := strconv.Atoi(code)
		if err != nil || len(code) != 6 || n < 100000 || n > 999999 {
			t.Fatalf("code out of range: %q", code)
		}
	}
}
