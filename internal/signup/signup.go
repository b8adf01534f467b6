// Package signup runs the two-step account creation: a submitted form is
// parked under a ticket until the emailed code is confirmed.
package signup

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/geocoder89/teamflow/internal/cache"
	"github.com/geocoder89/teamflow/internal/domain/account"
	"github.com/geocoder89/teamflow/internal/notifications"
	"github.com/geocoder89/teamflow/internal/security"
	"github.com/geocoder89/teamflow/internal/session"
	"github.com/google/uuid"
)

var (
	ErrDuplicateUsername = errors.New("username already in use")
	ErrDuplicateEmail    = errors.New("email already in use")
	ErrCodeMismatch      = errors.New("verification code does not match")
	ErrDeliveryFailed    = errors.New("verification email could not be sent")
	ErrTicketNotFound    = errors.New("signup ticket not found or expired")
)

type Form struct {
	Name     string `json:"name" binding:"required,max=80"`
	Username string `json:"username" binding:"required,min=3,max=40"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=4,max=128"`
}

type VerifyRequest struct {
	Code string `json:"code" binding:"required,len=6,numeric"`
}

// Accounts is the account collection as seen through the sync client.
type Accounts interface {
	Accounts(ctx context.Context) []account.Account
	SaveAccounts(ctx context.Context, accounts []account.Account)
}

type Sessions interface {
	Establish(ctx context.Context, acc account.Account) (session.State, string, error)
}

type MailConfig struct {
	ServiceID   string
	TemplateID  string
	CompanyName string
}

type pending struct {
	account account.Account
	code    string
}

// Ticket is what the caller needs to continue a parked signup.
type Ticket struct {
	ID        string `json:"ticket"`
	Email     string `json:"email"`
	ExpiresIn int    `json:"expiresInSeconds"`
}

type Flow struct {
	accounts Accounts
	sessions Sessions
	notifier notifications.Notifier
	mail     MailConfig
	ttl      time.Duration
	pending  *cache.Cache[pending]
	log      *slog.Logger

	newCode func() (string, error)
	newID   func() string
}

func NewFlow(accounts Accounts, sessions Sessions, notifier notifications.Notifier, mail MailConfig, ttl time.Duration, log *slog.Logger) *Flow {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}

	return &Flow{
		accounts: accounts,
		sessions: sessions,
		notifier: notifier,
		mail:     mail,
		ttl:      ttl,
		pending:  cache.New[pending](ttl),
		log:      log,
		newCode:  generateCode,
		newID:    uuid.NewString,
	}
}

// IsFirstUser reports whether the next verified signup becomes the admin.
func (f *Flow) IsFirstUser(ctx context.Context) bool {
	return len(f.accounts.Accounts(ctx)) == 0
}

// Submit validates uniqueness, mails a code and parks the signup.
// Nothing is kept when the mail cannot be delivered.
func (f *Flow) Submit(ctx context.Context, form Form) (Ticket, error) {
	existing := f.accounts.Accounts(ctx)

	for _, acc := range existing {
		if acc.Username == form.Username {
			return Ticket{}, ErrDuplicateUsername
		}
	}
	for _, acc := range existing {
		if acc.Email == form.Email {
			return Ticket{}, ErrDuplicateEmail
		}
	}

	hash, err := security.HashPassword(form.Password)
	if err != nil {
		return Ticket{}, fmt.Errorf("hash secret: %w", err)
	}

	code, err := f.newCode()
	if err != nil {
		return Ticket{}, fmt.Errorf("generate code: %w", err)
	}

	role := account.RoleMember
	if len(existing) == 0 {
		role = account.RoleAdmin
	}

	acc := account.Account{
		ID:         f.newID(),
		Username:   form.Username,
		Email:      form.Email,
		Name:       form.Name,
		Role:       role,
		IsVerified: false,
		Password:   hash,
	}

	if err := f.send(ctx, acc, code); err != nil {
		return Ticket{}, err
	}

	ticket := f.newID()
	f.pending.Set(ticket, pending{account: acc, code: code})

	f.log.InfoContext(ctx, "signup pending verification", "ticket", ticket, "username", acc.Username, "role", acc.Role)

	return Ticket{ID: ticket, Email: acc.Email, ExpiresIn: int(f.ttl.Seconds())}, nil
}

// Verify completes a parked signup when code matches exactly.
func (f *Flow) Verify(ctx context.Context, ticket, code string) (session.State, string, error) {
	p, ok := f.pending.Get(ticket)
	if !ok {
		return session.State{}, "", ErrTicketNotFound
	}
	if code != p.code {
		return session.State{}, "", ErrCodeMismatch
	}

	acc := p.account
	acc.IsVerified = true

	// re-read so accounts created while this signup was parked are kept
	accounts := f.accounts.Accounts(ctx)
	accounts = append(accounts, acc)
	f.accounts.SaveAccounts(ctx, accounts)

	f.pending.Delete(ticket)

	st, token, err := f.sessions.Establish(ctx, acc)
	if err != nil {
		return session.State{}, "", err
	}

	f.log.InfoContext(ctx, "signup verified", "account_id", acc.ID, "role", acc.Role)
	return st, token, nil
}

// Resend mails a fresh code. The fresh code replaces the old one even when
// delivery fails.
func (f *Flow) Resend(ctx context.Context, ticket string) error {
	code, err := f.newCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	var acc account.Account
	ok := f.pending.Update(ticket, func(p pending) pending {
		p.code = code
		acc = p.account
		return p
	})
	if !ok {
		return ErrTicketNotFound
	}

	return f.send(ctx, acc, code)
}

// Cancel drops a parked signup so the form can be filled in again.
func (f *Flow) Cancel(ticket string) error {
	if _, ok := f.pending.Get(ticket); !ok {
		return ErrTicketNotFound
	}
	f.pending.Delete(ticket)
	return nil
}

// Sweep drops parked signups whose ticket expired without being verified or
// cancelled, and returns how many went.
func (f *Flow) Sweep(ctx context.Context) int {
	n := f.pending.Sweep()
	if n > 0 {
		f.log.InfoContext(ctx, "expired signups dropped", "count", n, "parked", f.pending.Len())
	}
	return n
}

// Run sweeps abandoned signups every interval until ctx is done.
func (f *Flow) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.log.Debug("signup sweeper stopped")
			return

		case <-ticker.C:
			f.Sweep(ctx)
		}
	}
}

func (f *Flow) send(ctx context.Context, acc account.Account, code string) error {
	err := f.notifier.SendVerificationCode(ctx, notifications.VerificationCodeInput{
		ServiceID:   f.mail.ServiceID,
		TemplateID:  f.mail.TemplateID,
		Name:        acc.Name,
		Email:       acc.Email,
		Code:        code,
		CompanyName: f.mail.CompanyName,
	})
	if err != nil {
		f.log.ErrorContext(ctx, "verification email failed", "email", acc.Email, "err", err)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

// generateCode returns a uniformly random six digit code in [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
