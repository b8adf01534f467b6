package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

type ProtectedNotifierConfig struct {
	Timeout          time.Duration // hard timeout per send
	FailureThreshold int           // consecutive failures to open circuit
	Cooldown         time.Duration // how long to stay open before half-open
	HalfOpenMaxCalls int           // allow N trial calls in half-open
	Logger           *slog.Logger
}

// ProtectedNotifier bounds every send with a timeout and stops calling a
// provider that keeps failing, so a signup fails fast instead of hanging.
type ProtectedNotifier struct {
	inner Notifier
	cfg   ProtectedNotifierConfig
	now   func() time.Time

	mu                  sync.Mutex
	state               BreakerState
	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
}

func NewProtectedNotifier(inner Notifier, cfg ProtectedNotifierConfig) *ProtectedNotifier {
	//defaults
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &ProtectedNotifier{
		inner: inner,
		cfg:   cfg,
		now:   time.Now,
		state: BreakerClosed,
	}
}

func (n *ProtectedNotifier) SendVerificationCode(ctx context.Context, input VerificationCodeInput) error {
	if !n.allowRequest() {
		return ErrCircuitOpen
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	err := n.inner.SendVerificationCode(sendCtx, input)
	n.afterRequest(ctx, err)

	return err
}

// State is reported by the readiness endpoint.
func (n *ProtectedNotifier) State() BreakerState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *ProtectedNotifier) allowRequest() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if n.now().Sub(n.openedAt) < n.cfg.Cooldown {
			return false
		}
		n.state = BreakerHalfOpen
		n.halfOpenInFlight = 1
		return true
	case BreakerHalfOpen:
		if n.halfOpenInFlight >= n.cfg.HalfOpenMaxCalls {
			return false
		}
		n.halfOpenInFlight++
		return true
	default:
		return true
	}
}

func (n *ProtectedNotifier) afterRequest(ctx context.Context, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == BreakerHalfOpen && n.halfOpenInFlight > 0 {
		n.halfOpenInFlight--
	}

	if err == nil {
		if n.state != BreakerClosed {
			n.cfg.Logger.InfoContext(ctx, "email circuit closed")
		}
		n.consecutiveFailures = 0
		n.state = BreakerClosed
		return
	}

	n.consecutiveFailures++

	// a failed trial call reopens immediately
	if n.state == BreakerHalfOpen || n.consecutiveFailures >= n.cfg.FailureThreshold {
		if n.state != BreakerOpen {
			n.cfg.Logger.WarnContext(ctx, "email circuit opened", "failures", n.consecutiveFailures, "err", err)
		}
		n.state = BreakerOpen
		n.openedAt = n.now()
	}
}
