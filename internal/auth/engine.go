package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/boilerswap/backend/internal/account"
	"github.com/boilerswap/backend/internal/limiters"
	"github.com/boilerswap/backend/internal/metrics"
	"github.com/boilerswap/backend/internal/password"
	"github.com/boilerswap/backend/internal/pending"
	"github.com/boilerswap/backend/internal/session"
)

// CodeSender delivers a one-time code to an address. Delivery happens
// off the request path; the engine never waits on it.
type CodeSender interface {
	SendCode(email, code string)
}

// Engine orchestrates the multi-step authentication flows: it owns the
// pending-action records, the session registry, the per-record attempt
// locks and the account freeze state. All operations are safe for
// concurrent use.
type Engine struct {
	config   Config
	users    account.Store
	pendings *pending.Store
	sessions *session.Store
	locks    *limiters.Lock
	hasher   *password.Hasher
	mail     CodeSender
	logger   *slog.Logger
	metrics  *metrics.Metrics

	// hashGate bounds the number of argon2 derivations in flight so a
	// burst of signups cannot exhaust memory.
	hashGate chan struct{}
}

// New wires an Engine from its dependencies. config must pass validate;
// DefaultConfig is a working baseline.
func New(config Config, users account.Store, pendings *pending.Store, sessions *session.Store,
	locks *limiters.Lock, hasher *password.Hasher, mail CodeSender,
	logger *slog.Logger, m *metrics.Metrics) (*Engine, error) {

	if err := config.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		config:   config,
		users:    users,
		pendings: pendings,
		sessions: sessions,
		locks:    locks,
		hasher:   hasher,
		mail:     mail,
		logger:   logger,
		metrics:  m,
		hashGate: make(chan struct{}, config.HashConcurrency),
	}, nil
}

// Authenticated reports whether the request carries a live session cookie.
// Only the liveness key is consulted; sorted-set membership proves nothing.
func (e *Engine) Authenticated(ctx context.Context, cookies []*http.Cookie) (bool, error) {
	for _, c := range cookies {
		if c == nil || c.Name != cookieSession || c.Value == "" {
			continue
		}
		return e.sessions.IsLive(ctx, c.Value)
	}
	return false, nil
}

// hash derives an argon2id hash while holding a gate slot, keeping the
// number of concurrent derivations under config.HashConcurrency.
func (e *Engine) hash(plain string) (string, error) {
	e.hashGate <- struct{}{}
	defer func() { <-e.hashGate }()
	return e.hasher.Hash(plain)
}

// verifyHash checks plain against an encoded hash under the same gate.
func (e *Engine) verifyHash(plain, encoded string) (bool, error) {
	e.hashGate <- struct{}{}
	defer func() { <-e.hashGate }()
	return e.hasher.Verify(plain, encoded)
}
