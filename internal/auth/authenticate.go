package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/boilerswap/backend/internal/metrics"
	"github.com/boilerswap/backend/internal/pending"
	"github.com/boilerswap/backend/internal/token"
)

// Authenticate starts a login or signup flow. On success it stores a
// pending record under a fresh identifier, dispatches the one-time code by
// email out of band, and returns the cookie set carrying the identifier.
//
// Recovery never enters here: Forgot has its own entry point and Update
// only ever exists as the second recovery step, so both are rejected as
// invalid credentials rather than malformed input.
func (e *Engine) Authenticate(ctx context.Context, email, password string, flow Flow) ([]*http.Cookie, error) {
	if flow != FlowLogin && flow != FlowSignup {
		e.metrics.Inc(metrics.AuthenticateRejected)
		return nil, ErrInvalidCredentials
	}
	if err := e.validateEmail(email); err != nil {
		e.metrics.Inc(metrics.AuthenticateRejected)
		return nil, err
	}
	if err := e.validatePassword(password); err != nil {
		e.metrics.Inc(metrics.AuthenticateRejected)
		return nil, err
	}

	user, err := e.users.Get(ctx, email)
	if err != nil {
		return nil, err
	}

	rec := &pending.Record{
		Email:    email,
		Action:   flow.action(),
		IssuedAt: time.Now().UnixMilli(),
	}

	switch {
	case user == nil && flow == FlowLogin:
		e.metrics.Inc(metrics.AuthenticateRejected)
		return nil, ErrInvalidCredentials

	case user == nil && flow == FlowSignup:
		// The account does not exist yet; park the hash on the record so
		// an abandoned signup leaves no durable trace.
		hash, err := e.hash(password)
		if err != nil {
			return nil, err
		}
		rec.PasswordHash = hash

	case user.Locked:
		e.metrics.Inc(metrics.AuthenticateRejected)
		return nil, ErrInvalidCredentials

	case flow == FlowSignup:
		// Account already exists. Indistinguishable from a bad login.
		e.metrics.Inc(metrics.AuthenticateRejected)
		return nil, ErrInvalidCredentials

	default:
		match, err := e.verifyHash(password, user.PasswordHash)
		if err != nil {
			return nil, err
		}
		if !match {
			e.metrics.Inc(metrics.AuthenticateRejected)
			return nil, ErrInvalidCredentials
		}
	}

	code, err := token.NewCode()
	if err != nil {
		return nil, err
	}
	rec.Code = code

	id := token.NewID()
	if err := e.pendings.Save(ctx, flow.pendingKind(), id, rec, e.config.PendingTTL); err != nil {
		return nil, err
	}

	e.mail.SendCode(email, code)
	e.metrics.Inc(metrics.AuthenticateAccepted)
	e.logger.Info("pending flow started", "flow", string(flow))

	return issueCookie(cookieAuth, id, e.config.PendingTTL), nil
}
