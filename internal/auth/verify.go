package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/boilerswap/backend/internal/keyspace"
	"github.com/boilerswap/backend/internal/metrics"
	"github.com/boilerswap/backend/internal/pending"
	"github.com/boilerswap/backend/internal/token"
)

// Verify consumes a pending record. For login and signup a matching code
// yields a session. For recovery the first round trip (forgot cookie plus
// code) yields an update cookie and no session; the second (update cookie
// plus the replacement password) unfreezes the account and yields a session.
//
// Every rejection is the same error. A held attempt lock, a missing or
// expired record, a frozen login and a plain wrong code must all look alike
// from outside, so none of them can be used to probe state. The record is
// consumed on mismatch too; a wrong guess costs the whole flow.
func (e *Engine) Verify(ctx context.Context, value string, cookies []*http.Cookie) ([]*http.Cookie, error) {
	flow, id, found := locateFlowCookie(cookies)
	if !found {
		e.metrics.Inc(metrics.VerifyRejected)
		return nil, ErrInvalidCredentials
	}

	if flow == FlowUpdate {
		if value == "" || len(value) > e.config.MaxCredentialLen {
			e.metrics.Inc(metrics.VerifyRejected)
			return nil, ErrInvalidCredentials
		}
	} else if !token.ValidCode(value) {
		e.metrics.Inc(metrics.VerifyRejected)
		return nil, ErrInvalidCredentials
	}

	// One attempt per identifier. A held lock means another request is
	// mid-verification (or just finished) for this same record; the record
	// is left alone for that request to consume.
	acquired, err := e.locks.Acquire(ctx, keyspace.AttemptLock, id, e.config.AttemptLockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		e.metrics.Inc(metrics.VerifyRejected)
		return nil, ErrInvalidCredentials
	}

	kind := flow.pendingKind()
	rec, err := e.pendings.Get(ctx, kind, id)
	if err != nil {
		if errors.Is(err, pending.ErrNotFound) {
			e.metrics.Inc(metrics.VerifyRejected)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if rec.Action == pending.ActionLogin || rec.Action == pending.ActionSignup {
		isFrozen, err := e.frozen(ctx, rec)
		if err != nil {
			return nil, err
		}
		if isFrozen {
			// Consume the record and drop the lock with it: the code must
			// not survive for retries after recovery has intervened.
			if err := e.pendings.Delete(ctx, kind, id); err != nil {
				return nil, err
			}
			if err := e.locks.Release(ctx, keyspace.AttemptLock, id); err != nil {
				return nil, err
			}
			e.metrics.Inc(metrics.VerifyRejected)
			return nil, ErrInvalidCredentials
		}
	}

	if flow != FlowUpdate && value != rec.Code {
		if err := e.pendings.Delete(ctx, kind, id); err != nil {
			return nil, err
		}
		e.metrics.Inc(metrics.VerifyRejected)
		return nil, ErrInvalidCredentials
	}

	if err := e.pendings.Delete(ctx, kind, id); err != nil {
		return nil, err
	}

	switch rec.Action {
	case pending.ActionForgot:
		next := &pending.Record{
			Email:    rec.Email,
			Action:   pending.ActionUpdate,
			IssuedAt: time.Now().UnixMilli(),
		}
		nextID := token.NewID()
		if err := e.pendings.Save(ctx, keyspace.PendingUpdate, nextID, next, e.config.UpdateTTL); err != nil {
			return nil, err
		}
		e.metrics.Inc(metrics.VerifySucceeded)
		return issueCookie(cookieUpdate, nextID, e.config.UpdateTTL), nil

	case pending.ActionUpdate:
		user, err := e.users.Get(ctx, rec.Email)
		if err != nil {
			return nil, err
		}
		if user == nil {
			e.metrics.Inc(metrics.VerifyRejected)
			return nil, ErrInvalidCredentials
		}
		if err := e.unfreeze(ctx, rec.Email, value); err != nil {
			return nil, err
		}

	case pending.ActionSignup:
		// The identity becomes durable only now; an abandoned signup never
		// touched the user store.
		if err := e.users.Insert(ctx, rec.Email, rec.PasswordHash); err != nil {
			return nil, err
		}
	}

	sessionID := token.NewID()
	if err := e.sessions.Insert(ctx, rec.Email, sessionID, e.config.SessionTTL); err != nil {
		return nil, err
	}

	e.metrics.Inc(metrics.VerifySucceeded)
	e.metrics.Inc(metrics.SessionsCreated)
	e.logger.Info("session issued", "flow", string(rec.Action))

	return issueCookie(cookieSession, sessionID, e.config.SessionTTL), nil
}

// locateFlowCookie picks the single pending cookie a verification applies
// to. Recovery outranks login/signup, which outranks update; a request
// carrying more than one flow cookie is malformed and the precedence rule
// just makes the choice deterministic.
func locateFlowCookie(cookies []*http.Cookie) (Flow, string, bool) {
	byName := make(map[string]string, len(cookies))
	for _, c := range cookies {
		if c != nil && c.Value != "" {
			byName[c.Name] = c.Value
		}
	}

	if id, ok := byName[cookieForgot]; ok {
		return FlowForgot, id, true
	}
	if id, ok := byName[cookieAuth]; ok {
		return FlowLogin, id, true
	}
	if id, ok := byName[cookieUpdate]; ok {
		return FlowUpdate, id, true
	}
	return "", "", false
}
