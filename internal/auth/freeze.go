package auth

import (
	"context"
	"time"

	"github.com/boilerswap/backend/internal/metrics"
	"github.com/boilerswap/backend/internal/pending"
)

// freeze locks an identity for recovery: it records the frozen-until marker,
// sets the durable locked flag and revokes every live session. Already
// locked or unknown identities are left alone; recovery still proceeds for
// them so the caller cannot probe which accounts exist or are locked.
func (e *Engine) freeze(ctx context.Context, email string) error {
	user, err := e.users.Get(ctx, email)
	if err != nil {
		return err
	}
	if user == nil || user.Locked {
		return nil
	}

	frozenUntil := time.Now().Add(e.config.FreezeGrace)
	if err := e.pendings.SetFreezeStamp(ctx, email, frozenUntil, e.config.FreezeStampTTL); err != nil {
		return err
	}
	if err := e.users.SetLocked(ctx, email, true); err != nil {
		return err
	}
	if err := e.sessions.RevokeAll(ctx, email); err != nil {
		return err
	}

	e.metrics.Inc(metrics.AccountsFrozen)
	e.metrics.Inc(metrics.SessionsRevoked)
	e.logger.Info("account frozen for recovery")
	return nil
}

// unfreeze completes recovery: it hashes the replacement password and
// atomically clears the locked flag while installing the new hash. The two
// writes travel together; recovery must never unlock an account that still
// answers to the old credential.
func (e *Engine) unfreeze(ctx context.Context, email, newPassword string) error {
	hash, err := e.hash(newPassword)
	if err != nil {
		return err
	}
	return e.users.Unlock(ctx, email, hash)
}

// frozen reports whether a login or signup record must be rejected because
// recovery intervened: either the durable locked flag is set, or the record
// was issued before the frozen-until marker. The marker outlives the grace
// window so a record created an instant before recovery began still fails.
func (e *Engine) frozen(ctx context.Context, rec *pending.Record) (bool, error) {
	user, err := e.users.Get(ctx, rec.Email)
	if err != nil {
		return false, err
	}
	if user != nil && user.Locked {
		return true, nil
	}

	stamp, ok, err := e.pendings.FreezeStamp(ctx, rec.Email)
	if err != nil {
		return false, err
	}
	return ok && rec.IssuedAt < stamp, nil
}
