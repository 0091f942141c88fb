package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/boilerswap/backend/internal/keyspace"
	"github.com/boilerswap/backend/internal/metrics"
	"github.com/boilerswap/backend/internal/pending"
	"github.com/boilerswap/backend/internal/token"
)

// Forgot starts credential recovery. The account is frozen immediately, not
// at verification time, so the window between "recovery requested" and
// "code entered" already has every session revoked and every concurrent
// login rejected. A recovery record is issued whether or not the identity
// exists or was already locked; the response is identical in all cases.
func (e *Engine) Forgot(ctx context.Context, email string) ([]*http.Cookie, error) {
	if err := e.validateEmail(email); err != nil {
		e.metrics.Inc(metrics.AuthenticateRejected)
		return nil, ErrInvalidCredentials
	}

	if err := e.freeze(ctx, email); err != nil {
		return nil, err
	}

	code, err := token.NewCode()
	if err != nil {
		return nil, err
	}
	rec := &pending.Record{
		Email:    email,
		Action:   pending.ActionForgot,
		Code:     code,
		IssuedAt: time.Now().UnixMilli(),
	}

	id := token.NewID()
	if err := e.pendings.Save(ctx, keyspace.PendingForgot, id, rec, e.config.PendingTTL); err != nil {
		return nil, err
	}

	e.mail.SendCode(email, code)
	e.metrics.Inc(metrics.AuthenticateAccepted)
	e.logger.Info("recovery flow started")

	return issueCookie(cookieForgot, id, e.config.PendingTTL), nil
}
