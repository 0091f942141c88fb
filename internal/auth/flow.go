package auth

import (
	"github.com/boilerswap/backend/internal/keyspace"
	"github.com/boilerswap/backend/internal/pending"
)

// Flow is the authentication step a request belongs to.
type Flow string

const (
	FlowLogin  Flow = "login"
	FlowSignup Flow = "signup"
	FlowForgot Flow = "forgot"
	FlowUpdate Flow = "update"
)

// ParseFlow maps a request payload value to a Flow. ok is false for
// anything outside the closed set.
func ParseFlow(s string) (Flow, bool) {
	switch Flow(s) {
	case FlowLogin, FlowSignup, FlowForgot, FlowUpdate:
		return Flow(s), true
	default:
		return "", false
	}
}

func (f Flow) action() pending.Action {
	switch f {
	case FlowLogin:
		return pending.ActionLogin
	case FlowSignup:
		return pending.ActionSignup
	case FlowForgot:
		return pending.ActionForgot
	default:
		return pending.ActionUpdate
	}
}

// pendingKind returns the keyspace kind a flow's pending records live under.
// Login and signup share the auth namespace; the record's action tells them
// apart.
func (f Flow) pendingKind() keyspace.Kind {
	switch f {
	case FlowForgot:
		return keyspace.PendingForgot
	case FlowUpdate:
		return keyspace.PendingUpdate
	default:
		return keyspace.PendingAuth
	}
}

// Cookie names are the pending key prefixes; the cookie value is the record
// identifier under that prefix.
var (
	cookieAuth    = keyspace.PendingAuth.Prefix()
	cookieForgot  = keyspace.PendingForgot.Prefix()
	cookieUpdate  = keyspace.PendingUpdate.Prefix()
	cookieSession = keyspace.Session.Prefix()
)
