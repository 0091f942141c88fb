// Package metrics provides lock-free counters for the authentication core.
//
// Counters are plain atomic uint64 slots; the write path allocates nothing.
// Export formatting is the caller's concern — Snapshot returns a copy.
package metrics

import "sync/atomic"

// ID identifies one counter.
type ID uint8

const (
	AuthenticateAccepted ID = iota
	AuthenticateRejected
	VerifySucceeded
	VerifyRejected
	SessionsCreated
	SessionsRevoked
	AccountsFrozen
	Logouts

	idCount
)

var names = [idCount]string{
	AuthenticateAccepted: "authenticate_accepted",
	AuthenticateRejected: "authenticate_rejected",
	VerifySucceeded:      "verify_succeeded",
	VerifyRejected:       "verify_rejected",
	SessionsCreated:      "sessions_created",
	SessionsRevoked:      "sessions_revoked",
	AccountsFrozen:       "accounts_frozen",
	Logouts:              "logouts",
}

// Name returns the stable export name of a counter.
func (id ID) Name() string {
	return names[id]
}

// Metrics holds the counter slots. The zero value is not usable; call New.
type Metrics struct {
	enabled  bool
	counters [idCount]atomic.Uint64
}

// New returns a Metrics instance. When enabled is false all operations are
// no-ops.
func New(enabled bool) *Metrics {
	return &Metrics{enabled: enabled}
}

// Inc increments one counter.
func (m *Metrics) Inc(id ID) {
	if m == nil || !m.enabled || id >= idCount {
		return
	}
	m.counters[id].Add(1)
}

// Snapshot returns a point-in-time copy of all counters keyed by name.
func (m *Metrics) Snapshot() map[string]uint64 {
	out := make(map[string]uint64, idCount)
	if m == nil {
		return out
	}
	for id := ID(0); id < idCount; id++ {
		out[id.Name()] = m.counters[id].Load()
	}
	return out
}
