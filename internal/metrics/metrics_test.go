package metrics

import (
	"sync"
	"testing"
)

func TestIncAndSnapshot(t *testing.T) {
	m := New(true)

	m.Inc(AuthenticateAccepted)
	m.Inc(AuthenticateAccepted)
	m.Inc(VerifyRejected)

	snap := m.Snapshot()
	if snap["authenticate_accepted"] != 2 {
		t.Errorf("authenticate_accepted = %d, want 2", snap["authenticate_accepted"])
	}
	if snap["verify_rejected"] != 1 {
		t.Errorf("verify_rejected = %d, want 1", snap["verify_rejected"])
	}
	if snap["sessions_created"] != 0 {
		t.Errorf("sessions_created = %d, want 0", snap["sessions_created"])
	}
}

func TestDisabledIsNoop(t *testing.T) {
	m := New(false)
	m.Inc(Logouts)

	if got := m.Snapshot()["logouts"]; got != 0 {
		t.Fatalf("disabled metrics recorded %d", got)
	}
}

func TestNilReceiverSafe(t *testing.T) {
	var m *Metrics
	m.Inc(Logouts)
	if len(m.Snapshot()) != 0 {
		t.Fatal("nil snapshot should be empty")
	}
}

func TestConcurrentInc(t *testing.T) {
	m := New(true)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Inc(SessionsCreated)
			}
		}()
	}
	wg.Wait()

	if got := m.Snapshot()["sessions_created"]; got != 8000 {
		t.Fatalf("sessions_created = %d, want 8000", got)
	}
}
