package fv_test

import (
	"errors"
	"testing"
	"time"

	"fv-go/internal/credential"
	"fv-go/internal/fv"
	"fv-go/internal/testutil"
)

type sessionFixture struct {
	session *fv.Session
	clock   *testutil.StubClock
	kv      *testutil.MemoryKeyValue
}

// newSessionFixture builds a session over a real credential store with a
// controllable clock. When secret is non-empty a credential is stored first,
// so the session starts Locked.
func newSessionFixture(t *testing.T, secret string, timeout time.Duration, tiers []fv.LockoutTier) *sessionFixture {
	t.Helper()

	kv := testutil.NewMemoryKeyValue()
	clock := testutil.FixedClock()
	creds := credential.NewStore(kv, fv.NewNopLogger())

	if secret != "" {
		if err := creds.SetCredential(secret); err != nil {
			t.Fatalf("setting credential: %v", err)
		}
	}

	session, err := fv.NewSession(creds, kv, clock, fv.NewNopLogger(), timeout, tiers)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	return &sessionFixture{session: session, clock: clock, kv: kv}
}

func TestSession_InitialState(t *testing.T) {
	t.Run("starts in setup mode without a credential", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t, "", time.Minute, nil)
		if got := f.session.CurrentState(); got != fv.StateSetup {
			t.Errorf("state = %s, want setup", got)
		}
	})

	t.Run("starts locked when a credential exists", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t, "1234", time.Minute, nil)
		if got := f.session.CurrentState(); got != fv.StateLocked {
			t.Errorf("state = %s, want locked", got)
		}
	})
}

func TestSession_Unlock(t *testing.T) {
	t.Run("unlocks with the correct secret", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t, "1234", time.Minute, nil)

		if err := f.session.RequestUnlock("1234"); err != nil {
			t.Fatalf("RequestUnlock() error = %v", err)
		}
		if got := f.session.CurrentState(); got != fv.StateUnlocked {
			t.Errorf("state = %s, want unlocked", got)
		}
	})

	t.Run("rejects a wrong secret and stays locked", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t, "1234", time.Minute, nil)

		if err := f.session.RequestUnlock("0000"); !errors.Is(err, fv.ErrUnlockFailed) {
			t.Fatalf("error = %v, want ErrUnlockFailed", err)
		}
		if got := f.session.CurrentState(); got != fv.StateLocked {
			t.Errorf("state = %s, want locked", got)
		}
		if got := f.session.FailedAttempts(); got != 1 {
			t.Errorf("FailedAttempts() = %d, want 1", got)
		}
	})

	t.Run("reports unlock failed with no credential set", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t, "", time.Minute, nil)
		if err := f.session.RequestUnlock("anything"); !errors.Is(err, fv.ErrUnlockFailed) {
			t.Errorf("error = %v, want ErrUnlockFailed", err)
		}
	})

	t.Run("setup mode attempts never count toward the lockout", func(t *testing.T) {
		t.Parallel()
		tiers := []fv.LockoutTier{{Failures: 2, Cooldown: time.Minute}}
		f := newSessionFixture(t, "", time.Minute, tiers)

		for i := 0; i < 4; i++ {
			if err := f.session.RequestUnlock("guess"); !errors.Is(err, fv.ErrUnlockFailed) {
				t.Fatalf("attempt %d: error = %v, want ErrUnlockFailed", i, err)
			}
		}
		if got := f.session.FailedAttempts(); got != 0 {
			t.Errorf("FailedAttempts() = %d, want 0", got)
		}
		if got := f.session.RemainingCooldown(); got != 0 {
			t.Errorf("RemainingCooldown() = %s, want 0", got)
		}
	})

	t.Run("success clears the failure count", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t, "1234", time.Minute, nil)

		f.session.RequestUnlock("0000")
		f.session.RequestUnlock("1111")
		if err := f.session.RequestUnlock("1234"); err != nil {
			t.Fatalf("RequestUnlock() error = %v", err)
		}
		if got := f.session.FailedAttempts(); got != 0 {
			t.Errorf("FailedAttempts() = %d, want 0", got)
		}
	})
}

func TestSession_Cooldown(t *testing.T) {
	tiers := []fv.LockoutTier{
		{Failures: 3, Cooldown: 30 * time.Second},
		{Failures: 5, Cooldown: 5 * time.Minute},
	}

	t.Run("activates after the tier threshold", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t, "1234", time.Minute, tiers)

		f.session.RequestUnlock("0000")
		f.session.RequestUnlock("0000")
		err := f.session.RequestUnlock("0000")
		if !errors.Is(err, fv.ErrCooldownActive) {
			t.Fatalf("third failure: error = %v, want ErrCooldownActive", err)
		}
		if got := f.session.RemainingCooldown(); got != 30*time.Second {
			t.Errorf("RemainingCooldown() = %s, want 30s", got)
		}
	})

	t.Run("refuses attempts without consulting the credential", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t, "1234", time.Minute, tiers)

		for i := 0; i < 3; i++ {
			f.session.RequestUnlock("0000")
		}

		// Even the correct secret is refused while cooling down, and the
		// failure count must not grow from refused attempts.
		if err := f.session.RequestUnlock("1234"); !errors.Is(err, fv.ErrCooldownActive) {
			t.Fatalf("error = %v, want ErrCooldownActive", err)
		}
		if got := f.session.FailedAttempts(); got != 3 {
			t.Errorf("FailedAttempts() = %d, want 3", got)
		}
	})

	t.Run("expires with the clock", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t, "1234", time.Minute, tiers)

		for i := 0; i < 3; i++ {
			f.session.RequestUnlock("0000")
		}
		f.clock.Advance(31 * time.Second)

		if got := f.session.RemainingCooldown(); got != 0 {
			t.Errorf("RemainingCooldown() = %s, want 0", got)
		}
		if err := f.session.RequestUnlock("1234"); err != nil {
			t.Fatalf("RequestUnlock() after cooldown: %v", err)
		}
	})

	t.Run("escalates to the next tier", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t, "1234", time.Minute, tiers)

		for i := 0; i < 3; i++ {
			f.session.RequestUnlock("0000")
		}
		f.clock.Advance(31 * time.Second)
		f.session.RequestUnlock("0000")
		f.clock.Advance(31 * time.Second)
		err := f.session.RequestUnlock("0000")
		if !errors.Is(err, fv.ErrCooldownActive) {
			t.Fatalf("fifth failure: error = %v, want ErrCooldownActive", err)
		}
		if got := f.session.RemainingCooldown(); got != 5*time.Minute {
			t.Errorf("RemainingCooldown() = %s, want 5m", got)
		}
	})

	t.Run("survives a session restart", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t, "1234", time.Minute, tiers)

		for i := 0; i < 3; i++ {
			f.session.RequestUnlock("0000")
		}

		// A new session over the same store inherits the active cooldown.
		creds := credential.NewStore(f.kv, fv.NewNopLogger())
		restarted, err := fv.NewSession(creds, f.kv, f.clock, fv.NewNopLogger(), time.Minute, tiers)
		if err != nil {
			t.Fatalf("NewSession() error = %v", err)
		}
		if err := restarted.RequestUnlock("1234"); !errors.Is(err, fv.ErrCooldownActive) {
			t.Errorf("error = %v, want ErrCooldownActive", err)
		}
	})
}

func TestSession_InactivityLock(t *testing.T) {
	t.Run("locks after the timeout elapses", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t, "1234", time.Minute, nil)

		if err := f.session.RequestUnlock("1234"); err != nil {
			t.Fatalf("RequestUnlock() error = %v", err)
		}
		f.clock.Advance(time.Minute)

		if got := f.session.CurrentState(); got != fv.StateLocked {
			t.Errorf("state = %s, want locked after timeout", got)
		}
	})

	t.Run("interaction resets the countdown", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t, "1234", time.Minute, nil)

		f.session.RequestUnlock("1234")
		f.clock.Advance(40 * time.Second)
		f.session.OnUserInteraction()
		f.clock.Advance(40 * time.Second)

		if got := f.session.CurrentState(); got != fv.StateUnlocked {
			t.Errorf("state = %s, want unlocked 40s after interaction", got)
		}
	})

	t.Run("keeps counting down in the background", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t, "1234", time.Minute, nil)

		f.session.RequestUnlock("1234")
		f.session.OnBackground()
		f.clock.Advance(time.Minute)

		if got := f.session.CurrentState(); got != fv.StateLocked {
			t.Errorf("state = %s, want locked after backgrounded timeout", got)
		}
	})

	t.Run("a non-sensitive view stops the countdown", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t, "1234", time.Minute, nil)

		f.session.RequestUnlock("1234")
		f.session.OnForeground(false)
		f.clock.Advance(time.Hour)

		if got := f.session.CurrentState(); got != fv.StateUnlocked {
			t.Errorf("state = %s, want unlocked with countdown disarmed", got)
		}

		// Entering a sensitive view re-arms it.
		f.session.OnForeground(true)
		f.clock.Advance(time.Minute)
		if got := f.session.CurrentState(); got != fv.StateLocked {
			t.Errorf("state = %s, want locked after re-armed timeout", got)
		}
	})

	t.Run("relocking requires a fresh unlock", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t, "1234", time.Minute, nil)

		f.session.RequestUnlock("1234")
		f.clock.Advance(time.Minute)
		if got := f.session.CurrentState(); got != fv.StateLocked {
			t.Fatalf("state = %s, want locked", got)
		}

		// Interaction alone must not revive the expired session.
		f.session.OnUserInteraction()
		if got := f.session.CurrentState(); got != fv.StateLocked {
			t.Errorf("state = %s, want still locked", got)
		}
		if err := f.session.RequestUnlock("1234"); err != nil {
			t.Fatalf("RequestUnlock() error = %v", err)
		}
		if got := f.session.CurrentState(); got != fv.StateUnlocked {
			t.Errorf("state = %s, want unlocked", got)
		}
	})
}

func TestSession_Transitions(t *testing.T) {
	t.Run("credential creation leaves setup unlocked", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t, "", time.Minute, nil)

		f.session.NotifyCredentialCreated()
		if got := f.session.CurrentState(); got != fv.StateUnlocked {
			t.Errorf("state = %s, want unlocked after setup", got)
		}
	})

	t.Run("explicit lock", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t, "1234", time.Minute, nil)

		f.session.RequestUnlock("1234")
		f.session.RequestLock()
		if got := f.session.CurrentState(); got != fv.StateLocked {
			t.Errorf("state = %s, want locked", got)
		}
	})

	t.Run("locking while locked is a no-op", func(t *testing.T) {
		t.Parallel()
		f := newSessionFixture(t, "1234", time.Minute, nil)
		f.session.RequestLock()
		if got := f.session.CurrentState(); got != fv.StateLocked {
			t.Errorf("state = %s, want locked", got)
		}
	})
}
