package fv

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the vault access state.
type State int

const (
	// StateSetup means no credential exists yet; locking is bypassed until
	// the first credential is created.
	StateSetup State = iota
	StateLocked
	StateUnlocked
)

func (s State) String() string {
	switch s {
	case StateSetup:
		return "setup"
	case StateLocked:
		return "locked"
	default:
		return "unlocked"
	}
}

// LockoutTier maps a consecutive-failure count to a cooldown duration.
type LockoutTier struct {
	Failures int
	Cooldown time.Duration
}

// DefaultLockoutTiers is the default unlock cooldown schedule: 5 failures
// 30s, 10 failures 5 minutes, 20 failures 30 minutes.
var DefaultLockoutTiers = []LockoutTier{
	{Failures: 5, Cooldown: 30 * time.Second},
	{Failures: 10, Cooldown: 5 * time.Minute},
	{Failures: 20, Cooldown: 30 * time.Minute},
}

// lockoutKey is where failed-attempt state lives in the key-value store, so
// an active cooldown survives a process restart.
const lockoutKey = "session.lockout"

// lockoutState tracks failed unlock attempts for cooldown enforcement.
type lockoutState struct {
	FailedAttempts int       `json:"failed_attempts"`
	LastAttempt    time.Time `json:"last_attempt"`
	CooldownUntil  time.Time `json:"cooldown_until"`
}

// Session is the process-wide lock state machine. There is exactly one
// instance per process; every component consults it and transitions happen
// only through its methods. Inactivity is evaluated lazily against the
// injected Clock: the session records a deadline and checks it on every
// query and transition, so a sensitive view resuming after the deadline is
// redirected to the lock flow instead of rendering content.
type Session struct {
	mu     sync.Mutex
	creds  CredentialStore
	kv     KeyValue
	clock  Clock
	logger Logger

	timeout time.Duration
	tiers   []LockoutTier

	state    State
	deadline time.Time // zero while the inactivity countdown is disarmed
}

// NewSession creates the session. The initial state is Locked when a
// credential exists and Setup otherwise; a process cold-start never begins
// unlocked.
func NewSession(creds CredentialStore, kv KeyValue, clock Clock, logger Logger,
	timeout time.Duration, tiers []LockoutTier) (*Session, error) {
	set, err := creds.IsCredentialSet()
	if err != nil {
		return nil, fmt.Errorf("checking credential: %w", err)
	}
	state := StateSetup
	if set {
		state = StateLocked
	}
	if len(tiers) == 0 {
		tiers = DefaultLockoutTiers
	}
	return &Session{
		creds:   creds,
		kv:      kv,
		clock:   clock,
		logger:  logger,
		timeout: timeout,
		tiers:   tiers,
		state:   state,
	}, nil
}

// CurrentState returns the state after applying any due inactivity lock.
func (s *Session) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireIfDue()
	return s.state
}

// RequestUnlock attempts the Locked -> Unlocked transition with the given
// secret. A wrong secret and a missing credential are both reported as
// ErrUnlockFailed so the lock screen leaks nothing. Repeated failures
// activate the tiered cooldown; while it is active attempts are refused with
// ErrCooldownActive without consulting the credential at all.
func (s *Session) RequestUnlock(secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if remaining := s.remainingCooldown(); remaining > 0 {
		return fmt.Errorf("%w: retry in %s", ErrCooldownActive, remaining.Round(time.Second))
	}

	ok, err := s.creds.VerifyCredential(secret)
	if err != nil {
		return fmt.Errorf("verifying credential: %w", err)
	}
	if !ok {
		// In setup mode no credential exists yet, so a failed verify says
		// nothing about an attacker. Counting it would start the first
		// real session pre-penalized.
		if s.state == StateSetup {
			return ErrUnlockFailed
		}
		cooldown := s.recordFailure()
		s.logger.Warn("unlock failed")
		if cooldown > 0 {
			return fmt.Errorf("%w: cooldown active for %s", ErrCooldownActive, cooldown)
		}
		return ErrUnlockFailed
	}

	s.clearLockout()
	s.state = StateUnlocked
	s.arm()
	s.logger.Info("session unlocked")
	return nil
}

// NotifyCredentialCreated transitions out of setup mode after the first
/// credential is stored. The target is Unlocked, not Locked: the user just
// proved presence by setting the PIN.
func (s *Session) NotifyCredentialCreated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateUnlocked
	s.arm()
	s.logger.Info("session unlocked after credential setup")
}

// RequestLock performs the explicit Unlocked -> Locked transition. Calling it
// while already locked, or in setup mode, is a no-op.
func (s *Session) RequestLock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return
	}
	s.state = StateLocked
	s.deadline = time.Time{}
	s.logger.Info("session locked", "reason", "explicit")
}

// OnUserInteraction resets the inactivity countdown. It only matters while
// unlocked with the countdown armed.
func (s *Session) OnUserInteraction() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireIfDue()
	if s.state == StateUnlocked && !s.deadline.IsZero() {
		s.arm()
	}
}

// OnForeground records that a view became active. Entering a sensitive view
// arms the countdown; entering a non-sensitive view (lock or setup screen)
// stops it entirely, since relocking a screen the user cannot interact with
// serves nothing.
func (s *Session) OnForeground(sensitive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireIfDue()
	if !sensitive {
		s.deadline = time.Time{}
		return
	}
	if s.state == StateUnlocked {
		s.arm()
	}
}

// OnBackground records that the active view left the foreground. The
// countdown keeps running: backgrounding a sensitive view must still lead to
// a lock once the timeout elapses.
func (s *Session) OnBackground() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireIfDue()
}

// RemainingCooldown returns how long unlock attempts stay refused, or zero.
func (s *Session) RemainingCooldown() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingCooldown()
}

// FailedAttempts returns the current consecutive-failure count.
func (s *Session) FailedAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLockout().FailedAttempts
}

// arm restarts the inactivity countdown from now.
func (s *Session) arm() {
	s.deadline = s.clock.Now().Add(s.timeout)
}

// expireIfDue applies the inactivity transition when the armed deadline has
// passed. Callers hold s.mu.
func (s *Session) expireIfDue() {
	if s.state != StateUnlocked || s.deadline.IsZero() {
		return
	}
	if !s.clock.Now().Before(s.deadline) {
		s.state = StateLocked
		s.deadline = time.Time{}
		s.logger.Info("session locked", "reason", "inactivity")
	}
}

func (s *Session) loadLockout() lockoutState {
	var state lockoutState
	raw, err := s.kv.Get(lockoutKey)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			s.logger.Warn("reading lockout state", "err", err)
		}
		return state
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		s.logger.Warn("corrupt lockout state, resetting", "err", err)
		return lockoutState{}
	}
	return state
}

func (s *Session) saveLockout(state lockoutState) {
	raw, err := json.Marshal(state)
	if err == nil {
		err = s.kv.Put(lockoutKey, raw)
	}
	if err != nil {
		s.logger.Warn("persisting lockout state", "err", err)
	}
}

func (s *Session) clearLockout() {
	if err := s.kv.Delete(lockoutKey); err != nil {
		s.logger.Warn("clearing lockout state", "err", err)
	}
}

// remainingCooldown reports how much of an active cooldown is left.
// Callers hold s.mu.
func (s *Session) remainingCooldown() time.Duration {
	state := s.loadLockout()
	if state.CooldownUntil.IsZero() {
		return 0
	}
	if remaining := state.CooldownUntil.Sub(s.clock.Now()); remaining > 0 {
		return remaining
	}
	return 0
}

// recordFailure increments the persisted failure count and returns the
// cooldown it triggered, if any. Callers hold s.mu.
func (s *Session) recordFailure() time.Duration {
	state := s.loadLockout()
	state.FailedAttempts++
	state.LastAttempt = s.clock.Now()

	var cooldown time.Duration
	for _, tier := range s.tiers {
		if state.FailedAttempts >= tier.Failures {
			cooldown = tier.Cooldown
		}
	}
	if cooldown > 0 {
		state.CooldownUntil = s.clock.Now().Add(cooldown)
	}
	s.saveLockout(state)
	return cooldown
}
