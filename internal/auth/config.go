package auth

import (
	"errors"
	"regexp"
	"runtime"
	"time"
)

// Config tunes the orchestrator. Validators are constructed and injected
// here rather than living in package-level globals, so two engines with
// different policies can coexist and tests can tighten or loosen rules.
type Config struct {
	// EmailPattern must match the whole address. Campus deployments
	// restrict this to their domain.
	EmailPattern *regexp.Regexp

	// MaxCredentialLen bounds both email and password input length.
	MaxCredentialLen int

	// PendingTTL bounds login/signup/forgot records; UpdateTTL bounds the
	// recovery second step.
	PendingTTL time.Duration
	UpdateTTL  time.Duration

	// SessionTTL is the liveness-key lifetime of an issued session.
	SessionTTL time.Duration

	// AttemptLockTTL is the single-attempt verification exclusion window.
	AttemptLockTTL time.Duration

	// FreezeGrace is added to "now" when recording the freeze marker so a
	// login issued an instant before recovery began still falls inside the
	// frozen window. FreezeStampTTL bounds the marker itself.
	FreezeGrace    time.Duration
	FreezeStampTTL time.Duration

	// MaxSessions caps live sessions per identity.
	MaxSessions int

	// HashConcurrency bounds concurrent argon2 computations so credential
	// hashing cannot saturate every scheduler thread.
	HashConcurrency int
}

// DefaultConfig returns production defaults for a Purdue-restricted
// deployment.
func DefaultConfig() Config {
	return Config{
		EmailPattern:     regexp.MustCompile(`^.+@purdue\.edu$`),
		MaxCredentialLen: 100,
		PendingTTL:       10 * time.Minute,
		UpdateTTL:        10 * time.Minute,
		SessionTTL:       time.Hour,
		AttemptLockTTL:   time.Second,
		FreezeGrace:      500 * time.Millisecond,
		FreezeStampTTL:   15 * time.Minute,
		MaxSessions:      2,
		HashConcurrency:  runtime.GOMAXPROCS(0),
	}
}

func (c Config) validate() error {
	if c.EmailPattern == nil {
		return errors.New("auth config: email pattern required")
	}
	if c.MaxCredentialLen <= 0 {
		return errors.New("auth config: max credential length must be positive")
	}
	if c.PendingTTL <= 0 || c.UpdateTTL <= 0 || c.SessionTTL <= 0 {
		return errors.New("auth config: TTLs must be positive")
	}
	if c.AttemptLockTTL <= 0 {
		return errors.New("auth config: attempt lock TTL must be positive")
	}
	if c.FreezeGrace < 0 || c.FreezeStampTTL <= 0 {
		return errors.New("auth config: freeze window invalid")
	}
	if c.MaxSessions < 1 {
		return errors.New("auth config: max sessions must be >= 1")
	}
	if c.HashConcurrency < 1 {
		return errors.New("auth config: hash concurrency must be >= 1")
	}
	return nil
}

func (e *Engine) validateEmail(email string) error {
	if len(email) > e.config.MaxCredentialLen {
		return validationError("Too many chars")
	}
	if !e.config.EmailPattern.MatchString(email) {
		return validationError("Email must be a Purdue address")
	}
	return nil
}

func (e *Engine) validatePassword(password string) error {
	if len(password) > e.config.MaxCredentialLen {
		return validationError("Too many chars")
	}
	if password == "" {
		return validationError("Password cannot be empty")
	}
	return nil
}
