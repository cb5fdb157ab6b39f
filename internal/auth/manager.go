// Package auth handles client authentication and authorization.
package auth

import (
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxAuthFailures = 5
	lockoutDuration = 60 * time.Second
)

var (
	ErrWrongPassword = errors.New("incorrect password")
	ErrLockedOut     = errors.New("too many failed attempts")
)

// Manager checks connection passwords. Each host gets a budget of
// maxAuthFailures wrong guesses that refills over lockoutDuration.
type Manager struct {
	password string

	mu       sync.Mutex
	failures map[string]*rate.Limiter // host -> remaining guesses
	now      func() time.Time
}

// NewManager creates a new auth manager. An empty password disables
// authentication.
func NewManager(password string) *Manager {
	return &Manager{
		password: password,
		failures: make(map[string]*rate.Limiter),
		now:      time.Now,
	}
}

// Required reports whether clients must send a password
func (m *Manager) Required() bool {
	return m.password != ""
}

// Check validates a password sent from host
func (m *Manager) Check(host, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	limiter := m.failures[host]
	if limiter != nil && limiter.TokensAt(now) < 1 {
		return ErrLockedOut
	}

	if m.password != "" && subtle.ConstantTimeCompare([]byte(password), []byte(m.password)) == 1 {
		delete(m.failures, host)
		return nil
	}

	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(lockoutDuration/maxAuthFailures), maxAuthFailures)
		m.failures[host] = limiter
	}
	limiter.AllowN(now, 1)
	return ErrWrongPassword
}

// IsLockedOut checks if a host has used up its guesses
func (m *Manager) IsLockedOut(host string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	limiter, exists := m.failures[host]
	if !exists {
		return false
	}
	return limiter.TokensAt(m.now()) < 1
}
