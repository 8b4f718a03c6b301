// Package elevation implements parent mode: a PIN-gated, time-boxed
// privileged state that parent-only operations must revalidate on every
// call. There is no background timer; validity is always computed from the
// stored row at the moment it matters.
package elevation

import (
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nerloapp/nerlo/internal/apperr"
	"github.com/nerloapp/nerlo/internal/model"
	"github.com/nerloapp/nerlo/internal/store"
)

const SessionTTL = 30 * time.Minute

type Guard struct {
	families *store.FamilyStore
	sessions *store.ParentSessionStore
	now      func() time.Time
	logger   *slog.Logger
}

func NewGuard(families *store.FamilyStore, sessions *store.ParentSessionStore, logger *slog.Logger) *Guard {
	return &Guard{
		families: families,
		sessions: sessions,
		now:      time.Now,
		logger:   logger,
	}
}

// ValidatePIN reports whether a candidate PIN is acceptable: 4 to 6 digits.
func ValidatePIN(pin string) error {
	if len(pin) < 4 || len(pin) > 6 {
		return apperr.Validationf("PIN must be 4 to 6 digits")
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return apperr.Validationf("PIN must contain only digits")
		}
	}
	return nil
}

// HashPIN hashes a PIN for storage.
func HashPIN(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPIN checks a supplied PIN against the family's stored hash. The
// returned error does not reveal whether the family exists or has a PIN.
func (g *Guard) VerifyPIN(familyID int64, pin string) error {
	hash, err := g.families.GetPINHash(familyID)
	if err != nil {
		g.logger.Error("pin lookup", "family_id", familyID, "error", err)
		return apperr.Authenticationf("invalid PIN")
	}
	if hash == "" {
		return apperr.Authenticationf("invalid PIN")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)); err != nil {
		return apperr.Authenticationf("invalid PIN")
	}
	return nil
}

// Elevate checks the PIN and, on success, deactivates any existing active
// sessions for the user and issues a fresh one. A failed check leaves any
// existing session untouched.
func (g *Guard) Elevate(userID int64, pin string) (*model.ParentSession, error) {
	family, err := g.families.GetByOwner(userID)
	if err != nil {
		return nil, apperr.Unavailablef("load family: %v", err)
	}
	if family == nil {
		// Same response as a wrong PIN so callers cannot probe for families.
		return nil, apperr.Authenticationf("invalid PIN")
	}

	if err := g.VerifyPIN(family.ID, pin); err != nil {
		return nil, err
	}

	if err := g.sessions.DeactivateForUser(userID); err != nil {
		return nil, apperr.Unavailablef("deactivate sessions: %v", err)
	}

	sess, err := g.sessions.Create(userID, family.ID, g.now().Add(SessionTTL))
	if err != nil {
		return nil, apperr.Unavailablef("create session: %v", err)
	}

	g.logger.Info("parent mode entered", "user_id", userID, "expires_at", sess.ExpiresAt)
	return sess, nil
}

// Check returns the user's valid elevation, or nil if none exists. A row
// that is expired or deactivated counts as absent; no cleanup happens here.
func (g *Guard) Check(userID int64) (*model.ParentSession, error) {
	sess, err := g.sessions.GetActive(userID, g.now())
	if err != nil {
		return nil, apperr.Unavailablef("check elevation: %v", err)
	}
	return sess, nil
}

// Require returns the user's valid elevation or an authorization error.
// Every parent-only operation calls this at the moment of the operation
// rather than trusting client-cached state.
func (g *Guard) Require(userID int64) (*model.ParentSession, error) {
	sess, err := g.Check(userID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apperr.Authorizationf("no active parent session")
	}
	return sess, nil
}

// Extend re-runs the PIN check and issues a fresh session, identical to an
// initial elevation.
func (g *Guard) Extend(userID int64, pin string) (*model.ParentSession, error) {
	return g.Elevate(userID, pin)
}

// Revoke marks a session inactive. Idempotent; revoking an already-revoked
// or expired session is not an error.
func (g *Guard) Revoke(sessionID int64) error {
	if err := g.sessions.Deactivate(sessionID); err != nil {
		return apperr.Unavailablef("revoke session: %v", err)
	}
	return nil
}

// RevokeForUser deactivates every session the user holds, used on sign-out.
func (g *Guard) RevokeForUser(userID int64) error {
	if err := g.sessions.DeactivateForUser(userID); err != nil {
		return apperr.Unavailablef("revoke sessions: %v", err)
	}
	return nil
}

// WithClock overrides the time source. Test hook.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}
