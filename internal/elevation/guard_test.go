package elevation

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/nerloapp/nerlo/internal/apperr"
	"github.com/nerloapp/nerlo/internal/database"
	"github.com/nerloapp/nerlo/internal/store"
)

func setupGuardTest(t *testing.T) (*Guard, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	user, err := store.NewUserStore(db).Create("parent@example.com", "Parent")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	hash, err := HashPIN("1234")
	if err != nil {
		t.Fatalf("hash pin: %v", err)
	}
	if _, err := store.NewFamilyStore(db).Create(user.ID, "Testers", "USD", hash); err != nil {
		t.Fatalf("create family: %v", err)
	}

	guard := NewGuard(
		store.NewFamilyStore(db),
		store.NewParentSessionStore(db),
		slog.Default(),
	)
	return guard, user.ID
}

func TestValidatePIN(t *testing.T) {
	tests := []struct {
		pin   string
		valid bool
	}{
		{"1234", true},
		{"123456", true},
		{"123", false},
		{"1234567", false},
		{"12a4", false},
		{"", false},
	}
	for _, tt := range tests {
		err := ValidatePIN(tt.pin)
		if tt.valid && err != nil {
			t.Errorf("ValidatePIN(%q) = %v, want nil", tt.pin, err)
		}
		if !tt.valid && err == nil {
			t.Errorf("ValidatePIN(%q) = nil, want error", tt.pin)
		}
	}
}

func TestElevateWithCorrectPIN(t *testing.T) {
	guard, userID := setupGuardTest(t)

	sess, err := guard.Elevate(userID, "1234")
	if err != nil {
		t.Fatalf("elevate: %v", err)
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl < 29*time.Minute || ttl > 31*time.Minute {
		t.Errorf("session ttl = %v, want ~30m", ttl)
	}

	got, err := guard.Require(userID)
	if err != nil {
		t.Fatalf("require: %v", err)
	}
	if got.ID != sess.ID {
		t.Errorf("require returned session %d, want %d", got.ID, sess.ID)
	}
}

func TestElevateWithWrongPIN(t *testing.T) {
	guard, userID := setupGuardTest(t)

	_, err := guard.Elevate(userID, "0000")
	if !errors.Is(err, apperr.ErrAuthentication) {
		t.Fatalf("err = %v, want authentication error", err)
	}

	// A failed attempt grants nothing.
	if _, err := guard.Require(userID); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("require after failed elevate = %v, want authorization error", err)
	}
}

func TestElevateWrongPINKeepsExistingSession(t *testing.T) {
	guard, userID := setupGuardTest(t)

	if _, err := guard.Elevate(userID, "1234"); err != nil {
		t.Fatalf("elevate: %v", err)
	}
	if _, err := guard.Elevate(userID, "0000"); err == nil {
		t.Fatal("wrong pin should fail")
	}

	if _, err := guard.Require(userID); err != nil {
		t.Fatalf("existing session should survive a failed re-elevation: %v", err)
	}
}

func TestRequireAfterExpiry(t *testing.T) {
	guard, userID := setupGuardTest(t)

	if _, err := guard.Elevate(userID, "1234"); err != nil {
		t.Fatalf("elevate: %v", err)
	}

	guard.WithClock(func() time.Time { return time.Now().Add(SessionTTL + time.Minute) })

	if _, err := guard.Require(userID); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("require after expiry = %v, want authorization error", err)
	}
}

func TestRevoke(t *testing.T) {
	guard, userID := setupGuardTest(t)

	sess, err := guard.Elevate(userID, "1234")
	if err != nil {
		t.Fatalf("elevate: %v", err)
	}
	if err := guard.Revoke(sess.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := guard.Require(userID); err == nil {
		t.Fatal("require after revoke should fail")
	}

	// Revoking again is not an error.
	if err := guard.Revoke(sess.ID); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
}

func TestExtendReplacesSession(t *testing.T) {
	guard, userID := setupGuardTest(t)

	first, err := guard.Elevate(userID, "1234")
	if err != nil {
		t.Fatalf("elevate: %v", err)
	}
	second, err := guard.Extend(userID, "1234")
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if second.ID == first.ID {
		t.Error("extend should issue a fresh session")
	}

	got, err := guard.Require(userID)
	if err != nil {
		t.Fatalf("require: %v", err)
	}
	if got.ID != second.ID {
		t.Errorf("active session = %d, want %d", got.ID, second.ID)
	}
}

func TestElevateWithoutFamily(t *testing.T) {
	guard, _ := setupGuardTest(t)

	// Unknown user gets the same response as a wrong PIN.
	_, err := guard.Elevate(9999, "1234")
	if !errors.Is(err, apperr.ErrAuthentication) {
		t.Fatalf("err = %v, want authentication error", err)
	}
}
