package store

import (
	"testing"
	"time"
)

func TestParentSessionGetActive(t *testing.T) {
	db := openTestDB(t)
	ps := NewParentSessionStore(db)
	userID, familyID, _ := seedFamily(t, db)

	now := time.Now()

	sess, err := ps.Create(userID, familyID, now.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !sess.IsActive {
		t.Error("new session should be active")
	}

	got, err := ps.GetActive(userID, now)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if got == nil || got.ID != sess.ID {
		t.Fatalf("get active = %v, want session %d", got, sess.ID)
	}
}

func TestParentSessionExpiryIsComputed(t *testing.T) {
	db := openTestDB(t)
	ps := NewParentSessionStore(db)
	userID, familyID, _ := seedFamily(t, db)

	now := time.Now()
	if _, err := ps.Create(userID, familyID, now.Add(30*time.Minute)); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Valid one second before the deadline, gone one second after. The row
	// itself is never touched.
	got, err := ps.GetActive(userID, now.Add(30*time.Minute-time.Second))
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if got == nil {
		t.Fatal("session should still be valid")
	}

	got, err = ps.GetActive(userID, now.Add(30*time.Minute+time.Second))
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if got != nil {
		t.Fatal("session should have expired")
	}
}

func TestParentSessionDeactivate(t *testing.T) {
	db := openTestDB(t)
	ps := NewParentSessionStore(db)
	userID, familyID, _ := seedFamily(t, db)

	now := time.Now()
	sess, err := ps.Create(userID, familyID, now.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := ps.Deactivate(sess.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	got, err := ps.GetActive(userID, now)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if got != nil {
		t.Fatal("deactivated session should not be returned")
	}

	// Idempotent.
	if err := ps.Deactivate(sess.ID); err != nil {
		t.Fatalf("second deactivate: %v", err)
	}
}

func TestParentSessionDeactivateForUser(t *testing.T) {
	db := openTestDB(t)
	ps := NewParentSessionStore(db)
	userID, familyID, _ := seedFamily(t, db)

	now := time.Now()
	ps.Create(userID, familyID, now.Add(30*time.Minute))
	ps.Create(userID, familyID, now.Add(30*time.Minute))

	if err := ps.DeactivateForUser(userID); err != nil {
		t.Fatalf("deactivate for user: %v", err)
	}
	got, err := ps.GetActive(userID, now)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if got != nil {
		t.Fatal("all sessions should be inactive")
	}
}
