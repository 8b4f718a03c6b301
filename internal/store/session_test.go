package store

import "testing"

func TestSessionCreateAndGet(t *testing.T) {
	db := openTestDB(t)
	ss := NewSessionStore(db)
	userID, _, _ := seedFamily(t, db)

	sess, err := ss.Create(userID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(sess.Token) != 64 {
		t.Errorf("token length = %d, want 64", len(sess.Token))
	}

	got, err := ss.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got == nil || got.UserID != userID {
		t.Fatalf("get by token = %v, want user %d", got, userID)
	}
}

func TestSessionGetUnknownToken(t *testing.T) {
	db := openTestDB(t)
	ss := NewSessionStore(db)

	got, err := ss.GetByToken("nope")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got != nil {
		t.Error("expected nil for unknown token")
	}
}

func TestSessionDelete(t *testing.T) {
	db := openTestDB(t)
	ss := NewSessionStore(db)
	userID, _, _ := seedFamily(t, db)

	sess, err := ss.Create(userID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ss.Delete(sess.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := ss.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}
