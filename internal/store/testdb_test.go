package store

import (
	"database/sql"
	"testing"

	"github.com/nerloapp/nerlo/internal/database"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedFamily creates a user, their family (PIN hash "x"), and one kid.
func seedFamily(t *testing.T, db *sql.DB) (userID, familyID, kidID int64) {
	t.Helper()

	user, err := NewUserStore(db).Create("parent@example.com", "Parent")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	family, err := NewFamilyStore(db).Create(user.ID, "Testers", "USD", "x")
	if err != nil {
		t.Fatalf("seed family: %v", err)
	}
	kid, err := NewKidStore(db).Create(family.ID, "Alex", 9)
	if err != nil {
		t.Fatalf("seed kid: %v", err)
	}
	return user.ID, family.ID, kid.ID
}
