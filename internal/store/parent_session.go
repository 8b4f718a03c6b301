package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/nerloapp/nerlo/internal/model"
)

type ParentSessionStore struct {
	db *sql.DB
}

func NewParentSessionStore(db *sql.DB) *ParentSessionStore {
	return &ParentSessionStore{db: db}
}

func scanParentSession(scanner interface{ Scan(...any) error }) (*model.ParentSession, error) {
	var ps model.ParentSession
	err := scanner.Scan(&ps.ID, &ps.UserID, &ps.FamilyID, &ps.ExpiresAt, &ps.IsActive, &ps.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ps, nil
}

const parentSessionCols = `id, user_id, family_id, expires_at, is_active, created_at`

func (s *ParentSessionStore) Create(userID, familyID int64, expiresAt time.Time) (*model.ParentSession, error) {
	result, err := s.db.Exec(
		`INSERT INTO parent_sessions (user_id, family_id, expires_at, is_active) VALUES (?, ?, ?, 1)`,
		userID, familyID, expiresAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert parent session: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+parentSessionCols+` FROM parent_sessions WHERE id = ?`, id)
	return scanParentSession(row)
}

// GetActive returns the active, unexpired session for a user, or nil.
// Both conditions are evaluated in one predicate; deactivation and expiry
// are independent signals. Stale rows are left in place — expiry is
// computed, not enforced by deletion.
func (s *ParentSessionStore) GetActive(userID int64, now time.Time) (*model.ParentSession, error) {
	row := s.db.QueryRow(
		`SELECT `+parentSessionCols+` FROM parent_sessions
		 WHERE user_id = ? AND is_active = 1 AND expires_at > ?
		 ORDER BY created_at DESC LIMIT 1`,
		userID, now.UTC(),
	)
	ps, err := scanParentSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active parent session: %w", err)
	}
	return ps, nil
}

// DeactivateForUser marks all of a user's sessions inactive. Called before
// inserting a fresh session so at most one row is active per user.
func (s *ParentSessionStore) DeactivateForUser(userID int64) error {
	_, err := s.db.Exec(
		`UPDATE parent_sessions SET is_active = 0 WHERE user_id = ? AND is_active = 1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("deactivate parent sessions: %w", err)
	}
	return nil
}

// Deactivate marks a single session inactive. Idempotent.
func (s *ParentSessionStore) Deactivate(id int64) error {
	_, err := s.db.Exec(`UPDATE parent_sessions SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate parent session: %w", err)
	}
	return nil
}
