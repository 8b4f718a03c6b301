package store

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nerloapp/nerlo/internal/model"
)

type GoalStore struct {
	db *sql.DB
}

func NewGoalStore(db *sql.DB) *GoalStore {
	return &GoalStore{db: db}
}

func scanGoal(scanner interface{ Scan(...any) error }) (*model.Goal, error) {
	var g model.Goal
	var target, current string

	err := scanner.Scan(&g.ID, &g.KidID, &g.Name, &target, &current, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}

	g.Target, err = decimal.NewFromString(target)
	if err != nil {
		return nil, fmt.Errorf("parse target %q: %w", target, err)
	}
	g.Current, err = decimal.NewFromString(current)
	if err != nil {
		return nil, fmt.Errorf("parse current %q: %w", current, err)
	}
	return &g, nil
}

const goalCols = `id, kid_id, name, target, current, created_at, updated_at`

func (s *GoalStore) Create(kidID int64, name string, target, current decimal.Decimal) (*model.Goal, error) {
	result, err := s.db.Exec(
		`INSERT INTO goals (kid_id, name, target, current) VALUES (?, ?, ?, ?)`,
		kidID, name, target.String(), current.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert goal: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *GoalStore) GetByID(id int64) (*model.Goal, error) {
	row := s.db.QueryRow(`SELECT `+goalCols+` FROM goals WHERE id = ?`, id)
	g, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

func (s *GoalStore) ListByKid(kidID int64) ([]model.Goal, error) {
	rows, err := s.db.Query(
		`SELECT `+goalCols+` FROM goals WHERE kid_id = ? ORDER BY created_at ASC`,
		kidID,
	)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []model.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

func (s *GoalStore) Update(id int64, name string, target, current decimal.Decimal) (*model.Goal, error) {
	_, err := s.db.Exec(
		`UPDATE goals SET name = ?, target = ?, current = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, target.String(), current.String(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update goal: %w", err)
	}
	return s.GetByID(id)
}

func (s *GoalStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM goals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return nil
}
