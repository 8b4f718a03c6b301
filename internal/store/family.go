package store

import (
	"database/sql"
	"fmt"

	"github.com/nerloapp/nerlo/internal/model"
)

type FamilyStore struct {
	db *sql.DB
}

func NewFamilyStore(db *sql.DB) *FamilyStore {
	return &FamilyStore{db: db}
}

func scanFamily(scanner interface{ Scan(...any) error }) (*model.Family, error) {
	var f model.Family
	err := scanner.Scan(&f.ID, &f.OwnerID, &f.Name, &f.Currency, &f.HasPIN, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

const familyCols = `id, owner_id, name, currency, parent_pin IS NOT NULL, created_at, updated_at`

func (s *FamilyStore) Create(ownerID int64, name, currency, pinHash string) (*model.Family, error) {
	result, err := s.db.Exec(
		`INSERT INTO families (owner_id, name, currency, parent_pin) VALUES (?, ?, ?, ?)`,
		ownerID, name, currency, pinHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert family: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

// NewKidParams describes a kid created alongside the family at onboarding.
type NewKidParams struct {
	Name string
	Age  int
}

// CreateWithKids creates the family and its initial kids in one transaction.
// Any failure rolls back the whole onboarding, so a retry never hits a
// half-created, kidless family.
func (s *FamilyStore) CreateWithKids(ownerID int64, name, currency, pinHash string, kids []NewKidParams) (*model.Family, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin onboarding: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO families (owner_id, name, currency, parent_pin) VALUES (?, ?, ?, ?)`,
		ownerID, name, currency, pinHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert family: %w", err)
	}
	familyID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	for _, k := range kids {
		if k.Name == "" {
			return nil, fmt.Errorf("insert kid: name is required")
		}
		if _, err := tx.Exec(
			`INSERT INTO kids (family_id, name, age) VALUES (?, ?, ?)`,
			familyID, k.Name, k.Age,
		); err != nil {
			return nil, fmt.Errorf("insert kid %q: %w", k.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit onboarding: %w", err)
	}
	return s.GetByID(familyID)
}

func (s *FamilyStore) GetByID(id int64) (*model.Family, error) {
	row := s.db.QueryRow(`SELECT `+familyCols+` FROM families WHERE id = ?`, id)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}
	return f, nil
}

// GetByOwner returns the family owned by a user, or nil if the user has not
// completed onboarding.
func (s *FamilyStore) GetByOwner(ownerID int64) (*model.Family, error) {
	row := s.db.QueryRow(`SELECT `+familyCols+` FROM families WHERE owner_id = ?`, ownerID)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family by owner: %w", err)
	}
	return f, nil
}

func (s *FamilyStore) UpdateCurrency(id int64, currency string) (*model.Family, error) {
	_, err := s.db.Exec(
		`UPDATE families SET currency = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		currency, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update currency: %w", err)
	}
	return s.GetByID(id)
}

func (s *FamilyStore) SetPIN(id int64, pinHash string) error {
	_, err := s.db.Exec(
		`UPDATE families SET parent_pin = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		pinHash, id,
	)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

func (s *FamilyStore) GetPINHash(id int64) (string, error) {
	var pin sql.NullString
	err := s.db.QueryRow(`SELECT parent_pin FROM families WHERE id = ?`, id).Scan(&pin)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("family not found")
	}
	if err != nil {
		return "", fmt.Errorf("query pin: %w", err)
	}
	if !pin.Valid {
		return "", nil
	}
	return pin.String, nil
}

func (s *FamilyStore) Count() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM families`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count families: %w", err)
	}
	return n, nil
}
