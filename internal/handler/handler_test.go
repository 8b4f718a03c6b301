package handler

import (
	"database/sql"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nerloapp/nerlo/internal/auth"
	"github.com/nerloapp/nerlo/internal/database"
	"github.com/nerloapp/nerlo/internal/elevation"
	"github.com/nerloapp/nerlo/internal/store"
	"github.com/nerloapp/nerlo/internal/task"
	"github.com/nerloapp/nerlo/internal/websocket"
)

// apiFixture assembles the stores and services the handlers sit on, against
// a fresh in-memory database.
type apiFixture struct {
	db       *sql.DB
	users    *store.UserStore
	families *store.FamilyStore
	kids     *store.KidStore
	tasks    *store.TaskStore
	goals    *store.GoalStore
	guard    *elevation.Guard
	service  *task.Service
	hub      *websocket.Hub
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	families := store.NewFamilyStore(db)
	kids := store.NewKidStore(db)
	tasks := store.NewTaskStore(db)
	guard := elevation.NewGuard(families, store.NewParentSessionStore(db), slog.Default())

	return &apiFixture{
		db:       db,
		users:    store.NewUserStore(db),
		families: families,
		kids:     kids,
		tasks:    tasks,
		goals:    store.NewGoalStore(db),
		guard:    guard,
		service:  task.NewService(tasks, kids, guard, 0, slog.Default()),
		hub:      websocket.NewHub(slog.Default()),
	}
}

// seedFamily onboards a parent with one kid. The parent PIN is "1234".
func (f *apiFixture) seedFamily(t *testing.T, email, familyName, kidName string) (userID, familyID, kidID int64) {
	t.Helper()

	user, err := f.users.Create(email, "Parent")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	hash, err := elevation.HashPIN("1234")
	if err != nil {
		t.Fatalf("hash pin: %v", err)
	}
	family, err := f.families.CreateWithKids(user.ID, familyName, "USD", hash, []store.NewKidParams{
		{Name: kidName, Age: 9},
	})
	if err != nil {
		t.Fatalf("seed family: %v", err)
	}
	kids, err := f.kids.ListByFamily(family.ID)
	if err != nil || len(kids) != 1 {
		t.Fatalf("seed kids: %v (%d kids)", err, len(kids))
	}
	return user.ID, family.ID, kids[0].ID
}

// authedRequest builds a request carrying the given identity, as the auth
// middleware would have left it.
func authedRequest(method, target, body string, ac auth.AuthContext) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return r.WithContext(auth.WithAuth(r.Context(), ac))
}
