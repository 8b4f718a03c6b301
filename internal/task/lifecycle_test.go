package task

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/nerloapp/nerlo/internal/apperr"
	"github.com/nerloapp/nerlo/internal/database"
	"github.com/nerloapp/nerlo/internal/elevation"
	"github.com/nerloapp/nerlo/internal/model"
	"github.com/nerloapp/nerlo/internal/store"
)

type lifecycleFixture struct {
	service  *Service
	tasks    *store.TaskStore
	kids     *store.KidStore
	guard    *elevation.Guard
	userID   int64
	familyID int64
	kidID    int64
}

func setupLifecycleTest(t *testing.T, minPhotos int) *lifecycleFixture {
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
	hash, err := elevation.HashPIN("1234")
	if err != nil {
		t.Fatalf("hash pin: %v", err)
	}
	family, err := store.NewFamilyStore(db).Create(user.ID, "Testers", "USD", hash)
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	kid, err := store.NewKidStore(db).Create(family.ID, "Alex", 9)
	if err != nil {
		t.Fatalf("create kid: %v", err)
	}

	tasks := store.NewTaskStore(db)
	kids := store.NewKidStore(db)
	guard := elevation.NewGuard(store.NewFamilyStore(db), store.NewParentSessionStore(db), slog.Default())

	return &lifecycleFixture{
		service:  NewService(tasks, kids, guard, minPhotos, slog.Default()),
		tasks:    tasks,
		kids:     kids,
		guard:    guard,
		userID:   user.ID,
		familyID: family.ID,
		kidID:    kid.ID,
	}
}

func (f *lifecycleFixture) createTask(t *testing.T, title string) *model.Task {
	t.Helper()
	task, err := f.tasks.Create(store.CreateTaskParams{
		FamilyID: f.familyID,
		Title:    title,
		Reward:   decimal.RequireFromString("5"),
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func TestStartAndComplete(t *testing.T) {
	f := setupLifecycleTest(t, 1)
	task := f.createTask(t, "Dishes")

	started, err := f.service.Start(f.familyID, task.ID, f.kidID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != model.TaskInProgress {
		t.Errorf("status = %q, want %q", started.Status, model.TaskInProgress)
	}

	done, err := f.service.Complete(f.familyID, task.ID, 45000, "sparkling", []string{"http://p/1.jpg"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != model.TaskCompleted {
		t.Errorf("status = %q, want %q", done.Status, model.TaskCompleted)
	}
	if done.WorkTimeMS != 45000 {
		t.Errorf("work_time_ms = %d, want 45000", done.WorkTimeMS)
	}
}

func TestStartConflictOnClaimedTask(t *testing.T) {
	f := setupLifecycleTest(t, 1)
	task := f.createTask(t, "Dishes")

	other, err := f.kids.Create(f.familyID, "Beth", 12)
	if err != nil {
		t.Fatalf("create kid: %v", err)
	}

	if _, err := f.service.Start(f.familyID, task.ID, f.kidID); err != nil {
		t.Fatalf("first start: %v", err)
	}

	_, err = f.service.Start(f.familyID, task.ID, other.ID)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("second start = %v, want conflict", err)
	}
}

func TestStartRejectsForeignKid(t *testing.T) {
	f := setupLifecycleTest(t, 1)
	task := f.createTask(t, "Dishes")

	_, err := f.service.Start(f.familyID, task.ID, 9999)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestCompletePhotoRules(t *testing.T) {
	f := setupLifecycleTest(t, 1)
	task := f.createTask(t, "Dishes")
	if _, err := f.service.Start(f.familyID, task.ID, f.kidID); err != nil {
		t.Fatalf("start: %v", err)
	}

	_, err := f.service.Complete(f.familyID, task.ID, 0, "", nil)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("no photos = %v, want validation error", err)
	}

	tooMany := []string{"a", "b", "c", "d"}
	_, err = f.service.Complete(f.familyID, task.ID, 0, "", tooMany)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("too many photos = %v, want validation error", err)
	}
}

func TestCompleteWithoutPhotoWhenDisabled(t *testing.T) {
	f := setupLifecycleTest(t, 0)
	task := f.createTask(t, "Dishes")
	if _, err := f.service.Start(f.familyID, task.ID, f.kidID); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := f.service.Complete(f.familyID, task.ID, 0, "", nil); err != nil {
		t.Fatalf("complete without photos: %v", err)
	}
}

func TestApproveRequiresElevation(t *testing.T) {
	f := setupLifecycleTest(t, 0)
	task := f.createTask(t, "Dishes")
	f.service.Start(f.familyID, task.ID, f.kidID)
	f.service.Complete(f.familyID, task.ID, 0, "", nil)

	_, err := f.service.Approve(f.userID, f.familyID, task.ID)
	if !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("approve without elevation = %v, want authorization error", err)
	}

	if _, err := f.guard.Elevate(f.userID, "1234"); err != nil {
		t.Fatalf("elevate: %v", err)
	}

	approved, err := f.service.Approve(f.userID, f.familyID, task.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != model.TaskApproved {
		t.Errorf("status = %q, want %q", approved.Status, model.TaskApproved)
	}
}

func TestDoubleReviewConflicts(t *testing.T) {
	f := setupLifecycleTest(t, 0)
	task := f.createTask(t, "Dishes")
	f.service.Start(f.familyID, task.ID, f.kidID)
	f.service.Complete(f.familyID, task.ID, 0, "", nil)

	if _, err := f.guard.Elevate(f.userID, "1234"); err != nil {
		t.Fatalf("elevate: %v", err)
	}
	if _, err := f.service.Approve(f.userID, f.familyID, task.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	_, err := f.service.Reject(f.userID, f.familyID, task.ID)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("second review = %v, want conflict", err)
	}
}

func TestTaskScopedToFamily(t *testing.T) {
	f := setupLifecycleTest(t, 0)
	task := f.createTask(t, "Dishes")

	_, err := f.service.Start(f.familyID+1, task.ID, f.kidID)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("cross-family start = %v, want not found", err)
	}
}

func TestPauseAndResume(t *testing.T) {
	f := setupLifecycleTest(t, 0)
	task := f.createTask(t, "Dishes")
	if _, err := f.service.Start(f.familyID, task.ID, f.kidID); err != nil {
		t.Fatalf("start: %v", err)
	}

	total, err := f.service.Pause(f.familyID, task.ID)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if total < 0 {
		t.Errorf("total = %d, want >= 0", total)
	}

	if err := f.service.Resume(f.familyID, task.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}

	if _, err := f.service.Complete(f.familyID, task.ID, 1000, "", nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := f.service.Pause(f.familyID, task.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("pause after complete = %v, want conflict", err)
	}
}

func TestResumeRebuildsTimerAfterRestart(t *testing.T) {
	f := setupLifecycleTest(t, 0)
	task := f.createTask(t, "Dishes")
	if _, err := f.service.Start(f.familyID, task.ID, f.kidID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.service.SaveWorkTime(f.familyID, task.ID, 20000); err != nil {
		t.Fatalf("save work time: %v", err)
	}

	// A fresh service has no in-memory timer; Resume rebuilds it from the
	// persisted total.
	fresh := NewService(f.tasks, f.kids, f.guard, 0, slog.Default())
	if err := fresh.Resume(f.familyID, task.ID); err != nil {
		t.Fatalf("resume on fresh service: %v", err)
	}

	total, err := fresh.Pause(f.familyID, task.ID)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if total < 20000 {
		t.Errorf("total = %d, want at least 20000", total)
	}
}

func TestSaveWorkTimeValidation(t *testing.T) {
	f := setupLifecycleTest(t, 0)
	task := f.createTask(t, "Dishes")
	f.service.Start(f.familyID, task.ID, f.kidID)

	if err := f.service.SaveWorkTime(f.familyID, task.ID, -1); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("negative time = %v, want validation error", err)
	}
	if err := f.service.SaveWorkTime(f.familyID, task.ID, 30000); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := f.tasks.GetByID(task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.WorkTimeMS != 30000 {
		t.Errorf("work_time_ms = %d, want 30000", got.WorkTimeMS)
	}
}
