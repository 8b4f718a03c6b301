// Package task implements the task lifecycle:
//
//	available → in_progress → completed → approved | rejected
//
// Transitions are guarded in the store by conditional updates, so a stale
// or concurrent attempt surfaces as a conflict and the row is never left
// partially transitioned. Approve and reject revalidate parent elevation
// at call time.
package task

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nerloapp/nerlo/internal/apperr"
	"github.com/nerloapp/nerlo/internal/elevation"
	"github.com/nerloapp/nerlo/internal/model"
	"github.com/nerloapp/nerlo/internal/store"
	"github.com/nerloapp/nerlo/internal/worktime"
)

// timerSession is the server-side work timer for one in-progress task.
type timerSession struct {
	tracker *worktime.Tracker
	flusher *worktime.Flusher
}

type Service struct {
	tasks     *store.TaskStore
	kids      *store.KidStore
	guard     *elevation.Guard
	minPhotos int
	now       func() time.Time
	logger    *slog.Logger

	mu     sync.Mutex
	timers map[int64]*timerSession
}

// NewService creates the lifecycle service. minPhotos is the number of
// photo references required to complete a task (0 disables the rule); the
// upper bound is always model.MaxWorkPhotos.
func NewService(tasks *store.TaskStore, kids *store.KidStore, guard *elevation.Guard, minPhotos int, logger *slog.Logger) *Service {
	return &Service{
		tasks:     tasks,
		kids:      kids,
		guard:     guard,
		minPhotos: minPhotos,
		now:       time.Now,
		logger:    logger,
		timers:    make(map[int64]*timerSession),
	}
}

// Start claims an available task for a kid. Fails with a conflict if the
// task is no longer available or is assigned to someone else.
func (s *Service) Start(familyID, taskID, kidID int64) (*model.Task, error) {
	kid, err := s.kids.GetByID(kidID)
	if err != nil {
		return nil, apperr.Unavailablef("load kid: %v", err)
	}
	if kid == nil || kid.FamilyID != familyID {
		return nil, apperr.NotFoundf("kid %d", kidID)
	}

	existing, err := s.getFamilyTask(familyID, taskID)
	if err != nil {
		return nil, err
	}

	ok, err := s.tasks.Start(taskID, kidID, s.now())
	if err != nil {
		return nil, apperr.Unavailablef("start task: %v", err)
	}
	if !ok {
		// Someone else won the claim, or the task already moved on.
		return nil, apperr.Conflictf("task is %s", existing.Status)
	}

	s.startTimer(taskID, existing.WorkTimeMS)
	s.logger.Info("task started", "task_id", taskID, "kid_id", kidID)
	return s.tasks.GetByID(taskID)
}

// Pause suspends the work timer and persists the total so far. Returns the
// total in milliseconds.
func (s *Service) Pause(familyID, taskID int64) (int64, error) {
	t, err := s.getFamilyTask(familyID, taskID)
	if err != nil {
		return 0, err
	}
	if t.Status != model.TaskInProgress {
		return 0, apperr.Conflictf("task is %s", t.Status)
	}

	sess := s.timer(taskID)
	if sess == nil {
		return t.WorkTimeMS, nil
	}
	total := sess.tracker.Pause().Milliseconds()
	if err := s.tasks.SaveWorkTime(taskID, total); err != nil {
		return 0, apperr.Unavailablef("save work time: %v", err)
	}
	return total, nil
}

// Resume restarts the work timer. After a server restart the timer session
// is rebuilt from the persisted total.
func (s *Service) Resume(familyID, taskID int64) error {
	t, err := s.getFamilyTask(familyID, taskID)
	if err != nil {
		return err
	}
	if t.Status != model.TaskInProgress {
		return apperr.Conflictf("task is %s", t.Status)
	}

	if sess := s.timer(taskID); sess != nil {
		sess.tracker.Resume()
		return nil
	}
	s.startTimer(taskID, t.WorkTimeMS)
	return nil
}

// Complete finishes an in-progress task. workTimeMS is the final total from
// the work timer and is flushed unconditionally as part of the transition.
func (s *Service) Complete(familyID, taskID int64, workTimeMS int64, notes string, photos []string) (*model.Task, error) {
	if len(photos) < s.minPhotos {
		return nil, apperr.Validationf("at least %d work photo(s) required", s.minPhotos)
	}
	if len(photos) > model.MaxWorkPhotos {
		return nil, apperr.Validationf("at most %d work photos allowed", model.MaxWorkPhotos)
	}
	if workTimeMS < 0 {
		return nil, apperr.Validationf("work time must not be negative")
	}

	existing, err := s.getFamilyTask(familyID, taskID)
	if err != nil {
		return nil, err
	}

	ok, err := s.tasks.Complete(taskID, workTimeMS, notes, photos, s.now())
	if err != nil {
		return nil, apperr.Unavailablef("complete task: %v", err)
	}
	if !ok {
		return nil, apperr.Conflictf("task is %s", existing.Status)
	}

	s.stopTimer(taskID)
	s.logger.Info("task completed", "task_id", taskID, "work_time_ms", workTimeMS, "photos", len(photos))
	return s.tasks.GetByID(taskID)
}

// Approve marks a completed task approved. Parent-only; this is the point
// at which the reward becomes earned in all aggregations.
func (s *Service) Approve(userID, familyID, taskID int64) (*model.Task, error) {
	return s.review(userID, familyID, taskID, model.TaskApproved)
}

// Reject marks a completed task rejected. Parent-only and terminal; the
// reward is never counted as earned or pending.
func (s *Service) Reject(userID, familyID, taskID int64) (*model.Task, error) {
	return s.review(userID, familyID, taskID, model.TaskRejected)
}

func (s *Service) review(userID, familyID, taskID int64, verdict model.TaskStatus) (*model.Task, error) {
	if _, err := s.guard.Require(userID); err != nil {
		return nil, err
	}

	existing, err := s.getFamilyTask(familyID, taskID)
	if err != nil {
		return nil, err
	}

	ok, err := s.tasks.SetStatus(taskID, model.TaskCompleted, verdict)
	if err != nil {
		return nil, apperr.Unavailablef("review task: %v", err)
	}
	if !ok {
		return nil, apperr.Conflictf("task is %s", existing.Status)
	}

	s.logger.Info("task reviewed", "task_id", taskID, "verdict", verdict)
	return s.tasks.GetByID(taskID)
}

// SaveWorkTime persists a running work-time total for an in-progress task.
// Values below the stored total are ignored so the counter never regresses.
func (s *Service) SaveWorkTime(familyID, taskID int64, workTimeMS int64) error {
	if workTimeMS < 0 {
		return apperr.Validationf("work time must not be negative")
	}
	if _, err := s.getFamilyTask(familyID, taskID); err != nil {
		return err
	}
	if err := s.tasks.SaveWorkTime(taskID, workTimeMS); err != nil {
		return apperr.Unavailablef("save work time: %v", err)
	}
	return nil
}

// startTimer begins a server-side work session for a task. The flusher
// autosaves the running total, so a crash loses at most one flush interval.
func (s *Service) startTimer(taskID, baseMS int64) {
	tracker := worktime.NewTracker(time.Duration(baseMS) * time.Millisecond)
	tracker.Start()
	flusher := worktime.NewFlusher(tracker, func(ms int64) error {
		return s.tasks.SaveWorkTime(taskID, ms)
	}, s.logger)
	flusher.Start(context.Background())

	s.mu.Lock()
	old := s.timers[taskID]
	s.timers[taskID] = &timerSession{tracker: tracker, flusher: flusher}
	s.mu.Unlock()
	if old != nil {
		go old.flusher.Stop()
	}
}

func (s *Service) timer(taskID int64) *timerSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timers[taskID]
}

// stopTimer ends the timer session, flushing once more. The final total on
// the row is the larger of the flushed total and the one submitted with the
// completion.
func (s *Service) stopTimer(taskID int64) {
	s.mu.Lock()
	sess := s.timers[taskID]
	delete(s.timers, taskID)
	s.mu.Unlock()
	if sess != nil {
		sess.flusher.Stop()
	}
}

func (s *Service) getFamilyTask(familyID, taskID int64) (*model.Task, error) {
	t, err := s.tasks.GetByID(taskID)
	if err != nil {
		return nil, apperr.Unavailablef("load task: %v", err)
	}
	if t == nil || t.FamilyID != familyID {
		return nil, apperr.NotFoundf("task %d", taskID)
	}
	return t, nil
}
