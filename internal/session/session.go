// Package session owns one user's planner state for the lifetime of a process: it loads the
// stored blob once, applies every change in memory first and writes the blob back after each
// change. Backend writes happen after the local update; their failures are logged and the
// local data is kept.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"dayplan-cli/internal/model"
	"dayplan-cli/internal/store"

	"github.com/google/uuid"
)

var ErrClosed = errors.New("session closed")

// Backend is the subset of the API client the session writes through.
type Backend interface {
	SubmitTask(ctx context.Context, body model.SubmitTaskBody) (model.SubmitTaskResponse, error)
	SubmitFreeHours(ctx context.Context, body model.FreeHoursBody) error
	SubmitResult(ctx context.Context, body model.ResultBody) error
}

type Session struct {
	mu     sync.Mutex
	state  model.PersistedState
	closed bool

	store   store.StateStore
	backend Backend
	logger  *slog.Logger
	newID   func() string
	load    store.LoadResult
}

type Option func(*Session)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIDGenerator replaces the local task id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Session) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func newLocalID() string { return "local-" + uuid.NewString() }

// Open loads the stored state for st.ID. A missing, corrupt or unreadable blob yields an
// empty state; the load result is kept for callers that want to tell these apart.
func Open(ctx context.Context, st store.StateStore, backend Backend, opts ...Option) *Session {
	s := &Session{
		store:   st,
		backend: backend,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID:   newLocalID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.load = st.Load(ctx)
	switch s.load.Status {
	case store.LoadCorrupt:
		s.logger.Warn("stored state is corrupt; starting empty", "key", st.Key(), "err", s.load.Err)
	case store.LoadUnavailable:
		s.logger.Error("storage unavailable; starting empty", "key", st.Key(), "err", s.load.Err)
	}
	s.state = s.load.State.Clone()
	return s
}

func (s *Session) UserID() model.UserID { return s.store.ID }

func (s *Session) LoadResult() store.LoadResult { return s.load }

func (s *Session) Snapshot() model.PersistedState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Close drops every later update, including replies to requests still in flight.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// update applies fn and persists the result. Callers hold no lock.
func (s *Session) update(ctx context.Context, fn func(st *model.PersistedState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	fn(&s.state)
	s.persistLocked(ctx)
	return nil
}

func (s *Session) persistLocked(ctx context.Context) {
	if err := s.store.Save(ctx, s.state); err != nil {
		s.logger.Error("save state failed", "key", s.store.Key(), "err", err)
	}
}

type AddResult struct {
	Task   model.Task `json:"task"`
	Synced bool       `json:"synced"`
}

// AddTask appends the task with a local id, then submits it. When the backend accepts it
// and returns an id, the local id is replaced.
func (s *Session) AddTask(ctx context.Context, in TaskInput) (AddResult, error) {
	task, err := in.validate()
	if err != nil {
		return AddResult{}, err
	}
	task.ID = s.newID()
	localID := task.ID
	if err := s.update(ctx, func(st *model.PersistedState) {
		st.Tasks = append(st.Tasks, task)
	}); err != nil {
		return AddResult{}, err
	}

	res := AddResult{Task: task}
	if s.backend == nil {
		return res, nil
	}
	reply, err := s.backend.SubmitTask(ctx, model.SubmitTaskBody{
		UID:            s.UserID(),
		Name:           task.Name,
		Deadline:       task.Deadline,
		EstimatedHours: task.ComplexityHours,
	})
	if err != nil {
		s.logger.Error("submit task failed", "task", localID, "err", err)
		return res, nil
	}
	if !reply.OK || strings.TrimSpace(reply.TaskID) == "" {
		return res, nil
	}

	err = s.update(ctx, func(st *model.PersistedState) {
		for i := range st.Tasks {
			if st.Tasks[i].ID == localID {
				st.Tasks[i].ID = reply.TaskID
			}
		}
	})
	if err != nil {
		return res, nil
	}
	res.Task.ID = reply.TaskID
	res.Synced = true
	return res, nil
}

// RemoveTask drops a task from the local list and the ordered view. It reports whether a task
// with that id existed.
func (s *Session) RemoveTask(ctx context.Context, id string) (bool, error) {
	found := false
	err := s.update(ctx, func(st *model.PersistedState) {
		st.Tasks, found = withoutTask(st.Tasks, id)
		st.OrderedTasks, _ = withoutTask(st.OrderedTasks, id)
	})
	return found, err
}

func withoutTask(in []model.Task, id string) ([]model.Task, bool) {
	found := false
	out := in[:0:0]
	for _, t := range in {
		if t.ID == id {
			found = true
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, found
	}
	return out, found
}

// SaveFreeHours records the daily budget locally, submits it, and clears the draft whether
// or not the submit succeeded. It reports whether the backend accepted it.
func (s *Session) SaveFreeHours(ctx context.Context, hours int) (bool, error) {
	if err := checkFreeHours(hours); err != nil {
		return false, err
	}
	if err := s.update(ctx, func(st *model.PersistedState) {
		st.SavedFreeHours = model.Int(hours)
	}); err != nil {
		return false, err
	}

	synced := false
	if s.backend != nil {
		if err := s.backend.SubmitFreeHours(ctx, model.FreeHoursBody{UID: s.UserID(), FreeHours: hours}); err != nil {
			s.logger.Error("submit free hours failed", "hours", hours, "err", err)
		} else {
			synced = true
		}
	}

	err := s.update(ctx, func(st *model.PersistedState) {
		st.FreeHours = model.OptionalInt{}
	})
	return synced, err
}

// SetFreeHoursDraft stores the pending free-hours input. An unset value clears it.
func (s *Session) SetFreeHoursDraft(ctx context.Context, hours model.OptionalInt) error {
	if hours.Valid {
		if err := checkFreeHours(hours.Value); err != nil {
			return err
		}
	}
	return s.update(ctx, func(st *model.PersistedState) {
		st.FreeHours = hours
	})
}

// OrderFreeHours is the budget the next reorder sends: the draft if set, else the saved value.
func (s *Session) OrderFreeHours() *int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.state.FreeHours.Ptr(); p != nil {
		return p
	}
	return s.state.SavedFreeHours.Ptr()
}

// SetResultDraft stores the pending result input. An empty number clears it; anything else
// must be an integer >= 1, and a set percent must be within [0,100].
func (s *Session) SetResultDraft(ctx context.Context, number string, percent model.OptionalInt) error {
	number = strings.TrimSpace(number)
	if number != "" {
		if _, err := ParseResultNumber(number); err != nil {
			return err
		}
	}
	if percent.Valid {
		if err := checkPercent(percent.Value); err != nil {
			return err
		}
	}
	return s.update(ctx, func(st *model.PersistedState) {
		st.ResultNumber = number
		st.ResultPercent = percent
	})
}

// SubmitResult validates and submits a result report. The draft is cleared only after the
// backend accepted it.
func (s *Session) SubmitResult(ctx context.Context, number, percent int) error {
	if err := checkResultNumber(number); err != nil {
		return err
	}
	if err := checkPercent(percent); err != nil {
		return err
	}
	if s.backend == nil {
		return errors.New("no backend configured")
	}
	if err := s.backend.SubmitResult(ctx, model.ResultBody{UID: s.UserID(), Number: number, Percent: percent}); err != nil {
		s.logger.Error("submit result failed", "number", number, "percent", percent, "err", err)
		return err
	}
	return s.update(ctx, func(st *model.PersistedState) {
		st.ResultNumber = ""
		st.ResultPercent = model.OptionalInt{}
	})
}

// SubmitResultDraft parses the stored draft and submits it.
func (s *Session) SubmitResultDraft(ctx context.Context) error {
	snap := s.Snapshot()
	number, err := ParseResultNumber(snap.ResultNumber)
	if err != nil {
		return err
	}
	if !snap.ResultPercent.Valid {
		return invalid("percent", "", "required")
	}
	return s.SubmitResult(ctx, number, snap.ResultPercent.Value)
}

// ApplyOrder replaces both the ordered view and the canonical list with ordered.
func (s *Session) ApplyOrder(ctx context.Context, ordered []model.Task) {
	err := s.update(ctx, func(st *model.PersistedState) {
		st.OrderedTasks = append([]model.Task{}, ordered...)
		st.Tasks = append([]model.Task{}, ordered...)
	})
	if err != nil {
		s.logger.Debug("ordering dropped", "err", err)
	}
}

// Clear deletes the stored blob for this user and resets the in-memory state.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.state = model.PersistedState{}
	return nil
}
