package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"dayplan-cli/internal/api"
	"dayplan-cli/internal/model"
)

var (
	// ErrBusy is returned when a reorder is already in progress. No request is sent.
	ErrBusy = errors.New("workflow: reorder already in progress")
	// ErrEmptyOrder means the server answered 2xx without any ordered tasks.
	ErrEmptyOrder = errors.New("workflow: server returned no ordered tasks")
)

// Generator sends the order request. *api.Client implements it.
type Generator interface {
	GenerateOrder(ctx context.Context, req model.OrderRequest) (*http.Response, error)
}

// TaskSource supplies the tasks to order and receives the result.
type TaskSource interface {
	UserID() model.UserID
	Snapshot() model.PersistedState
	ApplyOrder(ctx context.Context, ordered []model.Task)
}

type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

type Delays struct {
	Out time.Duration
	In  time.Duration
}

var DefaultDelays = Delays{Out: 250 * time.Millisecond, In: 350 * time.Millisecond}

// Outcome describes one finished run.
type Outcome struct {
	Ordered   []model.Task
	Message   string
	FreeHours *int
}

// Order runs reorder requests one at a time.
type Order struct {
	Machine   *Machine
	Generator Generator
	Tasks     TaskSource
	Clock     Clock
	Delays    Delays
	Logger    *slog.Logger

	wg      sync.WaitGroup
	mu      sync.Mutex
	last    Outcome
	lastErr error
}

func NewOrder(gen Generator, tasks TaskSource, logger *slog.Logger) *Order {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Order{
		Machine:   NewMachine(),
		Generator: gen,
		Tasks:     tasks,
		Clock:     realClock{},
		Delays:    DefaultDelays,
		Logger:    logger,
	}
}

func (o *Order) clock() Clock {
	if o.Clock == nil {
		return realClock{}
	}
	return o.Clock
}

func (o *Order) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

// Run performs one reorder and returns once the machine is back to idle.
// The request itself is not canceled by ctx; only the wait before it is.
func (o *Order) Run(ctx context.Context, freeHours *int) (Outcome, error) {
	if _, err := o.Machine.Fire(EventTrigger); err != nil {
		return Outcome{}, ErrBusy
	}
	return o.run(ctx, freeHours)
}

// Trigger starts a run in the background. It reports false, and does nothing, when a run is
// already in flight.
func (o *Order) Trigger(ctx context.Context, freeHours *int) bool {
	if _, err := o.Machine.Fire(EventTrigger); err != nil {
		return false
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		out, err := o.run(ctx, freeHours)
		o.mu.Lock()
		o.last, o.lastErr = out, err
		o.mu.Unlock()
	}()
	return true
}

// Wait blocks until background runs finish and returns the result of the latest one.
func (o *Order) Wait() (Outcome, error) {
	o.wg.Wait()
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last, o.lastErr
}

func (o *Order) run(ctx context.Context, freeHours *int) (Outcome, error) {
	log := o.logger()
	out := Outcome{FreeHours: freeHours}

	select {
	case <-o.clock().After(o.Delays.Out):
	case <-ctx.Done():
		o.fail()
		return out, ctx.Err()
	}

	snap := o.Tasks.Snapshot()
	req := model.OrderRequest{
		UID:       o.Tasks.UserID(),
		Tasks:     make([]model.TaskForAPI, 0, len(snap.Tasks)),
		FreeHours: freeHours,
	}
	for _, t := range snap.Tasks {
		req.Tasks = append(req.Tasks, t.ForAPI())
	}

	detached := context.WithoutCancel(ctx)
	resp, err := o.Generator.GenerateOrder(detached, req)
	if err != nil {
		log.Error("reorder failed", "err", err)
		o.fail()
		return out, err
	}
	res, err := api.DecodeOrder(resp)
	if err != nil {
		log.Error("reorder failed", "status", resp.StatusCode, "err", err)
		o.fail()
		return out, err
	}
	if len(res.OrderedTasks) == 0 {
		log.Warn("reorder returned no tasks", "message", res.Message)
		o.fail()
		out.Message = res.Message
		return out, ErrEmptyOrder
	}

	o.Tasks.ApplyOrder(detached, res.OrderedTasks)
	out.Ordered = res.OrderedTasks
	out.Message = res.Message
	if _, err := o.Machine.Fire(EventOrdered); err != nil {
		return out, err
	}
	log.Debug("reorder applied", "tasks", len(res.OrderedTasks))

	<-o.clock().After(o.Delays.In)
	if _, err := o.Machine.Fire(EventSettled); err != nil {
		return out, err
	}
	return out, nil
}

func (o *Order) fail() {
	if _, err := o.Machine.Fire(EventFailed); err != nil {
		o.logger().Error("workflow stuck", "err", err)
	}
}
