// Package apitest is an in-process stand-in for the planner backend. It implements every
// endpoint the client consumes and records what it received.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"dayplan-cli/internal/model"

	"github.com/go-chi/chi/v5"
)

// OrderFunc computes the /generate-order reply. The default returns tasks unchanged.
type OrderFunc func(req model.OrderRequest) (status int, body any)

type Backend struct {
	mu sync.Mutex

	Users      map[string]model.User
	Tasks      map[string][]model.Task
	FreeHours  []model.FreeHoursBody
	Results    []model.ResultBody
	Orders     []model.OrderRequest
	Headers    []http.Header
	nextTaskID int

	// Order overrides the default ordering reply.
	Order OrderFunc
	// OrderGate, when set, blocks /generate-order until it is closed or receives.
	OrderGate chan struct{}
	// OrderStarted receives once per /generate-order request (non-blocking send).
	OrderStarted chan struct{}
	// FailWith makes every write endpoint reply with this status.
	FailWith int
}

func New() *Backend {
	return &Backend{
		Users:      map[string]model.User{},
		Tasks:      map[string][]model.Task{},
		nextTaskID: 100,
	}
}

// Start serves the backend on a local test server; the caller closes it.
func (b *Backend) Start() *httptest.Server {
	return httptest.NewServer(b.Handler())
}

func (b *Backend) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(b.recordHeaders)
	r.Route("/api", func(r chi.Router) {
		r.Get("/start/{userID}", b.handleStart)
		r.Get("/user/{userID}", b.handleUser)
		r.Get("/user/{userID}/tasks", b.handleUserTasks)
		r.Post("/task", b.handleTask)
		r.Post("/free-hours", b.handleFreeHours)
		r.Post("/result", b.handleResult)
		r.Post("/generate-order", b.handleGenerateOrder)
		r.Get("/health", b.handleHealth)
	})
	return r
}

func (b *Backend) SetOrder(fn OrderFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Order = fn
}

func (b *Backend) SetFailWith(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.FailWith = status
}

// HoldOrders makes /generate-order wait until release is called. started receives
// once per held request.
func (b *Backend) HoldOrders() (started <-chan struct{}, release func()) {
	gate := make(chan struct{})
	st := make(chan struct{}, 16)
	b.mu.Lock()
	b.OrderGate = gate
	b.OrderStarted = st
	b.mu.Unlock()
	var once sync.Once
	return st, func() { once.Do(func() { close(gate) }) }
}

func (b *Backend) Snapshot() (tasks map[string][]model.Task, hours []model.FreeHoursBody, results []model.ResultBody, orders []model.OrderRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tasks = map[string][]model.Task{}
	for k, v := range b.Tasks {
		tasks[k] = append([]model.Task{}, v...)
	}
	return tasks, append([]model.FreeHoursBody{}, b.FreeHours...), append([]model.ResultBody{}, b.Results...), append([]model.OrderRequest{}, b.Orders...)
}

func (b *Backend) OrderCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Orders)
}

func (b *Backend) LastHeader() http.Header {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.Headers) == 0 {
		return nil
	}
	return b.Headers[len(b.Headers)-1]
}

func (b *Backend) recordHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.Headers = append(b.Headers, r.Header.Clone())
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *Backend) failing(w http.ResponseWriter) bool {
	b.mu.Lock()
	status := b.FailWith
	b.mu.Unlock()
	if status == 0 {
		return false
	}
	http.Error(w, "backend unavailable", status)
	return true
}

func (b *Backend) handleStart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")
	b.mu.Lock()
	if _, ok := b.Users[id]; !ok {
		n, _ := strconv.ParseInt(id, 10, 64)
		b.Users[id] = model.User{ID: n}
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, "user "+id+" initialized")
}

func (b *Backend) handleUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")
	b.mu.Lock()
	u, ok := b.Users[id]
	b.mu.Unlock()
	if !ok {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (b *Backend) handleUserTasks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")
	b.mu.Lock()
	tasks := append([]model.Task{}, b.Tasks[id]...)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, tasks)
}

func (b *Backend) handleTask(w http.ResponseWriter, r *http.Request) {
	if b.failing(w) {
		return
	}
	var body model.SubmitTaskBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	b.nextTaskID++
	id := strconv.Itoa(b.nextTaskID)
	key := string(body.UID)
	b.Tasks[key] = append(b.Tasks[key], model.Task{ID: id, Name: body.Name, Deadline: body.Deadline, ComplexityHours: body.EstimatedHours})
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, model.SubmitTaskResponse{OK: true, TaskID: id})
}

func (b *Backend) handleFreeHours(w http.ResponseWriter, r *http.Request) {
	if b.failing(w) {
		return
	}
	var body model.FreeHoursBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	b.FreeHours = append(b.FreeHours, body)
	b.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (b *Backend) handleResult(w http.ResponseWriter, r *http.Request) {
	if b.failing(w) {
		return
	}
	var body model.ResultBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	b.Results = append(b.Results, body)
	b.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleGenerateOrder(w http.ResponseWriter, r *http.Request) {
	var req model.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	b.Orders = append(b.Orders, req)
	gate, started, fn := b.OrderGate, b.OrderStarted, b.Order
	b.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	if fn != nil {
		status, body := fn(req)
		writeJSON(w, status, body)
		return
	}
	out := make([]model.Task, 0, len(req.Tasks))
	for _, t := range req.Tasks {
		out = append(out, model.Task{Name: t.Name, Deadline: t.Deadline, ComplexityHours: t.EstimatedHours})
	}
	writeJSON(w, http.StatusOK, model.OrderResponse{OrderedTasks: out})
}

func (b *Backend) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.Health{Status: "ok", Localtonet: "up", Time: time.Now().UTC().Format(time.RFC3339)})
}
