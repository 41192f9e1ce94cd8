package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// UserID identifies one end user. All persisted data is partitioned by it.
type UserID string

func (id UserID) String() string { return string(id) }

func (id UserID) IsZero() bool { return strings.TrimSpace(string(id)) == "" }

// Numeric reports whether the id is the canonical decimal form of an int64 (the backend's
// Uid). "007" and values past MaxInt64 stay strings.
func (id UserID) Numeric() bool {
	s := string(id)
	n, err := strconv.ParseInt(s, 10, 64)
	return err == nil && n >= 0 && strconv.FormatInt(n, 10) == s
}

// MarshalJSON encodes numeric ids as JSON numbers and everything else as strings.
func (id UserID) MarshalJSON() ([]byte, error) {
	if id.Numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *UserID) UnmarshalJSON(b []byte) error {
	s, err := decodeStringOrNumber(b)
	if err != nil {
		return err
	}
	*id = UserID(s)
	return nil
}

// decodeStringOrNumber reads ids the backend may send either as strings or as numbers.
func decodeStringOrNumber(b []byte) (string, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return "", nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// OptionalInt is an integer that may be unset. It decodes from a number, a numeric
// string, "" or null, and is omitted from output when unset (use with `omitzero`).
type OptionalInt struct {
	Value int
	Valid bool
}

func Int(v int) OptionalInt { return OptionalInt{Value: v, Valid: true} }

func (o OptionalInt) IsZero() bool { return !o.Valid }

// Ptr returns nil when unset.
func (o OptionalInt) Ptr() *int {
	if !o.Valid {
		return nil
	}
	v := o.Value
	return &v
}

func (o OptionalInt) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(o.Value)), nil
}

func (o *OptionalInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*o = OptionalInt{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*o = OptionalInt{}
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("optional int: %w", err)
		}
		*o = Int(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*o = Int(n)
	return nil
}

// DeadlineLayout is the dd.MM.yyyy layout used for task deadlines.
const DeadlineLayout = "02.01.2006"

type Task struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name"`
	Deadline        string `json:"deadline,omitempty"`
	ComplexityHours int    `json:"complexityHours"`
}

// UnmarshalJSON accepts the server-side hour field names when complexityHours is absent.
func (t *Task) UnmarshalJSON(b []byte) error {
	type taskAlias Task
	var raw struct {
		taskAlias
		ID              json.RawMessage `json:"id"`
		ComplexityHours *int            `json:"complexityHours"`
		EstimatedHours  *int            `json:"estimatedHours"`
		Complexity      *int            `json:"complexity"`
		Hours           *int            `json:"hours"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*t = Task(raw.taskAlias)
	id, err := decodeStringOrNumber(raw.ID)
	if err != nil {
		return fmt.Errorf("task id: %w", err)
	}
	t.ID = id
	for _, h := range []*int{raw.ComplexityHours, raw.EstimatedHours, raw.Complexity, raw.Hours} {
		if h != nil {
			t.ComplexityHours = *h
			break
		}
	}
	return nil
}

func (t Task) ForAPI() TaskForAPI {
	return TaskForAPI{Name: t.Name, Deadline: t.Deadline, EstimatedHours: t.ComplexityHours}
}

type TaskForAPI struct {
	Name           string `json:"name"`
	Deadline       string `json:"deadline,omitempty"`
	EstimatedHours int    `json:"estimatedHours"`
}

// PersistedState is the per-user blob kept in local storage.
type PersistedState struct {
	Tasks          []Task      `json:"tasks,omitempty"`
	OrderedTasks   []Task      `json:"orderedTasks,omitempty"`
	FreeHours      OptionalInt `json:"freeHours,omitzero"`
	SavedFreeHours OptionalInt `json:"savedFreeHours,omitzero"`
	ResultNumber   string      `json:"resultNumber,omitempty"`
	ResultPercent  OptionalInt `json:"resultPercent,omitzero"`
}

// Clone returns a copy that shares no slices with s.
func (s PersistedState) Clone() PersistedState {
	out := s
	out.Tasks = cloneTasks(s.Tasks)
	out.OrderedTasks = cloneTasks(s.OrderedTasks)
	return out
}

func cloneTasks(in []Task) []Task {
	if in == nil {
		return nil
	}
	out := make([]Task, len(in))
	copy(out, in)
	return out
}

type OrderRequest struct {
	UID       UserID       `json:"Uid"`
	Tasks     []TaskForAPI `json:"tasks"`
	FreeHours *int         `json:"freeHours,omitempty"`
}

type OrderResponse struct {
	OrderedTasks []Task `json:"orderedTasks"`
	Message      string `json:"message,omitempty"`
}

type SubmitTaskBody struct {
	UID            UserID `json:"Uid"`
	Name           string `json:"name"`
	Deadline       string `json:"deadline,omitempty"`
	EstimatedHours int    `json:"estimatedHours"`
}

type SubmitTaskResponse struct {
	OK     bool   `json:"ok"`
	TaskID string `json:"taskId,omitempty"`
}

func (r *SubmitTaskResponse) UnmarshalJSON(b []byte) error {
	var raw struct {
		OK     bool            `json:"ok"`
		TaskID json.RawMessage `json:"taskId"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	id, err := decodeStringOrNumber(raw.TaskID)
	if err != nil {
		return fmt.Errorf("taskId: %w", err)
	}
	*r = SubmitTaskResponse{OK: raw.OK, TaskID: id}
	return nil
}

type FreeHoursBody struct {
	UID       UserID `json:"Uid"`
	FreeHours int    `json:"freeHours"`
}

type ResultBody struct {
	UID     UserID `json:"Uid"`
	Number  int    `json:"number"`
	Percent int    `json:"percent"`
}

type User struct {
	ID       int64   `json:"id"`
	Username *string `json:"username"`
	FreeTime *int    `json:"freeTime"`
}

type Health struct {
	Status     string `json:"status"`
	Localtonet string `json:"localtonet"`
	Time       string `json:"time"`
}
