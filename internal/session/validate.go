package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"dayplan-cli/internal/model"
)

type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func invalid(field, value, reason string) error {
	return ValidationError{Field: field, Value: value, Reason: reason}
}

func parseInt(field, s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, invalid(field, s, "required")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, invalid(field, s, "must be a whole number")
	}
	return n, nil
}

// ParseFreeHours accepts a whole number of hours in [1, 24].
func ParseFreeHours(s string) (int, error) {
	n, err := parseInt("freeHours", s)
	if err != nil {
		return 0, err
	}
	return n, checkFreeHours(n)
}

func checkFreeHours(n int) error {
	if n < 1 || n > 24 {
		return invalid("freeHours", strconv.Itoa(n), "must be between 1 and 24")
	}
	return nil
}

// ParsePercent accepts a whole number in [0, 100].
func ParsePercent(s string) (int, error) {
	n, err := parseInt("percent", s)
	if err != nil {
		return 0, err
	}
	return n, checkPercent(n)
}

func checkPercent(n int) error {
	if n < 0 || n > 100 {
		return invalid("percent", strconv.Itoa(n), "must be between 0 and 100")
	}
	return nil
}

func ParseResultNumber(s string) (int, error) {
	n, err := parseInt("number", s)
	if err != nil {
		return 0, err
	}
	return n, checkResultNumber(n)
}

func checkResultNumber(n int) error {
	if n < 1 {
		return invalid("number", strconv.Itoa(n), "must be at least 1")
	}
	return nil
}

func ParseComplexity(s string) (int, error) {
	n, err := parseInt("complexityHours", s)
	if err != nil {
		return 0, err
	}
	return n, checkComplexity(n)
}

func checkComplexity(n int) error {
	if n <= 0 {
		return invalid("complexityHours", strconv.Itoa(n), "must be greater than 0")
	}
	return nil
}

// ParseDeadline accepts "" or a dd.MM.yyyy date and returns it normalized.
func ParseDeadline(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	t, err := time.Parse(model.DeadlineLayout, s)
	if err != nil {
		return "", invalid("deadline", s, "expected dd.MM.yyyy")
	}
	return t.Format(model.DeadlineLayout), nil
}

// TaskInput is a new task as typed by the user.
type TaskInput struct {
	Name            string
	Deadline        string
	ComplexityHours int
}

func (in TaskInput) validate() (model.Task, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Task{}, invalid("name", "", "required")
	}
	if err := checkComplexity(in.ComplexityHours); err != nil {
		return model.Task{}, err
	}
	deadline, err := ParseDeadline(in.Deadline)
	if err != nil {
		return model.Task{}, err
	}
	return model.Task{Name: name, Deadline: deadline, ComplexityHours: in.ComplexityHours}, nil
}
