package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"dayplan-cli/internal/model"
)

type DoctorIssueLevel string

const (
	DoctorIssueLevelError DoctorIssueLevel = "error"
	DoctorIssueLevelWarn  DoctorIssueLevel = "warn"
)

type DoctorIssue struct {
	Level   DoctorIssueLevel `json:"level"`
	Code    string           `json:"code"`
	Message string           `json:"message"`
	Key     string           `json:"key,omitempty"`
	TaskID  string           `json:"taskId,omitempty"`
}

type DoctorReport struct {
	CurrentUser string        `json:"currentUser,omitempty"`
	StateKeys   []string      `json:"stateKeys"`
	Issues      []DoctorIssue `json:"issues"`
}

func (r DoctorReport) HasErrors() bool {
	for _, it := range r.Issues {
		if it.Level == DoctorIssueLevelError {
			return true
		}
	}
	return false
}

var ErrDoctorIssuesFound = errors.New("doctor: issues found")

// DoctorLocal checks the device-local storage: the current-user key and every per-user
// state blob under prefix. Blob enumeration needs a KeyLister backend.
func DoctorLocal(ctx context.Context, kv KV, prefix string) DoctorReport {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultPrefix
	}
	report := DoctorReport{StateKeys: []string{}}
	var issues []DoctorIssue

	cur, ok, err := kv.Get(ctx, CurrentUserKey)
	switch {
	case err != nil:
		report.Issues = []DoctorIssue{{
			Level:   DoctorIssueLevelError,
			Code:    "storage_unavailable",
			Message: err.Error(),
			Key:     CurrentUserKey,
		}}
		return report
	case !ok || strings.TrimSpace(cur) == "":
		issues = append(issues, DoctorIssue{
			Level:   DoctorIssueLevelWarn,
			Code:    "current_user_missing",
			Message: "no user has been resolved on this device yet",
			Key:     CurrentUserKey,
		})
	default:
		report.CurrentUser = strings.TrimSpace(cur)
	}

	lister, ok := kv.(KeyLister)
	if !ok {
		report.Issues = issuesOrEmpty(issues)
		return report
	}
	keys, err := lister.Keys(ctx, prefix+"_")
	if err != nil {
		issues = append(issues, DoctorIssue{
			Level:   DoctorIssueLevelError,
			Code:    "storage_scan_failed",
			Message: err.Error(),
		})
		report.Issues = issuesOrEmpty(issues)
		return report
	}
	if keys != nil {
		report.StateKeys = keys
	}

	for _, key := range keys {
		raw, _, err := kv.Get(ctx, key)
		if err != nil {
			issues = append(issues, DoctorIssue{Level: DoctorIssueLevelError, Code: "storage_read_failed", Message: err.Error(), Key: key})
			continue
		}
		issues = append(issues, doctorState(key, raw)...)
	}

	if report.CurrentUser != "" {
		want := StorageKey(prefix, model.UserID(report.CurrentUser))
		found := false
		for _, k := range keys {
			if k == want {
				found = true
				break
			}
		}
		if !found {
			issues = append(issues, DoctorIssue{
				Level:   DoctorIssueLevelWarn,
				Code:    "current_user_no_state",
				Message: fmt.Sprintf("current user %s has no stored state yet", report.CurrentUser),
				Key:     want,
			})
		}
	}

	report.Issues = issuesOrEmpty(issues)
	return report
}

func doctorState(key, raw string) []DoctorIssue {
	var issues []DoctorIssue
	var st model.PersistedState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return []DoctorIssue{{
			Level:   DoctorIssueLevelError,
			Code:    "malformed_state",
			Message: fmt.Sprintf("state does not parse (it loads as empty): %v", err),
			Key:     key,
		}}
	}

	// Blobs written by older clients ("" for unset numbers) are rewritten on the next save.
	if canon, err := json.Marshal(st); err == nil && !jsonEquivalent([]byte(raw), canon) {
		issues = append(issues, DoctorIssue{
			Level:   DoctorIssueLevelWarn,
			Code:    "non_canonical_state",
			Message: "state uses a legacy encoding; the next change rewrites it",
			Key:     key,
		})
	}

	seen := map[string]bool{}
	for _, t := range st.Tasks {
		if strings.TrimSpace(t.Name) == "" {
			issues = append(issues, DoctorIssue{Level: DoctorIssueLevelWarn, Code: "task_missing_name", Message: "task has no name", Key: key, TaskID: t.ID})
		}
		if t.ComplexityHours <= 0 {
			issues = append(issues, DoctorIssue{
				Level:   DoctorIssueLevelWarn,
				Code:    "task_bad_complexity",
				Message: fmt.Sprintf("complexityHours %d is not positive", t.ComplexityHours),
				Key:     key,
				TaskID:  t.ID,
			})
		}
		if t.ID == "" {
			continue
		}
		if seen[t.ID] {
			issues = append(issues, DoctorIssue{Level: DoctorIssueLevelWarn, Code: "duplicate_task_id", Message: "task id appears twice", Key: key, TaskID: t.ID})
		}
		seen[t.ID] = true
	}
	return issues
}

func jsonEquivalent(a, b []byte) bool {
	var x, y any
	if json.Unmarshal(a, &x) != nil || json.Unmarshal(b, &y) != nil {
		return false
	}
	xb, _ := json.Marshal(x)
	yb, _ := json.Marshal(y)
	return string(xb) == string(yb)
}

// Doctor checks the config values the client depends on.
func (c *GlobalConfig) Doctor() []DoctorIssue {
	var issues []DoctorIssue
	if c == nil {
		return issuesOrEmpty(issues)
	}
	if _, err := c.Timeout(); err != nil {
		issues = append(issues, DoctorIssue{Level: DoctorIssueLevelError, Code: "config_bad_timeout", Message: err.Error()})
	}
	if strings.TrimSpace(c.APIURL) == "" {
		issues = append(issues, DoctorIssue{
			Level:   DoctorIssueLevelWarn,
			Code:    "config_no_api_url",
			Message: "apiUrl is not set; pass --api-url or set DAYPLAN_API_URL",
		})
	}
	return issuesOrEmpty(issues)
}

func issuesOrEmpty(xs []DoctorIssue) []DoctorIssue {
	if xs == nil {
		return []DoctorIssue{}
	}
	return xs
}
