package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"dayplan-cli/internal/apitest"
	"dayplan-cli/internal/model"
	"dayplan-cli/internal/store"
)

func runCLI(t *testing.T, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

// setupCLI isolates config and env from the host and starts a fake backend. It returns the
// flags that point the CLI at both.
func setupCLI(t *testing.T) ([]string, *apitest.Backend) {
	t.Helper()

	t.Setenv("DAYPLAN_CONFIG_DIR", t.TempDir())
	for _, k := range []string{"DAYPLAN_API_URL", "DAYPLAN_DATA_DIR", "DAYPLAN_PLATFORM_USER_ID", "DAYPLAN_LAUNCH", "DAYPLAN_FORMAT", "DAYPLAN_MD_STYLE"} {
		t.Setenv(k, "")
	}

	backend := apitest.New()
	srv := backend.Start()
	t.Cleanup(srv.Close)

	return []string{"--data-dir", t.TempDir(), "--api-url", srv.URL}, backend
}

func mustRun(t *testing.T, base []string, args ...string) []byte {
	t.Helper()
	out, errOut, err := runCLI(t, append(append([]string{}, base...), args...))
	if err != nil {
		t.Fatalf("%v: %v\nstderr:\n%s", args, err, string(errOut))
	}
	return out
}

func decodeData(t *testing.T, out []byte, v any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(out, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v\nstdout:\n%s", err, string(out))
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("unmarshal data: %v\nstdout:\n%s", err, string(out))
	}
}

type whoamiOut struct {
	UserID     model.UserID         `json:"userId"`
	Source     string               `json:"source"`
	Previous   model.UserID         `json:"previous"`
	Migration  *store.MigrateResult `json:"migration"`
	StorageKey string               `json:"storageKey"`
}

func TestWhoami_LaunchThenPersisted(t *testing.T) {
	base, _ := setupCLI(t)

	var w whoamiOut
	decodeData(t, mustRun(t, base, "--launch", "https://t.me/planner?startapp=1&userId=42", "whoami"), &w)
	if w.UserID != "42" || w.Source != "launch" {
		t.Fatalf("first whoami: %+v", w)
	}
	if w.StorageKey != "mobile_task_app_v1_42" {
		t.Fatalf("storage key: %s", w.StorageKey)
	}

	decodeData(t, mustRun(t, base, "whoami"), &w)
	if w.UserID != "42" || w.Source != "persisted" {
		t.Fatalf("second whoami: %+v", w)
	}

	decodeData(t, mustRun(t, base, "--platform-user", "9000", "--launch", "uid=42", "whoami"), &w)
	if w.UserID != "9000" || w.Source != "platform" || w.Previous != "42" {
		t.Fatalf("platform whoami: %+v", w)
	}
}

func TestWhoami_GeneratesPlaceholderOnce(t *testing.T) {
	base, _ := setupCLI(t)

	var first, second whoamiOut
	decodeData(t, mustRun(t, base, "whoami"), &first)
	if first.Source != "generated" || !strings.HasPrefix(string(first.UserID), "dev_") {
		t.Fatalf("first: %+v", first)
	}
	decodeData(t, mustRun(t, base, "whoami"), &second)
	if second.UserID != first.UserID || second.Source != "persisted" {
		t.Fatalf("second: %+v", second)
	}
}

func TestIdentityChangeMigratesLocalData(t *testing.T) {
	base, _ := setupCLI(t)

	mustRun(t, base, "identity", "use", "7")
	mustRun(t, base, "tasks", "add", "--name", "Carry over", "--complexity", "2")

	var w whoamiOut
	decodeData(t, mustRun(t, base, "--launch", "?userId=42", "whoami"), &w)
	if w.Migration == nil || w.Migration.Status != store.MigrateCopied {
		t.Fatalf("migration: %+v", w.Migration)
	}

	var tasks []model.Task
	decodeData(t, mustRun(t, base, "tasks", "list"), &tasks)
	if len(tasks) != 1 || tasks[0].Name != "Carry over" {
		t.Fatalf("tasks after migration: %+v", tasks)
	}

	// A later switch back must not clobber 7's data.
	mustRun(t, base, "tasks", "add", "--name", "Only for 42", "--complexity", "1")
	var res struct {
		Migration *store.MigrateResult `json:"migration"`
	}
	decodeData(t, mustRun(t, base, "identity", "use", "7"), &res)
	if res.Migration == nil || res.Migration.Status != store.MigrateDestinationSet {
		t.Fatalf("switch back: %+v", res.Migration)
	}
	decodeData(t, mustRun(t, base, "tasks", "list"), &tasks)
	if len(tasks) != 1 {
		t.Fatalf("7's data was overwritten: %+v", tasks)
	}
}

func TestAddThenOrder(t *testing.T) {
	base, backend := setupCLI(t)
	base = append(base, "--launch", "userId=42")

	var added struct {
		Task   model.Task `json:"task"`
		Synced bool       `json:"synced"`
	}
	decodeData(t, mustRun(t, base, "tasks", "add", "--name", "Write report", "--complexity", "3"), &added)
	if !added.Synced || added.Task.ID == "" {
		t.Fatalf("add: %+v", added)
	}

	backend.SetOrder(func(req model.OrderRequest) (int, any) {
		return http.StatusOK, json.RawMessage(`{"orderedTasks":[{"name":"Write report","complexityHours":3}]}`)
	})

	var ordered struct {
		OrderedTasks []model.Task `json:"orderedTasks"`
		FreeHours    *int         `json:"freeHours"`
	}
	decodeData(t, mustRun(t, base, "order", "--free-hours", "5"), &ordered)
	if len(ordered.OrderedTasks) != 1 || ordered.FreeHours == nil || *ordered.FreeHours != 5 {
		t.Fatalf("order: %+v", ordered)
	}

	var tasks []model.Task
	decodeData(t, mustRun(t, base, "tasks", "list", "--ordered"), &tasks)
	want := model.Task{Name: "Write report", ComplexityHours: 3}
	if len(tasks) != 1 || tasks[0] != want {
		t.Fatalf("ordered view: %+v", tasks)
	}
	decodeData(t, mustRun(t, base, "tasks", "list"), &tasks)
	if len(tasks) != 1 || tasks[0] != want {
		t.Fatalf("canonical list: %+v", tasks)
	}

	_, _, _, orders := backend.Snapshot()
	if len(orders) != 1 || orders[0].UID != "42" {
		t.Fatalf("order requests: %+v", orders)
	}
}

func TestOrder_FailureKeepsTasks(t *testing.T) {
	base, backend := setupCLI(t)

	mustRun(t, base, "tasks", "add", "--name", "keep me", "--complexity", "1")
	backend.SetOrder(func(model.OrderRequest) (int, any) { return http.StatusInternalServerError, "nope" })

	_, errOut, err := runCLI(t, append(append([]string{}, base...), "order"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(string(errOut), "API Error 500") {
		t.Fatalf("stderr: %s", string(errOut))
	}

	var tasks []model.Task
	decodeData(t, mustRun(t, base, "tasks", "list"), &tasks)
	if len(tasks) != 1 || tasks[0].Name != "keep me" {
		t.Fatalf("tasks changed: %+v", tasks)
	}
}

func TestOrder_UsesSavedHoursWhenNoFlag(t *testing.T) {
	base, backend := setupCLI(t)

	mustRun(t, base, "tasks", "add", "--name", "a", "--complexity", "1")
	mustRun(t, base, "hours", "set", "6")
	mustRun(t, base, "order")

	mustRun(t, base, "hours", "draft", "3")
	mustRun(t, base, "order")

	_, hours, _, orders := backend.Snapshot()
	if len(hours) != 1 || hours[0].FreeHours != 6 {
		t.Fatalf("free hours: %+v", hours)
	}
	if len(orders) != 2 || orders[0].FreeHours == nil || *orders[0].FreeHours != 6 || orders[1].FreeHours == nil || *orders[1].FreeHours != 3 {
		t.Fatalf("orders: %+v", orders)
	}
}

func TestValidationRejectsBeforeNetwork(t *testing.T) {
	base, backend := setupCLI(t)

	cases := [][]string{
		{"hours", "set", "0"},
		{"hours", "set", "25"},
		{"hours", "set", "2.5"},
		{"result", "submit", "--number", "1", "--percent", "101"},
		{"result", "submit", "--number", "0", "--percent", "50"},
		{"tasks", "add", "--name", "x", "--complexity", "0"},
		{"order", "--free-hours", "30"},
	}
	for _, args := range cases {
		if _, _, err := runCLI(t, append(append([]string{}, base...), args...)); err == nil {
			t.Fatalf("%v accepted", args)
		}
	}
	tasks, hours, results, orders := backend.Snapshot()
	if len(tasks)+len(hours)+len(results)+len(orders) != 0 {
		t.Fatalf("backend saw requests: %v %v %v %v", tasks, hours, results, orders)
	}
}

func TestResultDraftThenSubmit(t *testing.T) {
	base, backend := setupCLI(t)

	mustRun(t, base, "result", "draft", "--number", "2", "--percent", "75")
	mustRun(t, base, "result", "submit")

	_, _, results, _ := backend.Snapshot()
	if len(results) != 1 || results[0].Number != 2 || results[0].Percent != 75 {
		t.Fatalf("results: %+v", results)
	}

	var st struct {
		State model.PersistedState `json:"state"`
	}
	decodeData(t, mustRun(t, base, "state"), &st)
	if st.State.ResultNumber != "" || st.State.ResultPercent.Valid {
		t.Fatalf("draft not cleared: %+v", st.State)
	}
}

func TestResultDraft_RejectsBadNumber(t *testing.T) {
	base, _ := setupCLI(t)
	base = append(base, "--launch", "userId=007")

	mustRun(t, base, "result", "draft", "--number", "4")
	for _, n := range []string{"abc", "0", "-2"} {
		if _, _, err := runCLI(t, append(append([]string{}, base...), "result", "draft", "--number="+n)); err == nil {
			t.Fatalf("--number %s accepted", n)
		}
	}

	var st struct {
		UserID model.UserID         `json:"userId"`
		State  model.PersistedState `json:"state"`
	}
	decodeData(t, mustRun(t, base, "state"), &st)
	if st.UserID != "007" || st.State.ResultNumber != "4" {
		t.Fatalf("state: %+v", st)
	}
}

func TestLeadingZeroUserIDReachesBackend(t *testing.T) {
	base, backend := setupCLI(t)
	base = append(base, "--launch", "userId=007")

	mustRun(t, base, "tasks", "add", "--name", "Call", "--complexity", "1")
	mustRun(t, base, "hours", "set", "4")

	tasks, hours, _, _ := backend.Snapshot()
	if len(tasks["007"]) != 1 {
		t.Fatalf("backend tasks: %+v", tasks)
	}
	if len(hours) != 1 || hours[0].UID != "007" {
		t.Fatalf("backend hours: %+v", hours)
	}
}

func TestUserInitAndShow(t *testing.T) {
	base, _ := setupCLI(t)
	base = append(base, "--platform-user", "42")

	mustRun(t, base, "user", "init")
	mustRun(t, base, "tasks", "add", "--name", "server side", "--complexity", "2")

	var p struct {
		User  model.User   `json:"user"`
		Tasks []model.Task `json:"tasks"`
	}
	decodeData(t, mustRun(t, base, "user", "show"), &p)
	if p.User.ID != 42 || len(p.Tasks) != 1 || p.Tasks[0].ComplexityHours != 2 {
		t.Fatalf("profile: %+v", p)
	}
}

func TestHeaderFlagAndConfig(t *testing.T) {
	base, backend := setupCLI(t)

	mustRun(t, base, "config", "set", "headers.X-Client", "dayplan")
	mustRun(t, base, "--header", "X-Trace=abc", "health")

	h := backend.LastHeader()
	if h.Get("X-Client") != "dayplan" || h.Get("X-Trace") != "abc" {
		t.Fatalf("headers: %v", h)
	}

	if _, _, err := runCLI(t, append(append([]string{}, base...), "--header", "novalue", "health")); err == nil {
		t.Fatalf("malformed --header accepted")
	}
}

func TestConfigAPIURLIsUsedWhenNoFlag(t *testing.T) {
	base, _ := setupCLI(t)
	apiURL := base[3]
	dataDir := []string{"--data-dir", base[1]}

	_, errOut, err := runCLI(t, append(append([]string{}, dataDir...), "health"))
	if err == nil || !strings.Contains(string(errOut), "apiUrl") {
		t.Fatalf("expected missing-origin hint, got %v\n%s", err, string(errOut))
	}

	mustRun(t, dataDir, "config", "set", "apiUrl", apiURL)
	var out struct {
		URL    string       `json:"url"`
		Health model.Health `json:"health"`
	}
	decodeData(t, mustRun(t, dataDir, "health"), &out)
	if out.Health.Status != "ok" || out.URL != apiURL+"/api/health" {
		t.Fatalf("health: %+v", out)
	}
}

func TestFormats(t *testing.T) {
	base, _ := setupCLI(t)
	base = append(base, "--launch", "userId=42")
	mustRun(t, base, "tasks", "add", "--name", "Write report", "--complexity", "3")

	yamlOut := mustRun(t, base, "--format", "yaml", "tasks", "list")
	if !strings.Contains(string(yamlOut), "name: Write report") {
		t.Fatalf("yaml:\n%s", string(yamlOut))
	}

	textOut := mustRun(t, base)
	if !strings.Contains(string(textOut), "Write report") || !strings.Contains(string(textOut), "3h") {
		t.Fatalf("text:\n%s", string(textOut))
	}

	if _, _, err := runCLI(t, append(append([]string{}, base...), "--format", "edn", "state")); err == nil {
		t.Fatalf("unknown format accepted")
	}
}

func TestTasksRemoveAndClear(t *testing.T) {
	base, _ := setupCLI(t)

	var added struct {
		Task model.Task `json:"task"`
	}
	decodeData(t, mustRun(t, base, "tasks", "add", "--name", "a", "--complexity", "1"), &added)
	mustRun(t, base, "tasks", "add", "--name", "b", "--complexity", "1")

	if _, errOut, err := runCLI(t, append(append([]string{}, base...), "tasks", "remove", "missing")); err == nil || !strings.Contains(string(errOut), "task not found") {
		t.Fatalf("remove missing: %v %s", err, string(errOut))
	}
	mustRun(t, base, "tasks", "remove", added.Task.ID)

	var tasks []model.Task
	decodeData(t, mustRun(t, base, "tasks", "list"), &tasks)
	if len(tasks) != 1 || tasks[0].Name != "b" {
		t.Fatalf("after remove: %+v", tasks)
	}

	mustRun(t, base, "tasks", "clear")
	decodeData(t, mustRun(t, base, "tasks", "list"), &tasks)
	if len(tasks) != 0 {
		t.Fatalf("after clear: %+v", tasks)
	}
}

func TestDoctor(t *testing.T) {
	base, _ := setupCLI(t)
	mustRun(t, base, "--launch", "userId=42", "tasks", "add", "--name", "a", "--complexity", "1")

	var report store.DoctorReport
	decodeData(t, mustRun(t, base, "doctor", "--fail"), &report)
	if report.CurrentUser != "42" || len(report.Issues) != 0 {
		t.Fatalf("report: %+v", report)
	}

	dead := []string{"--data-dir", base[1], "--api-url", "http://127.0.0.1:1"}
	out, _, err := runCLI(t, append(dead, "doctor", "--fail"))
	if err == nil {
		t.Fatalf("expected failure for unreachable backend")
	}
	decodeData(t, out, &report)
	if len(report.Issues) != 1 || report.Issues[0].Code != "backend_unreachable" {
		t.Fatalf("issues: %+v", report.Issues)
	}

	decodeData(t, mustRun(t, dead, "doctor", "--offline", "--fail"), &report)
	if len(report.Issues) != 0 {
		t.Fatalf("offline issues: %+v", report.Issues)
	}
}

func TestDocs(t *testing.T) {
	base, _ := setupCLI(t)

	var list struct {
		Topics []string `json:"topics"`
	}
	decodeData(t, mustRun(t, base, "docs"), &list)
	if len(list.Topics) == 0 {
		t.Fatalf("no topics")
	}

	var doc struct {
		Topic    string `json:"topic"`
		Markdown string `json:"markdown"`
	}
	decodeData(t, mustRun(t, base, "docs", "identity"), &doc)
	if doc.Topic != "identity" || !strings.Contains(doc.Markdown, "# Identity") {
		t.Fatalf("unexpected doc: %+v", doc)
	}

	raw := mustRun(t, base, "docs", "ordering", "--raw")
	if !strings.HasPrefix(string(raw), "# Ordering") {
		t.Fatalf("raw:\n%s", string(raw))
	}

	text := mustRun(t, base, "--format", "text", "docs", "storage")
	if strings.Contains(string(text), `"markdown"`) || !strings.Contains(string(text), "Local storage") {
		t.Fatalf("text:\n%s", string(text))
	}

	if _, _, err := runCLI(t, append(append([]string{}, base...), "docs", "nope")); err == nil {
		t.Fatalf("unknown topic accepted")
	}
}
