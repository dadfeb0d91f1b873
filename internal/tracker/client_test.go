package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"
)

type captured struct {
	method string
	path   string
	query  url.Values
	body   map[string]any
}

func testClient(t *testing.T, status int, response string) (*Client, *captured) {
	t.Helper()
	cap := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cap.method = r.Method
		cap.path = r.URL.Path
		cap.query = r.URL.Query()
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&cap.body)
		}
		if r.Header.Get("Authorization") != "pk_test" {
			t.Errorf("authorization header = %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "pk_test", "9001"), cap
}

func TestTasksByListFilters(t *testing.T) {
	c, cap := testClient(t, 200, `{"tasks":[{"id":"t1","name":"Fix login"},{"id":"t2","name":"Ship report"}]}`)

	tasks, err := c.TasksByList(context.Background(), "L1", TaskFilters{
		IncludeClosed: true,
		Subtasks:      true,
		Statuses:      []string{"in progress", "review"},
		DateUpdatedGT: 1700000000000,
		OrderBy:       "due_date",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 || tasks[0].ID != "t1" {
		t.Errorf("tasks = %+v", tasks)
	}
	if cap.path != "/list/L1/task" {
		t.Errorf("path = %q", cap.path)
	}
	if cap.query.Get("include_closed") != "true" || cap.query.Get("subtasks") != "true" {
		t.Errorf("query = %v", cap.query)
	}
	if got := cap.query["statuses[]"]; len(got) != 2 || got[0] != "in progress" {
		t.Errorf("statuses = %v", got)
	}
	if cap.query.Get("date_updated_gt") != "1700000000000" {
		t.Errorf("date_updated_gt = %q", cap.query.Get("date_updated_gt"))
	}
	if cap.query.Has("archived") || cap.query.Has("page") {
		t.Errorf("zero-valued filters leaked into query: %v", cap.query)
	}
}

func TestTasksUpdatedSinceCutoff(t *testing.T) {
	c, cap := testClient(t, 200, `{"tasks":[]}`)
	fixed := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	if _, err := c.TasksUpdatedSince(context.Background(), "L1", 0); err != nil {
		t.Fatal(err)
	}
	want := fixed.Add(-24 * time.Hour).UnixMilli()
	if got := cap.query.Get("date_updated_gt"); got != strconv.FormatInt(want, 10) {
		t.Errorf("cutoff = %q, want %d (24h default)", got, want)
	}
	if cap.query.Get("include_closed") != "true" || cap.query.Get("subtasks") != "true" {
		t.Errorf("query = %v", cap.query)
	}
}

func TestCreateTaskPriorityNormalized(t *testing.T) {
	c, cap := testClient(t, 200, `{"id":"t9","name":"Quarterly review"}`)

	task, err := c.CreateTask(context.Background(), "L1", NewTask{
		Name:     "Quarterly review",
		Priority: "Urgent",
	})
	if err != nil {
		t.Fatal(err)
	}
	if task.ID != "t9" {
		t.Errorf("task = %+v", task)
	}
	if cap.method != http.MethodPost || cap.path != "/list/L1/task" {
		t.Errorf("%s %s", cap.method, cap.path)
	}
	if got := cap.body["priority"]; got != float64(1) {
		t.Errorf("priority = %v, want 1 for urgent", got)
	}
}

func TestCreateTaskRequiresName(t *testing.T) {
	c, _ := testClient(t, 200, `{}`)
	if _, err := c.CreateTask(context.Background(), "L1", NewTask{}); err == nil {
		t.Error("expected error for nameless task")
	}
}

func TestUpdateTaskAssigneesBecomeAdd(t *testing.T) {
	c, cap := testClient(t, 200, `{"id":"t1","name":"Fix login"}`)

	_, err := c.UpdateTask(context.Background(), "t1", map[string]any{
		"assignees": []any{float64(42)},
		"priority":  "high",
		"status":    "in progress",
	})
	if err != nil {
		t.Fatal(err)
	}
	if cap.method != http.MethodPut || cap.path != "/task/t1" {
		t.Errorf("%s %s", cap.method, cap.path)
	}
	assignees, ok := cap.body["assignees"].(map[string]any)
	if !ok {
		t.Fatalf("assignees = %v, want add wrapper", cap.body["assignees"])
	}
	if add, ok := assignees["add"].([]any); !ok || len(add) != 1 {
		t.Errorf("assignees.add = %v", assignees["add"])
	}
	if cap.body["priority"] != float64(2) {
		t.Errorf("priority = %v, want 2 for high", cap.body["priority"])
	}
}

func TestTasksWithTimeSpent(t *testing.T) {
	c, _ := testClient(t, 200, `{"tasks":[
		{"id":"t1","name":"Design","time_spent":7200000,"status":{"status":"complete"}},
		{"id":"t2","name":"Build","time_spent":1800000},
		{"id":"t3","name":"No time logged"}
	]}`)

	report, err := c.TasksWithTimeSpent(context.Background(), "L1", TaskFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if report.TotalTasks != 3 || report.TasksWithTime != 2 {
		t.Errorf("counts = %d total, %d with time", report.TotalTasks, report.TasksWithTime)
	}
	if report.TotalHoursSpent != 2.5 {
		t.Errorf("total hours = %v, want 2.5", report.TotalHoursSpent)
	}
	if report.Tasks[0].TimeSpentHours != 2 || report.Tasks[0].Status != "complete" {
		t.Errorf("first task = %+v", report.Tasks[0])
	}
}

func TestTaskTimeTracking(t *testing.T) {
	c, _ := testClient(t, 200, `{"id":"t1","name":"Design","time_spent":5400000,"time_estimate":7200000}`)

	tt, err := c.TaskTimeTracking(context.Background(), "t1")
	if err != nil {
		t.Fatal(err)
	}
	if tt.TimeSpent.Hours != 1.5 || tt.TimeEstimate.Hours != 2 {
		t.Errorf("spent = %v, estimate = %v", tt.TimeSpent.Hours, tt.TimeEstimate.Hours)
	}
	if tt.Progress.Percentage != 75 {
		t.Errorf("percentage = %v, want 75", tt.Progress.Percentage)
	}
	if tt.Progress.RemainingHours != 0.5 {
		t.Errorf("remaining = %v, want 0.5", tt.Progress.RemainingHours)
	}
}

func TestCreateTimeEntry(t *testing.T) {
	c, cap := testClient(t, 200, `{"id":"te1","duration":5400000}`)
	fixed := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	entry, err := c.CreateTimeEntry(context.Background(), "t1", 1.5, "design work", 42, true)
	if err != nil {
		t.Fatal(err)
	}
	if entry.ID != "te1" {
		t.Errorf("entry = %+v", entry)
	}
	if cap.path != "/team/9001/time_entries" {
		t.Errorf("path = %q", cap.path)
	}
	if cap.body["duration"] != float64(5400000) {
		t.Errorf("duration = %v, want 5400000 ms", cap.body["duration"])
	}
	if cap.body["start"] != float64(fixed.UnixMilli()) {
		t.Errorf("start = %v", cap.body["start"])
	}
	if cap.body["tid"] != "t1" || cap.body["assignee"] != float64(42) || cap.body["billable"] != true {
		t.Errorf("body = %v", cap.body)
	}
}

func TestTeamMembers(t *testing.T) {
	c, cap := testClient(t, 200, `{"team":{"members":[
		{"user":{"id":42,"username":"jordan","email":"jordan@example.com"}},
		{"user":{"id":43,"username":"sam"}}
	]}}`)

	members, err := c.TeamMembers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cap.path != "/team/9001" {
		t.Errorf("path = %q", cap.path)
	}
	if len(members) != 2 || members[0].Username != "jordan" {
		t.Errorf("members = %+v", members)
	}
}

func TestAPIError(t *testing.T) {
	c, _ := testClient(t, 404, `{"err":"List not found"}`)

	_, err := c.ListDetails(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 404 {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
}
