// Package tracker is the project-tracker API client. It speaks the
// ClickUp-style v2 REST surface: tasks live in lists, time is tracked
// in milliseconds, and date filters are Unix-millisecond timestamps.
package tracker

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Task is a tracker task. Timestamps and durations arrive as
// millisecond values; date fields are millisecond strings.
type Task struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Status       *TaskStatus     `json:"status,omitempty"`
	Priority     json.RawMessage `json:"priority,omitempty"`
	DueDate      string          `json:"due_date,omitempty"`
	DateCreated  string          `json:"date_created,omitempty"`
	DateUpdated  string          `json:"date_updated,omitempty"`
	TimeSpent    int64           `json:"time_spent,omitempty"`
	TimeEstimate int64           `json:"time_estimate,omitempty"`
	Assignees    []Member        `json:"assignees,omitempty"`
	List         *ListRef        `json:"list,omitempty"`
	URL          string          `json:"url,omitempty"`
}

type TaskStatus struct {
	Status string `json:"status"`
	Type   string `json:"type,omitempty"`
	Color  string `json:"color,omitempty"`
}

type ListRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// List is a tracker list, including the statuses tasks in it may take.
type List struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	TaskCount int          `json:"task_count,omitempty"`
	Statuses  []TaskStatus `json:"statuses,omitempty"`
}

// Member is a workspace member.
type Member struct {
	ID       int    `json:"id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Initials string `json:"initials,omitempty"`
}

// TaskFilters narrows a list-task query. Date bounds are Unix
// milliseconds; zero values are omitted.
type TaskFilters struct {
	Archived      bool
	IncludeClosed bool
	Subtasks      bool
	Statuses      []string
	Assignees     []string
	DueDateGT     int64
	DueDateLT     int64
	DateCreatedGT int64
	DateCreatedLT int64
	DateUpdatedGT int64
	DateUpdatedLT int64
	Page          int
	OrderBy       string
	Reverse       bool
}

func (f TaskFilters) values() url.Values {
	v := url.Values{}
	if f.Archived {
		v.Set("archived", "true")
	}
	if f.IncludeClosed {
		v.Set("include_closed", "true")
	}
	if f.Subtasks {
		v.Set("subtasks", "true")
	}
	for _, s := range f.Statuses {
		v.Add("statuses[]", s)
	}
	for _, a := range f.Assignees {
		v.Add("assignees[]", a)
	}
	setMillis := func(key string, ms int64) {
		if ms > 0 {
			v.Set(key, strconv.FormatInt(ms, 10))
		}
	}
	setMillis("due_date_gt", f.DueDateGT)
	setMillis("due_date_lt", f.DueDateLT)
	setMillis("date_created_gt", f.DateCreatedGT)
	setMillis("date_created_lt", f.DateCreatedLT)
	setMillis("date_updated_gt", f.DateUpdatedGT)
	setMillis("date_updated_lt", f.DateUpdatedLT)
	if f.Page > 0 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.OrderBy != "" {
		v.Set("order_by", f.OrderBy)
	}
	if f.Reverse {
		v.Set("reverse", "true")
	}
	return v
}

// NewTask is the payload for task creation.
type NewTask struct {
	Name                string `json:"name"`
	Description         string `json:"description,omitempty"`
	MarkdownDescription string `json:"markdown_description,omitempty"`
	Status              string `json:"status,omitempty"`
	Priority            any    `json:"priority,omitempty"`
	DueDate             int64  `json:"due_date,omitempty"`
	Assignees           []int  `json:"assignees,omitempty"`
}

// normalizePriority maps the named priorities onto the API's 1..4
// scale; numeric values pass through.
func normalizePriority(p any) (int, bool) {
	switch v := p.(type) {
	case string:
		switch strings.ToLower(v) {
		case "urgent":
			return 1, true
		case "high":
			return 2, true
		case "normal":
			return 3, true
		case "low":
			return 4, true
		}
		if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 4 {
			return n, true
		}
	case int:
		if v >= 1 && v <= 4 {
			return v, true
		}
	case float64:
		n := int(v)
		if n >= 1 && n <= 4 {
			return n, true
		}
	}
	return 0, false
}

// TimeEntry is one tracked block of time against a task.
type TimeEntry struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	Duration    int64  `json:"duration"`
	Start       int64  `json:"start"`
	Billable    bool   `json:"billable"`
	TaskID      string `json:"tid,omitempty"`
}

// TimeSpentReport aggregates logged hours across a list's tasks.
type TimeSpentReport struct {
	Tasks           []TaskTimeSpent `json:"tasks"`
	TotalTasks      int             `json:"total_tasks"`
	TasksWithTime   int             `json:"tasks_with_time"`
	TotalHoursSpent float64         `json:"total_hours_spent"`
}

type TaskTimeSpent struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Status         string   `json:"status,omitempty"`
	TimeSpentMS    int64    `json:"time_spent_ms"`
	TimeSpentHours float64  `json:"time_spent_hours"`
	Assignees      []Member `json:"assignees,omitempty"`
	URL            string   `json:"url,omitempty"`
}

// TimeTracking is per-task time progress derived from task details.
type TimeTracking struct {
	TaskID       string        `json:"task_id"`
	TaskName     string        `json:"task_name"`
	TimeSpent    TimeAmount    `json:"time_spent"`
	TimeEstimate TimeAmount    `json:"time_estimate"`
	Progress     TrackProgress `json:"progress"`
}

type TimeAmount struct {
	Milliseconds int64   `json:"milliseconds"`
	Hours        float64 `json:"hours"`
}

type TrackProgress struct {
	Percentage     float64 `json:"percentage"`
	RemainingHours float64 `json:"remaining_hours"`
}

func msToHours(ms int64) float64 {
	return float64(ms) / (1000 * 60 * 60)
}

func round2(f float64) float64 {
	return float64(int64(f*100+signOf(f)*0.5)) / 100
}

func round1(f float64) float64 {
	return float64(int64(f*10+signOf(f)*0.5)) / 10
}

func signOf(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}

// APIError is a non-2xx tracker response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tracker api error (status %d): %s", e.StatusCode, e.Body)
}
