package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.clickup.com/api/v2"

// Client talks to the tracker REST API.
type Client struct {
	baseURL  string
	apiToken string
	teamID   string
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Client) { t.client = c }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Client) { t.logger = l }
}

// WithClock overrides the time source used for relative date math.
func WithClock(now func() time.Time) Option {
	return func(t *Client) { t.now = now }
}

// NewClient creates a tracker client. baseURL defaults to the hosted
// v2 API when empty.
func NewClient(baseURL, apiToken, teamID string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiToken: apiToken,
		teamID:   teamID,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TasksByList fetches the tasks of one list, optionally filtered.
func (c *Client) TasksByList(ctx context.Context, listID string, f TaskFilters) ([]Task, error) {
	if listID == "" {
		return nil, fmt.Errorf("tracker: list_id is required")
	}
	var resp struct {
		Tasks []Task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, "/list/"+url.PathEscape(listID)+"/task", f.values(), nil, &resp); err != nil {
		return nil, fmt.Errorf("tasks by list %s: %w", listID, err)
	}
	return resp.Tasks, nil
}

// TasksUpdatedSince returns the tasks touched in the last hoursAgo
// hours, including closed tasks and subtasks. hoursAgo defaults to 24.
func (c *Client) TasksUpdatedSince(ctx context.Context, listID string, hoursAgo int) ([]Task, error) {
	if hoursAgo <= 0 {
		hoursAgo = 24
	}
	cutoff := c.now().Add(-time.Duration(hoursAgo) * time.Hour)
	return c.TasksByList(ctx, listID, TaskFilters{
		DateUpdatedGT: cutoff.UnixMilli(),
		IncludeClosed: true,
		Subtasks:      true,
	})
}

// CreateTask creates a task in the given list.
func (c *Client) CreateTask(ctx context.Context, listID string, t NewTask) (*Task, error) {
	if listID == "" {
		return nil, fmt.Errorf("tracker: list_id is required")
	}
	if t.Name == "" {
		return nil, fmt.Errorf("tracker: task name is required")
	}
	if t.Priority != nil {
		if n, ok := normalizePriority(t.Priority); ok {
			t.Priority = n
		} else {
			t.Priority = nil
		}
	}
	var created Task
	if err := c.do(ctx, http.MethodPost, "/list/"+url.PathEscape(listID)+"/task", nil, t, &created); err != nil {
		return nil, fmt.Errorf("create task in list %s: %w", listID, err)
	}
	c.logger.Info("tracker task created", "list_id", listID, "task_id", created.ID, "name", created.Name)
	return &created, nil
}

// UpdateTask applies field updates to a task. Named priorities are
// normalized to the numeric scale and bare assignee lists become an
// add operation.
func (c *Client) UpdateTask(ctx context.Context, taskID string, updates map[string]any) (*Task, error) {
	if taskID == "" {
		return nil, fmt.Errorf("tracker: task_id is required")
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("tracker: no updates given")
	}
	payload := make(map[string]any, len(updates))
	for k, v := range updates {
		payload[k] = v
	}
	if p, ok := payload["priority"]; ok {
		if n, normOK := normalizePriority(p); normOK {
			payload["priority"] = n
		}
	}
	if a, ok := payload["assignees"]; ok {
		if _, isMap := a.(map[string]any); !isMap {
			payload["assignees"] = map[string]any{"add": a}
		}
	}
	var updated Task
	if err := c.do(ctx, http.MethodPut, "/task/"+url.PathEscape(taskID), nil, payload, &updated); err != nil {
		return nil, fmt.Errorf("update task %s: %w", taskID, err)
	}
	c.logger.Info("tracker task updated", "task_id", taskID)
	return &updated, nil
}

// TaskDetails fetches one task with its full metadata.
func (c *Client) TaskDetails(ctx context.Context, taskID string) (*Task, error) {
	if taskID == "" {
		return nil, fmt.Errorf("tracker: task_id is required")
	}
	var t Task
	if err := c.do(ctx, http.MethodGet, "/task/"+url.PathEscape(taskID), nil, nil, &t); err != nil {
		return nil, fmt.Errorf("task details %s: %w", taskID, err)
	}
	return &t, nil
}

// ListDetails fetches list metadata, including available statuses.
func (c *Client) ListDetails(ctx context.Context, listID string) (*List, error) {
	if listID == "" {
		return nil, fmt.Errorf("tracker: list_id is required")
	}
	var l List
	if err := c.do(ctx, http.MethodGet, "/list/"+url.PathEscape(listID), nil, nil, &l); err != nil {
		return nil, fmt.Errorf("list details %s: %w", listID, err)
	}
	return &l, nil
}

// TasksWithTimeSpent aggregates logged hours across a list's tasks.
// Time comes from the task records themselves rather than the time
// entries endpoint, which undercounts.
func (c *Client) TasksWithTimeSpent(ctx context.Context, listID string, f TaskFilters) (*TimeSpentReport, error) {
	tasks, err := c.TasksByList(ctx, listID, f)
	if err != nil {
		return nil, err
	}
	report := &TimeSpentReport{TotalTasks: len(tasks), Tasks: []TaskTimeSpent{}}
	var totalHours float64
	for _, t := range tasks {
		if t.TimeSpent <= 0 {
			continue
		}
		hours := msToHours(t.TimeSpent)
		totalHours += hours
		status := ""
		if t.Status != nil {
			status = t.Status.Status
		}
		report.Tasks = append(report.Tasks, TaskTimeSpent{
			ID:             t.ID,
			Name:           t.Name,
			Status:         status,
			TimeSpentMS:    t.TimeSpent,
			TimeSpentHours: round2(hours),
			Assignees:      t.Assignees,
			URL:            t.URL,
		})
	}
	report.TasksWithTime = len(report.Tasks)
	report.TotalHoursSpent = round2(totalHours)
	return report, nil
}

// CreateTimeEntry logs durationHours against a task, starting now.
func (c *Client) CreateTimeEntry(ctx context.Context, taskID string, durationHours float64, description string, assigneeID int, billable bool) (*TimeEntry, error) {
	if taskID == "" {
		return nil, fmt.Errorf("tracker: task_id is required")
	}
	if durationHours <= 0 {
		return nil, fmt.Errorf("tracker: duration must be positive")
	}
	payload := map[string]any{
		"description": description,
		"duration":    int64(durationHours * float64(time.Hour/time.Millisecond)),
		"start":       c.now().UnixMilli(),
		"billable":    billable,
		"tid":         taskID,
	}
	if assigneeID != 0 {
		payload["assignee"] = assigneeID
	}
	var entry TimeEntry
	if err := c.do(ctx, http.MethodPost, "/team/"+url.PathEscape(c.teamID)+"/time_entries", nil, payload, &entry); err != nil {
		return nil, fmt.Errorf("create time entry for task %s: %w", taskID, err)
	}
	c.logger.Info("tracker time entry created", "task_id", taskID, "hours", durationHours)
	return &entry, nil
}

// TaskTimeTracking derives spent/estimate/progress figures for a task.
func (c *Client) TaskTimeTracking(ctx context.Context, taskID string) (*TimeTracking, error) {
	t, err := c.TaskDetails(ctx, taskID)
	if err != nil {
		return nil, err
	}
	spent := msToHours(t.TimeSpent)
	estimate := msToHours(t.TimeEstimate)
	progress := TrackProgress{}
	if estimate > 0 {
		progress.Percentage = round1(spent / estimate * 100)
		if remaining := estimate - spent; remaining > 0 {
			progress.RemainingHours = round2(remaining)
		}
	}
	return &TimeTracking{
		TaskID:       taskID,
		TaskName:     t.Name,
		TimeSpent:    TimeAmount{Milliseconds: t.TimeSpent, Hours: round2(spent)},
		TimeEstimate: TimeAmount{Milliseconds: t.TimeEstimate, Hours: round2(estimate)},
		Progress:     progress,
	}, nil
}

// TeamMembers lists the workspace members, used to map assignees.
func (c *Client) TeamMembers(ctx context.Context) ([]Member, error) {
	var resp struct {
		Team struct {
			Members []struct {
				User Member `json:"user"`
			} `json:"members"`
		} `json:"team"`
	}
	if err := c.do(ctx, http.MethodGet, "/team/"+url.PathEscape(c.teamID), nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("team members: %w", err)
	}
	members := make([]Member, 0, len(resp.Team.Members))
	for _, m := range resp.Team.Members {
		members = append(members, m.User)
	}
	return members, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("tracker api request", "method", method, "path", path)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
