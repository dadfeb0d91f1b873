package tools

import (
	"context"
	"fmt"

	"github.com/briefops/briefops/internal/orchestrator"
	"github.com/briefops/briefops/internal/tracker"
)

// taskFilterParams is shared by every list-task capability. All
// filters are optional; date bounds are Unix milliseconds.
var taskFilterParams = []orchestrator.Param{
	{Name: "archived", Type: orchestrator.TypeBoolean, Description: "Include archived tasks", Optional: true},
	{Name: "include_closed", Type: orchestrator.TypeBoolean, Description: "Include closed tasks", Optional: true},
	{Name: "subtasks", Type: orchestrator.TypeBoolean, Description: "Include subtasks", Optional: true},
	{Name: "statuses", Type: orchestrator.TypeArray, Description: "Only tasks in these statuses", Optional: true},
	{Name: "assignees", Type: orchestrator.TypeArray, Description: "Only tasks assigned to these user ids", Optional: true},
	{Name: "due_date_gt", Type: orchestrator.TypeInteger, Description: "Due after this Unix ms timestamp", Optional: true},
	{Name: "due_date_lt", Type: orchestrator.TypeInteger, Description: "Due before this Unix ms timestamp", Optional: true},
	{Name: "date_created_gt", Type: orchestrator.TypeInteger, Description: "Created after this Unix ms timestamp", Optional: true},
	{Name: "date_created_lt", Type: orchestrator.TypeInteger, Description: "Created before this Unix ms timestamp", Optional: true},
	{Name: "date_updated_gt", Type: orchestrator.TypeInteger, Description: "Updated after this Unix ms timestamp", Optional: true},
	{Name: "date_updated_lt", Type: orchestrator.TypeInteger, Description: "Updated before this Unix ms timestamp", Optional: true},
	{Name: "page", Type: orchestrator.TypeInteger, Description: "Result page, starting at 0", Optional: true},
	{Name: "order_by", Type: orchestrator.TypeString, Description: "Sort field: id, created, updated or due_date", Optional: true},
	{Name: "reverse", Type: orchestrator.TypeBoolean, Description: "Reverse the sort order", Optional: true},
}

func decodeTaskFilters(args map[string]any) (tracker.TaskFilters, error) {
	var f tracker.TaskFilters
	var err error
	if f.Archived, err = optBoolArg(args, "archived"); err != nil {
		return f, err
	}
	if f.IncludeClosed, err = optBoolArg(args, "include_closed"); err != nil {
		return f, err
	}
	if f.Subtasks, err = optBoolArg(args, "subtasks"); err != nil {
		return f, err
	}
	if f.Statuses, err = optStringSliceArg(args, "statuses"); err != nil {
		return f, err
	}
	if f.Assignees, err = optStringSliceArg(args, "assignees"); err != nil {
		return f, err
	}
	if f.DueDateGT, err = optIntArg(args, "due_date_gt", 0); err != nil {
		return f, err
	}
	if f.DueDateLT, err = optIntArg(args, "due_date_lt", 0); err != nil {
		return f, err
	}
	if f.DateCreatedGT, err = optIntArg(args, "date_created_gt", 0); err != nil {
		return f, err
	}
	if f.DateCreatedLT, err = optIntArg(args, "date_created_lt", 0); err != nil {
		return f, err
	}
	if f.DateUpdatedGT, err = optIntArg(args, "date_updated_gt", 0); err != nil {
		return f, err
	}
	if f.DateUpdatedLT, err = optIntArg(args, "date_updated_lt", 0); err != nil {
		return f, err
	}
	page, err := optIntArg(args, "page", 0)
	if err != nil {
		return f, err
	}
	f.Page = int(page)
	if f.OrderBy, err = optStringArg(args, "order_by"); err != nil {
		return f, err
	}
	if f.Reverse, err = optBoolArg(args, "reverse"); err != nil {
		return f, err
	}
	return f, nil
}

// Tracker builds the project-tracker capabilities.
func Tracker(trk *tracker.Client) []*orchestrator.Capability {
	return []*orchestrator.Capability{
		{
			Name:        "get_tasks_by_list_id",
			Description: "Get tasks from a specific tracker list by id, with optional filtering for status, assignees and date ranges. Use this after getting the list id from the client mapping. Date filters expect Unix timestamps in milliseconds.",
			Params: append([]orchestrator.Param{
				{Name: "list_id", Type: orchestrator.TypeString, Description: "Tracker list id"},
			}, taskFilterParams...),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				listID, err := stringArg(args, "list_id")
				if err != nil {
					return nil, err
				}
				filters, err := decodeTaskFilters(args)
				if err != nil {
					return nil, err
				}
				return emptyTasks(trk.TasksByList(ctx, listID, filters))
			},
		},
		{
			Name:        "get_tasks_updated_since",
			Description: "Get tasks updated within the last N hours, including closed tasks and subtasks. Perfect for answering what has been happening with a client recently.",
			Params: []orchestrator.Param{
				{Name: "list_id", Type: orchestrator.TypeString, Description: "Tracker list id"},
				{Name: "hours_ago", Type: orchestrator.TypeInteger, Description: "Look-back window in hours", Optional: true, Default: 24},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				listID, err := stringArg(args, "list_id")
				if err != nil {
					return nil, err
				}
				hours, err := optIntArg(args, "hours_ago", 24)
				if err != nil {
					return nil, err
				}
				return emptyTasks(trk.TasksUpdatedSince(ctx, listID, int(hours)))
			},
		},
		{
			Name:        "create_task",
			Description: "Create a new task in a tracker list. task_data requires a name; description, markdown_description, status, priority (urgent, high, normal, low or 1-4), due_date (Unix ms) and assignees (user ids) are optional.",
			Params: []orchestrator.Param{
				{Name: "list_id", Type: orchestrator.TypeString, Description: "Tracker list id to create the task in"},
				{Name: "task_data", Type: orchestrator.TypeObject, Description: "New task fields"},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				listID, err := stringArg(args, "list_id")
				if err != nil {
					return nil, err
				}
				data, err := objectArg(args, "task_data")
				if err != nil {
					return nil, err
				}
				task, err := decodeNewTask(data)
				if err != nil {
					return nil, err
				}
				return trk.CreateTask(ctx, listID, task)
			},
		},
		{
			Name:        "update_task",
			Description: "Update specific fields of an existing task. Only the fields provided in updates are modified. Supports name, description, status, priority, due_date, time_estimate, assignees and more.",
			Params: []orchestrator.Param{
				{Name: "task_id", Type: orchestrator.TypeString, Description: "Tracker task id"},
				{Name: "updates", Type: orchestrator.TypeObject, Description: "Field-to-value map of changes"},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				taskID, err := stringArg(args, "task_id")
				if err != nil {
					return nil, err
				}
				updates, err := objectArg(args, "updates")
				if err != nil {
					return nil, err
				}
				return trk.UpdateTask(ctx, taskID, updates)
			},
		},
		{
			Name:        "get_task_details",
			Description: "Get detailed information about a specific task, including time tracking fields and metadata. Use when you need full task information.",
			Params: []orchestrator.Param{
				{Name: "task_id", Type: orchestrator.TypeString, Description: "Tracker task id"},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				taskID, err := stringArg(args, "task_id")
				if err != nil {
					return nil, err
				}
				return trk.TaskDetails(ctx, taskID)
			},
		},
		{
			Name:        "get_list_details",
			Description: "Get details about a tracker list, including the statuses tasks in it may take. Useful before creating or updating tasks.",
			Params: []orchestrator.Param{
				{Name: "list_id", Type: orchestrator.TypeString, Description: "Tracker list id"},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				listID, err := stringArg(args, "list_id")
				if err != nil {
					return nil, err
				}
				return trk.ListDetails(ctx, listID)
			},
		},
		{
			Name:        "get_tasks_with_time_spent",
			Description: "Get tasks with logged time and the total hours spent across a list. Perfect for questions about project hours and time allocation.",
			Params: append([]orchestrator.Param{
				{Name: "list_id", Type: orchestrator.TypeString, Description: "Tracker list id"},
			}, taskFilterParams...),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				listID, err := stringArg(args, "list_id")
				if err != nil {
					return nil, err
				}
				filters, err := decodeTaskFilters(args)
				if err != nil {
					return nil, err
				}
				return trk.TasksWithTimeSpent(ctx, listID, filters)
			},
		},
		{
			Name:        "create_time_entry",
			Description: "Log time against a task. Duration is in hours; the entry starts now and is billable unless stated otherwise.",
			Params: []orchestrator.Param{
				{Name: "task_id", Type: orchestrator.TypeString, Description: "Tracker task id"},
				{Name: "duration_hours", Type: orchestrator.TypeNumber, Description: "Hours to log"},
				{Name: "description", Type: orchestrator.TypeString, Description: "What the time was spent on", Optional: true},
				{Name: "assignee_id", Type: orchestrator.TypeInteger, Description: "Tracker user id to log the time for", Optional: true},
				{Name: "billable", Type: orchestrator.TypeBoolean, Description: "Whether the time is billable", Optional: true, Default: true},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				taskID, err := stringArg(args, "task_id")
				if err != nil {
					return nil, err
				}
				hours, err := optFloatArg(args, "duration_hours", 0)
				if err != nil {
					return nil, err
				}
				if hours <= 0 {
					return nil, fmt.Errorf("duration_hours must be positive")
				}
				description, err := optStringArg(args, "description")
				if err != nil {
					return nil, err
				}
				assignee, err := optIntArg(args, "assignee_id", 0)
				if err != nil {
					return nil, err
				}
				billable := true
				if v, ok := args["billable"]; ok {
					b, isBool := v.(bool)
					if !isBool {
						return nil, fmt.Errorf("parameter %q must be a boolean", "billable")
					}
					billable = b
				}
				return trk.CreateTimeEntry(ctx, taskID, hours, description, int(assignee), billable)
			},
		},
		{
			Name:        "get_task_time_tracking",
			Description: "Get time tracking information for a task: hours spent, the estimate and progress toward it.",
			Params: []orchestrator.Param{
				{Name: "task_id", Type: orchestrator.TypeString, Description: "Tracker task id"},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				taskID, err := stringArg(args, "task_id")
				if err != nil {
					return nil, err
				}
				return trk.TaskTimeTracking(ctx, taskID)
			},
		},
		{
			Name:        "get_team_members",
			Description: "Get the tracker workspace members, to map names to user ids for task assignment.",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				members, err := trk.TeamMembers(ctx)
				if err != nil {
					return nil, err
				}
				if members == nil {
					members = []tracker.Member{}
				}
				return members, nil
			},
		},
	}
}

func emptyTasks(tasks []tracker.Task, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []tracker.Task{}
	}
	return tasks, nil
}

func decodeNewTask(data map[string]any) (tracker.NewTask, error) {
	var t tracker.NewTask
	name, ok := data["name"].(string)
	if !ok || name == "" {
		return t, fmt.Errorf("task_data.name is required")
	}
	t.Name = name
	t.Description, _ = data["description"].(string)
	t.MarkdownDescription, _ = data["markdown_description"].(string)
	t.Status, _ = data["status"].(string)
	t.Priority = data["priority"]
	if due, isNum := data["due_date"].(float64); isNum {
		t.DueDate = int64(due)
	}
	if assignees, isList := data["assignees"].([]any); isList {
		for _, a := range assignees {
			n, isNum := a.(float64)
			if !isNum {
				return t, fmt.Errorf("task_data.assignees must be numeric user ids")
			}
			t.Assignees = append(t.Assignees, int(n))
		}
	}
	return t, nil
}
