package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/briefops/briefops/internal/directory"
	"github.com/briefops/briefops/internal/orchestrator"
)

// Directory builds the client-directory capabilities. Lookups that
// match nothing return an empty object rather than an error so the
// model can fall back to searching instead of giving up.
func Directory(src directory.Source) []*orchestrator.Capability {
	return []*orchestrator.Capability{
		{
			Name:        "get_client_mapping",
			Description: "Retrieve client mapping information by name. Searches for a client by name and returns their complete mapping including tracker ids and channel details. Use this when you need to find tracker list ids or other client details.",
			Params: []orchestrator.Param{
				{Name: "client_name", Type: orchestrator.TypeString, Description: "Client name or known alias"},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				name, err := stringArg(args, "client_name")
				if err != nil {
					return nil, err
				}
				return emptyOnNotFound(src.ClientByName(ctx, name))
			},
		},
		{
			Name:        "search_client_mappings",
			Description: "Search for client mappings using a flexible query. Performs a fuzzy search across client names, channel names and aliases to identify the correct client when the exact name isn't known.",
			Params: []orchestrator.Param{
				{Name: "query", Type: orchestrator.TypeString, Description: "Partial name or channel to search for"},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				query, err := stringArg(args, "query")
				if err != nil {
					return nil, err
				}
				results, err := src.SearchClients(ctx, query)
				if err != nil {
					return nil, err
				}
				if results == nil {
					results = []directory.ClientMapping{}
				}
				return results, nil
			},
		},
		{
			Name:        "get_all_client_names",
			Description: "Get a list of all client names and aliases for reference. Use this to understand what clients are available in the system.",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				names, err := src.AllClientNames(ctx)
				if err != nil {
					return nil, err
				}
				if names == nil {
					names = []string{}
				}
				return names, nil
			},
		},
		{
			Name:        "update_client_mapping",
			Description: "Update specific fields of a client mapping record. Modifies the directory; only use when the user explicitly asks to change client information.",
			Params: []orchestrator.Param{
				{Name: "client_name", Type: orchestrator.TypeString, Description: "Exact client name of the record to update"},
				{Name: "updates", Type: orchestrator.TypeObject, Description: "Field-to-value map of columns to change"},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				name, err := stringArg(args, "client_name")
				if err != nil {
					return nil, err
				}
				updates, err := objectArg(args, "updates")
				if err != nil {
					return nil, err
				}
				return emptyOnNotFound(src.UpdateClient(ctx, name, updates))
			},
		},
		{
			Name:        "create_client_mapping",
			Description: "Create a new client mapping record. Use when adding a new client to the system. Requires at minimum a client_name field.",
			Params: []orchestrator.Param{
				{Name: "mapping_data", Type: orchestrator.TypeObject, Description: "New record fields; client_name is required"},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				data, err := objectArg(args, "mapping_data")
				if err != nil {
					return nil, err
				}
				mapping, err := decodeClientMapping(data)
				if err != nil {
					return nil, err
				}
				return src.CreateClient(ctx, mapping)
			},
		},
		{
			Name:        "get_client_by_channel_id",
			Description: "Get client mapping by channel id. Matches both internal and external channels; use this first when you know the channel id to identify the client.",
			Params: []orchestrator.Param{
				{Name: "channel_id", Type: orchestrator.TypeString, Description: "Channel id, e.g. C0123ABCDEF"},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				channelID, err := stringArg(args, "channel_id")
				if err != nil {
					return nil, err
				}
				return emptyOnNotFound(src.ClientByChannelID(ctx, channelID))
			},
		},
		{
			Name:        "get_employee_by_slack_id",
			Description: "Get employee mapping by Slack user id. Finds the tracker user id for a Slack user to enable task assignments.",
			Params: []orchestrator.Param{
				{Name: "slack_user_id", Type: orchestrator.TypeString, Description: "Slack user id, e.g. U0123ABCDEF"},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				userID, err := stringArg(args, "slack_user_id")
				if err != nil {
					return nil, err
				}
				return emptyOnNotFound(src.EmployeeBySlackID(ctx, userID))
			},
		},
		{
			Name:        "get_all_employees",
			Description: "Get all active employees for reference, to help with user assignment and understanding who can be assigned to tasks.",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				employees, err := src.AllEmployees(ctx)
				if err != nil {
					return nil, err
				}
				if employees == nil {
					employees = []directory.Employee{}
				}
				return employees, nil
			},
		},
	}
}

// emptyOnNotFound turns a missing record into {} so the model sees a
// soft miss instead of a tool failure.
func emptyOnNotFound[T any](v *T, err error) (any, error) {
	if errors.Is(err, directory.ErrNotFound) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func decodeClientMapping(data map[string]any) (*directory.ClientMapping, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("invalid mapping_data: %w", err)
	}
	var m directory.ClientMapping
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("invalid mapping_data: %w", err)
	}
	if m.ClientName == "" {
		return nil, fmt.Errorf("mapping_data.client_name is required")
	}
	return &m, nil
}
