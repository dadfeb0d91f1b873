// Package directory holds the client and employee records the agent
// resolves names, channels and tracker ids against. Postgres is the
// source of truth; a Redis read-through cache sits in front of the
// hot lookups.
package directory

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("directory: not found")

// ClientMapping ties one client to its tracker containers and chat
// channels. Alternatives lists alias names the client is known by.
type ClientMapping struct {
	ID                    string    `json:"id,omitempty"`
	ClientName            string    `json:"client_name"`
	TrackerProjectName    string    `json:"tracker_project_name,omitempty"`
	TrackerFolderName     string    `json:"tracker_folder_name,omitempty"`
	TrackerFolderID       string    `json:"tracker_folder_id,omitempty"`
	TrackerListName       string    `json:"tracker_list_name,omitempty"`
	TrackerListID         string    `json:"tracker_list_id,omitempty"`
	InternalChannelName   string    `json:"internal_channel_name,omitempty"`
	InternalChannelID     string    `json:"internal_channel_id,omitempty"`
	ExternalChannelName   string    `json:"external_channel_name,omitempty"`
	ExternalChannelID     string    `json:"external_channel_id,omitempty"`
	Alternatives          []string  `json:"alternatives,omitempty"`
	Notes                 string    `json:"notes,omitempty"`
	QAListName            string    `json:"qa_list_name,omitempty"`
	QAListID              string    `json:"qa_list_id,omitempty"`
	ProjectType           string    `json:"project_type,omitempty"`
	AvailableHours        string    `json:"available_hours,omitempty"`
	Revenue               float64   `json:"revenue,omitempty"`
	AverageDeliveryHourly float64   `json:"average_delivery_hourly,omitempty"`
	Status                string    `json:"status,omitempty"`
	CreatedAt             time.Time `json:"created_at,omitzero"`
	UpdatedAt             time.Time `json:"updated_at,omitzero"`
}

// Employee maps a chat user to their tracker identity so tasks can be
// assigned to the right person.
type Employee struct {
	ID              string `json:"id,omitempty"`
	RealName        string `json:"real_name"`
	Email           string `json:"email,omitempty"`
	SlackUserID     string `json:"slack_user_id"`
	SlackUsername   string `json:"slack_username,omitempty"`
	TrackerUserID   string `json:"tracker_user_id,omitempty"`
	TrackerUsername string `json:"tracker_username,omitempty"`
	IsActive        bool   `json:"is_active"`
}

// Source is the directory lookup surface. Store implements it against
// Postgres; Cache wraps any Source with Redis.
type Source interface {
	ClientByName(ctx context.Context, name string) (*ClientMapping, error)
	ClientByChannelID(ctx context.Context, channelID string) (*ClientMapping, error)
	SearchClients(ctx context.Context, query string) ([]ClientMapping, error)
	AllClientNames(ctx context.Context) ([]string, error)
	CreateClient(ctx context.Context, m *ClientMapping) (*ClientMapping, error)
	UpdateClient(ctx context.Context, name string, updates map[string]any) (*ClientMapping, error)
	EmployeeBySlackID(ctx context.Context, slackUserID string) (*Employee, error)
	AllEmployees(ctx context.Context) ([]Employee, error)
}
