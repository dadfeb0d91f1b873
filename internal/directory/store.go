package directory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"
)

const clientColumns = `id, client_name, tracker_project_name, tracker_folder_name, tracker_folder_id,
	tracker_list_name, tracker_list_id, internal_channel_name, internal_channel_id,
	external_channel_name, external_channel_id, alternatives, notes, qa_list_name, qa_list_id,
	project_type, available_hours, revenue, average_delivery_hourly, status, created_at, updated_at`

// updatableClientColumns whitelists the columns UpdateClient may touch.
var updatableClientColumns = map[string]bool{
	"client_name":             true,
	"tracker_project_name":    true,
	"tracker_folder_name":     true,
	"tracker_folder_id":       true,
	"tracker_list_name":       true,
	"tracker_list_id":         true,
	"internal_channel_name":   true,
	"internal_channel_id":     true,
	"external_channel_name":   true,
	"external_channel_id":     true,
	"alternatives":            true,
	"notes":                   true,
	"qa_list_name":            true,
	"qa_list_id":              true,
	"project_type":            true,
	"available_hours":         true,
	"revenue":                 true,
	"average_delivery_hourly": true,
	"status":                  true,
}

// Store is the Postgres-backed directory.
type Store struct {
	db *sql.DB
}

// OpenStore connects to Postgres with the given DSN and pings it.
func OpenStore(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("directory: postgres_dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("directory: open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("directory: ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ClientByName resolves a client by exact name, then by case-insensitive
// substring, then by alias.
func (s *Store) ClientByName(ctx context.Context, name string) (*ClientMapping, error) {
	queries := []struct {
		where string
		arg   any
	}{
		{"client_name = $1", name},
		{"client_name ILIKE $1", "%" + name + "%"},
		{"alternatives @> $1", pq.Array([]string{name})},
	}
	for _, q := range queries {
		row := s.db.QueryRowContext(ctx,
			"SELECT "+clientColumns+" FROM client_mappings WHERE "+q.where+" LIMIT 1", q.arg)
		m, err := scanClient(row)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("directory: client by name: %w", err)
		}
		return m, nil
	}
	return nil, ErrNotFound
}

// ClientByChannelID resolves a client from either of its chat channels.
func (s *Store) ClientByChannelID(ctx context.Context, channelID string) (*ClientMapping, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+clientColumns+` FROM client_mappings
		 WHERE internal_channel_id = $1 OR external_channel_id = $1 LIMIT 1`, channelID)
	m, err := scanClient(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory: client by channel: %w", err)
	}
	return m, nil
}

// SearchClients fuzzy-matches across names, channel names and aliases.
func (s *Store) SearchClients(ctx context.Context, query string) ([]ClientMapping, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+clientColumns+` FROM client_mappings
		 WHERE client_name ILIKE $1
		    OR tracker_project_name ILIKE $1
		    OR internal_channel_name ILIKE $1
		    OR external_channel_name ILIKE $1
		    OR alternatives @> $2
		 ORDER BY client_name`, pattern, pq.Array([]string{query}))
	if err != nil {
		return nil, fmt.Errorf("directory: search clients: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []ClientMapping
	for rows.Next() {
		m, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("directory: search clients: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// AllClientNames returns every known client name and alias, sorted.
func (s *Store) AllClientNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT client_name, alternatives FROM client_mappings")
	if err != nil {
		return nil, fmt.Errorf("directory: all client names: %w", err)
	}
	defer func() { _ = rows.Close() }()
	set := make(map[string]struct{})
	for rows.Next() {
		var name string
		var alts pq.StringArray
		if err := rows.Scan(&name, &alts); err != nil {
			return nil, fmt.Errorf("directory: all client names: %w", err)
		}
		set[name] = struct{}{}
		for _, a := range alts {
			set[a] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// CreateClient inserts a new mapping and returns the stored record.
func (s *Store) CreateClient(ctx context.Context, m *ClientMapping) (*ClientMapping, error) {
	if m == nil || m.ClientName == "" {
		return nil, fmt.Errorf("directory: client_name is required")
	}
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO client_mappings (client_name, tracker_project_name, tracker_folder_name,
			tracker_folder_id, tracker_list_name, tracker_list_id, internal_channel_name,
			internal_channel_id, external_channel_name, external_channel_id, alternatives, notes,
			qa_list_name, qa_list_id, project_type, available_hours, revenue,
			average_delivery_hourly, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, now(), now())
		 RETURNING `+clientColumns,
		m.ClientName, m.TrackerProjectName, m.TrackerFolderName, m.TrackerFolderID,
		m.TrackerListName, m.TrackerListID, m.InternalChannelName, m.InternalChannelID,
		m.ExternalChannelName, m.ExternalChannelID, pq.Array(m.Alternatives), m.Notes,
		m.QAListName, m.QAListID, m.ProjectType, m.AvailableHours, m.Revenue,
		m.AverageDeliveryHourly, m.Status)
	created, err := scanClient(row)
	if err != nil {
		return nil, fmt.Errorf("directory: create client: %w", err)
	}
	return created, nil
}

// UpdateClient applies the given column updates to the named client and
// returns the stored record. Unknown columns are rejected.
func (s *Store) UpdateClient(ctx context.Context, name string, updates map[string]any) (*ClientMapping, error) {
	if len(updates) == 0 {
		return nil, fmt.Errorf("directory: no updates given")
	}
	cols := make([]string, 0, len(updates))
	for col := range updates {
		if !updatableClientColumns[col] {
			return nil, fmt.Errorf("directory: unknown column %q", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	set := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		set = append(set, fmt.Sprintf("%s = $%d", col, i+1))
		val := updates[col]
		if col == "alternatives" {
			val = pq.Array(toStringSlice(val))
		}
		args = append(args, val)
	}
	set = append(set, "updated_at = now()")
	args = append(args, name)

	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("UPDATE client_mappings SET %s WHERE client_name = $%d RETURNING %s",
			strings.Join(set, ", "), len(args), clientColumns), args...)
	m, err := scanClient(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory: update client: %w", err)
	}
	return m, nil
}

// EmployeeBySlackID resolves a chat user to their tracker identity.
func (s *Store) EmployeeBySlackID(ctx context.Context, slackUserID string) (*Employee, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, real_name, email, slack_user_id, slack_username, tracker_user_id,
			tracker_username, is_active
		 FROM employees WHERE slack_user_id = $1 LIMIT 1`, slackUserID)
	e, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory: employee by slack id: %w", err)
	}
	return e, nil
}

// AllEmployees returns the active employees.
func (s *Store) AllEmployees(ctx context.Context) ([]Employee, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, real_name, email, slack_user_id, slack_username, tracker_user_id,
			tracker_username, is_active
		 FROM employees WHERE is_active = true ORDER BY real_name`)
	if err != nil {
		return nil, fmt.Errorf("directory: all employees: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("directory: all employees: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (*ClientMapping, error) {
	var m ClientMapping
	var (
		trackerProject, trackerFolderName, trackerFolderID   sql.NullString
		trackerListName, trackerListID                       sql.NullString
		internalName, internalID, externalName, externalID   sql.NullString
		notes, qaListName, qaListID, projectType, availHours sql.NullString
		status                                               sql.NullString
		revenue, avgHourly                                   sql.NullFloat64
		alts                                                 pq.StringArray
		createdAt, updatedAt                                 sql.NullTime
	)
	err := row.Scan(&m.ID, &m.ClientName, &trackerProject, &trackerFolderName, &trackerFolderID,
		&trackerListName, &trackerListID, &internalName, &internalID,
		&externalName, &externalID, &alts, &notes, &qaListName, &qaListID,
		&projectType, &availHours, &revenue, &avgHourly, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	m.TrackerProjectName = trackerProject.String
	m.TrackerFolderName = trackerFolderName.String
	m.TrackerFolderID = trackerFolderID.String
	m.TrackerListName = trackerListName.String
	m.TrackerListID = trackerListID.String
	m.InternalChannelName = internalName.String
	m.InternalChannelID = internalID.String
	m.ExternalChannelName = externalName.String
	m.ExternalChannelID = externalID.String
	m.Alternatives = alts
	m.Notes = notes.String
	m.QAListName = qaListName.String
	m.QAListID = qaListID.String
	m.ProjectType = projectType.String
	m.AvailableHours = availHours.String
	m.Revenue = revenue.Float64
	m.AverageDeliveryHourly = avgHourly.Float64
	m.Status = status.String
	m.CreatedAt = createdAt.Time
	m.UpdatedAt = updatedAt.Time
	return &m, nil
}

func scanEmployee(row rowScanner) (*Employee, error) {
	var e Employee
	var email, slackUsername, trackerUserID, trackerUsername sql.NullString
	err := row.Scan(&e.ID, &e.RealName, &email, &e.SlackUserID, &slackUsername,
		&trackerUserID, &trackerUsername, &e.IsActive)
	if err != nil {
		return nil, err
	}
	e.Email = email.String
	e.SlackUsername = slackUsername.String
	e.TrackerUserID = trackerUserID.String
	e.TrackerUsername = trackerUsername.String
	return &e, nil
}

func toStringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}
