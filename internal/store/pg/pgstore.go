// Package pg implements directory.Store on PostgreSQL.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"agencydesk.io/internal/auth"
	"agencydesk.io/internal/directory"
)

type Store struct {
	db *sql.DB
}

var _ directory.Store = (*Store)(nil)

// Open connects to PostgreSQL with pool settings tuned for this service.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing database handle (used by tests with sqlmock).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Users(ctx context.Context) directory.UserStore { return &userStore{db: s.db} }
func (s *Store) Clients(ctx context.Context) directory.ClientStore {
	return &clientStore{db: s.db}
}
func (s *Store) Activities(ctx context.Context) directory.ActivityStore {
	return &activityStore{db: s.db}
}
func (s *Store) Assignments(ctx context.Context) directory.AssignmentStore {
	return &assignmentStore{db: s.db}
}
func (s *Store) Audit(ctx context.Context) directory.AuditStore { return &auditStore{db: s.db} }

// User store ---------------------------------------------------------------

type userStore struct{ db *sql.DB }

func (s *userStore) Create(ctx context.Context, u *directory.User) error {
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, role, status, department, created_at, updated_at)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Email, string(u.Role), u.Status, u.Department, u.CreatedAt, u.UpdatedAt,
	)
	return err
}

func (s *userStore) Find(ctx context.Context, id string) (*directory.User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, role, status, department, created_at, updated_at from users where id=$1`, id)
	return scanUser(row)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*directory.User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, role, status, department, created_at, updated_at from users where email=$1`, email)
	return scanUser(row)
}

func (s *userStore) Update(ctx context.Context, id string, upd directory.UserUpdate) (*directory.User, error) {
	row := s.db.QueryRowContext(ctx,
		`update users set
			role = coalesce($2, role),
			status = coalesce($3, status),
			department = coalesce($4, department),
			updated_at = now()
		 where id=$1
		 returning id, email, role, status, department, created_at, updated_at`,
		id, upd.Role, upd.Status, upd.Department,
	)
	return scanUser(row)
}

func (s *userStore) List(ctx context.Context) ([]*directory.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, email, role, status, department, created_at, updated_at from users order by created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*directory.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*directory.User, error) {
	var u directory.User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &role, &u.Status, &u.Department, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, directory.ErrNotFound
		}
		return nil, err
	}
	u.Role = auth.Role(role)
	return &u, nil
}

// Client store -------------------------------------------------------------

type clientStore struct{ db *sql.DB }

const clientColumns = `id, name, industry, website, contact_email, notes, created_at, updated_at`

func (s *clientStore) Create(ctx context.Context, c *directory.Client) error {
	_, err := s.db.ExecContext(ctx,
		`insert into clients(id, name, industry, website, contact_email, notes, created_at, updated_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		c.ID, c.Name, c.Industry, c.Website, c.ContactEmail, c.Notes, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (s *clientStore) Find(ctx context.Context, id string) (*directory.Client, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+clientColumns+` from clients where id=$1`, id)
	return scanClient(row)
}

func (s *clientStore) List(ctx context.Context) ([]*directory.Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+clientColumns+` from clients order by created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectClients(rows)
}

func (s *clientStore) ListForUser(ctx context.Context, userID string) ([]*directory.Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`select c.id, c.name, c.industry, c.website, c.contact_email, c.notes, c.created_at, c.updated_at
		 from clients c
		 join client_assignments a on a.client_id = c.id
		 where a.user_id=$1 and a.status='active'
		 order by c.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectClients(rows)
}

func (s *clientStore) Update(ctx context.Context, id string, upd directory.ClientUpdate) (*directory.Client, error) {
	row := s.db.QueryRowContext(ctx,
		`update clients set
			name = coalesce($2, name),
			industry = coalesce($3, industry),
			website = coalesce($4, website),
			contact_email = coalesce($5, contact_email),
			notes = coalesce($6, notes),
			updated_at = now()
		 where id=$1
		 returning `+clientColumns,
		id, upd.Name, upd.Industry, upd.Website, upd.ContactEmail, upd.Notes,
	)
	return scanClient(row)
}

func (s *clientStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from clients where id=$1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return directory.ErrNotFound
	}
	return nil
}

func scanClient(row rowScanner) (*directory.Client, error) {
	var c directory.Client
	if err := row.Scan(&c.ID, &c.Name, &c.Industry, &c.Website, &c.ContactEmail, &c.Notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, directory.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func collectClients(rows *sql.Rows) ([]*directory.Client, error) {
	var clients []*directory.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// Activity store -----------------------------------------------------------

type activityStore struct{ db *sql.DB }

func (s *activityStore) Create(ctx context.Context, a *directory.ClientActivity) error {
	content, err := json.Marshal(a.Content)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`insert into client_activities(id, client_id, activity_type, content, created_by, created_at, updated_at)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		a.ID, a.ClientID, string(a.Type), content, a.CreatedBy, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

func (s *activityStore) Find(ctx context.Context, id string) (*directory.ClientActivity, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, client_id, activity_type, content, created_by, created_at, updated_at
		 from client_activities where id=$1`, id)
	return scanActivity(row)
}

func (s *activityStore) ListByClient(ctx context.Context, clientID string) ([]*directory.ClientActivity, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, client_id, activity_type, content, created_by, created_at, updated_at
		 from client_activities where client_id=$1 order by created_at`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []*directory.ClientActivity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func (s *activityStore) UpdateContent(ctx context.Context, id string, content map[string]any) (*directory.ClientActivity, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`update client_activities set content=$2, updated_at=now()
		 where id=$1
		 returning id, client_id, activity_type, content, created_by, created_at, updated_at`,
		id, raw,
	)
	return scanActivity(row)
}

func (s *activityStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from client_activities where id=$1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return directory.ErrNotFound
	}
	return nil
}

func scanActivity(row rowScanner) (*directory.ClientActivity, error) {
	var a directory.ClientActivity
	var activityType string
	var content []byte
	if err := row.Scan(&a.ID, &a.ClientID, &activityType, &content, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, directory.ErrNotFound
		}
		return nil, err
	}
	a.Type = directory.ActivityType(activityType)
	_ = json.Unmarshal(content, &a.Content)
	return &a, nil
}

// Assignment store ---------------------------------------------------------

type assignmentStore struct{ db *sql.DB }

func (s *assignmentStore) Upsert(ctx context.Context, a directory.ClientAssignment) error {
	_, err := s.db.ExecContext(ctx,
		`insert into client_assignments(client_id, user_id, status, assigned_by, assigned_at)
		 values($1,$2,$3,$4,$5)
		 on conflict (client_id, user_id) do update
		 set status = excluded.status, assigned_by = excluded.assigned_by, assigned_at = excluded.assigned_at`,
		a.ClientID, a.UserID, a.Status, a.AssignedBy, a.AssignedAt,
	)
	return err
}

func (s *assignmentStore) Find(ctx context.Context, clientID, userID string) (*directory.ClientAssignment, error) {
	row := s.db.QueryRowContext(ctx,
		`select client_id, user_id, status, assigned_by, assigned_at
		 from client_assignments where client_id=$1 and user_id=$2`, clientID, userID)
	var a directory.ClientAssignment
	if err := row.Scan(&a.ClientID, &a.UserID, &a.Status, &a.AssignedBy, &a.AssignedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, directory.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *assignmentStore) ListForUser(ctx context.Context, userID string) ([]directory.ClientAssignment, error) {
	return s.list(ctx,
		`select client_id, user_id, status, assigned_by, assigned_at
		 from client_assignments where user_id=$1`, userID)
}

func (s *assignmentStore) ListForClient(ctx context.Context, clientID string) ([]directory.ClientAssignment, error) {
	return s.list(ctx,
		`select client_id, user_id, status, assigned_by, assigned_at
		 from client_assignments where client_id=$1`, clientID)
}

func (s *assignmentStore) list(ctx context.Context, query, arg string) ([]directory.ClientAssignment, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []directory.ClientAssignment
	for rows.Next() {
		var a directory.ClientAssignment
		if err := rows.Scan(&a.ClientID, &a.UserID, &a.Status, &a.AssignedBy, &a.AssignedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *assignmentStore) Delete(ctx context.Context, clientID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from client_assignments where client_id=$1 and user_id=$2`, clientID, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return directory.ErrNotFound
	}
	return nil
}

// Audit store --------------------------------------------------------------

type auditStore struct{ db *sql.DB }

func (s *auditStore) Append(ctx context.Context, entry *directory.AuditEntry) error {
	meta, _ := json.Marshal(entry.Metadata)
	_, err := s.db.ExecContext(ctx,
		`insert into audit_log(id, occurred_at, actor_id, action, resource_type, resource_id, metadata)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		entry.ID, entry.OccurredAt, entry.ActorID, entry.Action, entry.ResourceType, entry.ResourceID, meta,
	)
	return err
}
