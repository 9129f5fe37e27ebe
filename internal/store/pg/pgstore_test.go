package pg

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"agencydesk.io/internal/auth"
	"agencydesk.io/internal/directory"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func expectMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

var storeNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func TestUserFindMapsNoRows(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(
		`select id, email, role, status, department, created_at, updated_at from users where id=$1`,
	)).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := store.Users(context.Background()).Find(context.Background(), "missing")
	if !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	expectMet(t, mock)
}

func TestUserFindByEmail(t *testing.T) {
	store, mock := newMock(t)
	rows := sqlmock.NewRows([]string{"id", "email", "role", "status", "department", "created_at", "updated_at"}).
		AddRow("u1", "a@agency.test", "dpr_lead", "active", "comms", storeNow, storeNow)
	mock.ExpectQuery(regexp.QuoteMeta(
		`select id, email, role, status, department, created_at, updated_at from users where email=$1`,
	)).WithArgs("a@agency.test").WillReturnRows(rows)

	u, err := store.Users(context.Background()).FindByEmail(context.Background(), "a@agency.test")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if u.Role != auth.RoleDPRLead {
		t.Fatalf("role = %q, want dpr_lead", u.Role)
	}
	if u.Department != "comms" {
		t.Fatalf("department = %q", u.Department)
	}
	expectMet(t, mock)
}

func TestUserCreate(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(
		`insert into users(id, email, role, status, department, created_at, updated_at)`,
	)).WithArgs("u1", "a@agency.test", "assistant", "active", "", storeNow, storeNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Users(context.Background()).Create(context.Background(), &directory.User{
		ID:        "u1",
		Email:     "a@agency.test",
		Role:      auth.RoleAssistant,
		Status:    "active",
		CreatedAt: storeNow,
		UpdatedAt: storeNow,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	expectMet(t, mock)
}

func TestClientDeleteNotFound(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`delete from clients where id=$1`)).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Clients(context.Background()).Delete(context.Background(), "missing")
	if !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	expectMet(t, mock)
}

func TestClientDelete(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`delete from clients where id=$1`)).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Clients(context.Background()).Delete(context.Background(), "c1"); err != nil {
		t.Fatalf("delete client: %v", err)
	}
	expectMet(t, mock)
}

func TestClientListForUserFiltersActiveAssignments(t *testing.T) {
	store, mock := newMock(t)
	rows := sqlmock.NewRows([]string{"id", "name", "industry", "website", "contact_email", "notes", "created_at", "updated_at"}).
		AddRow("c1", "Acme", "tech", "", "", "", storeNow, storeNow)
	mock.ExpectQuery(`join client_assignments a on a\.client_id = c\.id`).
		WithArgs("u1").
		WillReturnRows(rows)

	clients, err := store.Clients(context.Background()).ListForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list for user: %v", err)
	}
	if len(clients) != 1 || clients[0].Name != "Acme" {
		t.Fatalf("unexpected clients %+v", clients)
	}
	expectMet(t, mock)
}

func TestActivityFindDecodesContent(t *testing.T) {
	store, mock := newMock(t)
	rows := sqlmock.NewRows([]string{"id", "client_id", "activity_type", "content", "created_by", "created_at", "updated_at"}).
		AddRow("a1", "c1", "trend", []byte(`{"topic":"launch","summary":"s"}`), "u1", storeNow, storeNow)
	mock.ExpectQuery(regexp.QuoteMeta(
		`select id, client_id, activity_type, content, created_by, created_at, updated_at`,
	)).WithArgs("a1").WillReturnRows(rows)

	a, err := store.Activities(context.Background()).Find(context.Background(), "a1")
	if err != nil {
		t.Fatalf("find activity: %v", err)
	}
	if a.Type != directory.ActivityTrend {
		t.Fatalf("type = %q", a.Type)
	}
	if a.Content["topic"] != "launch" {
		t.Fatalf("content = %+v", a.Content)
	}
	expectMet(t, mock)
}

func TestAssignmentUpsert(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`on conflict (client_id, user_id) do update`)).
		WithArgs("c1", "u1", "active", "admin", storeNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Assignments(context.Background()).Upsert(context.Background(), directory.ClientAssignment{
		ClientID:   "c1",
		UserID:     "u1",
		Status:     "active",
		AssignedBy: "admin",
		AssignedAt: storeNow,
	})
	if err != nil {
		t.Fatalf("upsert assignment: %v", err)
	}
	expectMet(t, mock)
}

func TestAssignmentFindMapsNoRows(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(
		`select client_id, user_id, status, assigned_by, assigned_at`,
	)).WithArgs("c1", "u1").WillReturnError(sql.ErrNoRows)

	_, err := store.Assignments(context.Background()).Find(context.Background(), "c1", "u1")
	if !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	expectMet(t, mock)
}

func TestAuditAppend(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`insert into audit_log`)).
		WithArgs("e1", storeNow, "admin", "directory.client.delete", "client", "c1", []byte(`{"reason":"churn"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Audit(context.Background()).Append(context.Background(), &directory.AuditEntry{
		ID:           "e1",
		OccurredAt:   storeNow,
		ActorID:      "admin",
		Action:       "directory.client.delete",
		ResourceType: "client",
		ResourceID:   "c1",
		Metadata:     map[string]string{"reason": "churn"},
	})
	if err != nil {
		t.Fatalf("append audit: %v", err)
	}
	expectMet(t, mock)
}
