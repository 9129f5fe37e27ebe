package directory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"agencydesk.io/internal/auth"
	"agencydesk.io/internal/directory"
	"agencydesk.io/internal/store/memory"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*directory.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc, err := directory.NewService(store, directory.WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store
}

func seedUser(t *testing.T, store *memory.Store, id, email string, role auth.Role) auth.Principal {
	t.Helper()
	err := store.Users(context.Background()).Create(context.Background(), &directory.User{
		ID:        id,
		Email:     email,
		Role:      role,
		Status:    directory.UserStatusActive,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	return auth.Principal{ID: id, Email: email, Role: role}
}

func seedClient(t *testing.T, svc *directory.Service, admin auth.Principal, name string) *directory.Client {
	t.Helper()
	client, err := svc.CreateClient(context.Background(), admin, directory.ClientInput{Name: name})
	if err != nil {
		t.Fatalf("seed client %s: %v", name, err)
	}
	return client
}

func TestEnsureUserCreatesWithDefaultRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.EnsureUser(ctx, "New@Agency.Test")
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if user.Role != auth.DefaultRole {
		t.Fatalf("role = %q, want default %q", user.Role, auth.DefaultRole)
	}
	if user.Email != "new@agency.test" {
		t.Fatalf("email not normalized: %q", user.Email)
	}

	again, err := svc.EnsureUser(ctx, "new@agency.test")
	if err != nil {
		t.Fatalf("ensure existing user: %v", err)
	}
	if again.ID != user.ID {
		t.Fatal("second sign-in created a new account")
	}
}

func TestEnsureUserRejectsDisabledAccount(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	p := seedUser(t, store, "u1", "gone@agency.test", auth.RoleAssistant)
	status := directory.UserStatusDisabled
	if _, err := store.Users(ctx).Update(ctx, p.ID, directory.UserUpdate{Status: &status}); err != nil {
		t.Fatalf("disable user: %v", err)
	}

	if _, err := svc.EnsureUser(ctx, "gone@agency.test"); !errors.Is(err, directory.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRowLevelScopingOnGet(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	admin := seedUser(t, store, "admin", "admin@agency.test", auth.RoleAdmin)
	lead := seedUser(t, store, "lead", "lead@agency.test", auth.RoleDPRLead)
	client := seedClient(t, svc, admin, "Acme")

	// Unassigned: forbidden, not missing. Existence must not leak.
	if _, err := svc.GetClient(ctx, lead, client.ID); !errors.Is(err, directory.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for unassigned lead, got %v", err)
	}

	if _, err := svc.AssignClient(ctx, admin, client.ID, lead.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	got, err := svc.GetClient(ctx, lead, client.ID)
	if err != nil {
		t.Fatalf("get after assignment: %v", err)
	}
	if got.ID != client.ID {
		t.Fatalf("got client %q, want %q", got.ID, client.ID)
	}

	// Revoking is effective on the very next call; nothing is cached.
	if err := svc.UnassignClient(ctx, admin, client.ID, lead.ID); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if _, err := svc.GetClient(ctx, lead, client.ID); !errors.Is(err, directory.ErrForbidden) {
		t.Fatalf("expected ErrForbidden after unassign, got %v", err)
	}
}

func TestListClientsScopedByRole(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	admin := seedUser(t, store, "admin", "admin@agency.test", auth.RoleAdmin)
	manager := seedUser(t, store, "mgr", "mgr@agency.test", auth.RoleDPRManager)
	lead := seedUser(t, store, "lead", "lead@agency.test", auth.RoleDPRLead)

	c1 := seedClient(t, svc, admin, "Acme")
	seedClient(t, svc, admin, "Globex")

	if _, err := svc.AssignClient(ctx, manager, c1.ID, lead.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	all, err := svc.ListClients(ctx, manager)
	if err != nil {
		t.Fatalf("list as manager: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("manager sees %d clients, want 2", len(all))
	}

	mine, err := svc.ListClients(ctx, lead)
	if err != nil {
		t.Fatalf("list as lead: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != c1.ID {
		t.Fatalf("lead sees %+v, want only %q", mine, c1.ID)
	}
}

func TestOnlyAdminDeletesClients(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	admin := seedUser(t, store, "admin", "admin@agency.test", auth.RoleAdmin)
	manager := seedUser(t, store, "mgr", "mgr@agency.test", auth.RoleDPRManager)
	client := seedClient(t, svc, admin, "Acme")

	if err := svc.DeleteClient(ctx, manager, client.ID); !errors.Is(err, directory.ErrForbidden) {
		t.Fatalf("manager delete: expected ErrForbidden, got %v", err)
	}
	if err := svc.DeleteClient(ctx, admin, client.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if _, err := svc.GetClient(ctx, admin, client.ID); !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestAssignmentRequiresManagerCapability(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	admin := seedUser(t, store, "admin", "admin@agency.test", auth.RoleAdmin)
	lead := seedUser(t, store, "lead", "lead@agency.test", auth.RoleDPRLead)
	other := seedUser(t, store, "other", "other@agency.test", auth.RoleAssistant)
	client := seedClient(t, svc, admin, "Acme")

	if _, err := svc.AssignClient(ctx, lead, client.ID, other.ID); !errors.Is(err, directory.ErrForbidden) {
		t.Fatalf("lead assign: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.AssignClient(ctx, admin, "missing", other.ID); !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("assign to missing client: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.AssignClient(ctx, admin, client.ID, "missing"); !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("assign missing user: expected ErrNotFound, got %v", err)
	}
}

func TestAssignmentChangesAreAudited(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	admin := seedUser(t, store, "admin", "admin@agency.test", auth.RoleAdmin)
	lead := seedUser(t, store, "lead", "lead@agency.test", auth.RoleDPRLead)
	client := seedClient(t, svc, admin, "Acme")

	if _, err := svc.AssignClient(ctx, admin, client.ID, lead.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := svc.UnassignClient(ctx, admin, client.ID, lead.ID); err != nil {
		t.Fatalf("unassign: %v", err)
	}

	entries := store.AuditEntries()
	if len(entries) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(entries))
	}
	if entries[0].Action != "directory.assignment.create" || entries[1].Action != "directory.assignment.delete" {
		t.Fatalf("unexpected audit actions: %q, %q", entries[0].Action, entries[1].Action)
	}
	if entries[0].ActorID != admin.ID {
		t.Fatalf("actor = %q, want %q", entries[0].ActorID, admin.ID)
	}
}

func TestCreateActivityValidatesAndSanitizes(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	admin := seedUser(t, store, "admin", "admin@agency.test", auth.RoleAdmin)
	client := seedClient(t, svc, admin, "Acme")

	activity, err := svc.CreateActivity(ctx, admin, directory.ActivityInput{
		ClientID: client.ID,
		Type:     "trend",
		Content: map[string]any{
			"topic":     "launch",
			"summary":   "a summary",
			"__proto__": map[string]any{"polluted": true},
		},
	})
	if err != nil {
		t.Fatalf("create activity: %v", err)
	}
	if _, ok := activity.Content["__proto__"]; ok {
		t.Fatal("blocked key survived sanitization")
	}
	if activity.Content["topic"] != "launch" {
		t.Fatalf("content mangled: %+v", activity.Content)
	}
	if activity.CreatedBy != admin.ID {
		t.Fatalf("created by %q, want %q", activity.CreatedBy, admin.ID)
	}

	var verr *directory.ValidationError
	_, err = svc.CreateActivity(ctx, admin, directory.ActivityInput{
		ClientID: client.ID,
		Type:     "trend",
		Content:  map[string]any{"topic": "no summary"},
	})
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.CreateActivity(ctx, admin, directory.ActivityInput{
		ClientID: client.ID,
		Type:     "memo",
		Content:  map[string]any{"topic": "t", "summary": "s"},
	})
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for unknown type, got %v", err)
	}
}

func TestActivityScopedThroughClient(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	admin := seedUser(t, store, "admin", "admin@agency.test", auth.RoleAdmin)
	lead := seedUser(t, store, "lead", "lead@agency.test", auth.RoleDPRLead)
	client := seedClient(t, svc, admin, "Acme")

	activity, err := svc.CreateActivity(ctx, admin, directory.ActivityInput{
		ClientID: client.ID,
		Type:     "idea",
		Content:  map[string]any{"title": "Launch", "pitch": "Pitch"},
	})
	if err != nil {
		t.Fatalf("create activity: %v", err)
	}

	if _, err := svc.GetActivity(ctx, lead, activity.ID); !errors.Is(err, directory.ErrForbidden) {
		t.Fatalf("unassigned lead read activity: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.AssignClient(ctx, admin, client.ID, lead.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := svc.GetActivity(ctx, lead, activity.ID); err != nil {
		t.Fatalf("assigned lead read activity: %v", err)
	}
}

func TestUpdateUserRequiresCapabilityAndValidates(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	admin := seedUser(t, store, "admin", "admin@agency.test", auth.RoleAdmin)
	lead := seedUser(t, store, "lead", "lead@agency.test", auth.RoleDPRLead)

	role := "dpr_manager"
	if _, err := svc.UpdateUser(ctx, lead, lead.ID, directory.UserUpdate{Role: &role}); !errors.Is(err, directory.ErrForbidden) {
		t.Fatalf("self promotion: expected ErrForbidden, got %v", err)
	}

	bad := "root"
	var verr *directory.ValidationError
	if _, err := svc.UpdateUser(ctx, admin, lead.ID, directory.UserUpdate{Role: &bad}); !errors.As(err, &verr) {
		t.Fatalf("unknown role: expected validation error, got %v", err)
	}

	updated, err := svc.UpdateUser(ctx, admin, lead.ID, directory.UserUpdate{Role: &role})
	if err != nil {
		t.Fatalf("update user: %v", err)
	}
	if updated.Role != auth.RoleDPRManager {
		t.Fatalf("role = %q, want dpr_manager", updated.Role)
	}
}

func TestClientInputValidation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	admin := seedUser(t, store, "admin", "admin@agency.test", auth.RoleAdmin)

	var verr *directory.ValidationError
	if _, err := svc.CreateClient(ctx, admin, directory.ClientInput{}); !errors.As(err, &verr) {
		t.Fatalf("missing name: expected validation error, got %v", err)
	}
	if _, err := svc.CreateClient(ctx, admin, directory.ClientInput{Name: "Acme", Website: "not a url"}); !errors.As(err, &verr) {
		t.Fatalf("bad website: expected validation error, got %v", err)
	}
	if _, err := svc.CreateClient(ctx, admin, directory.ClientInput{Name: "Acme", ContactEmail: "nope"}); !errors.As(err, &verr) {
		t.Fatalf("bad email: expected validation error, got %v", err)
	}
}
