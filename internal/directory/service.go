package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agencydesk.io/internal/auth"
	"agencydesk.io/internal/ids"
	"agencydesk.io/internal/sanitize"
)

// Service implements directory operations with row-level access control.
// Authorization is re-evaluated on every call; decisions are never cached
// because assignments can change between requests.
type Service struct {
	store Store
	now   func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the directory service.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("directory: store is required")
	}
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ClientInput is the payload for creating or replacing a client.
type ClientInput struct {
	Name         string `json:"name" validate:"required,max=500"`
	Industry     string `json:"industry" validate:"max=200"`
	Website      string `json:"website" validate:"omitempty,url,max=2000"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email,max=320"`
	Notes        string `json:"notes" validate:"max=10000"`
}

// ActivityInput is the payload for creating an activity.
type ActivityInput struct {
	ClientID string         `json:"client_id" validate:"required,max=64"`
	Type     string         `json:"activity_type" validate:"required"`
	Content  map[string]any `json:"content" validate:"required"`
}

// EnsureUser returns the account for a verified email, creating it with the
// default role on first sign-in. Disabled accounts cannot sign in.
func (s *Service) EnsureUser(ctx context.Context, email string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	users := s.store.Users(ctx)
	user, err := users.FindByEmail(ctx, email)
	if err == nil {
		if user.Status != UserStatusActive {
			return nil, ErrForbidden
		}
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	now := s.now().UTC()
	user = &User{
		ID:        ids.New(),
		Email:     email,
		Role:      auth.DefaultRole,
		Status:    UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUser applies role/status/department changes. Only principals with
// the user-management capability may call it.
func (s *Service) UpdateUser(ctx context.Context, p auth.Principal, userID string, upd UserUpdate) (*User, error) {
	if !p.Can(auth.ActionManageUsers) {
		return nil, ErrForbidden
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if upd.Role != nil {
		role, err := auth.ParseRole(*upd.Role)
		if err != nil {
			return nil, &ValidationError{Fields: []FieldError{{Field: "role", Message: "must be one of admin, dpr_manager, dpr_lead, assistant"}}}
		}
		normalized := string(role)
		upd.Role = &normalized
	}
	if upd.Status != nil {
		status := strings.TrimSpace(strings.ToLower(*upd.Status))
		if status != UserStatusActive && status != UserStatusDisabled {
			return nil, &ValidationError{Fields: []FieldError{{Field: "status", Message: "must be active or disabled"}}}
		}
		upd.Status = &status
	}
	if upd.Department != nil {
		dept := strings.TrimSpace(*upd.Department)
		if len(dept) > 200 {
			return nil, &ValidationError{Fields: []FieldError{{Field: "department", Message: "must be at most 200 characters"}}}
		}
		upd.Department = &dept
	}
	user, err := s.store.Users(ctx).Update(ctx, userID, upd)
	if err != nil {
		return nil, err
	}
	s.appendAudit(ctx, p, "directory.user.update", "user", userID, map[string]string{
		"role":   string(user.Role),
		"status": user.Status,
	})
	return user, nil
}

// ListClients returns every client for privileged principals and only
// actively assigned clients for everyone else.
func (s *Service) ListClients(ctx context.Context, p auth.Principal) ([]*Client, error) {
	clients := s.store.Clients(ctx)
	if p.Can(auth.ActionReadAllClients) {
		return clients.List(ctx)
	}
	return clients.ListForUser(ctx, p.ID)
}

// GetClient returns one client, enforcing assignment scoping. An unassigned
// client is reported as forbidden, not as missing.
func (s *Service) GetClient(ctx context.Context, p auth.Principal, clientID string) (*Client, error) {
	if err := s.authorizeClient(ctx, p, clientID); err != nil {
		return nil, err
	}
	return s.store.Clients(ctx).Find(ctx, clientID)
}

// CreateClient adds a client record. A fresh client has no assignments, so
// only principals who can write all clients may create one.
func (s *Service) CreateClient(ctx context.Context, p auth.Principal, input ClientInput) (*Client, error) {
	if !p.Can(auth.ActionWriteAllClients) {
		return nil, ErrForbidden
	}
	if err := CheckStruct(input); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	client := &Client{
		ID:           ids.New(),
		Name:         strings.TrimSpace(input.Name),
		Industry:     strings.TrimSpace(input.Industry),
		Website:      strings.TrimSpace(input.Website),
		ContactEmail: strings.TrimSpace(strings.ToLower(input.ContactEmail)),
		Notes:        input.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Clients(ctx).Create(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

// UpdateClient applies field changes within the caller's scope.
func (s *Service) UpdateClient(ctx context.Context, p auth.Principal, clientID string, input ClientInput) (*Client, error) {
	if err := s.authorizeClient(ctx, p, clientID); err != nil {
		return nil, err
	}
	if err := CheckStruct(input); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	industry := strings.TrimSpace(input.Industry)
	website := strings.TrimSpace(input.Website)
	contact := strings.TrimSpace(strings.ToLower(input.ContactEmail))
	notes := input.Notes
	return s.store.Clients(ctx).Update(ctx, clientID, ClientUpdate{
		Name:         &name,
		Industry:     &industry,
		Website:      &website,
		ContactEmail: &contact,
		Notes:        &notes,
	})
}

// DeleteClient removes a client. Admin only.
func (s *Service) DeleteClient(ctx context.Context, p auth.Principal, clientID string) error {
	if !p.Can(auth.ActionDeleteClient) {
		return ErrForbidden
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return fmt.Errorf("%w: client_id is required", ErrInvalidInput)
	}
	if err := s.store.Clients(ctx).Delete(ctx, clientID); err != nil {
		return err
	}
	s.appendAudit(ctx, p, "directory.client.delete", "client", clientID, nil)
	return nil
}

// ListActivities returns a client's activities within the caller's scope.
func (s *Service) ListActivities(ctx context.Context, p auth.Principal, clientID string) ([]*ClientActivity, error) {
	if err := s.authorizeClient(ctx, p, clientID); err != nil {
		return nil, err
	}
	return s.store.Activities(ctx).ListByClient(ctx, clientID)
}

// GetActivity returns one activity, enforcing scope through its client.
func (s *Service) GetActivity(ctx context.Context, p auth.Principal, activityID string) (*ClientActivity, error) {
	activity, err := s.store.Activities(ctx).Find(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeClient(ctx, p, activity.ClientID); err != nil {
		return nil, err
	}
	return activity, nil
}

// CreateActivity validates the typed content variant, sanitizes it, and
// stores it. Sanitization runs even on schema-valid payloads.
func (s *Service) CreateActivity(ctx context.Context, p auth.Principal, input ActivityInput) (*ClientActivity, error) {
	activityType, err := ParseActivityType(input.Type)
	if err != nil {
		return nil, &ValidationError{Fields: []FieldError{{Field: "activity_type", Message: "must be one of trend, idea, pr"}}}
	}
	if err := s.authorizeClient(ctx, p, input.ClientID); err != nil {
		return nil, err
	}
	if err := ValidateContent(activityType, input.Content); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	activity := &ClientActivity{
		ID:        ids.New(),
		ClientID:  strings.TrimSpace(input.ClientID),
		Type:      activityType,
		Content:   sanitize.CleanMap(input.Content),
		CreatedBy: p.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Activities(ctx).Create(ctx, activity); err != nil {
		return nil, err
	}
	return activity, nil
}

// UpdateActivity replaces an activity's content after validation and
// sanitization.
func (s *Service) UpdateActivity(ctx context.Context, p auth.Principal, activityID string, content map[string]any) (*ClientActivity, error) {
	activity, err := s.store.Activities(ctx).Find(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeClient(ctx, p, activity.ClientID); err != nil {
		return nil, err
	}
	if err := ValidateContent(activity.Type, content); err != nil {
		return nil, err
	}
	return s.store.Activities(ctx).UpdateContent(ctx, activityID, sanitize.CleanMap(content))
}

// DeleteActivity removes an activity within the caller's scope.
func (s *Service) DeleteActivity(ctx context.Context, p auth.Principal, activityID string) error {
	activity, err := s.store.Activities(ctx).Find(ctx, activityID)
	if err != nil {
		return err
	}
	if err := s.authorizeClient(ctx, p, activity.ClientID); err != nil {
		return err
	}
	return s.store.Activities(ctx).Delete(ctx, activityID)
}

// AssignClient grants a user visibility of a client and records the change
// in the audit trail.
func (s *Service) AssignClient(ctx context.Context, p auth.Principal, clientID, userID string) (ClientAssignment, error) {
	if !p.Can(auth.ActionManageAssignments) {
		return ClientAssignment{}, ErrForbidden
	}
	clientID = strings.TrimSpace(clientID)
	userID = strings.TrimSpace(userID)
	if clientID == "" || userID == "" {
		return ClientAssignment{}, fmt.Errorf("%w: client_id and user_id are required", ErrInvalidInput)
	}
	if _, err := s.store.Clients(ctx).Find(ctx, clientID); err != nil {
		return ClientAssignment{}, err
	}
	if _, err := s.store.Users(ctx).Find(ctx, userID); err != nil {
		return ClientAssignment{}, err
	}
	assignment := ClientAssignment{
		ClientID:   clientID,
		UserID:     userID,
		Status:     AssignmentActive,
		AssignedBy: p.ID,
		AssignedAt: s.now().UTC(),
	}
	if err := s.store.Assignments(ctx).Upsert(ctx, assignment); err != nil {
		return ClientAssignment{}, err
	}
	s.appendAudit(ctx, p, "directory.assignment.create", "client_assignment", clientID, map[string]string{
		"user_id": userID,
	})
	return assignment, nil
}

// UnassignClient revokes a user's visibility of a client and records the
// change in the audit trail.
func (s *Service) UnassignClient(ctx context.Context, p auth.Principal, clientID, userID string) error {
	if !p.Can(auth.ActionManageAssignments) {
		return ErrForbidden
	}
	clientID = strings.TrimSpace(clientID)
	userID = strings.TrimSpace(userID)
	if clientID == "" || userID == "" {
		return fmt.Errorf("%w: client_id and user_id are required", ErrInvalidInput)
	}
	if err := s.store.Assignments(ctx).Delete(ctx, clientID, userID); err != nil {
		return err
	}
	s.appendAudit(ctx, p, "directory.assignment.delete", "client_assignment", clientID, map[string]string{
		"user_id": userID,
	})
	return nil
}

// authorizeClient is the single row-level gate. Privileged roles pass;
// everyone else needs an active assignment. The check deliberately returns
// forbidden (not missing) for unassigned clients so existence is not leaked.
func (s *Service) authorizeClient(ctx context.Context, p auth.Principal, clientID string) error {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return fmt.Errorf("%w: client_id is required", ErrInvalidInput)
	}
	if p.Privileged() {
		return nil
	}
	assignment, err := s.store.Assignments(ctx).Find(ctx, clientID, p.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrForbidden
		}
		return err
	}
	if !assignment.Active() {
		return ErrForbidden
	}
	return nil
}

func (s *Service) appendAudit(ctx context.Context, p auth.Principal, action, resourceType, resourceID string, metadata map[string]string) {
	entry := &AuditEntry{
		ID:           ids.New(),
		OccurredAt:   s.now().UTC(),
		ActorID:      p.ID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     metadata,
	}
	// Audit append failures must not fail the primary action.
	_ = s.store.Audit(ctx).Append(ctx, entry)
}
