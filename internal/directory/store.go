package directory

import "context"

// Store describes persistence operations required by the directory service.
type Store interface {
	Users(ctx context.Context) UserStore
	Clients(ctx context.Context) ClientStore
	Activities(ctx context.Context) ActivityStore
	Assignments(ctx context.Context) AssignmentStore
	Audit(ctx context.Context) AuditStore
}

// UserStore manages staff accounts.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, id string, upd UserUpdate) (*User, error)
	List(ctx context.Context) ([]*User, error)
}

// ClientStore manages client records.
type ClientStore interface {
	Create(ctx context.Context, c *Client) error
	Find(ctx context.Context, id string) (*Client, error)
	List(ctx context.Context) ([]*Client, error)
	// ListForUser returns clients with an active assignment for the user.
	ListForUser(ctx context.Context, userID string) ([]*Client, error)
	Update(ctx context.Context, id string, upd ClientUpdate) (*Client, error)
	Delete(ctx context.Context, id string) error
}

// ActivityStore manages stored activities.
type ActivityStore interface {
	Create(ctx context.Context, a *ClientActivity) error
	Find(ctx context.Context, id string) (*ClientActivity, error)
	ListByClient(ctx context.Context, clientID string) ([]*ClientActivity, error)
	UpdateContent(ctx context.Context, id string, content map[string]any) (*ClientActivity, error)
	Delete(ctx context.Context, id string) error
}

// AssignmentStore manages the client/user visibility relation.
type AssignmentStore interface {
	Upsert(ctx context.Context, a ClientAssignment) error
	Find(ctx context.Context, clientID, userID string) (*ClientAssignment, error)
	ListForUser(ctx context.Context, userID string) ([]ClientAssignment, error)
	ListForClient(ctx context.Context, clientID string) ([]ClientAssignment, error)
	Delete(ctx context.Context, clientID, userID string) error
}

// AuditStore appends immutable entries.
type AuditStore interface {
	Append(ctx context.Context, entry *AuditEntry) error
}
