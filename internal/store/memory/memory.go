// Package memory implements directory.Store with in-process maps. It backs
// tests and secret-less development runs; production uses the pg store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"agencydesk.io/internal/auth"
	"agencydesk.io/internal/directory"
)

type Store struct {
	mu          sync.RWMutex
	users       map[string]*directory.User
	clients     map[string]*directory.Client
	activities  map[string]*directory.ClientActivity
	assignments map[string]directory.ClientAssignment // key clientID + "|" + userID
	audit       []directory.AuditEntry
}

var _ directory.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		users:       make(map[string]*directory.User),
		clients:     make(map[string]*directory.Client),
		activities:  make(map[string]*directory.ClientActivity),
		assignments: make(map[string]directory.ClientAssignment),
	}
}

func (s *Store) Users(ctx context.Context) directory.UserStore             { return (*userStore)(s) }
func (s *Store) Clients(ctx context.Context) directory.ClientStore         { return (*clientStore)(s) }
func (s *Store) Activities(ctx context.Context) directory.ActivityStore   { return (*activityStore)(s) }
func (s *Store) Assignments(ctx context.Context) directory.AssignmentStore { return (*assignmentStore)(s) }
func (s *Store) Audit(ctx context.Context) directory.AuditStore            { return (*auditStore)(s) }

// AuditEntries returns a copy of the appended audit trail (test helper).
func (s *Store) AuditEntries() []directory.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]directory.AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out
}

func assignmentKey(clientID, userID string) string {
	return clientID + "|" + userID
}

// User store ---------------------------------------------------------------

type userStore Store

func (s *userStore) Create(ctx context.Context, u *directory.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return directory.ErrConflict
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *userStore) Find(ctx context.Context, id string) (*directory.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*directory.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, directory.ErrNotFound
}

func (s *userStore) Update(ctx context.Context, id string, upd directory.UserUpdate) (*directory.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	if upd.Role != nil {
		u.Role = auth.Role(*upd.Role)
	}
	if upd.Status != nil {
		u.Status = *upd.Status
	}
	if upd.Department != nil {
		u.Department = *upd.Department
	}
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	return &cp, nil
}

func (s *userStore) List(ctx context.Context) ([]*directory.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*directory.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Client store -------------------------------------------------------------

type clientStore Store

func (s *clientStore) Create(ctx context.Context, c *directory.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.clients[c.ID] = &cp
	return nil
}

func (s *clientStore) Find(ctx context.Context, id string) (*directory.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *clientStore) List(ctx context.Context) ([]*directory.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*directory.Client, 0, len(s.clients))
	for _, c := range s.clients {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *clientStore) ListForUser(ctx context.Context, userID string) ([]*directory.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*directory.Client
	for _, a := range s.assignments {
		if a.UserID != userID || !a.Active() {
			continue
		}
		if c, ok := s.clients[a.ClientID]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *clientStore) Update(ctx context.Context, id string, upd directory.ClientUpdate) (*directory.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	if upd.Name != nil {
		c.Name = *upd.Name
	}
	if upd.Industry != nil {
		c.Industry = *upd.Industry
	}
	if upd.Website != nil {
		c.Website = *upd.Website
	}
	if upd.ContactEmail != nil {
		c.ContactEmail = *upd.ContactEmail
	}
	if upd.Notes != nil {
		c.Notes = *upd.Notes
	}
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	return &cp, nil
}

func (s *clientStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[id]; !ok {
		return directory.ErrNotFound
	}
	delete(s.clients, id)
	for key, a := range s.assignments {
		if a.ClientID == id {
			delete(s.assignments, key)
		}
	}
	for aid, act := range s.activities {
		if act.ClientID == id {
			delete(s.activities, aid)
		}
	}
	return nil
}

// Activity store -----------------------------------------------------------

type activityStore Store

func (s *activityStore) Create(ctx context.Context, a *directory.ClientActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.activities[a.ID] = &cp
	return nil
}

func (s *activityStore) Find(ctx context.Context, id string) (*directory.ClientActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.activities[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *activityStore) ListByClient(ctx context.Context, clientID string) ([]*directory.ClientActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*directory.ClientActivity
	for _, a := range s.activities {
		if a.ClientID == clientID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *activityStore) UpdateContent(ctx context.Context, id string, content map[string]any) (*directory.ClientActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.activities[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	a.Content = content
	a.UpdatedAt = time.Now().UTC()
	cp := *a
	return &cp, nil
}

func (s *activityStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.activities[id]; !ok {
		return directory.ErrNotFound
	}
	delete(s.activities, id)
	return nil
}

// Assignment store ---------------------------------------------------------

type assignmentStore Store

func (s *assignmentStore) Upsert(ctx context.Context, a directory.ClientAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[assignmentKey(a.ClientID, a.UserID)] = a
	return nil
}

func (s *assignmentStore) Find(ctx context.Context, clientID, userID string) (*directory.ClientAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[assignmentKey(clientID, userID)]
	if !ok {
		return nil, directory.ErrNotFound
	}
	cp := a
	return &cp, nil
}

func (s *assignmentStore) ListForUser(ctx context.Context, userID string) ([]directory.ClientAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []directory.ClientAssignment
	for _, a := range s.assignments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *assignmentStore) ListForClient(ctx context.Context, clientID string) ([]directory.ClientAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []directory.ClientAssignment
	for _, a := range s.assignments {
		if a.ClientID == clientID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *assignmentStore) Delete(ctx context.Context, clientID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := assignmentKey(clientID, userID)
	if _, ok := s.assignments[key]; !ok {
		return directory.ErrNotFound
	}
	delete(s.assignments, key)
	return nil
}

// Audit store --------------------------------------------------------------

type auditStore Store

func (s *auditStore) Append(ctx context.Context, entry *directory.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, *entry)
	return nil
}
