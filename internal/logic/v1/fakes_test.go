package v1

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/duynhne/claims-auth/internal/audit"
	"github.com/duynhne/claims-auth/internal/core/domain"
	"github.com/duynhne/claims-auth/internal/jobs"
)

// fakeUserRepo is an in-memory UserRepository. Reads return copies, the way
// a database read would. When snapshot is set, GetByEmail serves that frozen
// row instead of live state; concurrency tests use this to model requests
// that all read the user before any of them writes.
type fakeUserRepo struct {
	mu       sync.Mutex
	byID     map[string]*domain.UserRow
	perms    map[string][]string
	snapshot *domain.UserRow
}

func newFakeUserRepo(users ...*domain.UserRow) *fakeUserRepo {
	r := &fakeUserRepo{byID: map[string]*domain.UserRow{}, perms: map[string][]string{}}
	for _, u := range users {
		r.byID[u.ID] = u
	}
	return r
}

func copyUser(u *domain.UserRow) *domain.UserRow {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.UserRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snapshot != nil {
		return copyUser(r.snapshot), nil
	}
	for _, u := range r.byID {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, userID string) (*domain.UserRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyUser(r.byID[userID]), nil
}

func (r *fakeUserRepo) GetPermissions(_ context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.perms[userID]...), nil
}

func (r *fakeUserRepo) RecordFailedLogin(_ context.Context, userID string, threshold int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.byID[userID]
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= threshold && u.LockedAt == nil {
		now := time.Now()
		u.LockedAt = &now
	}
	return u.FailedLoginAttempts, nil
}

func (r *fakeUserRepo) get(userID string) *domain.UserRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyUser(r.byID[userID])
}

// fakeSessionRepo is an in-memory SessionRepository sharing user state with
// a fakeUserRepo, mirroring the cross-table transactions of the pgx
// implementation.
type fakeSessionRepo struct {
	mu       sync.Mutex
	users    *fakeUserRepo
	sessions map[string]*domain.SessionRow
}

func newFakeSessionRepo(users *fakeUserRepo) *fakeSessionRepo {
	return &fakeSessionRepo{users: users, sessions: map[string]*domain.SessionRow{}}
}

func (r *fakeSessionRepo) CreateAndResetAttempts(_ context.Context, s domain.SessionRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = &s

	r.users.mu.Lock()
	r.users.byID[s.UserID].FailedLoginAttempts = 0
	r.users.mu.Unlock()
	return nil
}

func (r *fakeSessionRepo) Revoke(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok && s.RevokedAt == nil {
		now := time.Now()
		s.RevokedAt = &now
	}
	return nil
}

func (r *fakeSessionRepo) RevokeAllAndInvalidate(_ context.Context, userID, currentSessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()

	r.users.mu.Lock()
	r.users.byID[userID].SessionsInvalidBefore = &now
	r.users.mu.Unlock()

	if s, ok := r.sessions[currentSessionID]; ok && s.RevokedAt == nil {
		s.RevokedAt = &now
	}
	return nil
}

func (r *fakeSessionRepo) GetValidByTokenHash(_ context.Context, tokenHash string) (*domain.SessionRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.TokenHash != tokenHash {
			continue
		}
		if s.RevokedAt != nil || !s.ExpiresAt.After(time.Now()) {
			return nil, nil
		}
		cutoff := r.users.get(s.UserID).SessionsInvalidBefore
		if cutoff != nil && s.CreatedAt.Before(*cutoff) {
			return nil, nil
		}
		c := *s
		return &c, nil
	}
	return nil, nil
}

func (r *fakeSessionRepo) get(sessionID string) *domain.SessionRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		c := *s
		return &c
	}
	return nil
}

func (r *fakeSessionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// fakeResetRepo is an in-memory ResetTokenRepository; Consume performs the
// same used_at-guarded compare-and-set as the SQL implementation.
type fakeResetRepo struct {
	mu     sync.Mutex
	users  *fakeUserRepo
	tokens map[string]*domain.ResetTokenRow
}

func newFakeResetRepo(users *fakeUserRepo) *fakeResetRepo {
	return &fakeResetRepo{users: users, tokens: map[string]*domain.ResetTokenRow{}}
}

func (r *fakeResetRepo) Replace(_ context.Context, t domain.ResetTokenRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.tokens {
		if existing.UserID == t.UserID && existing.UsedAt == nil {
			delete(r.tokens, id)
		}
	}
	r.tokens[t.ID] = &t
	return nil
}

func (r *fakeResetRepo) GetActiveByHash(_ context.Context, tokenHash string) (*domain.ResetTokenRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.TokenHash == tokenHash && t.UsedAt == nil && t.ExpiresAt.After(time.Now()) {
			c := *t
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeResetRepo) Consume(_ context.Context, tokenID, userID, newPasswordHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenID]
	if !ok || t.UsedAt != nil {
		return false, nil
	}
	now := time.Now()
	t.UsedAt = &now

	r.users.mu.Lock()
	u := r.users.byID[userID]
	u.PasswordHash = newPasswordHash
	u.SessionsInvalidBefore = &now
	r.users.mu.Unlock()
	return true, nil
}

func (r *fakeResetRepo) unusedCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.tokens {
		if t.UserID == userID && t.UsedAt == nil {
			n++
		}
	}
	return n
}

// fakeVerifier counts invocations; a password matches when the stored hash
// equals "hash:" + password.
type fakeVerifier struct {
	mu          sync.Mutex
	verifyCalls int
	dummyCalls  int
}

func (v *fakeVerifier) Verify(password, storedHash string) bool {
	v.mu.Lock()
	v.verifyCalls++
	v.mu.Unlock()
	return storedHash != "" && storedHash == "hash:"+password
}

func (v *fakeVerifier) DummyWork() {
	v.mu.Lock()
	v.dummyCalls++
	v.mu.Unlock()
}

func (v *fakeVerifier) Hash(password string) (string, error) {
	return "hash:" + password, nil
}

func (v *fakeVerifier) calls() (verify, dummy int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.verifyCalls, v.dummyCalls
}

// captureSink collects audit events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *captureSink) Log(_ context.Context, e audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *captureSink) byAction(action string) []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// captureQueue collects enqueued jobs.
type captureQueue struct {
	mu   sync.Mutex
	jobs []jobs.Job
}

func (q *captureQueue) Enqueue(_ context.Context, job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *captureQueue) byKind(kind string) []jobs.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []jobs.Job
	for _, j := range q.jobs {
		if j.Kind == kind {
			out = append(out, j)
		}
	}
	return out
}
