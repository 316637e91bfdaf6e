package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/inkpost/inkpost/internal/cache"
	"github.com/inkpost/inkpost/internal/model"
	"github.com/inkpost/inkpost/internal/notify"
	"github.com/inkpost/inkpost/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memDB mimics the PostgreSQL repository, including cascading deletes.
type memDB struct {
	mu       sync.Mutex
	users    map[string]*model.User
	sessions map[string]*model.Session
	articles map[string]*model.Article
	comments map[string]*model.Comment

	failCreateUser error
}

func newMemDB() *memDB {
	return &memDB{
		users:    map[string]*model.User{},
		sessions: map[string]*model.Session{},
		articles: map[string]*model.Article{},
		comments: map[string]*model.Comment{},
	}
}

func (m *memDB) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateUser != nil {
		return m.failCreateUser
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memDB) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memDB) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memDB) GetUsersByIDs(_ context.Context, ids []string) (map[string]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]*model.User{}
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *memDB) UpdateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return repository.ErrUserNotFound
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memDB) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(m.users, id)
	for sid, s := range m.sessions {
		if s.UserID == id {
			delete(m.sessions, sid)
		}
	}
	for aid, a := range m.articles {
		if a.UserID == id {
			m.deleteArticleLocked(aid)
		}
	}
	for cid, c := range m.comments {
		if c.UserID == id {
			delete(m.comments, cid)
		}
	}
	return nil
}

func (m *memDB) CreateSession(_ context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memDB) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return repository.ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *memDB) ListSessionTokenHashes(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, s.TokenHash)
		}
	}
	return out, nil
}

func (m *memDB) sessionsOf(userID string) []*model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}

func (m *memDB) CreateArticle(_ context.Context, a *model.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[a.UserID]; !ok {
		return repository.ErrUserNotFound
	}
	cp := *a
	cp.Author = nil
	m.articles[a.ID] = &cp
	return nil
}

func (m *memDB) GetArticleByID(_ context.Context, id string) (*model.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[id]
	if !ok {
		return nil, repository.ErrArticleNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memDB) ListArticles(_ context.Context) ([]*model.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Article, 0, len(m.articles))
	for _, a := range m.articles {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memDB) UpdateArticle(_ context.Context, a *model.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.articles[a.ID]; !ok {
		return repository.ErrArticleNotFound
	}
	cp := *a
	cp.Author = nil
	m.articles[a.ID] = &cp
	return nil
}

func (m *memDB) DeleteArticle(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.articles[id]; !ok {
		return repository.ErrArticleNotFound
	}
	m.deleteArticleLocked(id)
	return nil
}

func (m *memDB) deleteArticleLocked(id string) {
	delete(m.articles, id)
	for cid, c := range m.comments {
		if c.ArticleID == id {
			delete(m.comments, cid)
		}
	}
}

func (m *memDB) ArticleExists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.articles[id]
	return ok, nil
}

func (m *memDB) CreateComment(_ context.Context, c *model.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.articles[c.ArticleID]; !ok {
		return repository.ErrArticleNotFound
	}
	if _, ok := m.users[c.UserID]; !ok {
		return repository.ErrUserNotFound
	}
	cp := *c
	cp.Author = nil
	m.comments[c.ID] = &cp
	return nil
}

func (m *memDB) GetCommentByID(_ context.Context, id string) (*model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, repository.ErrCommentNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memDB) ListCommentsByArticle(_ context.Context, articleID string) ([]*model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Comment
	for _, c := range m.comments {
		if c.ArticleID == articleID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memDB) UpdateComment(_ context.Context, c *model.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[c.ID]; !ok {
		return repository.ErrCommentNotFound
	}
	cp := *c
	cp.Author = nil
	m.comments[c.ID] = &cp
	return nil
}

func (m *memDB) DeleteComment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[id]; !ok {
		return repository.ErrCommentNotFound
	}
	delete(m.comments, id)
	return nil
}

// memPending is a TTL key-value store with atomic take, driven by a fake clock.
type memPending struct {
	mu      sync.Mutex
	entries map[string]model.PendingRegistration
	now     func() time.Time
}

func newMemPending(now func() time.Time) *memPending {
	return &memPending{entries: map[string]model.PendingRegistration{}, now: now}
}

func (p *memPending) PutRegistration(_ context.Context, r *model.PendingRegistration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[r.Token]; ok && e.TTL(p.now()) > 0 {
		return cache.ErrTokenExists
	}
	p.entries[r.Token] = *r
	return nil
}

func (p *memPending) TakeRegistration(_ context.Context, token string) (*model.PendingRegistration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[token]
	delete(p.entries, token)
	if !ok || e.TTL(p.now()) <= 0 {
		return nil, cache.ErrTokenNotFound
	}
	return &e, nil
}

func (p *memPending) RestoreRegistration(ctx context.Context, r *model.PendingRegistration) error {
	if r.TTL(p.now()) <= 0 {
		return nil
	}
	err := p.PutRegistration(ctx, r)
	if errors.Is(err, cache.ErrTokenExists) {
		return nil
	}
	return err
}

func (p *memPending) tokens() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for t := range p.entries {
		out = append(out, t)
	}
	return out
}

// memSessionCache records evicted digests.
type memSessionCache struct {
	mu      sync.Mutex
	evicted []string
}

func (c *memSessionCache) RevokeSessions(_ context.Context, hashes ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evicted = append(c.evicted, hashes...)
	return nil
}

// outbox records sent mail and can be told to fail.
type outbox struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg notify.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) last() notify.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		return notify.Message{}
	}
	return o.sent[len(o.sent)-1]
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 12, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
