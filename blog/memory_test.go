package blog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/eringen/inkwell/media"
)

// memDir is an in-memory Directory used by the service tests.
type memDir struct {
	mu       sync.Mutex
	users    map[int64]User
	posts    map[int64]Post
	cats     map[int64]Category
	comments []Comment
	subs     map[string]struct{}
	nextID   int64

	failSave bool
}

func newMemDir() *memDir {
	return &memDir{
		users: map[int64]User{},
		posts: map[int64]Post{},
		cats:  map[int64]Category{},
		subs:  map[string]struct{}{},
	}
}

func (m *memDir) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memDir) GetUser(_ context.Context, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memDir) GetUserByEmail(_ context.Context, email string) (User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *memDir) CreateUser(_ context.Context, u *User) error {
	for _, other := range m.users {
		if other.Email == u.Email {
			return ErrDuplicateEmail
		}
		if other.Username == u.Username {
			return ErrDuplicateUsername
		}
	}
	u.ID = m.id()
	m.users[u.ID] = *u
	return nil
}

func (m *memDir) UpdateUser(_ context.Context, u User) error {
	if _, ok := m.users[u.ID]; !ok {
		return ErrNotFound
	}
	m.users[u.ID] = u
	return nil
}

func (m *memDir) ListUsers(context.Context) ([]User, error) {
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memDir) CountUsersByRole(_ context.Context, role Role) (int, error) {
	n := 0
	for _, u := range m.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (m *memDir) GetPost(_ context.Context, id int64) (Post, error) {
	p, ok := m.posts[id]
	if !ok {
		return Post{}, ErrNotFound
	}
	return p, nil
}

func (m *memDir) ListPosts(_ context.Context, f PostFilter) ([]Post, error) {
	var out []Post
	for _, p := range m.posts {
		switch {
		case f.PublishedOnly && !p.IsPublished,
			f.DraftsOnly && p.IsPublished,
			f.FeaturedOnly && !p.IsFeatured,
			f.AuthorID != 0 && p.AuthorID != f.AuthorID,
			f.CategoryID != 0 && p.CategoryID != f.CategoryID:
			continue
		}
		if f.Query != "" {
			q := strings.ToLower(f.Query)
			if !strings.Contains(strings.ToLower(p.Title), q) && !strings.Contains(strings.ToLower(p.Content), q) {
				continue
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if f.Order == MostViewed && out[i].Views != out[j].Views {
			return out[i].Views > out[j].Views
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memDir) SavePost(_ context.Context, p *Post) error {
	if m.failSave {
		return errSaveFailed
	}
	if p.ID == 0 {
		p.ID = m.id()
	} else if _, ok := m.posts[p.ID]; !ok {
		return ErrNotFound
	}
	m.posts[p.ID] = *p
	return nil
}

func (m *memDir) DeletePost(_ context.Context, id int64) error {
	if _, ok := m.posts[id]; !ok {
		return ErrNotFound
	}
	delete(m.posts, id)
	return nil
}

func (m *memDir) IncrementViews(_ context.Context, id int64) (int64, error) {
	p, ok := m.posts[id]
	if !ok {
		return 0, ErrNotFound
	}
	p.Views++
	m.posts[id] = p
	return p.Views, nil
}

func (m *memDir) IncrementLikes(_ context.Context, id int64) (int64, error) {
	p, ok := m.posts[id]
	if !ok {
		return 0, ErrNotFound
	}
	p.Likes++
	m.posts[id] = p
	return p.Likes, nil
}

func (m *memDir) ListCategories(context.Context) ([]Category, error) {
	out := make([]Category, 0, len(m.cats))
	for _, c := range m.cats {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memDir) GetCategory(_ context.Context, id int64) (Category, error) {
	c, ok := m.cats[id]
	if !ok {
		return Category{}, ErrNotFound
	}
	return c, nil
}

func (m *memDir) GetCategoryByName(_ context.Context, name string) (Category, error) {
	for _, c := range m.cats {
		if c.Name == name {
			return c, nil
		}
	}
	return Category{}, ErrNotFound
}

func (m *memDir) CreateCategory(_ context.Context, name string) (Category, error) {
	c := Category{ID: m.id(), Name: name}
	m.cats[c.ID] = c
	return c, nil
}

func (m *memDir) AddComment(_ context.Context, c *Comment) error {
	c.ID = m.id()
	m.comments = append(m.comments, *c)
	return nil
}

func (m *memDir) ListComments(_ context.Context, postID int64) ([]Comment, error) {
	var out []Comment
	for _, c := range m.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memDir) Subscribe(_ context.Context, email string) (bool, error) {
	if _, ok := m.subs[email]; ok {
		return false, nil
	}
	m.subs[email] = struct{}{}
	return true, nil
}

// Atomic restores the previous state when fn fails.
func (m *memDir) Atomic(_ context.Context, fn func(Directory) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := cloneMap(m.users)
	posts := cloneMap(m.posts)
	cats := cloneMap(m.cats)
	comments := append([]Comment(nil), m.comments...)
	subs := cloneMap(m.subs)
	next := m.nextID
	if err := fn(m); err != nil {
		m.users, m.posts, m.cats, m.comments, m.subs, m.nextID = users, posts, cats, comments, subs, next
		return err
	}
	return nil
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// fakeAssets records ingested and deleted references without touching disk.
type fakeAssets struct {
	next    int
	err     error
	live    map[string]bool
	deleted []string
}

func newFakeAssets() *fakeAssets {
	return &fakeAssets{live: map[string]bool{}}
}

func (f *fakeAssets) Ingest(_ context.Context, _ media.Upload, purpose media.Purpose) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.next++
	ref := string(purpose) + "-" + string(rune('a'+f.next-1)) + ".jpg"
	f.live[ref] = true
	return ref, nil
}

func (f *fakeAssets) TryDelete(_ media.Purpose, ref string) bool {
	f.deleted = append(f.deleted, ref)
	if !f.live[ref] {
		return false
	}
	delete(f.live, ref)
	return true
}
