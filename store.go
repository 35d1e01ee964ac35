package inkwell

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/eringen/inkwell/blog"
	"github.com/eringen/inkwell/migrations"
)

// Times are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02 15:04:05.000000"

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQLite-backed blog.Directory.
type Store struct {
	db *sql.DB
	q  querier
}

var _ blog.Directory = (*Store)(nil)

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and applies pending migrations.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// WAL lets readers proceed while a writer commits; synchronous=NORMAL is
	// safe with WAL and avoids an fsync per transaction.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, q: db}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(db, ".")
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Atomic runs fn inside a transaction. Nested calls join the outer one.
func (s *Store) Atomic(ctx context.Context, fn func(blog.Directory) error) error {
	if _, inTx := s.q.(*sql.Tx); inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&Store{db: s.db, q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return blog.ErrNotFound
	}
	return err
}

// --- users ---

const userColumns = `id, username, email, password_hash, role, profile_image, bio, must_rotate_password, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(r rowScanner) (blog.User, error) {
	var u blog.User
	var role, created string
	var rotate int
	if err := r.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.ProfileImage, &u.Bio, &rotate, &created); err != nil {
		return blog.User{}, err
	}
	u.Role = blog.Role(role)
	u.MustRotatePassword = rotate == 1
	u.CreatedAt = parseTime(created)
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (blog.User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	return u, notFound(err)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (blog.User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	return u, notFound(err)
}

func uniqueViolation(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed: users.email"):
		return blog.ErrDuplicateEmail
	case strings.Contains(msg, "UNIQUE constraint failed: users.username"):
		return blog.ErrDuplicateUsername
	}
	return err
}

func (s *Store) CreateUser(ctx context.Context, u *blog.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	res, err := s.q.ExecContext(ctx, `INSERT INTO users (username, email, password_hash, role, profile_image, bio, must_rotate_password, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, string(u.Role), u.ProfileImage, u.Bio, boolInt(u.MustRotatePassword), formatTime(u.CreatedAt))
	if err != nil {
		return uniqueViolation(err)
	}
	u.ID, err = res.LastInsertId()
	return err
}

func (s *Store) UpdateUser(ctx context.Context, u blog.User) error {
	res, err := s.q.ExecContext(ctx, `UPDATE users SET username = ?, email = ?, password_hash = ?, role = ?, profile_image = ?, bio = ?, must_rotate_password = ? WHERE id = ?`,
		u.Username, u.Email, u.PasswordHash, string(u.Role), u.ProfileImage, u.Bio, boolInt(u.MustRotatePassword), u.ID)
	if err != nil {
		return uniqueViolation(err)
	}
	return expectRow(res)
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return blog.ErrNotFound
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]blog.User, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []blog.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) CountUsersByRole(ctx context.Context, role blog.Role) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = ?`, string(role)).Scan(&n)
	return n, err
}

// --- posts ---

const postSelect = `SELECT p.id, p.title, p.content, p.featured_image, p.author_id, u.username,
	p.category_id, c.name, p.is_featured, p.is_published, p.views, p.likes, p.created_at, p.updated_at
FROM posts p
JOIN users u ON u.id = p.author_id
JOIN categories c ON c.id = p.category_id`

func scanPost(r rowScanner) (blog.Post, error) {
	var p blog.Post
	var featured, published int
	var created, updated string
	if err := r.Scan(&p.ID, &p.Title, &p.Content, &p.FeaturedImage, &p.AuthorID, &p.AuthorName,
		&p.CategoryID, &p.CategoryName, &featured, &published, &p.Views, &p.Likes, &created, &updated); err != nil {
		return blog.Post{}, err
	}
	p.IsFeatured = featured == 1
	p.IsPublished = published == 1
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return p, nil
}

func (s *Store) GetPost(ctx context.Context, id int64) (blog.Post, error) {
	p, err := scanPost(s.q.QueryRowContext(ctx, postSelect+` WHERE p.id = ?`, id))
	return p, notFound(err)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListPosts returns posts matching f, newest first unless f.Order says
// otherwise. Ties are broken by id so ordering is stable.
func (s *Store) ListPosts(ctx context.Context, f blog.PostFilter) ([]blog.Post, error) {
	var where []string
	var args []any
	if f.PublishedOnly {
		where = append(where, "p.is_published = 1")
	}
	if f.DraftsOnly {
		where = append(where, "p.is_published = 0")
	}
	if f.FeaturedOnly {
		where = append(where, "p.is_featured = 1")
	}
	if f.AuthorID != 0 {
		where = append(where, "p.author_id = ?")
		args = append(args, f.AuthorID)
	}
	if f.CategoryID != 0 {
		where = append(where, "p.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := "%" + likeEscaper.Replace(q) + "%"
		where = append(where, `(p.title LIKE ? ESCAPE '\' OR p.content LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}

	query := postSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	switch f.Order {
	case blog.MostViewed:
		query += " ORDER BY p.views DESC, p.created_at DESC, p.id DESC"
	default:
		query += " ORDER BY p.created_at DESC, p.id DESC"
	}
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []blog.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// SavePost inserts p when p.ID is zero and updates it otherwise. Counters are
// only changed through IncrementViews and IncrementLikes.
func (s *Store) SavePost(ctx context.Context, p *blog.Post) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	if p.ID == 0 {
		res, err := s.q.ExecContext(ctx, `INSERT INTO posts (title, content, featured_image, author_id, category_id, is_featured, is_published, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Title, p.Content, p.FeaturedImage, p.AuthorID, p.CategoryID, boolInt(p.IsFeatured), boolInt(p.IsPublished), formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
		if err != nil {
			return err
		}
		p.ID, err = res.LastInsertId()
		return err
	}
	res, err := s.q.ExecContext(ctx, `UPDATE posts SET title = ?, content = ?, featured_image = ?, category_id = ?, is_featured = ?, is_published = ?, updated_at = ? WHERE id = ?`,
		p.Title, p.Content, p.FeaturedImage, p.CategoryID, boolInt(p.IsFeatured), boolInt(p.IsPublished), formatTime(p.UpdatedAt), p.ID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// DeletePost removes a post; its comments go with it.
func (s *Store) DeletePost(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (s *Store) IncrementViews(ctx context.Context, id int64) (int64, error) {
	var n int64
	err := s.q.QueryRowContext(ctx, `UPDATE posts SET views = views + 1 WHERE id = ? RETURNING views`, id).Scan(&n)
	return n, notFound(err)
}

func (s *Store) IncrementLikes(ctx context.Context, id int64) (int64, error) {
	var n int64
	err := s.q.QueryRowContext(ctx, `UPDATE posts SET likes = likes + 1 WHERE id = ? RETURNING likes`, id).Scan(&n)
	return n, notFound(err)
}

// --- categories ---

func (s *Store) ListCategories(ctx context.Context) ([]blog.Category, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []blog.Category
	for rows.Next() {
		var c blog.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (s *Store) GetCategory(ctx context.Context, id int64) (blog.Category, error) {
	var c blog.Category
	err := s.q.QueryRowContext(ctx, `SELECT id, name FROM categories WHERE id = ?`, id).Scan(&c.ID, &c.Name)
	return c, notFound(err)
}

func (s *Store) GetCategoryByName(ctx context.Context, name string) (blog.Category, error) {
	var c blog.Category
	err := s.q.QueryRowContext(ctx, `SELECT id, name FROM categories WHERE name = ? COLLATE NOCASE`, name).Scan(&c.ID, &c.Name)
	return c, notFound(err)
}

func (s *Store) CreateCategory(ctx context.Context, name string) (blog.Category, error) {
	res, err := s.q.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, name)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return blog.Category{}, fmt.Errorf("%w: category %q exists", blog.ErrInvalidInput, name)
		}
		return blog.Category{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return blog.Category{}, err
	}
	return blog.Category{ID: id, Name: name}, nil
}

// --- comments ---

func (s *Store) AddComment(ctx context.Context, c *blog.Comment) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	res, err := s.q.ExecContext(ctx, `INSERT INTO comments (content, user_id, post_id, created_at) VALUES (?, ?, ?, ?)`,
		c.Content, c.UserID, c.PostID, formatTime(c.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return blog.ErrNotFound
		}
		return err
	}
	c.ID, err = res.LastInsertId()
	return err
}

// ListComments returns a post's comments, oldest first.
func (s *Store) ListComments(ctx context.Context, postID int64) ([]blog.Comment, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT c.id, c.post_id, c.user_id, u.username, c.content, c.created_at
FROM comments c JOIN users u ON u.id = c.user_id
WHERE c.post_id = ? ORDER BY c.created_at, c.id`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []blog.Comment
	for rows.Next() {
		var c blog.Comment
		var created string
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Username, &c.Content, &created); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(created)
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// --- newsletter ---

func (s *Store) Subscribe(ctx context.Context, email string) (bool, error) {
	res, err := s.q.ExecContext(ctx, `INSERT INTO newsletter_subscriptions (email, created_at) VALUES (?, ?) ON CONFLICT (email) DO NOTHING`,
		email, formatTime(time.Now()))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CountSubscriptions returns the number of newsletter subscribers.
func (s *Store) CountSubscriptions(ctx context.Context) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM newsletter_subscriptions`).Scan(&n)
	return n, err
}
