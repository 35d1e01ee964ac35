package blog

import "context"

// Directory is the relational store behind the site. Lookups of missing rows
// return ErrNotFound; unique violations on users return ErrDuplicateEmail or
// ErrDuplicateUsername.
type Directory interface {
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	CreateUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u User) error
	ListUsers(ctx context.Context) ([]User, error)
	CountUsersByRole(ctx context.Context, role Role) (int, error)

	GetPost(ctx context.Context, id int64) (Post, error)
	ListPosts(ctx context.Context, f PostFilter) ([]Post, error)
	// SavePost inserts p when p.ID is zero and updates it otherwise.
	SavePost(ctx context.Context, p *Post) error
	DeletePost(ctx context.Context, id int64) error
	IncrementViews(ctx context.Context, id int64) (int64, error)
	IncrementLikes(ctx context.Context, id int64) (int64, error)

	ListCategories(ctx context.Context) ([]Category, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
	GetCategoryByName(ctx context.Context, name string) (Category, error)
	CreateCategory(ctx context.Context, name string) (Category, error)

	AddComment(ctx context.Context, c *Comment) error
	ListComments(ctx context.Context, postID int64) ([]Comment, error)

	// Subscribe stores email and reports whether a new row was created.
	Subscribe(ctx context.Context, email string) (bool, error)

	// Atomic runs fn against a Directory whose writes commit together or
	// not at all.
	Atomic(ctx context.Context, fn func(Directory) error) error
}
