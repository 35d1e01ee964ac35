// Package blog holds the domain of an Inkwell site: users and their roles,
// posts and their publication lifecycle, categories, comments and newsletter
// subscriptions. Persistence is reached only through the Directory interface.
package blog

import (
	"strings"
	"time"
)

// Role is the permission level of a user.
type Role string

const (
	RoleReader Role = "reader"
	RoleAuthor Role = "author"
	RoleAdmin  Role = "admin"
)

// ParseRole returns the Role named by s.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleReader, RoleAuthor, RoleAdmin:
		return r, true
	}
	return "", false
}

// User is a registered account.
type User struct {
	ID                 int64
	Username           string
	Email              string
	PasswordHash       string
	Role               Role
	ProfileImage       string
	Bio                string
	MustRotatePassword bool
	CreatedAt          time.Time
}

// State is the publication state of a post.
type State int

const (
	Draft State = iota
	Published
)

func (s State) String() string {
	if s == Published {
		return "published"
	}
	return "draft"
}

// Post is an article written by an author or admin.
type Post struct {
	ID            int64
	Title         string
	Content       string
	FeaturedImage string
	AuthorID      int64
	AuthorName    string
	CategoryID    int64
	CategoryName  string
	IsFeatured    bool
	IsPublished   bool
	Views         int64
	Likes         int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// State derives the lifecycle state from the publish flag.
func (p Post) State() State {
	if p.IsPublished {
		return Published
	}
	return Draft
}

// Category groups posts. Names are unique.
type Category struct {
	ID   int64
	Name string
}

// Comment is an append-only reader response to a post.
type Comment struct {
	ID        int64
	PostID    int64
	UserID    int64
	Username  string
	Content   string
	CreatedAt time.Time
}

// Subscription is a newsletter signup, unique by email.
type Subscription struct {
	ID        int64
	Email     string
	CreatedAt time.Time
}

// Order selects the sort order of a post listing.
type Order int

const (
	Newest Order = iota
	MostViewed
)

// PostFilter narrows a post listing. Zero values mean "no constraint".
type PostFilter struct {
	PublishedOnly bool
	DraftsOnly    bool
	FeaturedOnly  bool
	AuthorID      int64
	CategoryID    int64
	Query         string
	Order         Order
	Limit         int
}

// DefaultCategories are seeded by Bootstrap, in this order.
var DefaultCategories = []string{
	"Technology",
	"Business",
	"Lifestyle",
	"Entertainment",
	"Sports",
	"Health",
	"Politics",
}
