package views

import "github.com/eringen/inkwell/blog"

// SiteConfig holds site-wide settings every page needs.
type SiteConfig struct {
	Name        string
	URL         string
	Description string
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head>.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string
}

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    string // "success", "info" or "error"
	Message string
}

// Page is embedded in every page model.
type Page struct {
	Site    SiteConfig
	Meta    PageMeta
	User    *blog.User
	CSRF    string
	Flashes []Flash
	JSONLD  string
}

// CanWrite reports whether the signed-in user may author posts.
func (p Page) CanWrite() bool {
	return p.User != nil && (p.User.Role == blog.RoleAuthor || p.User.Role == blog.RoleAdmin)
}

// IsAdmin reports whether the signed-in user is an admin.
func (p Page) IsAdmin() bool {
	return p.User != nil && p.User.Role == blog.RoleAdmin
}

type HomePage struct {
	Page
	Featured   []blog.Post
	Latest     []blog.Post
	Trending   []blog.Post
	Categories []blog.Category
}

type PostPage struct {
	Page
	Post     blog.Post
	Comments []blog.Comment
	Related  []blog.Post
}

// ListPage renders a titled list of posts: a category, search results or
// an author's posts.
type ListPage struct {
	Page
	Heading    string
	Query      string
	Posts      []blog.Post
	Categories []blog.Category
}

type AuthPage struct {
	Page
	Username string
	Email    string
	Next     string
}

type PostFormPage struct {
	Page
	Post       blog.Post
	Categories []blog.Category
	Action     string
}

type ProfilePage struct {
	Page
	Profile blog.User
	Posts   []blog.Post
}

type DashboardPage struct {
	Page
	Posts   []blog.Post
	Pending []blog.Post
}

type UsersPage struct {
	Page
	Users []blog.User
	Roles []blog.Role
}

type ContactPage struct {
	Page
	Name    string
	Email   string
	Subject string
	Message string
}

type ErrorPage struct {
	Page
	Code    int
	Message string
}
