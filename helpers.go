package inkwell

import (
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/inkwell/blog"
)

// BuildURL joins a base URL with path segments.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// PostPath is the site-relative path of a post.
func PostPath(id int64) string {
	return "/post/" + strconv.FormatInt(id, 10)
}

// paramID parses the :id route parameter. Malformed ids are reported as
// missing entities.
func paramID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, blog.ErrNotFound
	}
	return id, nil
}

// safeNext returns next when it is a local path, or fallback otherwise.
func safeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	return next
}

// RelatedPosts returns up to n posts sharing current's category.
func RelatedPosts(current blog.Post, posts []blog.Post, n int) []blog.Post {
	var related []blog.Post
	for _, p := range posts {
		if p.ID == current.ID || p.CategoryID != current.CategoryID {
			continue
		}
		related = append(related, p)
		if len(related) == n {
			break
		}
	}
	return related
}
