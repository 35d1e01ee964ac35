package inkwell

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/eringen/inkwell/blog"
	"github.com/eringen/inkwell/views"
)

const (
	listSize    = 30
	maxQueryLen = 100
)

func (a *App) handleHome(c echo.Context) error {
	s, err := a.Cache.Home(c.Request().Context())
	if err != nil {
		return err
	}
	p := a.page(c, "")
	p.Meta.Description = a.Config.Description
	p.JSONLD = views.WebsiteJsonLD(a.siteView())
	return Render(c, views.Home(views.HomePage{
		Page:       p,
		Featured:   s.Featured,
		Latest:     s.Latest,
		Trending:   s.Trending,
		Categories: s.Categories,
	}))
}

func (a *App) handlePost(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	post, err := a.Posts.View(ctx, actor(c), id)
	if err != nil {
		return err
	}
	comments, err := a.Store.ListComments(ctx, id)
	if err != nil {
		return err
	}
	var related []blog.Post
	if post.IsPublished {
		sameCategory, err := a.Store.ListPosts(ctx, blog.PostFilter{PublishedOnly: true, CategoryID: post.CategoryID, Limit: 4})
		if err != nil {
			return err
		}
		related = RelatedPosts(post, sameCategory, 3)
	}

	p := a.page(c, post.Title)
	p.Meta.Description = views.Excerpt(post.Content, 160)
	p.Meta.OGType = "article"
	if post.FeaturedImage != "" {
		p.Meta.Image = BuildURL(a.Config.URL, "uploads", "posts", post.FeaturedImage)
	}
	p.JSONLD = views.BlogPostingJsonLD(a.siteView(), post)
	return Render(c, views.PostDetail(views.PostPage{
		Page:     p,
		Post:     post,
		Comments: comments,
		Related:  related,
	}))
}

func (a *App) handleCategory(c echo.Context) error {
	ctx := c.Request().Context()
	cat, err := a.Store.GetCategoryByName(ctx, c.Param("name"))
	if err != nil {
		return err
	}
	posts, err := a.Store.ListPosts(ctx, blog.PostFilter{PublishedOnly: true, CategoryID: cat.ID, Limit: listSize})
	if err != nil {
		return err
	}
	cats, err := a.Cache.Categories(ctx)
	if err != nil {
		return err
	}
	return Render(c, views.PostList(views.ListPage{
		Page:       a.page(c, cat.Name),
		Heading:    cat.Name,
		Posts:      posts,
		Categories: cats,
	}))
}

func (a *App) handleSearch(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if utf8.RuneCountInString(q) > maxQueryLen {
		q = string([]rune(q)[:maxQueryLen])
	}
	posts, err := a.Posts.Search(c.Request().Context(), q, listSize)
	if err != nil {
		return err
	}
	return Render(c, views.PostList(views.ListPage{
		Page:    a.page(c, "Search"),
		Heading: "Search",
		Query:   q,
		Posts:   posts,
	}))
}

func (a *App) handleAbout(c echo.Context) error {
	return Render(c, views.About(a.page(c, "About")))
}

func (a *App) handleNewsletter(c echo.Context) error {
	back := safeNext(refererPath(c), "/")
	var form newsletterForm
	if err := bindForm(c, &form); err != nil {
		return redirectWithFlash(c, back, flashError, err.Error())
	}
	created, err := blog.Subscribe(c.Request().Context(), a.Store, form.Email)
	switch {
	case errors.Is(err, blog.ErrInvalidInput):
		return redirectWithFlash(c, back, flashError, "Please enter a valid email address.")
	case err != nil:
		return err
	case !created:
		return redirectWithFlash(c, back, flashInfo, "You are already subscribed.")
	}
	return redirectWithFlash(c, back, flashSuccess, "Thanks for subscribing!")
}

// refererPath returns the path of the Referer header when it points at this site.
func refererPath(c echo.Context) string {
	ref := c.Request().Referer()
	if ref == "" {
		return ""
	}
	host := c.Request().Host
	for _, scheme := range []string{"http://", "https://"} {
		if rest, ok := strings.CutPrefix(ref, scheme+host); ok && strings.HasPrefix(rest, "/") {
			return rest
		}
	}
	return ""
}

func (a *App) handleSitemap(c echo.Context) error {
	ctx := c.Request().Context()
	posts, err := a.Store.ListPosts(ctx, blog.PostFilter{PublishedOnly: true})
	if err != nil {
		return err
	}
	cats, err := a.Cache.Categories(ctx)
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts, cats)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Store.ListPosts(c.Request().Context(), blog.PostFilter{PublishedOnly: true, Limit: feedSize})
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

func (a *App) handleRobots(c echo.Context) error {
	body := fmt.Sprintf("User-agent: *\nDisallow: /dashboard\nDisallow: /admin/\nDisallow: /profile\nDisallow: /account/\n\nSitemap: %s\n",
		BuildURL(a.Config.URL, "sitemap.xml"))
	return c.String(http.StatusOK, body)
}

func (a *App) handleHealth(c echo.Context) error {
	if err := a.Store.Ping(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
