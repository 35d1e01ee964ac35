package inkwell

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/inkwell/blog"
	"github.com/eringen/inkwell/views"
)

func (a *App) handleDashboard(c echo.Context) error {
	act := actor(c)
	if !blog.Can(act, blog.ActionViewDashboard, nil) {
		return denyRequest(c)
	}
	ctx := c.Request().Context()
	posts, err := a.Store.ListPosts(ctx, blog.PostFilter{AuthorID: act.UserID})
	if err != nil {
		return err
	}
	var pending []blog.Post
	if blog.Can(act, blog.ActionModerate, nil) {
		if pending, err = a.Store.ListPosts(ctx, blog.PostFilter{DraftsOnly: true}); err != nil {
			return err
		}
	}
	return Render(c, views.Dashboard(views.DashboardPage{
		Page:    a.page(c, "Dashboard"),
		Posts:   posts,
		Pending: pending,
	}))
}

func (a *App) renderPostForm(c echo.Context, code int, post blog.Post, action string, msg string) error {
	cats, err := a.Cache.Categories(c.Request().Context())
	if err != nil {
		return err
	}
	title := "New post"
	if post.ID != 0 {
		title = "Edit post"
	}
	p := a.page(c, title)
	if msg != "" {
		p.Flashes = append(p.Flashes, views.Flash{Kind: flashError, Message: msg})
	}
	return RenderStatus(c, code, views.PostForm(views.PostFormPage{
		Page:       p,
		Post:       post,
		Categories: cats,
		Action:     action,
	}))
}

func (a *App) handleCreatePostPage(c echo.Context) error {
	if !blog.Can(actor(c), blog.ActionCreatePost, nil) {
		return denyRequest(c)
	}
	return a.renderPostForm(c, http.StatusOK, blog.Post{}, "/create-post", "")
}

func (a *App) handleCreatePost(c echo.Context) error {
	act := actor(c)
	if !blog.Can(act, blog.ActionCreatePost, nil) {
		return denyRequest(c)
	}
	var form postForm
	if err := bindForm(c, &form); err != nil {
		return a.renderPostForm(c, http.StatusUnprocessableEntity, form.draft(), "/create-post", err.Error())
	}
	up, done, err := formUpload(c, "featured_image")
	if err != nil {
		return err
	}
	defer done()

	out, err := a.Posts.Create(c.Request().Context(), act, blog.PostInput{
		Title:      form.Title,
		Content:    form.Content,
		CategoryID: form.CategoryID,
		IsFeatured: form.IsFeatured,
		Image:      up,
	})
	if errors.Is(err, blog.ErrInvalidInput) {
		return a.renderPostForm(c, http.StatusUnprocessableEntity, form.draft(), "/create-post", "Please give the post a title, some content and a category.")
	}
	if err != nil {
		return err
	}
	a.Cache.Invalidate()
	a.Log.Info("post created", zap.Int64("post_id", out.Post.ID), zap.Int64("author_id", act.UserID), zap.Stringer("state", out.Post.State()))

	msg := "Your post is live."
	if out.Post.State() == blog.Draft {
		msg = "Your post was submitted for review."
	}
	if out.ImageErr != nil {
		return redirectWithFlash(c, "/dashboard", flashError, msg+" "+imageMessage(out.ImageErr))
	}
	return redirectWithFlash(c, "/dashboard", flashSuccess, msg)
}

func (f postForm) draft() blog.Post {
	return blog.Post{Title: f.Title, Content: f.Content, CategoryID: f.CategoryID, IsFeatured: f.IsFeatured}
}

func (a *App) handleEditPostPage(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	post, err := a.Store.GetPost(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if !blog.Can(actor(c), blog.ActionEditPost, &post) {
		return denyRequest(c)
	}
	return a.renderPostForm(c, http.StatusOK, post, "/edit-post/"+strconv.FormatInt(id, 10), "")
}

func (a *App) handleEditPost(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	action := "/edit-post/" + strconv.FormatInt(id, 10)
	var form postForm
	if err := bindForm(c, &form); err != nil {
		p := form.draft()
		p.ID = id
		return a.renderPostForm(c, http.StatusUnprocessableEntity, p, action, err.Error())
	}
	up, done, err := formUpload(c, "featured_image")
	if err != nil {
		return err
	}
	defer done()

	out, err := a.Posts.Edit(c.Request().Context(), actor(c), id, blog.PostInput{
		Title:      form.Title,
		Content:    form.Content,
		CategoryID: form.CategoryID,
		IsFeatured: form.IsFeatured,
		Image:      up,
	})
	if errors.Is(err, blog.ErrInvalidInput) {
		p := form.draft()
		p.ID = id
		return a.renderPostForm(c, http.StatusUnprocessableEntity, p, action, "Please give the post a title, some content and a category.")
	}
	if err != nil {
		return err
	}
	a.Cache.Invalidate()
	if out.ImageErr != nil {
		return redirectWithFlash(c, PostPath(id), flashError, "Post updated. "+imageMessage(out.ImageErr))
	}
	return redirectWithFlash(c, PostPath(id), flashSuccess, "Post updated.")
}

func (a *App) handleDeletePost(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := a.Posts.Delete(c.Request().Context(), actor(c), id); err != nil {
		return err
	}
	a.Cache.Invalidate()
	a.Log.Info("post deleted", zap.Int64("post_id", id), zap.Int64("by", actor(c).UserID))
	return redirectWithFlash(c, "/dashboard", flashSuccess, "Post deleted.")
}

func (a *App) handlePublishPost(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	post, err := a.Posts.Publish(c.Request().Context(), actor(c), id)
	if err != nil {
		return err
	}
	a.Cache.Invalidate()
	return redirectWithFlash(c, "/dashboard", flashSuccess, "“"+post.Title+"” is published.")
}

func (a *App) handleLikePost(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	likes, err := a.Posts.Like(c.Request().Context(), actor(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int64{"likes": likes})
}

func (a *App) handleComment(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var form commentForm
	if err := bindForm(c, &form); err != nil {
		return redirectWithFlash(c, PostPath(id), flashError, err.Error())
	}
	_, err = a.Posts.Comment(c.Request().Context(), actor(c), id, form.Content)
	switch {
	case errors.Is(err, blog.ErrEmptyComment):
		return redirectWithFlash(c, PostPath(id), flashError, "Comment cannot be empty.")
	case errors.Is(err, blog.ErrInvalidInput):
		return redirectWithFlash(c, PostPath(id), flashError, "Comment is too long.")
	case err != nil:
		return err
	}
	return redirectWithFlash(c, PostPath(id)+"#comments", flashSuccess, "Comment added.")
}
