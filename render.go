package inkwell

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"github.com/eringen/inkwell/views"
)

// Flash kinds double as gorilla flash keys.
const (
	flashSuccess = "success"
	flashInfo    = "info"
	flashError   = "error"
)

var flashKinds = []string{flashError, flashInfo, flashSuccess}

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// flash queues a message for the next rendered page.
func flash(c echo.Context, kind, msg string) {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return
	}
	sess.AddFlash(msg, kind)
	_ = sess.Save(c.Request(), c.Response())
}

// redirectWithFlash queues msg and redirects with 303 See Other.
func redirectWithFlash(c echo.Context, to, kind, msg string) error {
	flash(c, kind, msg)
	return c.Redirect(http.StatusSeeOther, to)
}

// takeFlashes pops queued flashes. It must run before the response header
// is written because it saves the session.
func takeFlashes(c echo.Context) []views.Flash {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return nil
	}
	var out []views.Flash
	for _, kind := range flashKinds {
		for _, v := range sess.Flashes(kind) {
			if msg, ok := v.(string); ok {
				out = append(out, views.Flash{Kind: kind, Message: msg})
			}
		}
	}
	if len(out) > 0 {
		_ = sess.Save(c.Request(), c.Response())
	}
	return out
}

// page builds the view model shared by every page.
func (a *App) page(c echo.Context, title string) views.Page {
	return views.Page{
		Site: a.siteView(),
		Meta: views.PageMeta{
			Title: title,
			URL:   BuildURL(a.Config.URL, c.Request().URL.Path),
		},
		User:    CurrentUser(c),
		CSRF:    CsrfToken(c),
		Flashes: takeFlashes(c),
	}
}

func (a *App) siteView() views.SiteConfig {
	return views.SiteConfig{
		Name:        a.Config.Name,
		URL:         a.Config.URL,
		Description: a.Config.Description,
	}
}
