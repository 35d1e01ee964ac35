package inkwell

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/inkwell/blog"
	"github.com/eringen/inkwell/views"
)

// httpErrorHandler maps domain errors to responses. Missing and hidden
// entities share one not-found page; unexpected errors are logged and shown
// as a generic failure.
func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := "Something went wrong on our side. Please try again later."
	var he *echo.HTTPError
	switch {
	case errors.Is(err, blog.ErrUnauthenticated):
		if wantsJSON(c) {
			_ = c.JSON(http.StatusUnauthorized, map[string]string{"error": "login required"})
			return
		}
		back := c.Request().URL.RequestURI()
		if c.Request().Method != http.MethodGet {
			back = safeNext(refererPath(c), "/")
		}
		_ = redirectWithFlash(c, "/login?next="+url.QueryEscape(back), flashInfo, "Please log in to continue.")
		return
	case errors.Is(err, blog.ErrNotFound):
		code, msg = http.StatusNotFound, "The page you are looking for does not exist."
	case errors.Is(err, blog.ErrForbidden):
		code, msg = http.StatusForbidden, "You are not allowed to do that."
	case errors.Is(err, blog.ErrInvalidInput):
		code, msg = http.StatusBadRequest, err.Error()
	case errors.As(err, &he):
		code = he.Code
		switch {
		case code == http.StatusNotFound:
			msg = "The page you are looking for does not exist."
		case code < http.StatusInternalServerError:
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(code)
			}
		}
	}

	if code >= http.StatusInternalServerError {
		a.Log.Error("server error", zap.Error(err), zap.String("uri", c.Request().RequestURI))
	}
	if wantsJSON(c) {
		_ = c.JSON(code, map[string]string{"error": msg})
		return
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	p := a.page(c, http.StatusText(code))
	_ = RenderStatus(c, code, views.Error(views.ErrorPage{Page: p, Code: code, Message: msg}))
}

func wantsJSON(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}
