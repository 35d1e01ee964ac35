package inkwell

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/inkwell/blog"
	"github.com/eringen/inkwell/views"
)

func (a *App) handleLoginPage(c echo.Context) error {
	if CurrentUser(c) != nil {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	return Render(c, views.Login(views.AuthPage{
		Page: a.page(c, "Log in"),
		Next: safeNext(c.QueryParam("next"), ""),
	}))
}

func (a *App) handleLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	var form loginForm
	if err := bindForm(c, &form); err != nil {
		return a.renderLogin(c, http.StatusBadRequest, form, err.Error())
	}
	u, err := a.Accounts.Authenticate(c.Request().Context(), form.Email, form.Password)
	if errors.Is(err, blog.ErrInvalidCredentials) {
		a.loginLimiter.Record(ip)
		return a.renderLogin(c, http.StatusUnauthorized, form, "Invalid email or password.")
	}
	if err != nil {
		return err
	}
	if err := setUserSession(c, u.ID); err != nil {
		return err
	}
	a.Log.Info("login", zap.Int64("user_id", u.ID), zap.String("ip", ip))
	if u.MustRotatePassword {
		return redirectWithFlash(c, "/account/password", flashInfo, "Choose a new password to finish setting up your account.")
	}
	return redirectWithFlash(c, safeNext(form.Next, "/"), flashSuccess, "Welcome back, "+u.Username+"!")
}

func (a *App) renderLogin(c echo.Context, code int, form loginForm, msg string) error {
	p := a.page(c, "Log in")
	p.Flashes = append(p.Flashes, views.Flash{Kind: flashError, Message: msg})
	return RenderStatus(c, code, views.Login(views.AuthPage{
		Page:  p,
		Email: form.Email,
		Next:  safeNext(form.Next, ""),
	}))
}

func (a *App) handleLogout(c echo.Context) error {
	if err := clearUserSession(c); err != nil {
		return err
	}
	return redirectWithFlash(c, "/", flashInfo, "You have been logged out.")
}

func (a *App) handleRegisterPage(c echo.Context) error {
	if CurrentUser(c) != nil {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	return Render(c, views.Register(views.AuthPage{Page: a.page(c, "Register")}))
}

func (a *App) handleRegister(c echo.Context) error {
	if !a.registerLimiter.Allow(c.RealIP()) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too many registrations from your network. Try again later.")
	}
	var form registerForm
	if err := bindForm(c, &form); err != nil {
		return a.renderRegister(c, form, err.Error())
	}
	u, err := a.Accounts.Register(c.Request().Context(), blog.Registration{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
	})
	switch {
	case errors.Is(err, blog.ErrDuplicateEmail):
		return a.renderRegister(c, form, "That email is already registered.")
	case errors.Is(err, blog.ErrDuplicateUsername):
		return a.renderRegister(c, form, "That username is taken.")
	case errors.Is(err, blog.ErrInvalidInput):
		return a.renderRegister(c, form, "Please check your username, email and password.")
	case err != nil:
		return err
	}
	if err := setUserSession(c, u.ID); err != nil {
		return err
	}
	a.Log.Info("user registered", zap.Int64("user_id", u.ID))
	return redirectWithFlash(c, "/", flashSuccess, "Welcome to "+a.Config.Name+", "+u.Username+"!")
}

func (a *App) renderRegister(c echo.Context, form registerForm, msg string) error {
	p := a.page(c, "Register")
	p.Flashes = append(p.Flashes, views.Flash{Kind: flashError, Message: msg})
	return RenderStatus(c, http.StatusUnprocessableEntity, views.Register(views.AuthPage{
		Page:     p,
		Username: form.Username,
		Email:    form.Email,
	}))
}

func (a *App) handleProfilePage(c echo.Context) error {
	u := CurrentUser(c)
	if u == nil {
		return blog.ErrUnauthenticated
	}
	posts, err := a.Store.ListPosts(c.Request().Context(), blog.PostFilter{AuthorID: u.ID, Limit: listSize})
	if err != nil {
		return err
	}
	return Render(c, views.Profile(views.ProfilePage{
		Page:    a.page(c, "Profile"),
		Profile: *u,
		Posts:   posts,
	}))
}

func (a *App) handleProfileUpdate(c echo.Context) error {
	act := actor(c)
	if !act.Authenticated() {
		return blog.ErrUnauthenticated
	}
	var form profileForm
	if err := bindForm(c, &form); err != nil {
		return redirectWithFlash(c, "/profile", flashError, err.Error())
	}
	up, done, err := formUpload(c, "profile_image")
	if err != nil {
		return err
	}
	defer done()

	out, err := a.Accounts.UpdateProfile(c.Request().Context(), act, blog.ProfileInput{Bio: form.Bio, Image: up})
	if errors.Is(err, blog.ErrInvalidInput) {
		return redirectWithFlash(c, "/profile", flashError, "Your bio is too long.")
	}
	if err != nil {
		return err
	}
	if out.ImageErr != nil {
		return redirectWithFlash(c, "/profile", flashError, "Profile saved. "+imageMessage(out.ImageErr))
	}
	return redirectWithFlash(c, "/profile", flashSuccess, "Profile updated.")
}

func (a *App) handlePasswordPage(c echo.Context) error {
	if CurrentUser(c) == nil {
		return blog.ErrUnauthenticated
	}
	return Render(c, views.ChangePassword(a.page(c, "Change password")))
}

func (a *App) handlePasswordChange(c echo.Context) error {
	act := actor(c)
	if !act.Authenticated() {
		return blog.ErrUnauthenticated
	}
	var form passwordForm
	if err := bindForm(c, &form); err != nil {
		return redirectWithFlash(c, "/account/password", flashError, err.Error())
	}
	err := a.Accounts.ChangePassword(c.Request().Context(), act, form.Current, form.Password)
	switch {
	case errors.Is(err, blog.ErrInvalidCredentials):
		return redirectWithFlash(c, "/account/password", flashError, "Your current password is incorrect.")
	case errors.Is(err, blog.ErrInvalidInput):
		return redirectWithFlash(c, "/account/password", flashError, "Choose a new password of 8 to 72 characters that differs from the current one.")
	case err != nil:
		return err
	}
	a.Log.Info("password changed", zap.Int64("user_id", act.UserID))
	return redirectWithFlash(c, "/", flashSuccess, "Your password has been changed.")
}

func (a *App) handleUsers(c echo.Context) error {
	if !blog.Can(actor(c), blog.ActionModerate, nil) {
		return denyRequest(c)
	}
	users, err := a.Store.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}
	return Render(c, views.Users(views.UsersPage{
		Page:  a.page(c, "Users"),
		Users: users,
		Roles: []blog.Role{blog.RoleReader, blog.RoleAuthor, blog.RoleAdmin},
	}))
}

func (a *App) handleSetRole(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var form roleForm
	if err := bindForm(c, &form); err != nil {
		return redirectWithFlash(c, "/admin/users", flashError, err.Error())
	}
	u, err := a.Accounts.SetRole(c.Request().Context(), actor(c), id, blog.Role(form.Role))
	if errors.Is(err, blog.ErrInvalidInput) {
		return redirectWithFlash(c, "/admin/users", flashError, "Admins cannot demote themselves.")
	}
	if err != nil {
		return err
	}
	return redirectWithFlash(c, "/admin/users", flashSuccess, u.Username+" is now "+string(u.Role)+".")
}

// denyRequest returns the error for a request that failed a capability check.
func denyRequest(c echo.Context) error {
	if CurrentUser(c) == nil {
		return blog.ErrUnauthenticated
	}
	return blog.ErrForbidden
}
