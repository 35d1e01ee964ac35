package inkwell

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/inkwell/blog"
	"github.com/eringen/inkwell/notify"
	"github.com/eringen/inkwell/views"
)

func (a *App) handleContactPage(c echo.Context) error {
	return Render(c, views.Contact(views.ContactPage{Page: a.page(c, "Contact")}))
}

func (a *App) handleContact(c echo.Context) error {
	var form contactForm
	if err := bindForm(c, &form); err != nil {
		return a.renderContact(c, http.StatusUnprocessableEntity, form, err.Error())
	}
	if !a.contactLimiter.Allow(c.RealIP()) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "You have sent too many messages. Try again later.")
	}
	email, err := blog.NormalizeEmail(form.Email)
	if err != nil {
		return a.renderContact(c, http.StatusUnprocessableEntity, form, "Please enter a valid email address.")
	}
	msg := notify.Message{
		To:      a.Config.ContactEmail,
		ReplyTo: email,
		Subject: fmt.Sprintf("[%s] %s", a.Config.Name, blog.SanitizeText(form.Subject)),
		Body: fmt.Sprintf("From: %s <%s>\n\n%s\n",
			blog.SanitizeText(form.Name), email, blog.SanitizeText(form.Message)),
	}
	err = a.Sender.Send(c.Request().Context(), msg)
	if errors.Is(err, notify.ErrDeliveryFailed) {
		a.Log.Warn("contact delivery failed", zap.Error(err), zap.String("reply_to", email))
		return a.renderContact(c, http.StatusServiceUnavailable, form,
			"Your message could not be sent right now. Please try again later.")
	}
	if err != nil {
		return err
	}
	return redirectWithFlash(c, "/contact", flashSuccess, "Thanks for your message. We will get back to you soon.")
}

func (a *App) renderContact(c echo.Context, code int, form contactForm, msg string) error {
	p := a.page(c, "Contact")
	p.Flashes = append(p.Flashes, views.Flash{Kind: flashError, Message: msg})
	return RenderStatus(c, code, views.Contact(views.ContactPage{
		Page:    p,
		Name:    form.Name,
		Email:   form.Email,
		Subject: form.Subject,
		Message: form.Message,
	}))
}
