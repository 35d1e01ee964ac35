package inkwell

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/eringen/inkwell/media"
)

// formValidator adapts validator/v10 to echo.Validator.
type formValidator struct {
	v *validator.Validate
}

func newFormValidator() *formValidator {
	return &formValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (fv *formValidator) Validate(i any) error {
	return fv.v.Struct(i)
}

type loginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
	Next     string `query:"next" form:"next"`
}

type registerForm struct {
	Username string `form:"username" validate:"required,min=3,max=80"`
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required,min=8,max=72"`
	Confirm  string `form:"confirm" validate:"required,eqfield=Password"`
}

type passwordForm struct {
	Current  string `form:"current" validate:"required"`
	Password string `form:"password" validate:"required,min=8,max=72"`
	Confirm  string `form:"confirm" validate:"required,eqfield=Password"`
}

type postForm struct {
	Title      string `form:"title" validate:"required,max=200"`
	Content    string `form:"content" validate:"required"`
	CategoryID int64  `form:"category_id" validate:"required,gt=0"`
	IsFeatured bool   `form:"is_featured"`
}

type commentForm struct {
	Content string `form:"content" validate:"max=5000"`
}

type profileForm struct {
	Bio string `form:"bio" validate:"max=1000"`
}

type newsletterForm struct {
	Email string `form:"email" validate:"required,email"`
}

type contactForm struct {
	Name    string `form:"name" validate:"required,max=100"`
	Email   string `form:"email" validate:"required,email"`
	Subject string `form:"subject" validate:"required,max=200"`
	Message string `form:"message" validate:"required,max=5000"`
}

type roleForm struct {
	Role string `form:"role" validate:"required,oneof=reader author admin"`
}

// bindForm binds and validates a form. The returned error is a message fit
// to show the user.
func bindForm(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return errors.New("The form could not be read. Please try again.")
	}
	if err := c.Validate(dst); err != nil {
		return errors.New(validationMessage(err))
	}
	return nil
}

var fieldLabels = map[string]string{
	"CategoryID": "Category",
	"Confirm":    "Password confirmation",
	"Current":    "Current password",
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Please check the form and try again."
	}
	fe := verrs[0]
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required", "gt":
		return fmt.Sprintf("%s is required.", label)
	case "email":
		return "Please enter a valid email address."
	case "min":
		return fmt.Sprintf("%s must be at least %s characters.", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters.", label, fe.Param())
	case "eqfield":
		return "Passwords do not match."
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s.", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return fmt.Sprintf("%s is invalid.", label)
}

// formUpload returns the uploaded file in field, or nil when none was sent.
// The caller must call the returned close func.
func formUpload(c echo.Context, field string) (*media.Upload, func(), error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) || (err == nil && fh.Filename == "") {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &media.Upload{Filename: fh.Filename, Body: f}, func() { f.Close() }, nil
}

// imageMessage describes a rejected upload to the user.
func imageMessage(err error) string {
	switch {
	case errors.Is(err, media.ErrInvalidFileType):
		return "The image was not saved: allowed types are png, jpg, jpeg, gif and webp."
	case errors.Is(err, media.ErrFileTooLarge):
		return "The image was not saved: files must be 5 MB or smaller."
	case errors.Is(err, media.ErrCorruptImage):
		return "The image was not saved: the file could not be read as an image or its dimensions are too large."
	}
	return "The image was not saved."
}
