// Package views renders Inkwell's server-side pages. Pages are html/template
// files embedded in the binary, exposed to handlers as templ components.
package views

import (
	"embed"
	"html/template"

	"github.com/a-h/templ"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	homeTmpl      = mustPage("home.html")
	postTmpl      = mustPage("post.html")
	listTmpl      = mustPage("list.html")
	loginTmpl     = mustPage("login.html")
	registerTmpl  = mustPage("register.html")
	postFormTmpl  = mustPage("post_form.html")
	profileTmpl   = mustPage("profile.html")
	passwordTmpl  = mustPage("password.html")
	dashboardTmpl = mustPage("dashboard.html")
	usersTmpl     = mustPage("users.html")
	contactTmpl   = mustPage("contact.html")
	aboutTmpl     = mustPage("about.html")
	errorTmpl     = mustPage("error.html")
)

// mustPage parses a page file together with the shared layout and partials.
// The page defines the "content" block the layout renders.
func mustPage(name string) *template.Template {
	return template.Must(template.New("layout.html").Funcs(funcs).ParseFS(templateFS,
		"templates/layout.html",
		"templates/partials.html",
		"templates/"+name,
	))
}

func Home(p HomePage) templ.Component           { return templ.FromGoHTML(homeTmpl, p) }
func PostDetail(p PostPage) templ.Component     { return templ.FromGoHTML(postTmpl, p) }
func PostList(p ListPage) templ.Component       { return templ.FromGoHTML(listTmpl, p) }
func Login(p AuthPage) templ.Component          { return templ.FromGoHTML(loginTmpl, p) }
func Register(p AuthPage) templ.Component       { return templ.FromGoHTML(registerTmpl, p) }
func PostForm(p PostFormPage) templ.Component   { return templ.FromGoHTML(postFormTmpl, p) }
func Profile(p ProfilePage) templ.Component     { return templ.FromGoHTML(profileTmpl, p) }
func ChangePassword(p Page) templ.Component     { return templ.FromGoHTML(passwordTmpl, p) }
func Dashboard(p DashboardPage) templ.Component { return templ.FromGoHTML(dashboardTmpl, p) }
func Users(p UsersPage) templ.Component         { return templ.FromGoHTML(usersTmpl, p) }
func Contact(p ContactPage) templ.Component     { return templ.FromGoHTML(contactTmpl, p) }
func About(p Page) templ.Component              { return templ.FromGoHTML(aboutTmpl, p) }
func Error(p ErrorPage) templ.Component         { return templ.FromGoHTML(errorTmpl, p) }
