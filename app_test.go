package inkwell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/eringen/inkwell/blog"
	"github.com/eringen/inkwell/notify"
)

const testCSRF = "test-csrf-token"

type fakeSender struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (s *fakeSender) Send(ctx context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type testEnv struct {
	app    *App
	srv    *httptest.Server
	sender *fakeSender
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	sender := &fakeSender{}
	app := New(SiteConfig{
		Name:           "Inkwell Test",
		URL:            "http://blog.example.com",
		SessionSecret:  "0123456789abcdef0123456789abcdef",
		DatabasePath:   filepath.Join(dir, "inkwell.db"),
		UploadRoot:     filepath.Join(dir, "uploads"),
		ContactEmail:   "editor@example.com",
		MetricsEnabled: true,
	}, WithLogger(zap.NewNop()), WithSender(sender))
	if err := app.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	srv := httptest.NewServer(app.Echo)
	t.Cleanup(func() {
		srv.Close()
		app.Close()
	})
	if _, err := blog.Bootstrap(context.Background(), app.Store, blog.AdminSeed{Username: "root", Email: "root@example.com"}); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	return &testEnv{app: app, srv: srv, sender: sender}
}

// user creates an account directly in the store.
func (e *testEnv) user(t *testing.T, name string, role blog.Role, rotate bool) blog.User {
	t.Helper()
	hash, err := blog.HashPassword("password-" + name)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	u := blog.User{
		Username:           name,
		Email:              name + "@example.com",
		PasswordHash:       hash,
		Role:               role,
		ProfileImage:       "default.jpg",
		MustRotatePassword: rotate,
	}
	if err := e.app.Store.CreateUser(context.Background(), &u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return u
}

func (e *testEnv) category(t *testing.T, name string) blog.Category {
	t.Helper()
	c, err := e.app.Store.GetCategoryByName(context.Background(), name)
	if err != nil {
		t.Fatalf("GetCategoryByName(%s) failed: %v", name, err)
	}
	return c
}

// client is a browser session: it keeps cookies and never follows redirects.
type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func (e *testEnv) client(t *testing.T) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	u, _ := url.Parse(e.srv.URL)
	jar.SetCookies(u, []*http.Cookie{{Name: "_csrf", Value: testCSRF, Path: "/"}})
	return &client{
		t:    t,
		base: e.srv.URL,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type response struct {
	code     int
	location string
	body     string
	header   http.Header
}

func (c *client) do(req *http.Request) response {
	c.t.Helper()
	req.Header.Set("X-CSRF-Token", testCSRF)
	res, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		c.t.Fatalf("read body: %v", err)
	}
	return response{code: res.StatusCode, location: res.Header.Get("Location"), body: string(body), header: res.Header}
}

func (c *client) get(path string) response {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	if err != nil {
		c.t.Fatal(err)
	}
	return c.do(req)
}

func (c *client) post(path string, form url.Values) response {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.base+path, strings.NewReader(form.Encode()))
	if err != nil {
		c.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *client) postJSON(path string) response {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.base+path, nil)
	if err != nil {
		c.t.Fatal(err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func (c *client) postMultipart(path string, fields map[string]string, fileField, fileName string, file []byte) response {
	c.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			c.t.Fatal(err)
		}
	}
	if file != nil {
		fw, err := w.CreateFormFile(fileField, fileName)
		if err != nil {
			c.t.Fatal(err)
		}
		fw.Write(file)
	}
	if err := w.Close(); err != nil {
		c.t.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodPost, c.base+path, &buf)
	if err != nil {
		c.t.Fatal(err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req)
}

func (c *client) login(name string) {
	c.t.Helper()
	res := c.post("/login", url.Values{"email": {name + "@example.com"}, "password": {"password-" + name}})
	if res.code != http.StatusSeeOther {
		c.t.Fatalf("login %s: status %d, want 303; body: %s", name, res.code, res.body)
	}
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestHomeAndHealth(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	res := c.get("/")
	if res.code != http.StatusOK {
		t.Fatalf("GET / status = %d", res.code)
	}
	if !strings.Contains(res.body, "Inkwell Test") {
		t.Errorf("home page does not mention the site name")
	}
	if !strings.Contains(res.body, "Technology") {
		t.Errorf("home page does not list the seeded categories")
	}
	if cc := res.header.Get("Cache-Control"); cc != "private, no-cache" {
		t.Errorf("Cache-Control = %q", cc)
	}

	res = c.get("/healthz")
	if res.code != http.StatusOK || !strings.Contains(res.body, `"ok"`) {
		t.Errorf("GET /healthz = %d %s", res.code, res.body)
	}
}

func TestStaticAssetsAndDefaultAvatar(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	for _, path := range []string{"/public/style.css", "/public/like.js", "/uploads/profiles/default.jpg"} {
		if res := c.get(path); res.code != http.StatusOK {
			t.Errorf("GET %s status = %d", path, res.code)
		}
	}
}

func TestRegisterLoginLogout(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	res := c.post("/register", url.Values{
		"username": {"newbie"},
		"email":    {"Newbie@Example.com"},
		"password": {"correct horse"},
		"confirm":  {"correct horse"},
	})
	if res.code != http.StatusSeeOther || res.location != "/" {
		t.Fatalf("register = %d -> %q; body: %s", res.code, res.location, res.body)
	}
	res = c.get("/")
	if !strings.Contains(res.body, "Welcome to Inkwell Test, newbie!") {
		t.Errorf("welcome flash missing")
	}

	u, err := env.app.Store.GetUserByEmail(context.Background(), "newbie@example.com")
	if err != nil {
		t.Fatalf("registered user not stored: %v", err)
	}
	if u.Role != blog.RoleReader || u.ProfileImage != "default.jpg" {
		t.Errorf("new user = %+v", u)
	}

	if res := c.get("/profile"); res.code != http.StatusOK || !strings.Contains(res.body, "newbie") {
		t.Fatalf("GET /profile = %d", res.code)
	}

	res = c.post("/logout", nil)
	if res.code != http.StatusSeeOther {
		t.Fatalf("logout status = %d", res.code)
	}
	res = c.get("/profile")
	if res.code != http.StatusSeeOther || !strings.HasPrefix(res.location, "/login?next=") {
		t.Errorf("anonymous /profile = %d -> %q", res.code, res.location)
	}

	// A second account with the same email is refused.
	other := env.client(t)
	res = other.post("/register", url.Values{
		"username": {"someone"},
		"email":    {"newbie@example.com"},
		"password": {"correct horse"},
		"confirm":  {"correct horse"},
	})
	if res.code != http.StatusUnprocessableEntity || !strings.Contains(res.body, "already registered") {
		t.Errorf("duplicate register = %d", res.code)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "alice", blog.RoleReader, false)
	c := env.client(t)

	res := c.post("/login", url.Values{"email": {"alice@example.com"}, "password": {"wrong"}})
	if res.code != http.StatusUnauthorized || !strings.Contains(res.body, "Invalid email or password.") {
		t.Fatalf("bad login = %d", res.code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "alice", blog.RoleReader, false)
	c := env.client(t)

	for i := 0; i < 5; i++ {
		c.post("/login", url.Values{"email": {"alice@example.com"}, "password": {"wrong"}})
	}
	res := c.post("/login", url.Values{"email": {"alice@example.com"}, "password": {"password-alice"}})
	if res.code != http.StatusTooManyRequests {
		t.Errorf("login after 5 failures = %d, want 429", res.code)
	}
}

func TestLoginRedirectsToNext(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "alice", blog.RoleReader, false)
	c := env.client(t)

	res := c.post("/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"password-alice"},
		"next":     {"/profile"},
	})
	if res.code != http.StatusSeeOther || res.location != "/profile" {
		t.Errorf("login = %d -> %q, want /profile", res.code, res.location)
	}
}

func TestCSRFRequired(t *testing.T) {
	env := newTestEnv(t)
	req, _ := http.NewRequest(http.MethodPost, env.srv.URL+"/newsletter", strings.NewReader("email=a%40example.com"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusForbidden {
		t.Errorf("POST without token = %d, want 403", res.StatusCode)
	}
}

func TestAuthorDraftNeedsModeration(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "writer", blog.RoleAuthor, false)
	env.user(t, "editor", blog.RoleAdmin, false)
	tech := env.category(t, "Technology")

	author := env.client(t)
	author.login("writer")
	res := author.postMultipart("/create-post", map[string]string{
		"title":       "Hello <b>world</b>",
		"content":     `<p>First post</p><script>alert(1)</script>`,
		"category_id": fmt.Sprint(tech.ID),
		"is_featured": "1",
	}, "featured_image", "cover.png", testPNG(t, 1400, 900))
	if res.code != http.StatusSeeOther || res.location != "/dashboard" {
		t.Fatalf("create = %d -> %q; body: %s", res.code, res.location, res.body)
	}

	ctx := context.Background()
	writer, _ := env.app.Store.GetUserByEmail(ctx, "writer@example.com")
	posts, err := env.app.Store.ListPosts(ctx, blog.PostFilter{AuthorID: writer.ID})
	if err != nil || len(posts) != 1 {
		t.Fatalf("ListPosts = %v, %v", posts, err)
	}
	post := posts[0]
	if post.IsPublished {
		t.Error("author post was published without moderation")
	}
	if post.IsFeatured {
		t.Error("author was able to feature a post")
	}
	if strings.Contains(post.Content, "<script>") {
		t.Errorf("content not sanitized: %q", post.Content)
	}
	if post.FeaturedImage == "" {
		t.Fatal("featured image was not stored")
	}
	if _, err := os.Stat(filepath.Join(env.app.Config.UploadRoot, "posts", post.FeaturedImage)); err != nil {
		t.Errorf("image file missing: %v", err)
	}

	anon := env.client(t)
	if res := anon.get(PostPath(post.ID)); res.code != http.StatusNotFound {
		t.Errorf("anonymous view of draft = %d, want 404", res.code)
	}
	if res := author.get(PostPath(post.ID)); res.code != http.StatusOK {
		t.Errorf("author view of own draft = %d, want 200", res.code)
	}

	// Authors cannot publish their own drafts.
	if res := author.post(fmt.Sprintf("/publish-post/%d", post.ID), nil); res.code != http.StatusForbidden {
		t.Errorf("author publish = %d, want 403", res.code)
	}

	admin := env.client(t)
	admin.login("editor")
	if res := admin.get("/dashboard"); res.code != http.StatusOK || !strings.Contains(res.body, "Awaiting moderation") {
		t.Errorf("admin dashboard = %d", res.code)
	}
	res = admin.post(fmt.Sprintf("/publish-post/%d", post.ID), nil)
	if res.code != http.StatusSeeOther {
		t.Fatalf("admin publish = %d", res.code)
	}

	res = anon.get(PostPath(post.ID))
	if res.code != http.StatusOK {
		t.Fatalf("anonymous view after publish = %d", res.code)
	}
	if !strings.Contains(res.body, "First post") {
		t.Errorf("post body missing from page")
	}
	if res := anon.get("/feed.xml"); !strings.Contains(res.body, PostPath(post.ID)) {
		t.Errorf("feed does not list the published post")
	}
	if res := anon.get("/sitemap.xml"); !strings.Contains(res.body, PostPath(post.ID)) {
		t.Errorf("sitemap does not list the published post")
	}
	if res := anon.get("/"); !strings.Contains(res.body, PostPath(post.ID)) {
		t.Errorf("home page cache was not invalidated after publish")
	}
}

func TestReaderCannotWrite(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "reader", blog.RoleReader, false)
	c := env.client(t)
	c.login("reader")

	if res := c.get("/create-post"); res.code != http.StatusForbidden {
		t.Errorf("reader GET /create-post = %d, want 403", res.code)
	}
	if res := c.get("/dashboard"); res.code != http.StatusForbidden {
		t.Errorf("reader GET /dashboard = %d, want 403", res.code)
	}
	if res := c.get("/admin/users"); res.code != http.StatusForbidden {
		t.Errorf("reader GET /admin/users = %d, want 403", res.code)
	}
}

func TestEditAndDeleteOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", blog.RoleAuthor, false)
	env.user(t, "intruder", blog.RoleAuthor, false)
	tech := env.category(t, "Technology")
	post := blog.Post{Title: "Mine", Content: "<p>x</p>", AuthorID: owner.ID, CategoryID: tech.ID}
	if err := env.app.Store.SavePost(context.Background(), &post); err != nil {
		t.Fatal(err)
	}

	intruder := env.client(t)
	intruder.login("intruder")
	if res := intruder.get(fmt.Sprintf("/edit-post/%d", post.ID)); res.code != http.StatusForbidden {
		t.Errorf("intruder edit page = %d, want 403", res.code)
	}
	if res := intruder.post(fmt.Sprintf("/delete-post/%d", post.ID), nil); res.code != http.StatusForbidden {
		t.Errorf("intruder delete = %d, want 403", res.code)
	}

	c := env.client(t)
	c.login("owner")
	res := c.post(fmt.Sprintf("/edit-post/%d", post.ID), url.Values{
		"title":       {"Mine, revised"},
		"content":     {"<p>y</p>"},
		"category_id": {fmt.Sprint(tech.ID)},
	})
	if res.code != http.StatusSeeOther {
		t.Fatalf("edit = %d; body: %s", res.code, res.body)
	}
	got, _ := env.app.Store.GetPost(context.Background(), post.ID)
	if got.Title != "Mine, revised" || got.IsPublished {
		t.Errorf("edited post = %+v", got)
	}

	if res := c.post(fmt.Sprintf("/delete-post/%d", post.ID), nil); res.code != http.StatusSeeOther {
		t.Fatalf("delete = %d", res.code)
	}
	if _, err := env.app.Store.GetPost(context.Background(), post.ID); !errors.Is(err, blog.ErrNotFound) {
		t.Errorf("post survived delete: %v", err)
	}
}

func TestLikeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	author := env.user(t, "writer", blog.RoleAuthor, false)
	env.user(t, "fan", blog.RoleReader, false)
	tech := env.category(t, "Technology")
	post := blog.Post{Title: "Likeable", Content: "<p>x</p>", AuthorID: author.ID, CategoryID: tech.ID, IsPublished: true}
	if err := env.app.Store.SavePost(context.Background(), &post); err != nil {
		t.Fatal(err)
	}
	path := fmt.Sprintf("/like-post/%d", post.ID)

	anon := env.client(t)
	if res := anon.postJSON(path); res.code != http.StatusUnauthorized {
		t.Errorf("anonymous like = %d, want 401", res.code)
	}

	c := env.client(t)
	c.login("fan")
	for want := int64(1); want <= 2; want++ {
		res := c.postJSON(path)
		if res.code != http.StatusOK {
			t.Fatalf("like = %d; body %s", res.code, res.body)
		}
		var body struct {
			Likes int64 `json:"likes"`
		}
		if err := json.Unmarshal([]byte(res.body), &body); err != nil {
			t.Fatalf("decode like response: %v", err)
		}
		if body.Likes != want {
			t.Errorf("likes = %d, want %d", body.Likes, want)
		}
	}

	if res := c.postJSON("/like-post/9999"); res.code != http.StatusNotFound {
		t.Errorf("like missing post = %d, want 404", res.code)
	}
}

func TestCommentFlow(t *testing.T) {
	env := newTestEnv(t)
	author := env.user(t, "writer", blog.RoleAuthor, false)
	env.user(t, "fan", blog.RoleReader, false)
	tech := env.category(t, "Technology")
	post := blog.Post{Title: "Discuss", Content: "<p>x</p>", AuthorID: author.ID, CategoryID: tech.ID, IsPublished: true}
	if err := env.app.Store.SavePost(context.Background(), &post); err != nil {
		t.Fatal(err)
	}
	path := fmt.Sprintf("/comment/%d", post.ID)

	anon := env.client(t)
	if res := anon.post(path, url.Values{"content": {"hi"}}); res.code != http.StatusSeeOther || !strings.HasPrefix(res.location, "/login") {
		t.Errorf("anonymous comment = %d -> %q", res.code, res.location)
	}

	c := env.client(t)
	c.login("fan")
	c.post(path, url.Values{"content": {"<b>Great</b> read"}})
	c.post(path, url.Values{"content": {"   "}})

	comments, err := env.app.Store.ListComments(context.Background(), post.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 1 || comments[0].Content != "Great read" {
		t.Fatalf("comments = %+v", comments)
	}
	res := c.get(PostPath(post.ID))
	if !strings.Contains(res.body, "Great read") || !strings.Contains(res.body, "fan") {
		t.Errorf("comment not rendered")
	}
}

func TestNewsletterDeduplicates(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	for i := 0; i < 2; i++ {
		res := c.post("/newsletter", url.Values{"email": {"Reader@Example.com"}})
		if res.code != http.StatusSeeOther {
			t.Fatalf("subscribe #%d = %d", i+1, res.code)
		}
	}
	if res := c.get("/"); !strings.Contains(res.body, "already subscribed") {
		t.Errorf("second subscription did not report a duplicate")
	}
	n, err := env.app.Store.CountSubscriptions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("subscriptions = %d, want 1", n)
	}
}

func TestMissingPostIs404(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	for _, path := range []string{"/post/9999", "/post/abc", "/category/Nope", "/no-such-page"} {
		if res := c.get(path); res.code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, res.code)
		}
	}
}

func TestForcedPasswordRotation(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "boss", blog.RoleAdmin, true)
	c := env.client(t)

	res := c.post("/login", url.Values{"email": {"boss@example.com"}, "password": {"password-boss"}})
	if res.code != http.StatusSeeOther || res.location != "/account/password" {
		t.Fatalf("login = %d -> %q", res.code, res.location)
	}
	if res := c.get("/dashboard"); res.code != http.StatusSeeOther || res.location != "/account/password" {
		t.Errorf("dashboard before rotation = %d -> %q", res.code, res.location)
	}

	res = c.post("/account/password", url.Values{
		"current":  {"password-boss"},
		"password": {"a much better secret"},
		"confirm":  {"a much better secret"},
	})
	if res.code != http.StatusSeeOther || res.location != "/" {
		t.Fatalf("password change = %d -> %q", res.code, res.location)
	}
	if res := c.get("/dashboard"); res.code != http.StatusOK {
		t.Errorf("dashboard after rotation = %d", res.code)
	}
}

func TestAdminSetsRole(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "editor", blog.RoleAdmin, false)
	reader := env.user(t, "reader", blog.RoleReader, false)
	c := env.client(t)
	c.login("editor")

	if res := c.get("/admin/users"); res.code != http.StatusOK || !strings.Contains(res.body, "reader@example.com") {
		t.Fatalf("users page = %d", res.code)
	}
	res := c.post(fmt.Sprintf("/admin/users/%d/role", reader.ID), url.Values{"role": {"author"}})
	if res.code != http.StatusSeeOther {
		t.Fatalf("set role = %d", res.code)
	}
	got, _ := env.app.Store.GetUser(context.Background(), reader.ID)
	if got.Role != blog.RoleAuthor {
		t.Errorf("role = %s, want author", got.Role)
	}
}

func TestContactSendsMessage(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	res := c.post("/contact", url.Values{
		"name":    {"Ada"},
		"email":   {"ada@example.com"},
		"subject": {"Hello"},
		"message": {"Loved the site."},
	})
	if res.code != http.StatusSeeOther {
		t.Fatalf("contact = %d; body: %s", res.code, res.body)
	}
	if len(env.sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(env.sender.sent))
	}
	msg := env.sender.sent[0]
	if msg.To != "editor@example.com" || msg.ReplyTo != "ada@example.com" {
		t.Errorf("message = %+v", msg)
	}
	if !strings.Contains(msg.Body, "Loved the site.") {
		t.Errorf("body = %q", msg.Body)
	}
}

func TestContactDeliveryFailureIsSoft(t *testing.T) {
	env := newTestEnv(t)
	env.sender.err = fmt.Errorf("%w: relay refused", notify.ErrDeliveryFailed)
	c := env.client(t)

	res := c.post("/contact", url.Values{
		"name":    {"Ada"},
		"email":   {"ada@example.com"},
		"subject": {"Hello"},
		"message": {"Loved the site."},
	})
	if res.code != http.StatusServiceUnavailable {
		t.Fatalf("contact = %d, want 503", res.code)
	}
	if !strings.Contains(res.body, "could not be sent") || !strings.Contains(res.body, "Loved the site.") {
		t.Errorf("form was not re-rendered with the message kept")
	}
}

func TestMetricsAndRobots(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.get("/")

	res := c.get("/metrics")
	if res.code != http.StatusOK || !strings.Contains(res.body, "go_goroutines") {
		t.Errorf("GET /metrics = %d", res.code)
	}
	res = c.get("/robots.txt")
	if res.code != http.StatusOK || !strings.Contains(res.body, "Sitemap: http://blog.example.com/sitemap.xml") {
		t.Errorf("GET /robots.txt = %d %q", res.code, res.body)
	}
}

func TestSearchTruncatesByCharacter(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	res := c.get("/search?q=" + url.QueryEscape(strings.Repeat("日", 150)))
	if res.code != http.StatusOK {
		t.Fatalf("search = %d", res.code)
	}
	if !utf8.ValidString(res.body) {
		t.Error("search page is not valid UTF-8")
	}
	if !strings.Contains(res.body, strings.Repeat("日", maxQueryLen)) || strings.Contains(res.body, strings.Repeat("日", maxQueryLen+1)) {
		t.Errorf("query was not cut to %d characters", maxQueryLen)
	}
}

func TestProfileImageReplacedOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "alice", blog.RoleReader, false)
	c := env.client(t)
	c.login("alice")

	for i, bio := range []string{"first", "second"} {
		res := c.postMultipart("/profile", map[string]string{"bio": bio}, "profile_image", fmt.Sprintf("me%d.png", i), testPNG(t, 400, 500))
		if res.code != http.StatusSeeOther || res.location != "/profile" {
			t.Fatalf("upload %d = %d -> %q; body: %s", i, res.code, res.location, res.body)
		}
	}

	u, err := env.app.Store.GetUserByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if u.Bio != "second" {
		t.Errorf("bio = %q, want second", u.Bio)
	}

	entries, err := os.ReadDir(filepath.Join(env.app.Media.Store().Root(), "profiles"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var stored []string
	for _, e := range entries {
		if e.Name() != "default.jpg" {
			stored = append(stored, e.Name())
		}
	}
	if len(stored) != 1 || stored[0] != u.ProfileImage {
		t.Errorf("profile files = %v, want only %q", stored, u.ProfileImage)
	}
	if res := c.get("/uploads/profiles/" + u.ProfileImage); res.code != http.StatusOK {
		t.Errorf("GET new avatar = %d", res.code)
	}
}
