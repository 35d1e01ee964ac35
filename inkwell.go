// Package inkwell is a multi-author blogging platform built with Go, Echo,
// and templ. It serves the public site, the writer dashboard, and the admin
// moderation pages from one process backed by SQLite.
//
// Domain rules live in the blog package; this package wires them to HTTP,
// storage, media, and email.
package inkwell

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/eringen/inkwell/blog"
	"github.com/eringen/inkwell/media"
	"github.com/eringen/inkwell/notify"
)

// App is the central Inkwell application. It wires together the store,
// cache, services, handlers, and middleware.
type App struct {
	Config   SiteConfig
	Echo     *echo.Echo
	Store    *Store
	Cache    *PostCache
	Media    *media.Pipeline
	Posts    *blog.PostService
	Accounts *blog.AccountService
	Sender   notify.Sender
	Log      *zap.Logger
	Metrics  *prometheus.Registry

	loginLimiter    *Limiter
	registerLimiter *Limiter
	contactLimiter  *Limiter
	customRoutes    []func(*App)
	staticDir       string
	initialized     bool
}

// New creates an App with the given configuration. Nothing is opened until
// Init or Start.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.Log == nil {
		a.Log = NewLogger(cfg.Log)
	}
	return a
}

// Init opens the store and upload directory and registers middleware and
// routes. Start calls it; tests call it directly and drive a.Echo.
func (a *App) Init() error {
	if a.initialized {
		return nil
	}
	if a.Config.SessionSecret == "" {
		return errors.New("inkwell: SessionSecret is required")
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("inkwell: init store: %w", err)
	}
	a.Store = store

	a.Media = media.NewPipeline(media.NewStore(a.Config.UploadRoot), media.WithWorkers(a.Config.ImageWorkers))
	if err := a.Media.EnsureDefaultProfileImage(); err != nil {
		return fmt.Errorf("inkwell: default profile image: %w", err)
	}

	a.Posts = blog.NewPostService(a.Store, a.Media, a.Log.Named("posts"))
	a.Accounts = blog.NewAccountService(a.Store, a.Media, a.Log.Named("accounts"))
	a.Cache = NewPostCache(a.Store, a.Config.PostCacheTTL)

	if a.Sender == nil {
		if a.Config.SMTP.Configured() {
			a.Sender = notify.NewSMTPSender(a.Config.SMTP)
		} else {
			a.Log.Warn("SMTP is not configured; contact messages are only logged")
			a.Sender = notify.NewLogSender(a.Log.Named("notify"))
		}
	}
	if a.Config.ContactEmail == "" {
		a.Config.ContactEmail = a.Config.SMTP.From
	}

	a.loginLimiter = NewLimiter(5, time.Minute)
	a.registerLimiter = NewLimiter(5, time.Hour)
	a.contactLimiter = NewLimiter(5, time.Hour)

	a.Metrics = prometheus.NewRegistry()
	a.Metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics.MustRegister(a.Media.Collectors()...)

	a.Echo.HideBanner = true
	a.Echo.HidePort = true
	a.Echo.Validator = newFormValidator()

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}

	a.initialized = true
	return nil
}

// Start initializes the app and serves until ctx is cancelled, then shuts
// the server down gracefully.
func (a *App) Start(ctx context.Context) error {
	if err := a.Init(); err != nil {
		return err
	}

	sweepDone := make(chan struct{})
	go a.sweepLimiters(sweepDone)
	defer close(sweepDone)

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("listening", zap.String("addr", a.Config.Addr), zap.String("site", a.Config.URL))
		errCh <- a.Echo.Start(a.Config.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.Log.Info("shutting down")
	if err := a.Echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("inkwell: shutdown: %w", err)
	}
	return nil
}

func (a *App) sweepLimiters(done <-chan struct{}) {
	t := time.NewTicker(10 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			n := a.loginLimiter.Sweep() + a.registerLimiter.Sweep() + a.contactLimiter.Sweep()
			a.Log.Debug("limiter sweep", zap.Int("tracked", n))
		}
	}
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Embedded assets first; the site's own directory fills in the rest.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	for _, name := range []string{"style.css", "like.js"} {
		e.GET("/public/"+name, echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))
	}
	if a.staticDir != "" {
		e.Static("/public", a.staticDir)
	}
	e.Static("/uploads", a.Media.Store().Root())

	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/healthz", a.handleHealth)
	if a.Config.MetricsEnabled {
		e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
			Gatherer: a.Metrics,
		}))
	}

	// Public pages
	e.GET("/", a.handleHome)
	e.GET("/post/:id", a.handlePost)
	e.GET("/category/:name", a.handleCategory)
	e.GET("/search", a.handleSearch)
	e.GET("/about", a.handleAbout)
	e.GET("/contact", a.handleContactPage)
	e.POST("/contact", a.handleContact)
	e.POST("/newsletter", a.handleNewsletter)

	// Accounts
	e.GET("/login", a.handleLoginPage)
	e.POST("/login", a.handleLogin)
	e.POST("/logout", a.handleLogout)
	e.GET("/register", a.handleRegisterPage)
	e.POST("/register", a.handleRegister)
	e.GET("/profile", a.handleProfilePage)
	e.POST("/profile", a.handleProfileUpdate)
	e.GET("/account/password", a.handlePasswordPage)
	e.POST("/account/password", a.handlePasswordChange)

	// Writing and reader interaction
	e.GET("/dashboard", a.handleDashboard)
	e.GET("/create-post", a.handleCreatePostPage)
	e.POST("/create-post", a.handleCreatePost)
	e.GET("/edit-post/:id", a.handleEditPostPage)
	e.POST("/edit-post/:id", a.handleEditPost)
	e.POST("/delete-post/:id", a.handleDeletePost)
	e.POST("/publish-post/:id", a.handlePublishPost)
	e.POST("/like-post/:id", a.handleLikePost)
	e.POST("/comment/:id", a.handleComment)

	// Admin
	e.GET("/admin/users", a.handleUsers)
	e.POST("/admin/users/:id/role", a.handleSetRole)
}

// Close releases the store and flushes the logger.
func (a *App) Close() error {
	var err error
	if a.Store != nil {
		err = a.Store.Close()
	}
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	return err
}
