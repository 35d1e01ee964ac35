package inkwell

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/eringen/inkwell/notify"
)

// SiteConfig holds all configuration for an Inkwell site.
type SiteConfig struct {
	Name        string `env:"SITE_NAME" envDefault:"Inkwell"`
	URL         string `env:"SITE_URL" envDefault:"http://localhost:3000"`
	Description string `env:"SITE_DESCRIPTION" envDefault:"Stories, ideas and news from our writers."`

	Addr         string `env:"ADDR" envDefault:":3000"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"data/inkwell.db"`
	UploadRoot   string `env:"UPLOAD_ROOT" envDefault:"data/uploads"`

	SessionSecret string `env:"SESSION_SECRET"`
	CookieSecure  bool   `env:"COOKIE_SECURE"`

	ContactEmail string        `env:"CONTACT_EMAIL"`
	PostCacheTTL time.Duration `env:"POST_CACHE_TTL" envDefault:"5m"`
	ImageWorkers int           `env:"IMAGE_WORKERS" envDefault:"2"`

	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`

	Log  LogConfig          `envPrefix:"LOG_"`
	SMTP notify.SMTPConfig  `envPrefix:"SMTP_"`
	Seed BootstrapAdminSeed `envPrefix:"BOOTSTRAP_ADMIN_"`
}

// LogConfig controls the zap logger and its optional rolling file.
type LogConfig struct {
	Level      string `env:"LEVEL" envDefault:"info"`
	Path       string `env:"PATH"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB" envDefault:"100"`
	MaxBackups int    `env:"MAX_BACKUPS" envDefault:"3"`
	MaxAgeDays int    `env:"MAX_AGE_DAYS" envDefault:"7"`
	Compress   bool   `env:"COMPRESS"`
}

// BootstrapAdminSeed names the first admin created by `inkwell bootstrap`.
type BootstrapAdminSeed struct {
	Username string `env:"USERNAME" envDefault:"admin"`
	Email    string `env:"EMAIL" envDefault:"admin@localhost.localdomain"`
}

// LoadConfig reads .env (when present) and then the process environment.
func LoadConfig() (SiteConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return SiteConfig{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg SiteConfig
	if err := env.Parse(&cfg); err != nil {
		return SiteConfig{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

// setDefaults fills zero values for configs built in code rather than
// loaded from the environment.
func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Inkwell"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/inkwell.db"
	}
	if c.UploadRoot == "" {
		c.UploadRoot = "data/uploads"
	}
	if c.PostCacheTTL == 0 {
		c.PostCacheTTL = 5 * time.Minute
	}
	if c.ImageWorkers <= 0 {
		c.ImageWorkers = 2
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.FromName == "" {
		c.SMTP.FromName = c.Name
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are registered.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir serves an extra directory of site-owned assets under /public,
// after the embedded ones.
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithLogger replaces the logger built from SiteConfig.Log.
func WithLogger(log *zap.Logger) Option {
	return func(a *App) {
		a.Log = log
	}
}

// WithSender replaces the notification sender chosen from SiteConfig.SMTP.
func WithSender(s notify.Sender) Option {
	return func(a *App) {
		a.Sender = s
	}
}
