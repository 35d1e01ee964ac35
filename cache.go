package inkwell

import (
	"context"
	"sync"
	"time"

	"github.com/eringen/inkwell/blog"
)

const (
	homeFeatured = 3
	homeLatest   = 9
	homeTrending = 6
)

// HomeSections are the post lists shown on the home page.
type HomeSections struct {
	Featured   []blog.Post
	Latest     []blog.Post
	Trending   []blog.Post
	Categories []blog.Category
}

// PostCache is an in-memory cache of the home page sections with a TTL.
// Post mutations invalidate it; view counts in Trending may lag by one TTL.
type PostCache struct {
	mu       sync.RWMutex
	sections *HomeSections
	fetched  time.Time
	ttl      time.Duration
	dir      blog.Directory
	now      func() time.Time
}

// NewPostCache creates a PostCache backed by dir.
func NewPostCache(dir blog.Directory, ttl time.Duration) *PostCache {
	return &PostCache{dir: dir, ttl: ttl, now: time.Now}
}

func (c *PostCache) valid() bool {
	return c.sections != nil && c.now().Sub(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *PostCache) Invalidate() {
	c.mu.Lock()
	c.sections = nil
	c.mu.Unlock()
}

func (c *PostCache) load(ctx context.Context) error {
	if c.valid() {
		return nil
	}
	var s HomeSections
	var err error
	if s.Featured, err = c.dir.ListPosts(ctx, blog.PostFilter{PublishedOnly: true, FeaturedOnly: true, Limit: homeFeatured}); err != nil {
		return err
	}
	if s.Latest, err = c.dir.ListPosts(ctx, blog.PostFilter{PublishedOnly: true, Limit: homeLatest}); err != nil {
		return err
	}
	if s.Trending, err = c.dir.ListPosts(ctx, blog.PostFilter{PublishedOnly: true, Order: blog.MostViewed, Limit: homeTrending}); err != nil {
		return err
	}
	if s.Categories, err = c.dir.ListCategories(ctx); err != nil {
		return err
	}
	c.sections = &s
	c.fetched = c.now()
	return nil
}

// Home returns the cached home sections, reloading them when stale.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *PostCache) Home(ctx context.Context) (HomeSections, error) {
	c.mu.RLock()
	if c.valid() {
		s := *c.sections
		c.mu.RUnlock()
		return s, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return HomeSections{}, err
	}
	return *c.sections, nil
}

// Categories returns the cached category list.
func (c *PostCache) Categories(ctx context.Context) ([]blog.Category, error) {
	s, err := c.Home(ctx)
	return s.Categories, err
}
