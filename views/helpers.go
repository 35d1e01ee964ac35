package views

import (
	"encoding/json"
	"html/template"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/eringen/inkwell/blog"
	"github.com/eringen/inkwell/media"
)

var funcs = template.FuncMap{
	"postURL":    PostURL,
	"imageURL":   postImageURL,
	"avatarURL":  avatarURL,
	"date":       formatDate,
	"excerpt":    Excerpt,
	"html":       trustedHTML,
	"jsonld":     func(s string) template.JS { return template.JS(s) },
	"pathEscape": url.PathEscape,
	"year":       func() int { return time.Now().Year() },
}

// buildURL joins path segments onto a base URL.
func buildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	return u.String()
}

// PostURL is the site-relative link to a post.
func PostURL(id int64) string {
	return "/post/" + strconv.FormatInt(id, 10)
}

func postImageURL(ref string) string {
	if ref == "" {
		return ""
	}
	return media.URL(media.PurposePost, ref)
}

func avatarURL(ref string) string {
	if ref == "" {
		ref = media.DefaultProfileImage
	}
	return media.URL(media.PurposeProfile, ref)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("January 2, 2006")
}

// trustedHTML marks post content as safe. Content is sanitized before it is
// stored, so only values that came out of the Directory reach this.
func trustedHTML(s string) template.HTML {
	return template.HTML(s)
}

// Excerpt returns the first n runes of the post text with markup removed.
func Excerpt(content string, n int) string {
	text := strings.Join(strings.Fields(blog.SanitizeText(content)), " ")
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	cut := strings.TrimRight(string(runes[:n]), " ")
	if i := strings.LastIndexByte(cut, ' '); i > n/2 {
		cut = cut[:i]
	}
	return cut + "…"
}

// WebsiteJsonLD produces a Schema.org WebSite JSON-LD block.
func WebsiteJsonLD(cfg SiteConfig) string {
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     cfg.Name,
		"url":      buildURL(cfg.URL),
	}
	if cfg.Description != "" {
		data["description"] = cfg.Description
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// BlogPostingJsonLD produces a Schema.org BlogPosting JSON-LD block for a post.
func BlogPostingJsonLD(cfg SiteConfig, post blog.Post) string {
	postURL := buildURL(cfg.URL, PostURL(post.ID))
	data := map[string]interface{}{
		"@context":      "https://schema.org",
		"@type":         "BlogPosting",
		"headline":      post.Title,
		"description":   Excerpt(post.Content, 160),
		"datePublished": post.CreatedAt.Format(time.RFC3339),
		"dateModified":  post.UpdatedAt.Format(time.RFC3339),
		"url":           postURL,
		"publisher": map[string]string{
			"@type": "Organization",
			"name":  cfg.Name,
		},
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
	}
	if post.AuthorName != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  post.AuthorName,
		}
	}
	if post.CategoryName != "" {
		data["articleSection"] = post.CategoryName
	}
	if post.FeaturedImage != "" {
		data["image"] = buildURL(cfg.URL, postImageURL(post.FeaturedImage))
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
