package blog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/eringen/inkwell/media"
	"go.uber.org/zap"
)

const maxTitleLen = 200

// Assets is the part of the image pipeline the services depend on.
type Assets interface {
	Ingest(ctx context.Context, up media.Upload, purpose media.Purpose) (string, error)
	TryDelete(purpose media.Purpose, ref string) bool
}

// PostInput carries the editable fields of a post. Image is optional.
type PostInput struct {
	Title      string
	Content    string
	CategoryID int64
	IsFeatured bool
	Image      *media.Upload
}

// Outcome is the result of a create or edit. ImageErr is set when the other
// fields were saved but the new featured image was rejected.
type Outcome struct {
	Post     Post
	ImageErr error
}

// PostService drives the post lifecycle: creation, editing, moderation,
// deletion and reader interactions. Every mutation is checked with Can.
type PostService struct {
	dir    Directory
	assets Assets
	log    *zap.Logger
	now    func() time.Time
}

func NewPostService(dir Directory, assets Assets, log *zap.Logger) *PostService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PostService{dir: dir, assets: assets, log: log, now: utcNow}
}

func utcNow() time.Time { return time.Now().UTC() }

// deny returns the error for an actor that failed a capability check.
func deny(actor Actor) error {
	if !actor.Authenticated() {
		return ErrUnauthenticated
	}
	return ErrForbidden
}

func (s *PostService) validate(ctx context.Context, in *PostInput) error {
	in.Title = SanitizeText(in.Title)
	in.Content = SanitizeContent(in.Content)
	if in.Title == "" || in.Content == "" {
		return fmt.Errorf("%w: title and content are required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(in.Title) > maxTitleLen {
		return fmt.Errorf("%w: title is too long", ErrInvalidInput)
	}
	if _, err := s.dir.GetCategory(ctx, in.CategoryID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: unknown category", ErrInvalidInput)
		}
		return err
	}
	return nil
}

// ingest runs the optional upload through the pipeline. A rejected image is
// reported separately so the rest of the change can still be applied.
func (s *PostService) ingest(ctx context.Context, up *media.Upload) (ref string, imageErr error, err error) {
	if up == nil {
		return "", nil, nil
	}
	ref, err = s.assets.Ingest(ctx, *up, media.PurposePost)
	switch {
	case err == nil:
		return ref, nil, nil
	case errors.Is(err, media.ErrInvalidFileType),
		errors.Is(err, media.ErrFileTooLarge),
		errors.Is(err, media.ErrCorruptImage):
		return "", err, nil
	default:
		return "", nil, err
	}
}

func (s *PostService) discard(purpose media.Purpose, ref string) {
	if ref == "" {
		return
	}
	if !s.assets.TryDelete(purpose, ref) {
		s.log.Warn("asset cleanup failed", zap.String("purpose", string(purpose)), zap.String("ref", ref))
	}
}

// Create stores a new post. Admin posts are published immediately, author
// posts start as drafts awaiting moderation.
func (s *PostService) Create(ctx context.Context, actor Actor, in PostInput) (Outcome, error) {
	if !Can(actor, ActionCreatePost, nil) {
		return Outcome{}, deny(actor)
	}
	if err := s.validate(ctx, &in); err != nil {
		return Outcome{}, err
	}
	ref, imageErr, err := s.ingest(ctx, in.Image)
	if err != nil {
		return Outcome{}, err
	}

	now := s.now()
	p := Post{
		Title:         in.Title,
		Content:       in.Content,
		FeaturedImage: ref,
		AuthorID:      actor.UserID,
		CategoryID:    in.CategoryID,
		IsFeatured:    in.IsFeatured && actor.Role == RoleAdmin,
		IsPublished:   actor.Role == RoleAdmin,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.dir.SavePost(ctx, &p); err != nil {
		s.discard(media.PurposePost, ref)
		return Outcome{}, err
	}
	return Outcome{Post: p, ImageErr: imageErr}, nil
}

// Edit updates the content fields of a post and swaps its featured image
// when a new one is supplied. The publish state is never changed here.
func (s *PostService) Edit(ctx context.Context, actor Actor, id int64, in PostInput) (Outcome, error) {
	p, err := s.dir.GetPost(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if !Can(actor, ActionEditPost, &p) {
		return Outcome{}, deny(actor)
	}
	if err := s.validate(ctx, &in); err != nil {
		return Outcome{}, err
	}
	ref, imageErr, err := s.ingest(ctx, in.Image)
	if err != nil {
		return Outcome{}, err
	}

	var previous string
	err = s.dir.Atomic(ctx, func(d Directory) error {
		cur, err := d.GetPost(ctx, id)
		if err != nil {
			return err
		}
		cur.Title = in.Title
		cur.Content = in.Content
		cur.CategoryID = in.CategoryID
		if actor.Role == RoleAdmin {
			cur.IsFeatured = in.IsFeatured
		}
		if ref != "" {
			previous = cur.FeaturedImage
			cur.FeaturedImage = ref
		}
		cur.UpdatedAt = s.now()
		if err := d.SavePost(ctx, &cur); err != nil {
			return err
		}
		p = cur
		return nil
	})
	if err != nil {
		s.discard(media.PurposePost, ref)
		return Outcome{}, err
	}
	s.discard(media.PurposePost, previous)
	return Outcome{Post: p, ImageErr: imageErr}, nil
}

// Publish moves a draft to published. Publishing a published post is a no-op.
func (s *PostService) Publish(ctx context.Context, actor Actor, id int64) (Post, error) {
	p, err := s.dir.GetPost(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if !Can(actor, ActionPublishPost, &p) {
		return Post{}, deny(actor)
	}
	if p.State() == Published {
		return p, nil
	}
	p.IsPublished = true
	p.UpdatedAt = s.now()
	if err := s.dir.SavePost(ctx, &p); err != nil {
		return Post{}, err
	}
	return p, nil
}

// Delete removes the post record, then makes one attempt at removing its
// featured image. A failed removal does not fail the delete.
func (s *PostService) Delete(ctx context.Context, actor Actor, id int64) error {
	p, err := s.dir.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if !Can(actor, ActionDeletePost, &p) {
		return deny(actor)
	}
	if err := s.dir.DeletePost(ctx, id); err != nil {
		return err
	}
	s.discard(media.PurposePost, p.FeaturedImage)
	return nil
}

// View returns a readable post and counts the view. Drafts are reported as
// missing to everyone but their author and admins.
func (s *PostService) View(ctx context.Context, actor Actor, id int64) (Post, error) {
	p, err := s.readable(ctx, actor, id)
	if err != nil {
		return Post{}, err
	}
	views, err := s.dir.IncrementViews(ctx, id)
	if err != nil {
		return Post{}, err
	}
	p.Views = views
	return p, nil
}

// Like counts a like from a signed-in reader and returns the new total.
func (s *PostService) Like(ctx context.Context, actor Actor, id int64) (int64, error) {
	if !Can(actor, ActionLikePost, nil) {
		return 0, deny(actor)
	}
	if _, err := s.readable(ctx, actor, id); err != nil {
		return 0, err
	}
	return s.dir.IncrementLikes(ctx, id)
}

// Comment appends a comment to a readable post.
func (s *PostService) Comment(ctx context.Context, actor Actor, id int64, content string) (Comment, error) {
	if !Can(actor, ActionComment, nil) {
		return Comment{}, deny(actor)
	}
	content = SanitizeText(content)
	if content == "" {
		return Comment{}, ErrEmptyComment
	}
	if len(content) > 5000 {
		return Comment{}, fmt.Errorf("%w: comment is too long", ErrInvalidInput)
	}
	if _, err := s.readable(ctx, actor, id); err != nil {
		return Comment{}, err
	}
	c := Comment{
		PostID:    id,
		UserID:    actor.UserID,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.dir.AddComment(ctx, &c); err != nil {
		return Comment{}, err
	}
	return c, nil
}

// Search lists published posts whose title or content contains q.
func (s *PostService) Search(ctx context.Context, q string, limit int) ([]Post, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	return s.dir.ListPosts(ctx, PostFilter{PublishedOnly: true, Query: q, Limit: limit})
}

func (s *PostService) readable(ctx context.Context, actor Actor, id int64) (Post, error) {
	p, err := s.dir.GetPost(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if !Can(actor, ActionReadPost, &p) {
		return Post{}, ErrNotFound
	}
	return p, nil
}
