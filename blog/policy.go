package blog

// Actor is the identity performing an operation. The zero Actor is anonymous.
type Actor struct {
	UserID int64
	Role   Role
}

// ActorOf returns the Actor for u.
func ActorOf(u User) Actor {
	return Actor{UserID: u.ID, Role: u.Role}
}

// Authenticated reports whether the actor is a signed-in user.
func (a Actor) Authenticated() bool {
	return a.UserID != 0
}

// Action is something an actor may attempt.
type Action int

const (
	ActionCreatePost Action = iota
	ActionEditPost
	ActionDeletePost
	ActionPublishPost
	ActionReadPost
	ActionLikePost
	ActionComment
	ActionViewDashboard
	ActionModerate
)

// Can is the single authorization check for every operation on the site.
// post is the resource acted on and may be nil for actions without one.
func Can(actor Actor, action Action, post *Post) bool {
	switch action {
	case ActionReadPost:
		if post == nil {
			return false
		}
		return post.IsPublished || owns(actor, post) || actor.Role == RoleAdmin
	case ActionLikePost, ActionComment:
		return actor.Authenticated()
	}

	if !actor.Authenticated() {
		return false
	}
	switch action {
	case ActionCreatePost, ActionViewDashboard:
		return actor.Role == RoleAuthor || actor.Role == RoleAdmin
	case ActionEditPost, ActionDeletePost:
		if post == nil {
			return false
		}
		return actor.Role == RoleAdmin || owns(actor, post)
	case ActionPublishPost, ActionModerate:
		return actor.Role == RoleAdmin
	}
	return false
}

func owns(actor Actor, post *Post) bool {
	return actor.Authenticated() && post.AuthorID == actor.UserID
}
