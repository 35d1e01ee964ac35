package blog

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/eringen/inkwell/media"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is lowered by tests.
var bcryptCost = bcrypt.DefaultCost

const (
	minPasswordLen = 8
	maxPasswordLen = 72
	maxBioLen      = 1000
)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with its possible plaintext.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NormalizeEmail lowercases and trims an address, rejecting malformed input.
func NormalizeEmail(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return "", fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}
	return s, nil
}

func checkPasswordLen(pw string) error {
	if len(pw) < minPasswordLen || len(pw) > maxPasswordLen {
		return fmt.Errorf("%w: password must be %d to %d characters", ErrInvalidInput, minPasswordLen, maxPasswordLen)
	}
	return nil
}

// Registration is the input to AccountService.Register.
type Registration struct {
	Username string
	Email    string
	Password string
}

// ProfileInput is the input to AccountService.UpdateProfile.
type ProfileInput struct {
	Bio   string
	Image *media.Upload
}

// ProfileOutcome is the result of a profile update. ImageErr is set when the
// bio was saved but the new image was rejected.
type ProfileOutcome struct {
	User     User
	ImageErr error
}

// AccountService manages users: registration, sign-in, profiles, passwords
// and roles.
type AccountService struct {
	dir    Directory
	assets Assets
	log    *zap.Logger
	now    func() time.Time
}

func NewAccountService(dir Directory, assets Assets, log *zap.Logger) *AccountService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountService{dir: dir, assets: assets, log: log, now: utcNow}
}

// Register creates a reader account.
func (s *AccountService) Register(ctx context.Context, r Registration) (User, error) {
	username := SanitizeText(r.Username)
	if username == "" || username != strings.TrimSpace(r.Username) || len(username) > 80 {
		return User{}, fmt.Errorf("%w: invalid username", ErrInvalidInput)
	}
	email, err := NormalizeEmail(r.Email)
	if err != nil {
		return User{}, err
	}
	if err := checkPasswordLen(r.Password); err != nil {
		return User{}, err
	}
	hash, err := HashPassword(r.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	u := User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleReader,
		ProfileImage: media.DefaultProfileImage,
		CreatedAt:    s.now(),
	}
	if err := s.dir.CreateUser(ctx, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Authenticate returns the user owning email when password matches.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.dir.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// UpdateProfile saves the bio and, when given, replaces the profile image.
// The replaced image is removed unless it is the shared default.
func (s *AccountService) UpdateProfile(ctx context.Context, actor Actor, in ProfileInput) (ProfileOutcome, error) {
	if !actor.Authenticated() {
		return ProfileOutcome{}, ErrUnauthenticated
	}
	bio := SanitizeText(in.Bio)
	if utf8.RuneCountInString(bio) > maxBioLen {
		return ProfileOutcome{}, fmt.Errorf("%w: bio is too long", ErrInvalidInput)
	}

	var ref string
	var imageErr error
	if in.Image != nil {
		var err error
		ref, err = s.assets.Ingest(ctx, *in.Image, media.PurposeProfile)
		if err != nil {
			if !errors.Is(err, media.ErrInvalidFileType) &&
				!errors.Is(err, media.ErrFileTooLarge) &&
				!errors.Is(err, media.ErrCorruptImage) {
				return ProfileOutcome{}, err
			}
			imageErr = err
		}
	}

	var u User
	var previous string
	err := s.dir.Atomic(ctx, func(d Directory) error {
		cur, err := d.GetUser(ctx, actor.UserID)
		if err != nil {
			return err
		}
		cur.Bio = bio
		if ref != "" {
			previous = cur.ProfileImage
			cur.ProfileImage = ref
		}
		if err := d.UpdateUser(ctx, cur); err != nil {
			return err
		}
		u = cur
		return nil
	})
	if err != nil {
		s.discard(ref)
		return ProfileOutcome{}, err
	}
	if previous != media.DefaultProfileImage {
		s.discard(previous)
	}
	return ProfileOutcome{User: u, ImageErr: imageErr}, nil
}

func (s *AccountService) discard(ref string) {
	if ref == "" {
		return
	}
	if !s.assets.TryDelete(media.PurposeProfile, ref) {
		s.log.Warn("asset cleanup failed", zap.String("purpose", string(media.PurposeProfile)), zap.String("ref", ref))
	}
}

// ChangePassword replaces the password after verifying the current one and
// clears any pending rotation requirement.
func (s *AccountService) ChangePassword(ctx context.Context, actor Actor, current, next string) error {
	if !actor.Authenticated() {
		return ErrUnauthenticated
	}
	if err := checkPasswordLen(next); err != nil {
		return err
	}
	if current == next {
		return fmt.Errorf("%w: new password must differ from the current one", ErrInvalidInput)
	}
	u, err := s.dir.GetUser(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if !CheckPassword(u.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	hash, err := HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = hash
	u.MustRotatePassword = false
	return s.dir.UpdateUser(ctx, u)
}

// SetRole changes the role of another user. Only admins may do this, and an
// admin cannot demote themselves.
func (s *AccountService) SetRole(ctx context.Context, actor Actor, userID int64, role Role) (User, error) {
	if !Can(actor, ActionModerate, nil) {
		return User{}, deny(actor)
	}
	if _, ok := ParseRole(string(role)); !ok {
		return User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if userID == actor.UserID && role != RoleAdmin {
		return User{}, fmt.Errorf("%w: admins cannot demote themselves", ErrInvalidInput)
	}
	u, err := s.dir.GetUser(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if u.Role == role {
		return u, nil
	}
	u.Role = role
	if err := s.dir.UpdateUser(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}
