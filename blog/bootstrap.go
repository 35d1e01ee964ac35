package blog

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/eringen/inkwell/media"
)

// AdminSeed names the admin account Bootstrap creates on an empty site.
type AdminSeed struct {
	Username string
	Email    string
}

// BootstrapResult reports what Bootstrap changed. Password is the one-time
// admin password and is empty when no admin was created.
type BootstrapResult struct {
	CategoriesSeeded int
	Admin            *User
	Password         string
}

// Bootstrap prepares a fresh site. It seeds the default categories when none
// exist and creates an admin when no admin exists. The admin gets a random
// password and must choose a new one at first sign-in. Running it again on a
// prepared site changes nothing.
func Bootstrap(ctx context.Context, dir Directory, seed AdminSeed) (BootstrapResult, error) {
	var res BootstrapResult
	err := dir.Atomic(ctx, func(d Directory) error {
		cats, err := d.ListCategories(ctx)
		if err != nil {
			return err
		}
		if len(cats) == 0 {
			for _, name := range DefaultCategories {
				if _, err := d.CreateCategory(ctx, name); err != nil {
					return fmt.Errorf("seed category %s: %w", name, err)
				}
			}
			res.CategoriesSeeded = len(DefaultCategories)
		}

		admins, err := d.CountUsersByRole(ctx, RoleAdmin)
		if err != nil {
			return err
		}
		if admins > 0 {
			return nil
		}
		email, err := NormalizeEmail(seed.Email)
		if err != nil {
			return err
		}
		if seed.Username == "" {
			return fmt.Errorf("%w: admin username is required", ErrInvalidInput)
		}
		password, err := randomPassword()
		if err != nil {
			return err
		}
		hash, err := HashPassword(password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		u := User{
			Username:           seed.Username,
			Email:              email,
			PasswordHash:       hash,
			Role:               RoleAdmin,
			ProfileImage:       media.DefaultProfileImage,
			MustRotatePassword: true,
			CreatedAt:          utcNow(),
		}
		if err := d.CreateUser(ctx, &u); err != nil {
			return err
		}
		res.Admin = &u
		res.Password = password
		return nil
	})
	if err != nil {
		return BootstrapResult{}, err
	}
	return res, nil
}

func randomPassword() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
