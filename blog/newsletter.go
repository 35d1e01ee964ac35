package blog

import "context"

// Subscribe adds email to the newsletter list. It reports false without error
// when the address was already subscribed.
func Subscribe(ctx context.Context, dir Directory, email string) (bool, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return false, err
	}
	return dir.Subscribe(ctx, email)
}
