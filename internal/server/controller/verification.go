package controller

import "context"

// RequestEmailVerification starts email ownership proof for any caller,
// authenticated or not.
func (c *Controller) RequestEmailVerification(ctx context.Context, actx *Context, email, purpose string) error {
	return c.verifier.Request(ctx, email, purpose)
}

// CompleteEmailVerification exchanges a mailed code for the verification
// token consumed by signup, recovery and untrusted-device login.
func (c *Controller) CompleteEmailVerification(ctx context.Context, actx *Context, email, code string) (string, error) {
	return c.verifier.Complete(ctx, email, code)
}
