// Package limiter throttles email-verification issuance per address using a
// Redis counter with a sliding cooldown window. The codes are low entropy,
// so unbounded requests would let a caller spam inboxes and brute-force the
// verification step; the revision/tries guards cover the rest.
package limiter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/keyvault/internal/common"
	"github.com/redis/go-redis/v9"
)

// VerificationLimiter enforces at most MaxAttempts verification requests per
// key within the Cooldown window.
type VerificationLimiter struct {
	redis       *redis.Client
	maxAttempts int
	cooldown    time.Duration
}

func New(client *redis.Client, maxAttempts int, cooldown time.Duration) *VerificationLimiter {
	return &VerificationLimiter{redis: client, maxAttempts: maxAttempts, cooldown: cooldown}
}

func verificationKey(email string) string {
	return "emv:" + strings.ToLower(strings.TrimSpace(email))
}

// Enforce increments the counter for the email and fails closed once the
// window's budget is spent. A Redis outage surfaces as an internal error;
// verification must not silently become unlimited.
func (l *VerificationLimiter) Enforce(ctx context.Context, email string) error {
	key := verificationKey(email)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("limiter: redis unavailable: %w", err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.cooldown).Err(); err != nil {
			return fmt.Errorf("limiter: redis unavailable: %w", err)
		}
	}

	if count > int64(l.maxAttempts) {
		return common.NewError(common.CodeBadRequest, "too many verification requests for this address, retry later")
	}
	return nil
}
