// Package verification implements the email verification engine: short-lived
// proof that a caller controls an email address, decoupled from login.
//
// The flow is two-step. Request stores a record with a low-entropy user
// facing code (mailed out) and a system-facing token. Complete exchanges a
// correct code for the token; CheckToken later consumes the token from a
// privileged flow (signup, recovery, untrusted-device login, invites).
// Tokens are HS256 JWTs that must also match the stored record, so deleting
// the record is what enforces single use.
package verification

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/keyvault/internal/common"
	"github.com/dmitrijs2005/keyvault/internal/server/mail"
	"github.com/dmitrijs2005/keyvault/internal/server/models"
	"github.com/dmitrijs2005/keyvault/internal/server/storage"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const codeDigits = 6

// RequestLimiter throttles verification issuance; nil disables throttling.
type RequestLimiter interface {
	Enforce(ctx context.Context, email string) error
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	Purpose string `json:"purpose,omitempty"`
}

type Engine struct {
	storage  storage.Storage
	mailer   mail.Sender
	limiter  RequestLimiter
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

func NewEngine(st storage.Storage, mailer mail.Sender, lim RequestLimiter, secret []byte, tokenTTL time.Duration) *Engine {
	return &Engine{
		storage:  st,
		mailer:   mailer,
		limiter:  lim,
		secret:   secret,
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

func (e *Engine) mintToken(email, purpose string) (string, error) {
	now := e.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(e.tokenTTL)),
		},
		Email:   strings.ToLower(strings.TrimSpace(email)),
		Purpose: purpose,
	})
	return token.SignedString(e.secret)
}

func (e *Engine) parseToken(tokenString, email string) error {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return e.secret, nil
	}, jwt.WithTimeFunc(e.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return common.ErrorEmailVerificationFailed
	}
	if claims.Email != strings.ToLower(strings.TrimSpace(email)) {
		return common.ErrorEmailVerificationFailed
	}
	return nil
}

// Request creates or replaces the verification record for the email and
// mails out the code.
func (e *Engine) Request(ctx context.Context, email, purpose string) error {
	if e.limiter != nil {
		if err := e.limiter.Enforce(ctx, email); err != nil {
			return err
		}
	}

	v, err := e.issue(ctx, email, purpose)
	if err != nil {
		return err
	}

	msg := mail.Message{
		Subject: "Your verification code",
		Body:    fmt.Sprintf("Your email verification code is: %s\n\nIf you did not request this, you can ignore this message.", v.Code),
	}
	if err := e.mailer.Send(ctx, email, msg); err != nil {
		return fmt.Errorf("verification: sending code: %w", err)
	}
	return nil
}

// IssueToken creates or replaces the verification record and returns its
// token without mailing a code. Used when a flow embeds the token directly,
// e.g. invite links for addresses with no existing account.
func (e *Engine) IssueToken(ctx context.Context, email, purpose string) (string, error) {
	v, err := e.issue(ctx, email, purpose)
	if err != nil {
		return "", err
	}
	return v.Token, nil
}

func (e *Engine) issue(ctx context.Context, email, purpose string) (*models.EmailVerification, error) {
	code, err := common.MakeRandNumericCode(codeDigits)
	if err != nil {
		return nil, fmt.Errorf("verification: generating code: %w", err)
	}
	token, err := e.mintToken(email, purpose)
	if err != nil {
		return nil, fmt.Errorf("verification: minting token: %w", err)
	}

	v := &models.EmailVerification{
		Email:   email,
		Code:    code,
		Token:   token,
		Purpose: purpose,
		Created: e.now(),
	}
	if err := e.storage.Save(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Complete exchanges a correct code for the verification token. Codes are
// compared case-insensitively. After models.MaxVerificationTries wrong codes
// the record is dead: every further attempt fails with TRIES_EXCEEDED until
// a new request replaces it, and its token is invalidated too.
func (e *Engine) Complete(ctx context.Context, email, code string) (string, error) {
	v := &models.EmailVerification{Email: email}
	if err := e.storage.Get(ctx, v); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", common.ErrorEmailVerificationFailed
		}
		return "", err
	}

	if v.Tries >= models.MaxVerificationTries {
		return "", common.ErrorEmailVerificationTriesExceeded
	}

	if !strings.EqualFold(code, v.Code) {
		v.Tries++
		if v.Tries >= models.MaxVerificationTries {
			// dead record: keep it so later attempts report the right
			// condition, but its token must never verify again
			v.Token = ""
			if err := e.storage.Save(ctx, v); err != nil {
				return "", err
			}
			return "", common.ErrorEmailVerificationTriesExceeded
		}
		if err := e.storage.Save(ctx, v); err != nil {
			return "", err
		}
		return "", common.ErrorEmailVerificationFailed
	}

	return v.Token, nil
}

// CheckToken consumes the verification token: the token must be a valid,
// unexpired mint for this email and must match the stored record. The record
// is deleted on success, making the token single-use.
func (e *Engine) CheckToken(ctx context.Context, email, token string) error {
	if token == "" {
		return common.ErrorEmailVerificationRequired
	}

	v := &models.EmailVerification{Email: email}
	if err := e.storage.Get(ctx, v); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return common.ErrorEmailVerificationFailed
		}
		return err
	}

	if v.Token == "" || subtle.ConstantTimeCompare([]byte(v.Token), []byte(token)) != 1 {
		return common.ErrorEmailVerificationFailed
	}
	if err := e.parseToken(token, email); err != nil {
		return err
	}

	return e.storage.Delete(ctx, v)
}
