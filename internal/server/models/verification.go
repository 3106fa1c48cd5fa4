package models

import (
	"strings"
	"time"
)

// MaxVerificationTries is the number of wrong codes allowed before the
// verification record is destroyed.
const MaxVerificationTries = 5

// EmailVerification is the ephemeral proof-of-email-control record. Keyed by
// email: a new request for the same address replaces the old record. The
// user-facing code is low entropy; the system-facing token is what privileged
// flows consume.
type EmailVerification struct {
	Email   string    `json:"email"`
	Code    string    `json:"code"`
	Token   string    `json:"token"`
	Purpose string    `json:"purpose,omitempty"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

func (v *EmailVerification) Kind() string { return KindEmailVerification }

func (v *EmailVerification) ObjectID() string {
	return strings.ToLower(strings.TrimSpace(v.Email))
}
