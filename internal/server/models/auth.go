package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// Auth is the per-email authentication record: the SRP verifier and the
// trusted-device list. It is the login entry point, looked up by email before
// the account id is known, so its id is derived from the email.
type Auth struct {
	ID             string          `json:"id"`
	Email          string          `json:"email"`
	Account        string          `json:"account"`
	Verifier       []byte          `json:"verifier,omitempty"`
	KeyParams      json.RawMessage `json:"keyParams,omitempty"`
	TrustedDevices []DeviceInfo    `json:"trustedDevices"`
	Created        time.Time       `json:"created"`
	Updated        time.Time       `json:"updated"`
}

func (a *Auth) Kind() string     { return KindAuth }
func (a *Auth) ObjectID() string { return a.ID }

// AuthID derives the storage id for an email's Auth record. Case-insensitive
// so that differently-cased logins resolve to the same record.
func AuthID(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// IsTrusted reports whether the device fingerprint is on the trusted list.
func (a *Auth) IsTrusted(device *DeviceInfo) bool {
	if device == nil {
		return false
	}
	for _, d := range a.TrustedDevices {
		if d.ID == device.ID {
			return true
		}
	}
	return false
}

// TrustDevice adds the device to the trusted list, without duplicates.
func (a *Auth) TrustDevice(device *DeviceInfo) {
	if device == nil || a.IsTrusted(device) {
		return
	}
	a.TrustedDevices = append(a.TrustedDevices, *device)
}
