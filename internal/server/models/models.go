// Package models defines the persisted aggregates of the keyvault server:
// accounts, auth records, sessions, organizations, vaults, invites,
// email verifications and attachment metadata. All of them implement the
// storage.Object interface (Kind/ObjectID) and are serialized as JSON by the
// storage backends.
package models

import "github.com/google/uuid"

// Object kinds as stored by the persistence layer.
const (
	KindAccount           = "account"
	KindAuth              = "auth"
	KindSession           = "session"
	KindOrg               = "org"
	KindVault             = "vault"
	KindEmailVerification = "emailverification"
	KindAttachment        = "attachment"
)

// NewID returns a fresh opaque object id.
func NewID() string {
	return uuid.NewString()
}

// NewRevision returns a fresh opaque revision token. Every successful update
// of a revisioned aggregate replaces its revision with one of these.
func NewRevision() string {
	return uuid.NewString()
}

// DeviceInfo describes a client device. The device id is the fingerprint
// used for the trusted-device list.
type DeviceInfo struct {
	ID          string `json:"id"`
	Platform    string `json:"platform,omitempty"`
	AppVersion  string `json:"appVersion,omitempty"`
	UserAgent   string `json:"userAgent,omitempty"`
	Description string `json:"description,omitempty"`
}

// Accessor permits one identity to unwrap a vault or org key. The encrypted
// key can only be opened by the holder of the matching private key; the
// server stores it opaquely.
type Accessor struct {
	AccountID    string `json:"account"`
	Email        string `json:"email,omitempty"`
	PublicKey    []byte `json:"publicKey,omitempty"`
	EncryptedKey []byte `json:"encryptedKey,omitempty"`
}
