package models

import (
	"encoding/json"
	"time"
)

// AccountQuota limits what a single account may own. -1 means unlimited.
type AccountQuota struct {
	Orgs    int   `json:"orgs"`
	Storage int64 `json:"storage"`
}

// SessionInfo is the secret-free session summary kept on the account.
type SessionInfo struct {
	ID       string      `json:"id"`
	Device   *DeviceInfo `json:"device,omitempty"`
	Created  time.Time   `json:"created"`
	Updated  time.Time   `json:"updated"`
	LastUsed time.Time   `json:"lastUsed"`
	Expires  time.Time   `json:"expires"`
}

// Account is the identity aggregate. It never holds secret material: the
// profile blob is encrypted client-side and the key params only describe how
// the client derives its own keys.
type Account struct {
	ID               string          `json:"id"`
	Email            string          `json:"email"`
	Name             string          `json:"name"`
	PublicKey        []byte          `json:"publicKey,omitempty"`
	KeyParams        json.RawMessage `json:"keyParams,omitempty"`
	EncryptedProfile []byte          `json:"encryptedProfile,omitempty"`
	MainVault        string          `json:"mainVault"`
	Orgs             []string        `json:"orgs"`
	Sessions         []SessionInfo   `json:"sessions"`
	Quota            AccountQuota    `json:"quota"`
	Revision         string          `json:"revision"`
	Created          time.Time       `json:"created"`
	Updated          time.Time       `json:"updated"`
}

func (a *Account) Kind() string     { return KindAccount }
func (a *Account) ObjectID() string { return a.ID }

// UpsertSession replaces the summary with the same session id or appends it.
func (a *Account) UpsertSession(info SessionInfo) {
	for i := range a.Sessions {
		if a.Sessions[i].ID == info.ID {
			a.Sessions[i] = info
			return
		}
	}
	a.Sessions = append(a.Sessions, info)
}

// RemoveSession drops the summary with the given session id, if present.
func (a *Account) RemoveSession(id string) {
	filtered := a.Sessions[:0]
	for _, s := range a.Sessions {
		if s.ID != id {
			filtered = append(filtered, s)
		}
	}
	a.Sessions = filtered
}

// AddOrg links the org id into the membership list, without duplicates.
func (a *Account) AddOrg(orgID string) {
	for _, id := range a.Orgs {
		if id == orgID {
			return
		}
	}
	a.Orgs = append(a.Orgs, orgID)
}

// RemoveOrg unlinks the org id from the membership list.
func (a *Account) RemoveOrg(orgID string) {
	filtered := a.Orgs[:0]
	for _, id := range a.Orgs {
		if id != orgID {
			filtered = append(filtered, id)
		}
	}
	a.Orgs = filtered
}
