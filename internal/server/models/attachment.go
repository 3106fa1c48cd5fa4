package models

import "time"

// Attachment is metadata for an encrypted blob stored in a vault's scope.
// Blob bytes live behind the attachment port; only size and ownership are
// tracked here for quota accounting and access checks.
type Attachment struct {
	ID      string    `json:"id"`
	Vault   string    `json:"vault"`
	Size    int64     `json:"size"`
	Created time.Time `json:"created"`
}

func (a *Attachment) Kind() string     { return KindAttachment }
func (a *Attachment) ObjectID() string { return a.ID }
