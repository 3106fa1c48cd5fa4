package models

import "time"

// Vault is an encrypted data container. Exactly one of Owner (private vault)
// or Org (shared vault) is set, never both, never neither.
type Vault struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Owner         string     `json:"owner,omitempty"`
	Org           string     `json:"org,omitempty"`
	Accessors     []Accessor `json:"accessors,omitempty"`
	EncryptedData []byte     `json:"encryptedData,omitempty"`
	Attachments   []string   `json:"attachments,omitempty"`
	Revision      string     `json:"revision"`
	Created       time.Time  `json:"created"`
	Updated       time.Time  `json:"updated"`
}

func (v *Vault) Kind() string     { return KindVault }
func (v *Vault) ObjectID() string { return v.ID }

// Validate reports whether the ownership invariant holds.
func (v *Vault) Validate() bool {
	return (v.Owner == "") != (v.Org == "")
}

// AddAttachment records an attachment id on the vault, without duplicates.
func (v *Vault) AddAttachment(id string) {
	for _, a := range v.Attachments {
		if a == id {
			return
		}
	}
	v.Attachments = append(v.Attachments, id)
}

// RemoveAttachment drops the attachment id, if present.
func (v *Vault) RemoveAttachment(id string) {
	filtered := v.Attachments[:0]
	for _, a := range v.Attachments {
		if a != id {
			filtered = append(filtered, a)
		}
	}
	v.Attachments = filtered
}
