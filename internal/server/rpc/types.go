// Package rpc is the transport surface: one HTTP endpoint accepting a
// method-dispatch envelope and returning a result-or-error envelope. All
// domain behavior lives in the controller; this package only decodes
// positional parameters, authenticates the caller and maps errors to their
// stable codes.
package rpc

import (
	"encoding/json"

	"github.com/dmitrijs2005/keyvault/internal/common"
	"github.com/dmitrijs2005/keyvault/internal/server/models"
)

// AuthRef identifies the caller's session and carries the request
// signature: HMAC-SHA256 over the signed payload with the session key.
type AuthRef struct {
	Session   string `json:"session"`
	Signature []byte `json:"signature"`
}

// Request is the dispatch envelope. Params are positional and stay raw
// until the method's handler decodes them into concrete types.
type Request struct {
	Method string             `json:"method"`
	Params []json.RawMessage  `json:"params"`
	Auth   *AuthRef           `json:"auth,omitempty"`
	Device *models.DeviceInfo `json:"device,omitempty"`
}

// SignedPayload is the byte string a client signs: the method name
// followed by the raw parameter values in order. Raw bytes, not
// re-marshaled JSON, so signer and verifier cannot disagree on encoding.
func (r *Request) SignedPayload() []byte {
	payload := []byte(r.Method)
	for _, p := range r.Params {
		payload = append(payload, p...)
	}
	return payload
}

// Error is the wire form of a typed failure.
type Error struct {
	Code    common.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

// Response carries either a result or an error, never both.
type Response struct {
	Result any    `json:"result,omitempty"`
	Error  *Error `json:"error,omitempty"`
}
