// Package srp implements the server side of the Secure Remote Password
// protocol (SRP-6a, RFC 5054 2048-bit group, SHA-256) plus the client half
// used by tests and tooling. The server only ever sees the password verifier;
// a completed exchange yields a shared session key and mutual proofs without
// the password crossing the wire.
package srp

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"math/big"

	"github.com/dmitrijs2005/keyvault/internal/common"
)

// RFC 5054 2048-bit group.
const primeHex = "AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050" +
	"A37329CBB4A099ED8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50" +
	"E8083969EDB767B0CF6095179A163AB3661A05FBD5FAAAE82918A9962F0B93B8" +
	"55F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA71D281E446B14773B" +
	"CA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748" +
	"544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6" +
	"AF874E7303CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB6" +
	"94B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F9E4AFF73"

var (
	groupN = mustParseHex(primeHex)
	groupG = big.NewInt(2)
	// k = H(N | PAD(g)), the SRP-6a multiplier.
	multiplierK = hashToInt(groupN.Bytes(), pad(groupG))
)

var (
	ErrInvalidEphemeral = errors.New("srp: invalid public ephemeral value")
	ErrEphemeralNotSet  = errors.New("srp: client ephemeral not received yet")
)

func mustParseHex(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("srp: bad group prime")
	}
	return n
}

// pad left-pads v to the byte length of the group prime.
func pad(v *big.Int) []byte {
	size := len(groupN.Bytes())
	b := v.Bytes()
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}

func hashBytes(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func hashToInt(parts ...[]byte) *big.Int {
	return new(big.Int).SetBytes(hashBytes(parts...))
}

func randomInt() *big.Int {
	return new(big.Int).SetBytes(common.GenerateRandByteArray(32))
}

// Exchange is the server-side half of one SRP negotiation, as consumed by
// the auth protocol. Call order: Ephemeral, SetClientEphemeral, then
// VerifyClientProof / SessionKey / ServerProof.
type Exchange interface {
	// Ephemeral returns the server's public ephemeral value B.
	Ephemeral() []byte

	// SetClientEphemeral feeds in the client's public ephemeral value A and
	// derives the shared key and both proofs.
	SetClientEphemeral(clientEphemeral []byte) error

	// VerifyClientProof compares the supplied proof against the expected one
	// in constant time.
	VerifyClientProof(proof []byte) (bool, error)

	// ServerProof returns the server's proof M2 for the client to check.
	ServerProof() ([]byte, error)

	// SessionKey returns the negotiated shared key.
	SessionKey() ([]byte, error)
}

// Server holds the state of one negotiation. Not safe for concurrent use;
// each login attempt gets its own instance.
type Server struct {
	verifier *big.Int
	private  *big.Int // b
	public   *big.Int // B
	key      []byte
	m1       []byte
	m2       []byte
}

// NewServer starts a negotiation seeded with the stored verifier and returns
// it with the server ephemeral already generated.
func NewServer(verifier []byte) (*Server, error) {
	if len(verifier) == 0 {
		return nil, errors.New("srp: empty verifier")
	}

	v := new(big.Int).SetBytes(verifier)
	b := randomInt()

	// B = k*v + g^b mod N
	B := new(big.Int).Exp(groupG, b, groupN)
	B.Add(B, new(big.Int).Mul(multiplierK, v))
	B.Mod(B, groupN)

	return &Server{verifier: v, private: b, public: B}, nil
}

func (s *Server) Ephemeral() []byte {
	return pad(s.public)
}

func (s *Server) SetClientEphemeral(clientEphemeral []byte) error {
	A := new(big.Int).SetBytes(clientEphemeral)
	if new(big.Int).Mod(A, groupN).Sign() == 0 {
		return ErrInvalidEphemeral
	}

	// u = H(PAD(A) | PAD(B))
	u := hashToInt(pad(A), pad(s.public))

	// S = (A * v^u)^b mod N
	S := new(big.Int).Exp(s.verifier, u, groupN)
	S.Mul(S, A)
	S.Mod(S, groupN)
	S.Exp(S, s.private, groupN)

	s.key = hashBytes(pad(S))
	s.m1 = hashBytes(pad(A), pad(s.public), s.key)
	s.m2 = hashBytes(pad(A), s.m1, s.key)
	return nil
}

func (s *Server) VerifyClientProof(proof []byte) (bool, error) {
	if s.m1 == nil {
		return false, ErrEphemeralNotSet
	}
	return subtle.ConstantTimeCompare(s.m1, proof) == 1, nil
}

func (s *Server) ServerProof() ([]byte, error) {
	if s.m2 == nil {
		return nil, ErrEphemeralNotSet
	}
	return s.m2, nil
}

func (s *Server) SessionKey() ([]byte, error) {
	if s.key == nil {
		return nil, ErrEphemeralNotSet
	}
	return s.key, nil
}
