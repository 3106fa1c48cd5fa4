package srp

import (
	"math/big"

	"golang.org/x/crypto/argon2"
)

// DeriveSecret computes the client-side private exponent input
// x = H(salt | H(identity ":" password)). The password argument is expected
// to already be a derived key (see DeriveMasterKey); the raw password never
// reaches this layer in production clients.
func DeriveSecret(identity, password string, salt []byte) []byte {
	inner := hashBytes([]byte(identity + ":" + password))
	return hashBytes(salt, inner)
}

// DeriveMasterKey stretches a password with argon2id the way product clients
// do before any SRP math sees it.
func DeriveMasterKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

// ComputeVerifier returns v = g^x mod N for storage in the auth record.
func ComputeVerifier(identity, password string, salt []byte) []byte {
	x := new(big.Int).SetBytes(DeriveSecret(identity, password, salt))
	return new(big.Int).Exp(groupG, x, groupN).Bytes()
}

// Client is the client half of a negotiation. Production clients live
// outside this repository; this implementation backs the test suite.
type Client struct {
	x       *big.Int
	private *big.Int // a
	public  *big.Int // A
	key     []byte
	m1      []byte
	m2      []byte
}

// NewClient starts a client negotiation from the identity's secret.
func NewClient(identity, password string, salt []byte) *Client {
	x := new(big.Int).SetBytes(DeriveSecret(identity, password, salt))
	a := randomInt()
	A := new(big.Int).Exp(groupG, a, groupN)
	return &Client{x: x, private: a, public: A}
}

func (c *Client) Ephemeral() []byte {
	return pad(c.public)
}

// SetServerEphemeral feeds in B and derives the shared key and proofs.
func (c *Client) SetServerEphemeral(serverEphemeral []byte) error {
	B := new(big.Int).SetBytes(serverEphemeral)
	if new(big.Int).Mod(B, groupN).Sign() == 0 {
		return ErrInvalidEphemeral
	}

	u := hashToInt(pad(c.public), pad(B))

	// S = (B - k*g^x)^(a + u*x) mod N
	gx := new(big.Int).Exp(groupG, c.x, groupN)
	base := new(big.Int).Sub(B, new(big.Int).Mul(multiplierK, gx))
	base.Mod(base, groupN)

	exp := new(big.Int).Mul(u, c.x)
	exp.Add(exp, c.private)

	S := new(big.Int).Exp(base, exp, groupN)

	c.key = hashBytes(pad(S))
	c.m1 = hashBytes(pad(c.public), pad(B), c.key)
	c.m2 = hashBytes(pad(c.public), c.m1, c.key)
	return nil
}

// Proof returns the client proof M1.
func (c *Client) Proof() ([]byte, error) {
	if c.m1 == nil {
		return nil, ErrEphemeralNotSet
	}
	return c.m1, nil
}

// CheckServerProof validates the server's M2.
func (c *Client) CheckServerProof(proof []byte) bool {
	return c.m2 != nil && string(c.m2) == string(proof)
}

// SessionKey returns the negotiated shared key.
func (c *Client) SessionKey() ([]byte, error) {
	if c.key == nil {
		return nil, ErrEphemeralNotSet
	}
	return c.key, nil
}
