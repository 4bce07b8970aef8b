// Package chain is the environment adapter spec.md §6 describes: the
// narrow capability boundary between the core market engine and whatever
// real chain or process ultimately custodies value and block height. It
// supplies Identity (the 20-byte caller address), Clock (current block
// height) and Ledger (value custody/transfer), plus signature-based caller
// authentication so an HTTP transport can recover a caller's Identity the
// way a contract VM would hand it to a contract call.
package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// ErrInvalidSignature is returned when a caller's signature does not
// verify against the digest and public key presented.
var ErrInvalidSignature = errors.New("chain: invalid signature")

// Identity is the 20-byte address of a caller or cycle creator, the Go
// analogue of spec.md's 20-byte identity.
type Identity [20]byte

func (id Identity) String() string { return hex.EncodeToString(id[:]) }

// IsZero reports whether id is the zero Identity (no caller resolved).
func (id Identity) IsZero() bool { return id == Identity{} }

// IdentityFromHex parses the hex encoding Identity.String produces, for
// reconstructing an Identity from a persisted audit record.
func IdentityFromHex(s string) (Identity, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Identity{}, err
	}
	var id Identity
	if len(b) != len(id) {
		return Identity{}, errors.New("chain: identity hex has wrong length")
	}
	copy(id[:], b)
	return id, nil
}

// IdentityFromPubKey derives an Identity by hashing a compressed
// secp256k1 public key, the same "hash the pubkey down to an address"
// idiom Bitcoin/Ethereum-style chains use.
func IdentityFromPubKey(pub *secp256k1.PublicKey) Identity {
	sum := sha256.Sum256(pub.SerializeCompressed())
	var id Identity
	copy(id[:], sum[:20])
	return id
}

// RecoverIdentity verifies a DER-encoded ECDSA signature over digest
// against the given compressed public key, returning the signer's
// Identity on success.
func RecoverIdentity(pubKeyBytes []byte, digest [32]byte, derSig []byte) (Identity, error) {
	pub, err := secp256k1.ParsePubKey(pubKeyBytes)
	if err != nil {
		return Identity{}, err
	}
	sig, err := ecdsa.ParseDERSignature(derSig)
	if err != nil {
		return Identity{}, err
	}
	if !sig.Verify(digest[:], pub) {
		return Identity{}, ErrInvalidSignature
	}
	return IdentityFromPubKey(pub), nil
}
