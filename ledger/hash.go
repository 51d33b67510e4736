package ledger

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const (
	HashSize    = 32
	AddressSize = 32
)

type (
	// Hash identifies a vertex in the tangle
	Hash [HashSize]byte
	// Address is an account address of the balance ledger
	Address [AddressSize]byte
	// MilestoneIndex is the coordinator-issued sequence number of a milestone. 0 means none
	MilestoneIndex uint32
)

// NullHash is the genesis sentinel. It is always a solid entry point
var NullHash Hash

func HashData(data ...[]byte) Hash {
	h, _ := blake2b.New256(nil)
	for _, d := range data {
		_, _ = h.Write(d)
	}
	var ret Hash
	copy(ret[:], h.Sum(nil))
	return ret
}

func HashFromBytes(data []byte) (ret Hash, err error) {
	if len(data) != HashSize {
		return ret, fmt.Errorf("%w: wrong hash length %d", ErrMalformedPayload, len(data))
	}
	copy(ret[:], data)
	return
}

func HashFromHexString(s string) (Hash, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return HashFromBytes(data)
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) StringShort() string {
	return hex.EncodeToString(h[:6])
}

func (h Hash) IsNull() bool {
	return h == NullHash
}

func LessHash(h1, h2 Hash) bool {
	return bytes.Compare(h1[:], h2[:]) < 0
}

func AddressFromPublicKey(pubKey ed25519.PublicKey) Address {
	return Address(HashData(pubKey))
}

func AddressFromBytes(data []byte) (ret Address, err error) {
	if len(data) != AddressSize {
		return ret, fmt.Errorf("%w: wrong address length %d", ErrMalformedPayload, len(data))
	}
	copy(ret[:], data)
	return
}

func AddressFromHexString(s string) (Address, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return AddressFromBytes(data)
}

func (a Address) Bytes() []byte {
	return a[:]
}

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

func (a Address) StringShort() string {
	return hex.EncodeToString(a[:6])
}

func LessAddress(a1, a2 Address) bool {
	return bytes.Compare(a1[:], a2[:]) < 0
}
