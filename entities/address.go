package entities

import (
	"bytes"
	"slices"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

// Address layout: padding | type | 20 byte hash | 4 byte checksum.
const (
	AddressLength = 26

	addressPadding      byte = 0x19
	addressHashLength        = 20
	addressChecksumFrom      = 22
)

type AddressType byte

const (
	AccountAddress  AddressType = 0x57
	ContractAddress AddressType = 0x58
)

type Address [AddressLength]byte

func NewAddress(addressType AddressType, hash []byte) (Address, error) {
	var a Address
	if len(hash) != addressHashLength {
		return a, errors.Wrapf(ErrInvalidAddress, "hash length [%d]", len(hash))
	}
	if addressType != AccountAddress && addressType != ContractAddress {
		return a, errors.Wrapf(ErrInvalidAddress, "address type [%#x]", byte(addressType))
	}

	a[0] = addressPadding
	a[1] = byte(addressType)
	copy(a[2:], hash)
	copy(a[addressChecksumFrom:], checksum(a[:addressChecksumFrom]))
	return a, nil
}

func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLength {
		return a, errors.Wrapf(ErrInvalidAddress, "length [%d]", len(b))
	}
	if b[0] != addressPadding {
		return a, errors.Wrapf(ErrInvalidAddress, "padding [%#x]", b[0])
	}
	if !bytes.Equal(checksum(b[:addressChecksumFrom]), b[addressChecksumFrom:]) {
		return a, errors.Wrap(ErrInvalidAddress, "checksum mismatch")
	}
	copy(a[:], b)
	return a, nil
}

func ParseAddress(s string) (Address, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return Address{}, errors.Wrapf(ErrInvalidAddress, "decoding [%s]: %v", s, err)
	}
	return AddressFromBytes(b)
}

func checksum(data []byte) []byte {
	sum := sha3.Sum256(data)
	return sum[:4]
}

func (a Address) Type() AddressType {
	return AddressType(a[1])
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) String() string {
	return base58.Encode(a[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func CompareAddresses(a, b Address) int {
	return bytes.Compare(a[:], b[:])
}

// SortAddresses orders addresses by their byte representation.
func SortAddresses(addresses []Address) {
	slices.SortFunc(addresses, CompareAddresses)
}
