package entities

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func testAddress(t *testing.T, addressType AddressType, seed byte) Address {
	t.Helper()
	a, err := NewAddress(addressType, bytes.Repeat([]byte{seed}, 20))
	require.NoError(t, err)
	return a
}

func TestAddress_TextRoundTrip(t *testing.T) {
	testData := []struct {
		name        string
		addressType AddressType
		seed        byte
	}{
		{name: "account", addressType: AccountAddress, seed: 0x01},
		{name: "contract", addressType: ContractAddress, seed: 0xfe},
	}

	for _, testRun := range testData {
		t.Run(testRun.name, func(t *testing.T) {
			a := testAddress(t, testRun.addressType, testRun.seed)
			require.Equal(t, testRun.addressType, a.Type())

			parsed, err := ParseAddress(a.String())
			require.NoError(t, err)
			require.Equal(t, a, parsed)
		})
	}
}

func TestAddress_Invalid(t *testing.T) {
	valid := testAddress(t, AccountAddress, 0x07)

	corrupted := valid
	corrupted[AddressLength-1] ^= 0xff

	badPadding := valid
	badPadding[0] = 0x18

	testData := []struct {
		name  string
		input []byte
	}{
		{name: "short", input: valid[:20]},
		{name: "checksum", input: corrupted[:]},
		{name: "padding", input: badPadding[:]},
	}

	for _, testRun := range testData {
		t.Run(testRun.name, func(t *testing.T) {
			_, err := AddressFromBytes(testRun.input)
			require.ErrorIs(t, err, ErrInvalidAddress)
		})
	}

	_, err := ParseAddress("0OIl")
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, err = NewAddress(AddressType(0x01), bytes.Repeat([]byte{1}, 20))
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestAddress_Sort(t *testing.T) {
	a := testAddress(t, AccountAddress, 0x03)
	b := testAddress(t, AccountAddress, 0x01)
	c := testAddress(t, ContractAddress, 0x02)

	addresses := []Address{c, a, b}
	SortAddresses(addresses)
	require.Equal(t, []Address{b, a, c}, addresses)
}
