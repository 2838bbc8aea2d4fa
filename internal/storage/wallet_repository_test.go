package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	addr, err := ValidateAddress("0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B")
	require.NoError(t, err)
	assert.Equal(t, "0xab5801a7d398351b8be11c439e05c5b3259aec9b", addr)
}

func TestValidateAddressRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"0x123",
		"not-an-address",
		"0xZZ5801a7D398351b8bE11C439e05C5B3259aeC9B",
		"Ab5801a7D398351b8bE11C439e05C5B3259aeC9B00",
	}
	for _, c := range cases {
		_, err := ValidateAddress(c)
		assert.Error(t, err, "address %q", c)
	}
}

func TestValidateAddressAcceptsBarePrefixless(t *testing.T) {
	// go-ethereum accepts 40 hex chars without the 0x prefix
	addr, err := ValidateAddress("ab5801a7d398351b8be11c439e05c5b3259aec9b")
	require.NoError(t, err)
	assert.Equal(t, "ab5801a7d398351b8be11c439e05c5b3259aec9b", addr)
}
