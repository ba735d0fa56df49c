package ledger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soliumcoin.org/airdrop-bot/internal/common"
)

func TestNormalizeWallet_ChecksumVectors(t *testing.T) {
	vectors := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
		"0x71C7656EC7ab88b098defB751B7401B5f6d8976F",
	}
	for _, v := range vectors {
		got, err := NormalizeWallet(v)
		require.NoError(t, err, v)
		assert.Equal(t, v, got)

		got, err = NormalizeWallet(strings.ToLower(v))
		require.NoError(t, err, v)
		assert.Equal(t, v, got, "lowercase input is normalized to checksum")

		got, err = NormalizeWallet("0x" + strings.ToUpper(v[2:]))
		require.NoError(t, err, v)
		assert.Equal(t, v, got, "uppercase input is normalized to checksum")
	}
}

func TestNormalizeWallet_Rejects(t *testing.T) {
	bad := []string{
		"",
		"0x",
		"5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAe",
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAedd",
		"0xZZAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0X5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	}
	for _, addr := range bad {
		_, err := NormalizeWallet(addr)
		assert.ErrorIs(t, err, common.ErrInvalidWallet, addr)
		assert.False(t, ValidWallet(addr))
	}
}

func TestNormalizeWallet_MixedCaseWithoutChecksum(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"},
		{"0x71c7656EC7ab88b098defB751B7401B5f6d8976F", "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"},
		{"  0x71C7656ec7AB88b098defB751B7401B5f6d8976f ", "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"},
	}
	for _, tt := range tests {
		got, err := NormalizeWallet(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.True(t, ValidWallet(tt.in))
	}
}

func TestNextTask(t *testing.T) {
	assert.Equal(t, 1, NextTask([TaskCount]bool{}))
	assert.Equal(t, 2, NextTask([TaskCount]bool{true}))
	assert.Equal(t, 1, NextTask([TaskCount]bool{false, true, true}))
	assert.Equal(t, 5, NextTask([TaskCount]bool{true, true, true, true}))
	assert.Equal(t, StageDone, NextTask([TaskCount]bool{true, true, true, true, true}))
}

func TestRecordDone(t *testing.T) {
	r := &Record{Task2: true}
	assert.True(t, r.Done(2))
	assert.False(t, r.Done(1))
	assert.False(t, r.Done(0))
	assert.False(t, r.Done(6))
}
