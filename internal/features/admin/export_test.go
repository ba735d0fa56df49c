package admin

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"soliumcoin.org/airdrop-bot/internal/features/ledger"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestEncodeUsers(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	done := time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC)
	referrer := int64(202)

	users := []ledger.Record{
		{
			UserID:         101,
			Username:       "alice",
			XUsername:      "@alice_x",
			WalletAddress:  "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
			Balance:        220,
			ReferrerID:     &referrer,
			Task1:          true,
			Task2:          true,
			Task3:          true,
			Task4:          true,
			Task5:          true,
			CurrentTask:    6,
			Participated:   true,
			ParticipatedAt: &done,
			CreatedAt:      created,
			UpdatedAt:      done,
		},
		{
			UserID:      202,
			Balance:     60,
			Referrals:   1,
			Task1:       true,
			CurrentTask: 2,
			CreatedAt:   created,
			UpdatedAt:   created,
		},
	}

	data, err := EncodeUsers(users)
	require.NoError(t, err)
	newGoldie(t).Assert(t, "users", data)
}

func TestEncodeWallets(t *testing.T) {
	data, err := EncodeWallets([]ledger.WalletRow{
		{UserID: 101, WalletAddress: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"},
		{UserID: 303, WalletAddress: "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"},
	})
	require.NoError(t, err)
	newGoldie(t).Assert(t, "wallets", data)
}

func TestEncodeEmpty(t *testing.T) {
	g := newGoldie(t)

	users, err := EncodeUsers(nil)
	require.NoError(t, err)
	g.Assert(t, "empty", users)

	wallets, err := EncodeWallets(nil)
	require.NoError(t, err)
	g.Assert(t, "empty", wallets)
}
