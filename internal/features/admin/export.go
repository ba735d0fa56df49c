package admin

import (
	"encoding/json"
	"fmt"

	"soliumcoin.org/airdrop-bot/internal/features/ledger"
)

// EncodeUsers — JSON-документ со всеми пользователями (отступ 2 пробела).
func EncodeUsers(users []ledger.Record) ([]byte, error) {
	if users == nil {
		users = []ledger.Record{}
	}
	return encode(users)
}

// EncodeWallets — JSON-документ с адресами кошельков.
func EncodeWallets(rows []ledger.WalletRow) ([]byte, error) {
	if rows == nil {
		rows = []ledger.WalletRow{}
	}
	return encode(rows)
}

func encode(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации выгрузки: %w", err)
	}
	return append(data, '\n'), nil
}
