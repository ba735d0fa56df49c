package ledger

import (
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"

	"soliumcoin.org/airdrop-bot/internal/common"
)

var walletRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// NormalizeWallet проверяет формат BSC-адреса и приводит его к EIP-55.
// Регистр ввода не проверяется: любой адрес вида 0x+40 hex принимается
// и сохраняется в checksum-форме.
func NormalizeWallet(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if !walletRe.MatchString(addr) {
		return "", common.ErrInvalidWallet
	}
	return checksumAddress(addr[2:]), nil
}

// ValidWallet — быстрая проверка без нормализации.
func ValidWallet(addr string) bool {
	_, err := NormalizeWallet(addr)
	return err == nil
}

// checksumAddress — EIP-55: hex-символ в верхнем регистре, если соответствующий
// полубайт keccak256(lowercase) >= 8.
func checksumAddress(body string) string {
	lower := strings.ToLower(body)
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	digest := hex.EncodeToString(h.Sum(nil))

	out := make([]byte, len(lower))
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if c >= 'a' && c <= 'f' && digest[i] >= '8' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return "0x" + string(out)
}
