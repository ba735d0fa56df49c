package campaign

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"

	"soliumcoin.org/airdrop-bot/internal/common"
)

const refPrefix = "ref"

var refCodeRe = regexp.MustCompile(`^(?:ref)?([0-9]+)$`)

// ParseReferralCode разбирает "ref123" или "123" в id пригласившего.
func ParseReferralCode(code string) (int64, error) {
	m := refCodeRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(code)))
	if m == nil {
		return 0, common.ErrInvalidReferralCode
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, common.ErrInvalidReferralCode
	}
	return id, nil
}

// ReferralCode — код пользователя для deep link.
func ReferralCode(userID int64) string {
	return refPrefix + strconv.FormatInt(userID, 10)
}

// ReferralLink — https://t.me/<bot>?start=ref<id>
func ReferralLink(botUsername string, userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", strings.TrimPrefix(botUsername, "@"), ReferralCode(userID))
}

// ReferralQR — PNG с QR-кодом ссылки.
func ReferralQR(link string) ([]byte, error) {
	return qrcode.Encode(link, qrcode.Medium, 256)
}
