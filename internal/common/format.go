package common

import "fmt"

// FormatNumber форматирует число с разделителями тысяч (пробелами).
// Пример: FormatNumber(2350) → "2 350"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s %03d", FormatNumber(n/1000), n%1000)
}

// FormatBalance — "1 250 Solium"
func FormatBalance(balance int64, token string) string {
	return fmt.Sprintf("%s %s", FormatNumber(balance), token)
}

// FormatAmount создаёт строку вида "+20 Solium" или "-50 Solium".
//
// Примеры:
//
//	FormatAmount(100, "Solium") → "+100 Solium"
//	FormatAmount(-50, "Solium") → "-50 Solium"
func FormatAmount(amount int64, token string) string {
	if amount >= 0 {
		return fmt.Sprintf("+%s %s", FormatNumber(amount), token)
	}
	return fmt.Sprintf("%s %s", FormatNumber(amount), token)
}
