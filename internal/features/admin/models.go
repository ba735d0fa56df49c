// Package admin — команды администраторов кампании: выгрузки, статистика, ручное начисление.
// Доступ определяется списком ADMIN_IDS; проверка идёт до любых действий.
package admin

import (
	"context"
)

// Sender — то, что админке нужно от транспорта.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error
}

// Имена файлов выгрузок
const (
	UsersFilename   = "users.json"
	WalletsFilename = "addresses.json"
)

// Команды админки
const (
	CmdExport        = "export"
	CmdExportWallets = "export2"
	CmdStats         = "stats"
	CmdGrant         = "grant"
)

// IsCommand — команда относится к админке.
func IsCommand(cmd string) bool {
	switch cmd {
	case CmdExport, CmdExportWallets, CmdStats, CmdGrant:
		return true
	}
	return false
}
