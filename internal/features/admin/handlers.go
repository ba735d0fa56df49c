// Package admin — handlers.go обрабатывает команды /export, /export2, /stats, /grant.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"

	"soliumcoin.org/airdrop-bot/internal/common"
)

// Handler — Telegram-обёртка над Service.
type Handler struct {
	service *Service
	isAdmin func(userID int64) bool
	sender  Sender
	token   string
}

func NewHandler(service *Service, isAdmin func(userID int64) bool, sender Sender, token string) *Handler {
	return &Handler{
		service: service,
		isAdmin: isAdmin,
		sender:  sender,
		token:   token,
	}
}

// HandleCommand выполняет админскую команду. false — команда не админская.
// Права проверяются до любых обращений к хранилищу.
func (h *Handler) HandleCommand(ctx context.Context, chatID, userID int64, cmd string, args []string) bool {
	if !IsCommand(cmd) {
		return false
	}

	logger := log.WithFields(log.Fields{
		"user_id": userID,
		"cmd":     cmd,
	})

	if !h.isAdmin(userID) {
		logger.Warn("admin command from non-admin")
		h.reply(ctx, chatID, "❌ "+common.ErrNotAdmin.Error())
		return true
	}

	switch cmd {
	case CmdExport:
		data, err := h.service.ExportUsers(ctx)
		if err != nil {
			logger.WithError(err).Error("export users failed")
			h.reply(ctx, chatID, "❌ Ошибка выгрузки пользователей")
			return true
		}
		h.document(ctx, chatID, UsersFilename, data, "📊 Все пользователи")

	case CmdExportWallets:
		data, err := h.service.ExportWallets(ctx)
		if err != nil {
			logger.WithError(err).Error("export wallets failed")
			h.reply(ctx, chatID, "❌ Ошибка выгрузки кошельков")
			return true
		}
		h.document(ctx, chatID, WalletsFilename, data, "📊 Адреса кошельков")

	case CmdStats:
		text, err := h.service.StatsText(ctx)
		if err != nil {
			logger.WithError(err).Error("stats failed")
			h.reply(ctx, chatID, "❌ Ошибка получения статистики")
			return true
		}
		h.reply(ctx, chatID, text)

	case CmdGrant:
		h.grant(ctx, logger, chatID, userID, args)
	}
	return true
}

// grant — /grant <user_id> <amount>
func (h *Handler) grant(ctx context.Context, logger *log.Entry, chatID, adminID int64, args []string) {
	if len(args) != 2 {
		h.reply(ctx, chatID, "❌ Формат: /grant <user_id> <сумма>")
		return
	}
	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.reply(ctx, chatID, "❌ user_id должен быть числом")
		return
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || amount <= 0 {
		h.reply(ctx, chatID, "❌ "+common.ErrInvalidAmount.Error())
		return
	}

	balance, err := h.service.Grant(ctx, adminID, target, amount)
	switch {
	case errors.Is(err, common.ErrUserNotFound):
		h.reply(ctx, chatID, fmt.Sprintf("❌ Пользователь %d не найден", target))
		return
	case err != nil:
		logger.WithError(err).Error("grant failed")
		h.reply(ctx, chatID, "❌ Ошибка начисления")
		return
	}

	h.reply(ctx, chatID, fmt.Sprintf("✅ Пользователю %d начислено %s\n💰 Баланс: %s",
		target, common.FormatAmount(amount, h.token), common.FormatBalance(balance, h.token)))
	h.reply(ctx, target, fmt.Sprintf("🎁 Администратор начислил вам %s\n💰 Баланс: %s",
		common.FormatAmount(amount, h.token), common.FormatBalance(balance, h.token)))
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if err := h.sender.SendText(ctx, chatID, text); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

func (h *Handler) document(ctx context.Context, chatID int64, name string, data []byte, caption string) {
	if err := h.sender.SendDocument(ctx, chatID, name, data, caption); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки файла")
		h.reply(ctx, chatID, "❌ Ошибка отправки файла")
	}
}
