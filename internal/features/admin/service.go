// Package admin — service.go собирает выгрузки и отчёты поверх хранилища.
package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"soliumcoin.org/airdrop-bot/internal/common"
	"soliumcoin.org/airdrop-bot/internal/features/ledger"
)

// Service — логика админки без привязки к Telegram (используется и ботом, и CLI).
type Service struct {
	store ledger.Store
	token string
	loc   *time.Location
	now   func() time.Time
}

func NewService(store ledger.Store, token string, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, token: token, loc: loc, now: time.Now}
}

// ExportUsers — users.json.
func (s *Service) ExportUsers(ctx context.Context) ([]byte, error) {
	users, err := s.store.Export(ctx)
	if err != nil {
		return nil, err
	}
	return EncodeUsers(users)
}

// ExportWallets — addresses.json.
func (s *Service) ExportWallets(ctx context.Context) ([]byte, error) {
	rows, err := s.store.Wallets(ctx)
	if err != nil {
		return nil, err
	}
	return EncodeWallets(rows)
}

func (s *Service) Stats(ctx context.Context) (*ledger.Stats, error) {
	return s.store.Stats(ctx)
}

// StatsText — сводка для /stats и ежедневного отчёта.
func (s *Service) StatsText(ctx context.Context) (string, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("📊 Статистика airdrop\n\n")
	sb.WriteString(fmt.Sprintf("👥 Пользователей: %s\n", common.FormatNumber(st.Users)))
	sb.WriteString(fmt.Sprintf("🎉 Завершили участие: %s\n", common.FormatNumber(st.Participants)))
	sb.WriteString(fmt.Sprintf("💳 Кошельков: %s\n", common.FormatNumber(st.Wallets)))
	sb.WriteString(fmt.Sprintf("🤝 Пришли по рефералке: %s\n", common.FormatNumber(st.Referred)))
	sb.WriteString(fmt.Sprintf("💰 Начислено всего: %s", common.FormatBalance(st.TotalBalance, s.token)))
	return sb.String(), nil
}

// DailyReport — отчёт для рассылки админам по расписанию.
func (s *Service) DailyReport(ctx context.Context) (string, error) {
	text, err := s.StatsText(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("🗓 Отчёт на %s\n\n%s", common.FormatDateTime(s.now(), s.loc), text), nil
}

// Grant — ручное начисление от администратора.
func (s *Service) Grant(ctx context.Context, adminID, userID, amount int64) (int64, error) {
	balance, err := s.store.CreditBalance(ctx, userID, amount, ledger.KindAdminGrant,
		fmt.Sprintf("Начисление администратором %d", adminID))
	if err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{
		"admin_id": adminID,
		"user_id":  userID,
		"amount":   amount,
		"balance":  balance,
	}).Info("Админ начислил баланс")
	return balance, nil
}
