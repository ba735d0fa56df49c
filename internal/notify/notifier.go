// Package notify отправляет уведомления админам и пользователям в фоне.
// Уведомление уходит после коммита; ошибка доставки только логируется и не повторяется.
package notify

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"soliumcoin.org/airdrop-bot/internal/bot/middleware"
)

// Sender — отправка текста в чат (реализует транспорт бота).
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Notifier — fire-and-forget уведомления с ограничением по времени.
type Notifier struct {
	sender  Sender
	admins  []int64
	timeout time.Duration
	wg      sync.WaitGroup
}

func New(sender Sender, admins []int64, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{
		sender:  sender,
		admins:  admins,
		timeout: timeout,
	}
}

// NotifyAdmins отправляет текст каждому id из ADMIN_IDS.
func (n *Notifier) NotifyAdmins(text string) {
	for _, id := range n.admins {
		n.NotifyUser(id, text)
	}
}

// NotifyUser не блокирует вызывающего.
func (n *Notifier) NotifyUser(userID int64, text string) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer middleware.RecoverFromPanic()

		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		if err := n.sender.SendText(ctx, userID, text); err != nil {
			log.WithError(err).WithField("chat_id", userID).Warn("notification not delivered")
		}
	}()
}

// Wait дожидается отправки всех уведомлений (вызывается при остановке).
func (n *Notifier) Wait() {
	n.wg.Wait()
}
