// Package membership проверяет, состоит ли пользователь в группе или канале кампании.
// Используется getChatMember; бот должен быть администратором канала.
package membership

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"
)

// ChatMemberGetter — часть *telego.Bot, нужная для проверки.
type ChatMemberGetter interface {
	GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error)
}

// Checker проверяет членство с ограничением по времени.
type Checker struct {
	api     ChatMemberGetter
	timeout time.Duration
}

func NewChecker(api ChatMemberGetter, timeout time.Duration) *Checker {
	return &Checker{api: api, timeout: timeout}
}

// IsMember возвращает true для статусов creator, administrator, member.
// Ошибка (таймаут, бот не админ, неизвестный чат) — «неизвестно», а не false.
func (c *Checker) IsMember(ctx context.Context, chat string, userID int64) (bool, error) {
	chatID, err := ChatID(chat)
	if err != nil {
		return false, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	member, err := c.api.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: chatID,
		UserID: userID,
	})
	if err != nil {
		return false, fmt.Errorf("getChatMember %s: %w", chat, err)
	}
	if member == nil {
		return false, fmt.Errorf("getChatMember %s: пустой ответ", chat)
	}

	status := member.MemberStatus()
	log.WithFields(log.Fields{
		"chat":    chat,
		"user_id": userID,
		"status":  status,
	}).Debug("membership checked")

	return IsJoined(status), nil
}

// IsJoined — статус считается участием.
func IsJoined(status string) bool {
	switch status {
	case "creator", "administrator", "member":
		return true
	}
	return false
}

// ChatID разбирает "@username" или числовой id ("-100123...").
func ChatID(ref string) (telego.ChatID, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return telego.ChatID{}, fmt.Errorf("пустой идентификатор чата")
	}
	if strings.HasPrefix(ref, "@") {
		return tu.Username(ref), nil
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return telego.ChatID{}, fmt.Errorf("некорректный идентификатор чата %q", ref)
	}
	return tu.ID(id), nil
}
