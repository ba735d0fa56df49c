// Package filters решает, какие обновления бот вообще обрабатывает.
// Кампания ведётся только в личных сообщениях с живыми пользователями.
package filters

import (
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

type ChatFilter struct{}

func NewChatFilter() *ChatFilter {
	return &ChatFilter{}
}

// CheckMessage — сообщение из личного чата от пользователя (не бота).
func (f *ChatFilter) CheckMessage(message *telego.Message) bool {
	if message == nil {
		log.WithField("component", "ChatFilter").Warn("nil message")
		return false
	}
	if message.From == nil {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
		}).Debug("nil message.From (service/channel message?)")
		return false
	}

	logger := log.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   message.Chat.ID,
		"chat_type": message.Chat.Type,
		"user_id":   message.From.ID,
	})

	if message.From.IsBot {
		logger.Debug("deny: bot sender")
		return false
	}
	if message.Chat.Type != telego.ChatTypePrivate {
		logger.Debug("deny: not a private chat")
		return false
	}
	return true
}

// CheckCallback — нажатие кнопки в личном чате.
// Если исходное сообщение недоступно, чат определить нельзя: доверяем From.
func (f *ChatFilter) CheckCallback(query *telego.CallbackQuery) bool {
	if query == nil {
		return false
	}
	if query.From.IsBot {
		return false
	}
	if query.Message != nil && query.Message.IsAccessible() {
		chat := query.Message.GetChat()
		if chat.Type != telego.ChatTypePrivate {
			log.WithFields(log.Fields{
				"component": "ChatFilter",
				"chat_id":   chat.ID,
				"user_id":   query.From.ID,
			}).Debug("deny: callback outside private chat")
			return false
		}
	}
	return true
}
