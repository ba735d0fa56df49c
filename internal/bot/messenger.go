package bot

import (
	"bytes"
	"context"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"soliumcoin.org/airdrop-bot/internal/features/campaign"
)

// API — методы Telegram Bot API, которые использует бот (реализуется *telego.Bot).
type API interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	SendPhoto(ctx context.Context, params *telego.SendPhotoParams) (*telego.Message, error)
	SendDocument(ctx context.Context, params *telego.SendDocumentParams) (*telego.Message, error)
	EditMessageText(ctx context.Context, params *telego.EditMessageTextParams) (*telego.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error
}

// Messenger — исходящие сообщения: тексты, файлы и экраны кампании.
type Messenger struct {
	api API
}

func NewMessenger(api API) *Messenger {
	return &Messenger{api: api}
}

// SendText отправляет простое текстовое сообщение.
func (m *Messenger) SendText(ctx context.Context, chatID int64, text string) error {
	_, err := m.api.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	return err
}

// SendDocument отправляет файл из памяти.
func (m *Messenger) SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error {
	doc := tu.Document(tu.ID(chatID), tu.File(tu.NameReader(bytes.NewReader(data), filename)))
	if caption != "" {
		doc = doc.WithCaption(caption)
	}
	_, err := m.api.SendDocument(ctx, doc)
	return err
}

// Render показывает результат пользователю.
// messageID != 0 — сообщение с нажатой кнопкой: экраны навигации редактируют его,
// при ошибке редактирования отправляется новое сообщение.
func (m *Messenger) Render(ctx context.Context, chatID int64, messageID int, res *campaign.Result) {
	if res == nil {
		return
	}
	kb := Keyboard(res.Buttons)
	logger := log.WithFields(log.Fields{
		"chat_id": chatID,
		"outcome": res.Outcome.String(),
	})

	if len(res.Photo) > 0 {
		photo := tu.Photo(tu.ID(chatID), tu.File(tu.NameReader(bytes.NewReader(res.Photo), "referral.png"))).
			WithCaption(res.Text)
		if kb != nil {
			photo = photo.WithReplyMarkup(kb)
		}
		_, err := m.api.SendPhoto(ctx, photo)
		if err == nil {
			return
		}
		logger.WithError(err).Warn("Не удалось отправить фото, отправляем текст")
	}

	if res.Edit && messageID != 0 {
		_, err := m.api.EditMessageText(ctx, &telego.EditMessageTextParams{
			ChatID:      tu.ID(chatID),
			MessageID:   messageID,
			Text:        res.Text,
			ReplyMarkup: kb,
		})
		if err == nil || isNotModified(err) {
			return
		}
		logger.WithError(err).Debug("edit failed, sending new message")
	}

	msg := tu.Message(tu.ID(chatID), res.Text)
	if kb != nil {
		msg = msg.WithReplyMarkup(kb)
	}
	if _, err := m.api.SendMessage(ctx, msg); err != nil {
		logger.WithError(err).Error("Ошибка отправки сообщения")
	}
}

// Keyboard переводит кнопки кампании в inline-клавиатуру Telegram.
func Keyboard(rows [][]campaign.Button) *telego.InlineKeyboardMarkup {
	var out [][]telego.InlineKeyboardButton
	for _, row := range rows {
		var buttons []telego.InlineKeyboardButton
		for _, b := range row {
			btn := tu.InlineKeyboardButton(b.Text)
			switch {
			case b.URL != "":
				btn = btn.WithURL(b.URL)
			case b.Data != "":
				btn = btn.WithCallbackData(b.Data)
			default:
				continue
			}
			buttons = append(buttons, btn)
		}
		if len(buttons) > 0 {
			out = append(out, tu.InlineKeyboardRow(buttons...))
		}
	}
	if len(out) == 0 {
		return nil
	}
	return tu.InlineKeyboard(out...)
}

// Telegram отвечает ошибкой, если текст и клавиатура не изменились
func isNotModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}
