// Package bot — транспорт Telegram: long polling, фильтрация, разбор команд и кнопок,
// передача событий движку кампании и отрисовка результата.
package bot

import (
	"context"
	"sync"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"soliumcoin.org/airdrop-bot/internal/bot/filters"
	"soliumcoin.org/airdrop-bot/internal/bot/middleware"
	"soliumcoin.org/airdrop-bot/internal/config"
	"soliumcoin.org/airdrop-bot/internal/features/campaign"
)

// Engine — обработчик событий кампании.
type Engine interface {
	Handle(ctx context.Context, ev campaign.Event) *campaign.Result
}

// AdminCommands — админские команды; true — команда обработана.
type AdminCommands interface {
	HandleCommand(ctx context.Context, chatID, userID int64, cmd string, args []string) bool
}

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api       API
	cfg       *config.Config
	messenger *Messenger
	engine    Engine
	admin     AdminCommands

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter
	parser      *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
	wg       sync.WaitGroup
}

// New создаёт бота. botUsername — без "@", из GetMe.
func New(api API, cfg *config.Config, messenger *Messenger, engine Engine, admin AdminCommands, botUsername string) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:         api,
		cfg:         cfg,
		messenger:   messenger,
		engine:      engine,
		admin:       admin,
		chatFilter:  filters.NewChatFilter(),
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		parser:      NewCommandParser(botUsername),
		inflight:    make(chan struct{}, maxInFlight),
	}
}

// Start запускает long polling и блокируется до отмены ctx.
func (b *Bot) Start(ctx context.Context, tg *telego.Bot) error {
	updates, err := tg.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: b.cfg.BotUpdateTimeoutSeconds,
		AllowedUpdates: []string{
			"message",
			"callback_query",
		},
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"max_inflight": cap(b.inflight),
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	b.Serve(ctx, updates)
	return nil
}

// Serve читает обновления до закрытия канала или отмены ctx,
// затем ждёт завершения начатых обработчиков.
func (b *Bot) Serve(ctx context.Context, updates <-chan telego.Update) {
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return
			}

			// лимит параллелизма
			select {
			case b.inflight <- struct{}{}:
			case <-ctx.Done():
				return
			}
			b.wg.Add(1)
			go func(upd telego.Update) {
				defer b.wg.Done()
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// Close освобождает фоновые ресурсы.
func (b *Bot) Close() {
	b.rateLimiter.Close()
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update telego.Update) {
	defer middleware.RecoverFromPanic(log.Fields{"update_id": update.UpdateID})

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *telego.Message) {
	middleware.LogMessage(message)

	if !b.chatFilter.CheckMessage(message) || message.Text == "" {
		return
	}

	chatID := message.Chat.ID
	userID := message.From.ID

	// Rate limiting
	if !b.rateLimiter.Allow(userID) {
		log.WithField("user_id", userID).Debug("rate limited")
		return
	}

	var action campaign.Action
	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	log.WithFields(log.Fields{
		"isCommand": isCommand,
		"cmd":       cmd,
		"args":      args,
	}).Debug("parsed command")

	if isCommand {
		if b.admin != nil && b.admin.HandleCommand(ctx, chatID, userID, cmd, args) {
			return
		}
		a, ok := campaign.DecodeCommand(cmd, args)
		if !ok {
			a = campaign.ShowMenu{}
		}
		action = a
	} else {
		action = campaign.TextInput{Text: message.Text}
	}

	res := b.engine.Handle(ctx, campaign.Event{
		UserID:   userID,
		Username: message.From.Username,
		Action:   action,
	})
	b.messenger.Render(ctx, chatID, 0, res)
}

func (b *Bot) handleCallback(ctx context.Context, query *telego.CallbackQuery) {
	middleware.LogCallback(query)

	// снимаем «часики» с кнопки в любом случае
	if err := b.api.AnswerCallbackQuery(ctx, tu.CallbackQuery(query.ID)); err != nil {
		log.WithError(err).WithField("user_id", query.From.ID).Debug("answer callback failed")
	}

	if !b.chatFilter.CheckCallback(query) {
		return
	}
	if !b.rateLimiter.Allow(query.From.ID) {
		log.WithField("user_id", query.From.ID).Debug("rate limited")
		return
	}

	action, err := campaign.DecodeCallback(query.Data)
	if err != nil {
		log.WithError(err).WithField("data", query.Data).Warn("unknown callback data")
		action = campaign.ShowMenu{}
	}

	chatID := query.From.ID
	messageID := 0
	if query.Message != nil && query.Message.IsAccessible() {
		chatID = query.Message.GetChat().ID
		messageID = query.Message.GetMessageID()
	}

	res := b.engine.Handle(ctx, campaign.Event{
		UserID:   query.From.ID,
		Username: query.From.Username,
		Action:   action,
	})
	b.messenger.Render(ctx, chatID, messageID, res)
}
